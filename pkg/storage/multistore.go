package storage

import (
	"context"
	"errors"
	"sort"

	"github.com/certen/ledgercore/pkg/ics23"
	"github.com/certen/ledgercore/pkg/jmt"
)

// ErrUnknownSubstore is returned by Root and GetWithProof when asked about
// a substore prefix that was not configured at startup. An unknown
// substore is a hard error, never an empty result.
var ErrUnknownSubstore = errors.New("storage: unknown substore")

// mainPrefix names the catch-all substore that every other substore's root
// is committed under.
const mainPrefix = ""

// MultiStore is the versioned, multi-substore key-value database: one main
// substore plus N prefixed substores, routed by longest-prefix match.
type MultiStore struct {
	backend KVBackend
	main    *Substore
	subs    []*Substore // sorted by prefix length descending, for longest-prefix routing
}

// Open constructs a MultiStore with the given prefixed substores (in
// addition to the always-present main substore) over backend. If backend
// is nil, an in-memory store is used; callers wire a durable KVBackend
// (pkg/kvdb) in production.
func Open(backend KVBackend, substorePrefixes []string) *MultiStore {
	if backend == nil {
		backend = newMemKV()
	}
	ms := &MultiStore{
		backend: backend,
		main:    newSubstore(backend, mainPrefix),
	}
	for _, p := range substorePrefixes {
		ms.subs = append(ms.subs, newSubstore(backend, p))
	}
	sort.Slice(ms.subs, func(i, j int) bool {
		return len(ms.subs[i].Prefix) > len(ms.subs[j].Prefix)
	})
	return ms
}

// route selects the substore owning rawKey by longest-prefix match,
// falling back to the main substore.
func (ms *MultiStore) route(rawKey []byte) *Substore {
	key := string(rawKey)
	for _, s := range ms.subs {
		if len(s.Prefix) <= len(key) && key[:len(s.Prefix)] == s.Prefix {
			return s
		}
	}
	return ms.main
}

// substoreByPrefix looks up a configured substore (or the main substore)
// by its exact configured prefix name.
func (ms *MultiStore) substoreByPrefix(prefix string) (*Substore, bool) {
	if prefix == mainPrefix {
		return ms.main, true
	}
	for _, s := range ms.subs {
		if s.Prefix == prefix {
			return s, true
		}
	}
	return nil, false
}

// Get reads rawKey from its routed substore at the latest committed
// version.
func (ms *MultiStore) Get(ctx context.Context, rawKey []byte) ([]byte, bool, error) {
	return ms.route(rawKey).Get(ctx, rawKey)
}

// GetWithProof reads rawKey along with the chained (inner, outer)
// commitment proof: inner against the routed substore's root, outer
// proving that root under the main substore.
func (ms *MultiStore) GetWithProof(ctx context.Context, rawKey []byte) ([]byte, *ics23.CommitmentProof, error) {
	if len(rawKey) == 0 {
		return nil, nil, errors.New("storage: cannot prove an empty key")
	}
	sub := ms.route(rawKey)
	value, inner, err := sub.GetWithProof(ctx, rawKey)
	if err != nil {
		return nil, nil, err
	}

	proof := &ics23.CommitmentProof{
		SubstorePrefix: sub.Prefix,
		Key:            rawKey,
		Value:          value,
		Inner:          inner,
	}
	if sub == ms.main {
		return value, proof, nil
	}

	_, outer, err := ms.main.tree.Get(ctx, ms.main.Version, substoreRootKey(sub.Prefix))
	if err != nil {
		return nil, nil, err
	}
	proof.Outer = outer
	return value, proof, nil
}

// Root returns a configured substore's latest committed root.
func (ms *MultiStore) Root(prefix string) (jmt.Hash, error) {
	s, ok := ms.substoreByPrefix(prefix)
	if !ok {
		return jmt.Hash{}, ErrUnknownSubstore
	}
	return s.Root(), nil
}

// PrefixScan enumerates raw keys with the given prefix in the substore
// that prefix routes to.
func (ms *MultiStore) PrefixScan(prefix []byte) (Iterator, error) {
	return ms.route(prefix).PrefixScan(prefix)
}

// NonverifiableGet/Set/Range expose the routed substore's unmerkleized
// auxiliary column family.
func (ms *MultiStore) NonverifiableGet(key []byte) ([]byte, error) {
	return ms.route(key).NonverifiableGet(key)
}

func (ms *MultiStore) NonverifiableSet(key, value []byte) error {
	return ms.route(key).NonverifiableSet(key, value)
}

func (ms *MultiStore) NonverifiableRange(prefix []byte) (Iterator, error) {
	return ms.route(prefix).NonverifiableRange(prefix)
}

func substoreRootKey(prefix string) []byte {
	return []byte("substore/" + prefix)
}
