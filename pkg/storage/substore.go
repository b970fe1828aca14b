package storage

import (
	"context"
	"encoding/binary"
	"errors"

	"github.com/certen/ledgercore/pkg/jmt"
)

// ErrCorruptNode is returned when a stored node fails to decode; fatal
// rather than recoverable.
var ErrCorruptNode = errors.New("storage: corrupt node encoding")

// ErrMissingValue is returned when a leaf references a value record that is
// absent from the value column family; also fatal.
var ErrMissingValue = errors.New("storage: missing value for referenced node")

// nodeColumn adapts the "node" column family to jmt.Reader/jmt.Writer.
type nodeColumn struct {
	kv *prefixedKV
}

func (c *nodeColumn) GetNode(_ context.Context, key jmt.NodeKey) (*jmt.Node, error) {
	raw, err := c.kv.Get(key.Encode())
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, jmt.ErrNotFound
	}
	n, err := decodeNode(raw)
	if err != nil {
		return nil, ErrCorruptNode
	}
	return n, nil
}

func (c *nodeColumn) PutNode(_ context.Context, key jmt.NodeKey, n *jmt.Node) error {
	return c.kv.Set(key.Encode(), encodeNode(n))
}

// valueColumn stores value bytes keyed by key-hash || BE(version): a
// prefix range over the key-hash yields the version history, and reads
// take the last entry at or below the requested version. Each record
// starts with a presence byte so a deletion leaves a tombstone in the
// history instead of exposing the prior version's value.
type valueColumn struct {
	kv *prefixedKV
}

const (
	valueTagTombstone byte = 0x00
	valueTagPresent   byte = 0x01
)

func valueKey(kh jmt.KeyHash, version uint64) []byte {
	out := make([]byte, 32+8)
	copy(out, kh[:])
	binary.BigEndian.PutUint64(out[32:], version)
	return out
}

func (c *valueColumn) Put(kh jmt.KeyHash, version uint64, value []byte) error {
	rec := make([]byte, 1+len(value))
	rec[0] = valueTagPresent
	copy(rec[1:], value)
	return c.kv.Set(valueKey(kh, version), rec)
}

// Tombstone records kh as deleted at version, shadowing every earlier
// record for reads at or above it.
func (c *valueColumn) Tombstone(kh jmt.KeyHash, version uint64) error {
	return c.kv.Set(valueKey(kh, version), []byte{valueTagTombstone})
}

// Get returns the value recorded for kh at the latest version <= maxVersion.
func (c *valueColumn) Get(kh jmt.KeyHash, maxVersion uint64) ([]byte, bool, error) {
	it, err := c.kv.iterPrefix(kh[:])
	if err != nil {
		return nil, false, err
	}
	defer it.Close()

	var best []byte
	found := false
	for ; it.Valid(); it.Next() {
		key := it.Key()
		if len(key) < 32+8 {
			continue
		}
		version := binary.BigEndian.Uint64(key[32:])
		if version > maxVersion {
			break
		}
		best = it.Value()
		found = true
	}
	if !found || len(best) == 0 || best[0] == valueTagTombstone {
		return nil, false, nil
	}
	return best[1:], true, nil
}

// keyColumn stores the raw-key -> key-hash preimage index, naturally
// ordered by raw key bytes so prefix_scan can enumerate keys under a
// prefix without consulting the hash-keyed JMT.
type keyColumn struct {
	kv *prefixedKV
}

func (c *keyColumn) Put(rawKey []byte, kh jmt.KeyHash) error {
	return c.kv.Set(rawKey, kh[:])
}

func (c *keyColumn) Delete(rawKey []byte) error {
	return c.kv.Delete(rawKey)
}

func (c *keyColumn) Get(rawKey []byte) (jmt.KeyHash, bool, error) {
	v, err := c.kv.Get(rawKey)
	if err != nil {
		return jmt.KeyHash{}, false, err
	}
	if v == nil {
		return jmt.KeyHash{}, false, nil
	}
	var kh jmt.KeyHash
	copy(kh[:], v)
	return kh, true, nil
}

// KV is a raw key/value pair yielded by a prefix scan.
type KV struct {
	Key   []byte
	Value []byte
}

func (c *keyColumn) PrefixScan(prefix []byte) (Iterator, error) {
	return c.kv.iterPrefix(prefix)
}

// auxColumn is the non-merkleized, non-verifiable auxiliary column family.
type auxColumn struct {
	kv *prefixedKV
}

func (c *auxColumn) Get(key []byte) ([]byte, error) { return c.kv.Get(key) }
func (c *auxColumn) Set(key, value []byte) error    { return c.kv.Set(key, value) }
func (c *auxColumn) PrefixScan(prefix []byte) (Iterator, error) {
	return c.kv.iterPrefix(prefix)
}

// Substore is one namespace's versioned, provable key-value store: a
// Jellyfish Merkle Tree over four column families, all backed by the same
// physical KVBackend under distinct key prefixes.
type Substore struct {
	Prefix  string
	Version uint64 // jmt.EmptyVersion until the first commit

	node  *nodeColumn
	value *valueColumn
	keys  *keyColumn
	aux   *auxColumn
	tree  *jmt.Tree
}

func newSubstore(backend KVBackend, prefix string) *Substore {
	base := prefix + "/"
	s := &Substore{
		Prefix:  prefix,
		Version: jmt.EmptyVersion,
		node:    &nodeColumn{kv: newPrefixedKV(backend, base+"node/")},
		value:   &valueColumn{kv: newPrefixedKV(backend, base+"value/")},
		keys:    &keyColumn{kv: newPrefixedKV(backend, base+"keys/")},
		aux:     &auxColumn{kv: newPrefixedKV(backend, base+"aux/")},
	}
	s.tree = jmt.New(s.node)
	return s
}

// Get returns the value stored for rawKey at the substore's latest
// committed version, or (nil, false) if absent.
func (s *Substore) Get(ctx context.Context, rawKey []byte) ([]byte, bool, error) {
	if s.Version == jmt.EmptyVersion {
		return nil, false, nil
	}
	kh := jmt.HashKey(rawKey)
	return s.value.Get(kh, s.Version)
}

// GetWithProof returns the value and an inner JMT proof for rawKey at the
// substore's latest committed version.
func (s *Substore) GetWithProof(ctx context.Context, rawKey []byte) ([]byte, *jmt.Proof, error) {
	if s.Version == jmt.EmptyVersion {
		return nil, &jmt.Proof{}, nil
	}
	_, proof, err := s.tree.Get(ctx, s.Version, rawKey)
	if err != nil {
		return nil, nil, err
	}
	value, found, err := s.value.Get(jmt.HashKey(rawKey), s.Version)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, proof, nil
	}
	return value, proof, nil
}

// Root returns the substore's latest committed root, or the zero hash if
// nothing has been committed yet.
func (s *Substore) Root() jmt.Hash {
	if s.Version == jmt.EmptyVersion {
		return jmt.Hash{}
	}
	n, err := s.node.GetNode(context.Background(), jmt.NodeKey{Version: s.Version})
	if err != nil {
		return jmt.Hash{}
	}
	return n.Hash()
}

// PrefixScan enumerates raw keys under prefix at the substore's latest
// committed version, via the ordered key-preimage column family.
func (s *Substore) PrefixScan(prefix []byte) (Iterator, error) {
	return s.keys.PrefixScan(prefix)
}

// NonverifiableGet/Set/Scan expose the unmerkleized auxiliary column
// family, for metadata the ledger does not need to prove inclusion of
// (the column (d)).
func (s *Substore) NonverifiableGet(key []byte) ([]byte, error) { return s.aux.Get(key) }
func (s *Substore) NonverifiableSet(key, value []byte) error    { return s.aux.Set(key, value) }
func (s *Substore) NonverifiableRange(prefix []byte) (Iterator, error) {
	return s.aux.PrefixScan(prefix)
}
