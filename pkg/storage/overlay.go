package storage

import (
	"bytes"
	"context"
	"sort"

	"github.com/certen/ledgercore/pkg/jmt"
)

// entry is one staged write. Order of insertion into Overlay.entries never
// influences the committed root: commit always processes each substore's
// changes sorted by raw key, so the only thing the insertion-order index
// affects is which entry wins for a repeated key (last write wins).
type entry struct {
	key    []byte
	value  []byte
	delete bool
}

// Overlay stages writes for a single block's execution. It is owned
// exclusively by the block-executing task; pkg/ledger resets it per
// block.
type Overlay struct {
	entries []entry
	latest  map[string]int
}

// NewOverlay creates an empty overlay for a new block.
func NewOverlay() *Overlay {
	return &Overlay{latest: make(map[string]int)}
}

// Put stages a write, overriding any prior staged write for the same key
// within this overlay.
func (o *Overlay) Put(key, value []byte) {
	o.stage(entry{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
}

// Delete stages a deletion.
func (o *Overlay) Delete(key []byte) {
	o.stage(entry{key: append([]byte(nil), key...), delete: true})
}

func (o *Overlay) stage(e entry) {
	if idx, ok := o.latest[string(e.key)]; ok {
		o.entries[idx] = e
		return
	}
	o.latest[string(e.key)] = len(o.entries)
	o.entries = append(o.entries, e)
}

// Get returns a staged write for key, if any, so block execution observes
// its own writes before commit.
func (o *Overlay) Get(key []byte) (value []byte, deleted bool, found bool) {
	idx, ok := o.latest[string(key)]
	if !ok {
		return nil, false, false
	}
	e := o.entries[idx]
	return e.value, e.delete, true
}

// Reset clears the overlay for reuse at the next block.
func (o *Overlay) Reset() {
	o.entries = nil
	o.latest = make(map[string]int)
}

// StageFrom copies every entry staged in src into o, in src's original
// order. pkg/ledger runs each transaction against its own scratch Overlay
// and, only once every action in the transaction has succeeded, merges it
// into the block's overlay with StageFrom; a failing transaction simply
// discards its scratch overlay instead (the first
// failing action aborts the entire transaction; all overlay writes for
// that transaction are discarded).
func (o *Overlay) StageFrom(src *Overlay) {
	for _, e := range src.entries {
		o.stage(e)
	}
}

// Commit applies the overlay to ms at newVersion: for each mutated
// substore, write the preimage and value records, update its JMT to
// produce a new root, record that root under the main substore, then
// commit the main substore last. The returned hash is the new
// main-substore root, the block's app-hash.
func (o *Overlay) Commit(ctx context.Context, ms *MultiStore, newVersion uint64) (jmt.Hash, error) {
	bySubstore := make(map[*Substore][]entry)
	for _, e := range o.entries {
		sub := ms.route(e.key)
		bySubstore[sub] = append(bySubstore[sub], e)
	}

	// Process child substores in a fixed order (by prefix) so the set of
	// writes folded into the main substore is deterministic.
	var touched []*Substore
	for sub := range bySubstore {
		if sub != ms.main {
			touched = append(touched, sub)
		}
	}
	sort.Slice(touched, func(i, j int) bool { return touched[i].Prefix < touched[j].Prefix })

	mainEntries := append([]entry(nil), bySubstore[ms.main]...)

	for _, sub := range touched {
		root, err := commitSubstore(ctx, sub, newVersion, bySubstore[sub])
		if err != nil {
			return jmt.Hash{}, err
		}
		mainEntries = append(mainEntries, entry{
			key:   substoreRootKey(sub.Prefix),
			value: root[:],
		})
	}

	sort.Slice(mainEntries, func(i, j int) bool { return bytes.Compare(mainEntries[i].key, mainEntries[j].key) < 0 })

	root, err := commitSubstore(ctx, ms.main, newVersion, mainEntries)
	if err != nil {
		return jmt.Hash{}, err
	}
	return root, nil
}

// commitSubstore performs steps (1) and (2) of the commit algorithm for a
// single substore: write preimage/value records for every changed key,
// then update its JMT and persist the resulting nodes.
func commitSubstore(ctx context.Context, sub *Substore, newVersion uint64, entries []entry) (jmt.Hash, error) {
	sort.Slice(entries, func(i, j int) bool { return bytes.Compare(entries[i].key, entries[j].key) < 0 })

	updates := make([]jmt.KeyValue, 0, len(entries))
	for _, e := range entries {
		kh := jmt.HashKey(e.key)
		if e.delete {
			if err := sub.keys.Delete(e.key); err != nil {
				return jmt.Hash{}, err
			}
			if err := sub.value.Tombstone(kh, newVersion); err != nil {
				return jmt.Hash{}, err
			}
			updates = append(updates, jmt.KeyValue{Key: e.key, Delete: true})
			continue
		}
		if err := sub.keys.Put(e.key, kh); err != nil {
			return jmt.Hash{}, err
		}
		if err := sub.value.Put(kh, newVersion, e.value); err != nil {
			return jmt.Hash{}, err
		}
		updates = append(updates, jmt.KeyValue{Key: e.key, ValueHash: jmt.HashValue(e.value)})
	}

	root, writes, err := sub.tree.Put(ctx, sub.Version, newVersion, updates)
	if err != nil {
		return jmt.Hash{}, err
	}
	for _, w := range writes {
		if err := sub.node.PutNode(ctx, w.Key, w.Node); err != nil {
			return jmt.Hash{}, err
		}
	}
	sub.Version = newVersion
	return root, nil
}
