// Copyright 2025 Certen Protocol
//
// Package assetreg is the process-wide asset registry: a read-mostly
// mapping from asset id to denomination, seeded from genesis and extended
// by inbound ICS-20 transfers. Readers never block writers and never see a torn map, since
// every mutation replaces the map wholesale (copy-on-write).

package assetreg

import (
	"crypto/sha256"
	"sync/atomic"
)

// AssetID is a 32-byte field element derived deterministically from a
// canonical denomination string.
type AssetID [32]byte

// DeriveAssetID computes the asset id for a canonical denomination
// string. Real field-element derivation belongs to the zk-proof system,
// which lives outside this tree; here a domain-separated hash stands in
// for that derivation, which is sufficient for uniqueness and
// determinism.
func DeriveAssetID(denom string) AssetID {
	h := sha256.New()
	h.Write([]byte("certen-asset-id/"))
	h.Write([]byte(denom))
	var id AssetID
	copy(id[:], h.Sum(nil))
	return id
}

type registrySnapshot map[AssetID]string

// Registry is a process-wide, copy-on-write asset-id -> denomination map.
type Registry struct {
	snapshot atomic.Pointer[registrySnapshot]
}

// New creates an empty registry.
func New() *Registry {
	r := &Registry{}
	empty := registrySnapshot{}
	r.snapshot.Store(&empty)
	return r
}

// Lookup returns the denomination for an asset id, if known.
func (r *Registry) Lookup(id AssetID) (string, bool) {
	snap := *r.snapshot.Load()
	denom, ok := snap[id]
	return denom, ok
}

// Register adds a denomination to the registry, deriving its asset id. It is
// a no-op if the asset is already known. Safe for concurrent use; mutation
// is a copy-on-write swap so concurrent readers never observe a partial
// update.
func (r *Registry) Register(denom string) AssetID {
	id := DeriveAssetID(denom)
	for {
		old := r.snapshot.Load()
		if _, exists := (*old)[id]; exists {
			return id
		}
		next := make(registrySnapshot, len(*old)+1)
		for k, v := range *old {
			next[k] = v
		}
		next[id] = denom
		if r.snapshot.CompareAndSwap(old, &next) {
			return id
		}
	}
}

// Len returns the number of registered assets.
func (r *Registry) Len() int {
	return len(*r.snapshot.Load())
}
