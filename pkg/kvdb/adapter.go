// Copyright 2025 Certen Protocol
//
// KV Adapter for CometBFT Database Integration
// Wraps CometBFT's dbm.DB interface to implement storage.KVBackend, the
// contract pkg/storage's substores use for their four column families.

package kvdb

import (
	dbm "github.com/cometbft/cometbft-db"

	"github.com/certen/ledgercore/pkg/storage"
)

// KVAdapter wraps a CometBFT dbm.DB and exposes the storage.KVBackend
// interface, so every substore's column families share one physical
// handle (goleveldb or badgerdb, both already indirect deps).
type KVAdapter struct {
	db dbm.DB
}

// NewKVAdapter creates a new KVAdapter for the given underlying DB.
func NewKVAdapter(db dbm.DB) *KVAdapter {
	return &KVAdapter{db: db}
}

// Get implements storage.KVBackend.Get.
func (a *KVAdapter) Get(key []byte) ([]byte, error) {
	if a.db == nil {
		return nil, nil
	}
	// v may be nil if key not found -- storage.KVBackend treats nil as
	// "not present".
	return a.db.Get(key)
}

// Set implements storage.KVBackend.Set, using SetSync for durable writes
// at commit time.
func (a *KVAdapter) Set(key, value []byte) error {
	if a.db == nil {
		return nil
	}
	return a.db.SetSync(key, value)
}

// Delete implements storage.KVBackend.Delete.
func (a *KVAdapter) Delete(key []byte) error {
	if a.db == nil {
		return nil
	}
	return a.db.DeleteSync(key)
}

// Iterator implements storage.KVBackend.Iterator. dbm.Iterator's method set
// is a superset of storage.Iterator's (it also has Domain and Error), so
// the returned iterator satisfies storage.Iterator directly.
func (a *KVAdapter) Iterator(start, end []byte) (storage.Iterator, error) {
	it, err := a.db.Iterator(start, end)
	if err != nil {
		return nil, err
	}
	return it, nil
}
