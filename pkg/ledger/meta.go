// Copyright 2025 Certen Protocol
//
// Block-commit metadata persistence: one JSON record for the latest
// commit, one big-endian-height-keyed record per block. The records live
// in the nonverifiable column family since they are local bookkeeping,
// not part of the Merkleized state.
package ledger

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"time"

	"github.com/certen/ledgercore/pkg/jmt"
	"github.com/certen/ledgercore/pkg/storage"
)

var (
	keyLatestBlock = []byte("ledger:latest_block")
	keyBlockPrefix = []byte("ledger:block:")
)

// ErrBlockMetaNotFound is returned by LoadBlockMeta when no block has been
// committed yet.
var ErrBlockMetaNotFound = errors.New("ledger: no committed block metadata")

// BlockMeta is the per-commit record persisted alongside the versioned
// store: the height, the resulting app-hash, and the wall-clock time
// FinalizeBlock observed for that height.
type BlockMeta struct {
	Height  uint64
	AppHash jmt.Hash
	Time    time.Time
}

func blockKey(height uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, height)
	return append(append([]byte(nil), keyBlockPrefix...), b...)
}

// SaveBlockMeta persists meta as both the per-height record and the
// latest-block pointer.
func SaveBlockMeta(store *storage.MultiStore, meta BlockMeta) error {
	b, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := store.NonverifiableSet(blockKey(meta.Height), b); err != nil {
		return err
	}
	return store.NonverifiableSet(keyLatestBlock, b)
}

// LoadLatestBlockMeta returns the most recently committed block's metadata.
func LoadLatestBlockMeta(store *storage.MultiStore) (BlockMeta, error) {
	b, err := store.NonverifiableGet(keyLatestBlock)
	if err != nil {
		return BlockMeta{}, err
	}
	if len(b) == 0 {
		return BlockMeta{}, ErrBlockMetaNotFound
	}
	var meta BlockMeta
	if err := json.Unmarshal(b, &meta); err != nil {
		return BlockMeta{}, err
	}
	return meta, nil
}

// LoadBlockMeta returns the metadata committed at a specific height.
func LoadBlockMeta(store *storage.MultiStore, height uint64) (BlockMeta, error) {
	b, err := store.NonverifiableGet(blockKey(height))
	if err != nil {
		return BlockMeta{}, err
	}
	if len(b) == 0 {
		return BlockMeta{}, ErrBlockMetaNotFound
	}
	var meta BlockMeta
	if err := json.Unmarshal(b, &meta); err != nil {
		return BlockMeta{}, err
	}
	return meta, nil
}
