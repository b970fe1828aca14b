// Copyright 2025 Certen Protocol

package ledger

import (
	"encoding/binary"

	"github.com/certen/ledgercore/internal/assetreg"
	"github.com/certen/ledgercore/pkg/dex"
)

// Storage key prefixes, one per substore configured in pkg/config.Config's
// SubstorePrefixes; pkg/storage routes each key to its substore by
// longest-prefix match.
const (
	prefixShieldedPool = "shielded_pool/"
	prefixDex          = "dex/"
)

func nullifierKey(nullifier [32]byte) []byte {
	key := make([]byte, 0, len(prefixShieldedPool)+10+32)
	key = append(key, prefixShieldedPool...)
	key = append(key, "nullifiers/"...)
	key = append(key, nullifier[:]...)
	return key
}

func commitmentKey(commitment [32]byte) []byte {
	key := make([]byte, 0, len(prefixShieldedPool)+12+32)
	key = append(key, prefixShieldedPool...)
	key = append(key, "commitments/"...)
	key = append(key, commitment[:]...)
	return key
}

func batchSwapKey(height uint64, pair dex.TradingPair) []byte {
	key := make([]byte, 0, len(prefixDex)+12+8+64)
	key = append(key, prefixDex...)
	key = append(key, "batch_swaps/"...)
	var h [8]byte
	binary.BigEndian.PutUint64(h[:], height)
	key = append(key, h[:]...)
	key = append(key, pair.Asset1[:]...)
	key = append(key, pair.Asset2[:]...)
	return key
}

func ics20EscrowKey(asset assetreg.AssetID) []byte {
	key := make([]byte, 0, len(prefixDex)+7+32)
	key = append(key, prefixDex...)
	key = append(key, "ics20/"...)
	key = append(key, asset[:]...)
	return key
}
