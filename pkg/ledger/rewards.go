// Copyright 2025 Certen Protocol

package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"

	"github.com/certen/ledgercore/internal/assetreg"
	"github.com/certen/ledgercore/pkg/amount"
	"github.com/certen/ledgercore/pkg/events"
	"github.com/certen/ledgercore/pkg/stake"
)

// pendingRewardNote is one funding-stream reward queued at an epoch
// boundary, minted as a shielded note commitment in the first block of
// the next epoch.
type pendingRewardNote struct {
	Recipient string
	Asset     assetreg.AssetID
	Amount    amount.Amount
}

// queueFundingStreamRewards computes each Active validator's epoch reward
// from its tracked delegation pool and splits the funding-stream shares
// off to their recipients. The remainder stays compounded into the
// validator's exchange rate by UpdateRates; only the stream shares leave
// as notes.
func (a *App) queueFundingStreamRewards() {
	for _, v := range a.validators.All() {
		if v.State != stake.StateActive || len(v.FundingStreams) == 0 {
			continue
		}
		pool := a.pools.get(v.Identity)
		if pool.IsZero() || a.baseRewardRateBps <= 0 {
			continue
		}
		reward := mulDivBps(pool, uint64(a.baseRewardRateBps))
		if reward.IsZero() {
			continue
		}
		for _, fs := range v.FundingStreams {
			share := mulDivBps(reward, uint64(fs.RateBps))
			if share.IsZero() {
				continue
			}
			a.pendingRewards = append(a.pendingRewards, pendingRewardNote{
				Recipient: fs.Recipient,
				Asset:     assetreg.AssetID(v.DelegationAsset),
				Amount:    share,
			})
		}
	}
}

// processRewardNotes mints every reward note queued at the previous epoch
// boundary: each becomes a note commitment in the shielded pool,
// addressed to the funding-stream recipient. Runs at the start of every
// end-of-block pass; a block mid-epoch simply has nothing queued.
func (a *App) processRewardNotes(height uint64) {
	for i, note := range a.pendingRewards {
		commitment := rewardNoteCommitment(note, height, uint64(i))
		a.overlay.Put(commitmentKey(commitment), note.Amount.Bytes())
		a.bus.Emit(epochTxIdx, i, events.KindRewardNote,
			events.Attrs("recipient", note.Recipient, "amount", note.Amount.String())...)
	}
	a.pendingRewards = nil
}

// rewardNoteCommitment derives a deterministic commitment for a minted
// reward note. The real note commitment is produced by the zk-circuit
// layer, which lives outside this tree; this hash stands in for it the
// same way assetreg.DeriveAssetID stands in for asset-id derivation.
func rewardNoteCommitment(note pendingRewardNote, height, index uint64) [32]byte {
	h := sha256.New()
	h.Write([]byte("certen-reward-note/"))
	h.Write([]byte(note.Recipient))
	h.Write(note.Asset[:])
	h.Write(note.Amount.Bytes())
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], height)
	binary.BigEndian.PutUint64(buf[8:], index)
	h.Write(buf[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// mulDivBps computes floor(a * bps / 10000), saturating to zero on
// overflow (a reward share that cannot fit in 128 bits indicates a
// corrupted pool total, not a payable reward).
func mulDivBps(a amount.Amount, bps uint64) amount.Amount {
	prod := new(big.Int).Mul(a.BigInt(), new(big.Int).SetUint64(bps))
	prod.Quo(prod, big.NewInt(10_000))
	out, err := amount.FromBigInt(prod)
	if err != nil {
		return amount.Zero
	}
	return out
}
