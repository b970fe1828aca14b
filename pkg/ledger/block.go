// Copyright 2025 Certen Protocol
//
// Block execution: consensus hands the App an ordered batch of
// transactions (single-writer, sequential, deterministic), each of which
// runs to completion or is discarded wholesale, followed by an
// end-of-block phase that settles batch swaps and, if the epoch boundary
// is reached, finalizes validator rates and active-set membership.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"maps"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/ledgercore/internal/assetreg"
	"github.com/certen/ledgercore/pkg/amount"
	"github.com/certen/ledgercore/pkg/dex"
	"github.com/certen/ledgercore/pkg/ibc"
	"github.com/certen/ledgercore/pkg/jmt"
	"github.com/certen/ledgercore/pkg/stake"
)

// epochTxIdx is the virtual transaction index end-of-block processing
// (epoch rollover, batch-swap settlement) emits events under. It is
// negative so it never collides with a real transaction's index within
// req.Txs.
const epochTxIdx = -1

// Transaction is one user-submitted, ordered batch of actions plus the
// parameters binding it to a specific chain and expiry window.
type Transaction struct {
	ChainID      string
	ExpiryHeight uint64
	Actions      []Action
}

// TxResult is the outcome of running one Transaction against the block in
// progress.
type TxResult struct {
	Err error
	// EventStart/EventEnd bound this transaction's slice of a.bus.Events(),
	// [EventStart, EventEnd).
	EventStart, EventEnd int
}

// txSnapshot captures every domain object Clone supports, taken before a
// transaction runs so its writes can be discarded wholesale on failure.
type txSnapshot struct {
	book       *dex.Book
	breaker    *dex.CircuitBreaker
	validators *stake.Manager
	ibcReg     *ibc.Registry
	proposals  *proposalRegistry
	pools      *delegationPools
}

func (a *App) snapshot() txSnapshot {
	return txSnapshot{
		book:       a.book.Clone(),
		breaker:    a.breaker.Clone(),
		validators: a.validators.Clone(),
		ibcReg:     a.ibcReg.Clone(),
		proposals:  a.proposals.clone(),
		pools:      a.pools.clone(),
	}
}

func (a *App) restore(snap txSnapshot) {
	a.book = snap.book
	a.breaker = snap.breaker
	a.validators = snap.validators
	a.ibcReg = snap.ibcReg
	a.proposals = snap.proposals
	a.pools = snap.pools
}

// BeginBlock resets the per-block accumulators (event bus, pending batch
// swaps) ahead of a fresh round of DeliverTx calls. The caller holds no
// lock across BeginBlock/DeliverTx/EndBlock/Commit; App.mu is acquired
// internally for the duration of FinalizeBlock's driving loop.
func (a *App) beginBlock() {
	a.bus.Reset()
	a.overlay.Reset()
	a.pendingSwaps = make(map[dex.TradingPair]*pendingSwap)
	a.pendingOrder = nil
}

// deliverTx runs one transaction's actions sequentially against a scratch
// overlay, validating its chain-binding parameters first. Every domain
// object mutated by an action is snapshotted beforehand
// and restored verbatim if any action fails, and the scratch overlay is
// simply discarded instead of merged.
func (a *App) deliverTx(ctx context.Context, txIdx int, tx Transaction) TxResult {
	start := a.bus.Len()
	if tx.ChainID != a.chainID {
		return TxResult{Err: ErrWrongChainID, EventStart: start, EventEnd: start}
	}
	if tx.ExpiryHeight < a.height+1 {
		return TxResult{Err: ErrTransactionExpired, EventStart: start, EventEnd: start}
	}

	snap := a.snapshot()
	pool := maps.Clone(a.communityPool)
	swaps := make(map[dex.TradingPair]pendingSwap, len(a.pendingSwaps))
	for pair, ps := range a.pendingSwaps {
		swaps[pair] = *ps
	}
	orderLen := len(a.pendingOrder)
	txOv := newTxOverlay(a)

	for actionIdx, act := range tx.Actions {
		if err := a.applyAction(ctx, txOv, txIdx, actionIdx, act); err != nil {
			a.restore(snap)
			a.communityPool = pool
			for _, pair := range a.pendingOrder[orderLen:] {
				delete(a.pendingSwaps, pair)
			}
			a.pendingOrder = a.pendingOrder[:orderLen]
			for pair, ps := range swaps {
				*a.pendingSwaps[pair] = ps
			}
			return TxResult{Err: err, EventStart: start, EventEnd: start}
		}
	}

	a.overlay.StageFrom(txOv.ov)
	return TxResult{EventStart: start, EventEnd: a.bus.Len()}
}

// endBlock mints any reward notes queued at the previous epoch boundary,
// settles every trading pair that received swap inputs this block, checks
// the value circuit breaker, and, if the epoch boundary has been reached,
// finalizes validator rates and active-set promotion/demotion.
func (a *App) endBlock(height uint64) error {
	a.processRewardNotes(height)

	if len(a.pendingOrder) > 0 {
		byPair := make(map[dex.TradingPair]*dex.BatchSwapOutputData, len(a.pendingOrder))
		for _, pair := range a.pendingOrder {
			ps := a.pendingSwaps[pair]
			out, err := a.book.RunBatchSwap(height, pair, ps.delta1, ps.delta2, a.routeParams)
			if err != nil {
				return err
			}
			byPair[pair] = out
			a.observeSwapExecutions(out)
			if err := a.persistBatchSwap(out); err != nil {
				return err
			}
		}
		a.swapOutputs[height] = byPair
	}

	if err := a.checkValueBreaker(); err != nil {
		return err
	}

	if !a.clock.advance(height) {
		return nil
	}
	return a.finalizeEpoch(height)
}

// observeSwapExecutions records per-trace fill counts for the DEX metrics.
func (a *App) observeSwapExecutions(out *dex.BatchSwapOutputData) {
	if a.metrics == nil {
		return
	}
	for _, exec := range []*dex.SwapExecution{out.Execution12, out.Execution21} {
		if exec == nil {
			continue
		}
		for _, trace := range exec.Traces {
			hops := len(trace) - 1
			if hops <= 0 {
				continue
			}
			a.metrics.DexFillsTotal.Add(float64(hops))
			a.metrics.DexRouteHops.Observe(float64(hops))
		}
	}
}

// persistBatchSwap stages the settlement record (aggregated deltas,
// outputs, residuals, and hop traces) into the block overlay under the
// dex substore, keyed by height and trading pair.
func (a *App) persistBatchSwap(out *dex.BatchSwapOutputData) error {
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	a.overlay.Put(batchSwapKey(out.Height, out.Pair), b)
	return nil
}

// checkValueBreaker verifies, for every asset with position reserves, that
// the total held in reserves does not exceed the circuit breaker's running
// credit net of debit. Reserves are a lower bound on the value the DEX is
// accountable for (unclaimed swap outputs add to it), so exceeding the
// credit total here means value was minted out of nowhere: a fatal error.
func (a *App) checkValueBreaker() error {
	totals := make(map[assetreg.AssetID]amount.Amount)
	for _, p := range a.book.All() {
		var err error
		if totals[p.Asset1], err = totals[p.Asset1].Add(p.Reserves1); err != nil {
			return err
		}
		if totals[p.Asset2], err = totals[p.Asset2].Add(p.Reserves2); err != nil {
			return err
		}
	}
	assets := make([]assetreg.AssetID, 0, len(totals))
	for id := range totals {
		assets = append(assets, id)
	}
	sort.Slice(assets, func(i, j int) bool { return bytes.Compare(assets[i][:], assets[j][:]) < 0 })
	for _, id := range assets {
		if err := a.breaker.Check(id, totals[id]); err != nil {
			if a.metrics != nil {
				a.metrics.CircuitBreakerHalts.Inc()
			}
			return err
		}
	}
	return nil
}

// finalizeEpoch runs the rate-update and promotion pass:
// every Active validator's reward rate is folded in at the configured
// base rate (no per-validator issuance schedule is modeled; see
// DESIGN.md), then the Inactive set is reconsidered for promotion into
// the configured active-set size, ranked by tracked delegation pool size.
func (a *App) finalizeEpoch(height uint64) error {
	epoch := a.clock.CurrentEpoch()

	rewardRates := make(map[stake.IdentityKey]uint64)
	for _, v := range a.validators.All() {
		if v.State == stake.StateActive {
			rewardRates[v.Identity] = uint64(a.baseRewardRateBps)
		}
	}
	if err := a.validators.UpdateRates(a.bus, epochTxIdx, epoch, rewardRates, nil); err != nil {
		return err
	}

	a.queueFundingStreamRewards()
	a.promoteAndDemote()
	a.clock.rollover(height)
	return nil
}

// promoteAndDemote ranks every Inactive validator by its tracked
// delegation pool and promotes the top ones into the configured active
// set size, demoting any currently Active validator that no longer ranks
// in the top-N by voting power. Validators below the minimum stake
// threshold are never promoted.
func (a *App) promoteAndDemote() {
	type ranked struct {
		identity stake.IdentityKey
		power    uint64
	}
	var candidates []ranked
	for _, v := range a.validators.All() {
		power := a.pools.get(v.Identity).Lo
		if v.State != stake.StateActive && v.State != stake.StateInactive {
			continue
		}
		if power < a.minStake {
			continue
		}
		candidates = append(candidates, ranked{identity: v.Identity, power: power})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].power != candidates[j].power {
			return candidates[i].power > candidates[j].power
		}
		return lessIdentityBytes(candidates[i].identity, candidates[j].identity)
	})

	keep := make(map[stake.IdentityKey]bool, a.activeSize)
	for i, c := range candidates {
		if i >= a.activeSize {
			break
		}
		keep[c.identity] = true
	}

	for actionIdx, v := range a.validators.All() {
		switch {
		case v.State == stake.StateActive && !keep[v.Identity]:
			_ = a.validators.SetValidatorState(a.bus, epochTxIdx, actionIdx, v.Identity, stake.StateInactive)
			if a.metrics != nil {
				a.metrics.ValidatorTransitions.WithLabelValues(stake.StateInactive.String()).Inc()
			}
		case v.State == stake.StateInactive && keep[v.Identity]:
			_ = a.validators.PromoteToActive(a.bus, epochTxIdx, actionIdx, v.Identity, a.pools.get(v.Identity).Lo)
			if a.metrics != nil {
				a.metrics.ValidatorTransitions.WithLabelValues(stake.StateActive.String()).Inc()
			}
		}
	}
}

func lessIdentityBytes(a, b stake.IdentityKey) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Commit applies the block's staged overlay to the versioned store,
// producing the new app-hash, and advances the committed height. Callers
// must not invoke DeliverTx again for this height after calling Commit.
func (a *App) Commit(ctx context.Context) (jmt.Hash, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := a.height + 1
	start := time.Now()
	root, err := a.overlay.Commit(ctx, a.store, next)
	if err != nil {
		return jmt.Hash{}, err
	}
	a.height = next
	a.lastAppHash = root
	if a.metrics != nil {
		a.metrics.BlocksCommitted.Inc()
		a.metrics.CommitDuration.Observe(time.Since(start).Seconds())
	}
	if a.log != nil {
		a.log.Printf("committed height=%d app_hash=%s", next, common.Hash(root).Hex())
	}
	return root, nil
}

// FinalizeBlock drives a whole block: BeginBlock, DeliverTx for every
// transaction in order, EndBlock, in one mutex-guarded pass. Commit is a
// separate call, so the caller can inspect events/results before the
// height advances.
func (a *App) FinalizeBlock(ctx context.Context, height uint64, txs []Transaction) ([]TxResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.beginBlock()
	results := make([]TxResult, len(txs))
	for i, tx := range txs {
		results[i] = a.deliverTx(ctx, i, tx)
	}
	if err := a.endBlock(height); err != nil {
		return results, err
	}
	return results, nil
}
