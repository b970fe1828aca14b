// Copyright 2025 Certen Protocol
//
// Package dex implements the concentrated-liquidity position book and
// batch-swap matching engine: position fills,
// multi-hop routing with its two circuit breakers, and pro-rata batch
// swap output distribution.
package dex

import (
	"math/big"

	"github.com/certen/ledgercore/internal/assetreg"
	"github.com/certen/ledgercore/pkg/amount"
)

// TradingFunction is a position's constant-sum trading function φ = (p, q,
// fee_bps): the position exchanges asset 1 for asset 2 at price p/q, minus
// a fee of fee_bps/10000.
type TradingFunction struct {
	P      *big.Int
	Q      *big.Int
	FeeBps uint32
}

// price returns p/q as an exact rational.
func (f TradingFunction) price() *big.Rat {
	return new(big.Rat).SetFrac(f.P, f.Q)
}

// feeFactor returns 1 - fee_bps/10000 as an exact rational.
func (f TradingFunction) feeFactor() *big.Rat {
	feeBps := new(big.Rat).SetFrac64(int64(f.FeeBps), 10000)
	return new(big.Rat).Sub(big.NewRat(1, 1), feeBps)
}

// EffectivePrice ranks positions quoting asset_1 -> asset_2 in the order
// book: (q/p) divided by the fee factor, i.e. the asset_1 cost per unit of
// asset_2 output once the fee is accounted for. Ascending order therefore
// visits the cheapest-for-the-trader (lowest-fee, best-rate) positions
// first: three identical p/q positions at 9/10/11 bps must fill the
// lowest-fee position first, which only holds if the fee factor divides
// rather than multiplies here; (q/p) * fee_factor would rank them the
// other way.
func (f TradingFunction) EffectivePrice() *big.Rat {
	inv := new(big.Rat).SetFrac(f.Q, f.P)
	return new(big.Rat).Quo(inv, f.feeFactor())
}

// PositionState is a position's lifecycle state: Opened -> Closed ->
// Withdrawn(0) -> Withdrawn(1) -> ...
type PositionState struct {
	Closed      bool
	WithdrawalN int // -1 while not yet withdrawn, else the Withdrawn(n) sequence number
}

// Opened reports whether the position can still be filled.
func (s PositionState) Opened() bool { return !s.Closed }

// Withdrawn reports whether the position has been withdrawn at least once.
func (s PositionState) Withdrawn() bool { return s.Closed && s.WithdrawalN >= 0 }

func openState() PositionState { return PositionState{WithdrawalN: -1} }

// DirectedTradingPair names an ordered (start, end) asset pair: a position
// quoting Phi against Asset1/Asset2 serves the pair in both directions,
// with EffectivePrice computed against whichever asset is "start".
type DirectedTradingPair struct {
	Start assetreg.AssetID
	End   assetreg.AssetID
}

// Position is one concentrated-liquidity position: its trading function,
// current reserves of asset 1 and asset 2, and lifecycle state.
type Position struct {
	ID          uint64
	Asset1      assetreg.AssetID
	Asset2      assetreg.AssetID
	Phi         TradingFunction
	Reserves1   amount.Amount
	Reserves2   amount.Amount
	CloseOnFill bool
	State       PositionState
}

// TradingFunctionOneToOne is a zero-fee 1:1 trading function, convenient
// for tests that only exercise lifecycle behavior rather than pricing.
func TradingFunctionOneToOne() TradingFunction {
	return TradingFunction{P: big.NewInt(1), Q: big.NewInt(1), FeeBps: 0}
}

// NewPosition validates and constructs an Opened position. A position
// with both reserves zero is rejected at stateless validation, as is a
// trading function with a non-positive p or q or a fee above 50%.
func NewPosition(id uint64, asset1, asset2 assetreg.AssetID, phi TradingFunction, r1, r2 amount.Amount, closeOnFill bool) (*Position, error) {
	if r1.IsZero() && r2.IsZero() {
		return nil, ErrEmptyPosition
	}
	if phi.P == nil || phi.Q == nil || phi.P.Sign() <= 0 || phi.Q.Sign() <= 0 || phi.FeeBps > 5000 {
		return nil, ErrInvalidTradingFunction
	}
	return &Position{
		ID:          id,
		Asset1:      asset1,
		Asset2:      asset2,
		Phi:         phi,
		Reserves1:   r1,
		Reserves2:   r2,
		CloseOnFill: closeOnFill,
		State:       openState(),
	}, nil
}

// Close transitions the position to Closed, idempotently.
func (p *Position) Close() {
	p.State.Closed = true
}

// Withdraw transitions the position to its next Withdrawn(n) state,
// returning the reserves transferred to the caller. The position record
// is retained with zero reserves afterward for proof-of-history.
func (p *Position) Withdraw() (amount.Amount, amount.Amount, error) {
	if !p.State.Closed {
		return amount.Amount{}, amount.Amount{}, ErrPositionNotClosed
	}
	r1, r2 := p.Reserves1, p.Reserves2
	p.Reserves1 = amount.Zero
	p.Reserves2 = amount.Zero
	p.State.WithdrawalN++
	return r1, r2, nil
}

// reservesOf returns the reserves of a given asset, and the opposing
// asset's reserves, with a bool indicating asset was Asset1.
func (p *Position) reservesOf(asset assetreg.AssetID) (this, other *amount.Amount, isAsset1 bool, ok bool) {
	switch asset {
	case p.Asset1:
		return &p.Reserves1, &p.Reserves2, true, true
	case p.Asset2:
		return &p.Reserves2, &p.Reserves1, false, true
	default:
		return nil, nil, false, false
	}
}

// outputCapacity returns the reserve of the asset the position would pay
// out if filled with inputAsset as input, i.e. the opposing reserve.
func (p *Position) outputCapacity(inputAsset assetreg.AssetID) (amount.Amount, bool) {
	_, other, _, ok := p.reservesOf(inputAsset)
	if !ok {
		return amount.Zero, false
	}
	return *other, true
}
