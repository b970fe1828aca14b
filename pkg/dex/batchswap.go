package dex

import (
	"math/big"

	"github.com/certen/ledgercore/internal/assetreg"
	"github.com/certen/ledgercore/pkg/amount"
)

// TradingPair is an ordered (asset1, asset2) pair with asset1 < asset2
// lexicographically.
type TradingPair struct {
	Asset1 assetreg.AssetID
	Asset2 assetreg.AssetID
}

// NewTradingPair orders the two assets canonically.
func NewTradingPair(a, c assetreg.AssetID) TradingPair {
	if lessAssetID(c, a) {
		return TradingPair{Asset1: c, Asset2: a}
	}
	return TradingPair{Asset1: a, Asset2: c}
}

// BatchSwapOutputData is the aggregated settlement record for one trading
// pair at one block height: the two opposing aggregated inputs, their
// aggregated outputs, and the unfilled residuals.
type BatchSwapOutputData struct {
	Height    uint64
	Pair      TradingPair
	Delta1    amount.Amount // aggregated input of Asset1
	Delta2    amount.Amount // aggregated input of Asset2
	Lambda1   amount.Amount // aggregated output of Asset1 (from the Asset2->Asset1 route)
	Lambda2   amount.Amount // aggregated output of Asset2 (from the Asset1->Asset2 route)
	Unfilled1 amount.Amount // unfilled residual of Asset1 input
	Unfilled2 amount.Amount // unfilled residual of Asset2 input

	// Execution12/Execution21 are the recorded swap executions of the two
	// routes (asset_1 -> asset_2 and the reverse), nil for a route whose
	// aggregated input was zero. They are not part of the pro-rata math;
	// they exist so callers can persist and index the hop traces.
	Execution12 *SwapExecution `json:"execution_1_2,omitempty"`
	Execution21 *SwapExecution `json:"execution_2_1,omitempty"`
}

// RunBatchSwap processes aggregated user inputs (delta1, delta2) into pair
// as two opposing one-directional routes in canonical order: the pair's
// asset_1 -> asset_2 route first, then the reverse.
func (b *Book) RunBatchSwap(height uint64, pair TradingPair, delta1, delta2 amount.Amount, params RouteParams) (*BatchSwapOutputData, error) {
	out := &BatchSwapOutputData{Height: height, Pair: pair, Delta1: delta1, Delta2: delta2}

	if !delta1.IsZero() {
		exec, err := b.RouteAndFill(pair.Asset1, pair.Asset2, delta1, params)
		if err != nil {
			return nil, err
		}
		out.Lambda2 = exec.Output
		out.Unfilled1 = exec.Unfilled
		out.Execution12 = exec
	} else {
		out.Unfilled1 = amount.Zero
	}

	if !delta2.IsZero() {
		exec, err := b.RouteAndFill(pair.Asset2, pair.Asset1, delta2, params)
		if err != nil {
			return nil, err
		}
		out.Lambda1 = exec.Output
		out.Unfilled2 = exec.Unfilled
		out.Execution21 = exec
	} else {
		out.Unfilled2 = amount.Zero
	}

	return out, nil
}

// ProRataOutputs computes one user's share of the aggregated outputs:
//
//	lambda_1_i = (delta_2_i / Delta_2) * Lambda_1  +  (delta_1_i / Delta_1) * U_1
//	lambda_2_i = (delta_1_i / Delta_1) * Lambda_2  +  (delta_2_i / Delta_2) * U_2
//
// each term rounded down; a zero aggregated input (Delta_j == 0) yields a
// zero contribution from every term divided by it rather than a division
// error.
func (d *BatchSwapOutputData) ProRataOutputs(delta1I, delta2I amount.Amount) (lambda1I, lambda2I amount.Amount, err error) {
	// From the user's Asset1 input: their share of Lambda2 (Asset2 bought)
	// and their share of Unfilled1 (the Asset1 they get back because it
	// wasn't filled). The Asset2 input mirrors this.
	share2FromLambda2 := proRata(delta1I, d.Delta1, d.Lambda2)
	share1FromUnfilled1 := proRata(delta1I, d.Delta1, d.Unfilled1)

	share1FromLambda1 := proRata(delta2I, d.Delta2, d.Lambda1)
	share2FromUnfilled2 := proRata(delta2I, d.Delta2, d.Unfilled2)

	lambda1I, err = share1FromLambda1.Add(share1FromUnfilled1)
	if err != nil {
		return amount.Zero, amount.Zero, err
	}
	lambda2I, err = share2FromLambda2.Add(share2FromUnfilled2)
	if err != nil {
		return amount.Zero, amount.Zero, err
	}
	return lambda1I, lambda2I, nil
}

// proRata computes floor(num/denom * total), treating denom == 0 as
// yielding zero.
func proRata(num, denom, total amount.Amount) amount.Amount {
	if denom.IsZero() {
		return amount.Zero
	}
	prod := new(big.Int).Mul(num.BigInt(), total.BigInt())
	q := new(big.Int).Div(prod, denom.BigInt())
	a, err := amount.FromBigInt(q)
	if err != nil {
		// num <= denom and total both fit in 128 bits, so prod/denom can
		// exceed 128 bits only if num > denom, which callers must not do
		// (a user's individual input cannot exceed the aggregate total).
		panic("dex: pro-rata output overflow: " + err.Error())
	}
	return a
}
