package dex

import (
	"math/big"

	"github.com/certen/ledgercore/internal/assetreg"
	"github.com/certen/ledgercore/pkg/amount"
)

// FillResult is the outcome of filling a single position against an input
// of one of its two assets.
type FillResult struct {
	Output   amount.Amount
	Unfilled amount.Amount
	Depleted bool // true if the position's output-side reserve reached zero
}

// Fill executes a single-position fill: the position quotes `asset`
// against its opposing asset, and `delta` is the input amount of `asset`.
// Reserves are mutated in place. Outputs round down, the input required
// to deplete a position rounds up, and the rounding remainder accrues to
// the position as additional input reserve.
func (p *Position) Fill(asset assetreg.AssetID, delta amount.Amount) (FillResult, error) {
	inReserve, outReserve, isAsset1, ok := p.reservesOf(asset)
	if !ok {
		return FillResult{}, ErrUnknownAssetForPosition
	}
	if !p.State.Opened() {
		return FillResult{}, ErrPositionNotOpened
	}

	// phi's p:q expresses the marginal price of asset 1 in asset 2 after
	// fee: a position quotes 1 asset1 = (p/q) asset2 pre-fee. Filling
	// with asset2 as input uses the inverse price.
	price := p.Phi.price()
	if !isAsset1 {
		price = new(big.Rat).Inv(price)
	}
	feeFactor := p.Phi.feeFactor()
	effRate := new(big.Rat).Mul(price, feeFactor)

	outR := outReserve.BigInt()
	deltaR := delta.BigInt()

	// maxInput = r_end / (price * fee_factor), rounded up.
	maxInputRat := new(big.Rat).Quo(new(big.Rat).SetInt(outR), effRate)
	maxInput := ceilRat(maxInputRat)

	var res FillResult
	if deltaR.Cmp(maxInput) <= 0 {
		// Fill entirely.
		outputRat := new(big.Rat).Mul(new(big.Rat).SetInt(deltaR), effRate)
		output := floorRat(outputRat)
		outAmt, err := amount.FromBigInt(output)
		if err != nil {
			return FillResult{}, err
		}
		newOut, err := outReserve.Sub(outAmt)
		if err != nil {
			return FillResult{}, err
		}
		newIn, err := inReserve.Add(delta)
		if err != nil {
			return FillResult{}, err
		}
		*outReserve = newOut
		*inReserve = newIn
		res = FillResult{Output: outAmt, Unfilled: amount.Zero, Depleted: newOut.IsZero()}
	} else {
		// Deplete the position: output is the full reserve, input consumed
		// is maxInput (rounded up), the remainder of delta is unfilled.
		// maxInput < delta here, so it fits in an Amount even when the
		// exact quotient would not.
		output := *outReserve
		consumed := mustAmount(maxInput)
		newIn, err := inReserve.Add(consumed)
		if err != nil {
			return FillResult{}, err
		}
		unfilled, err := delta.Sub(consumed)
		if err != nil {
			return FillResult{}, err
		}
		*inReserve = newIn
		*outReserve = amount.Zero
		res = FillResult{Output: output, Unfilled: unfilled, Depleted: true}
	}

	if res.Depleted && p.CloseOnFill {
		p.Close()
	}
	return res, nil
}

func floorRat(r *big.Rat) *big.Int {
	q := new(big.Int)
	q.Div(r.Num(), r.Denom())
	return q
}

func ceilRat(r *big.Rat) *big.Int {
	q, m := new(big.Int), new(big.Int)
	q.DivMod(r.Num(), r.Denom(), m)
	if m.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// mustAmount converts a non-negative big.Int known to fit in 128 bits; used
// only for values derived from already-bounded reserves, so overflow here
// would indicate a prior invariant violation rather than untrusted input.
func mustAmount(v *big.Int) amount.Amount {
	a, err := amount.FromBigInt(v)
	if err != nil {
		// maxInput is bounded by reserves already stored as Amount, so this
		// can only fire if a position's reserves were corrupted upstream.
		panic("dex: fill amount does not fit in 128 bits: " + err.Error())
	}
	return a
}
