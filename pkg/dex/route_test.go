package dex

import (
	"testing"

	"github.com/certen/ledgercore/internal/assetreg"
	"github.com/certen/ledgercore/pkg/amount"
)

// Three identical positions at 9, 10, 11 bps fees are depleted
// lowest-fee-first, each at its exact depletion threshold.
func TestFeeOrderedTraversal(t *testing.T) {
	book := NewBook()
	p9 := mustPos(t, 1, gm, gn, 1, 1, 9, 0, 100_000, false)
	p10 := mustPos(t, 2, gm, gn, 1, 1, 10, 0, 100_000, false)
	p11 := mustPos(t, 3, gm, gn, 1, 1, 11, 0, 100_000, false)
	book.Add(p9)
	book.Add(p10)
	book.Add(p11)

	pair := DirectedTradingPair{Start: gm, End: gn}
	ordered := book.Positions(pair)
	if len(ordered) != 3 || ordered[0].ID != 1 || ordered[1].ID != 2 || ordered[2].ID != 3 {
		t.Fatalf("expected fee-ascending order [1,2,3], got %v", idsOf(ordered))
	}

	exec, err := book.RouteAndFill(gm, gn, amount.FromUint64(100_091), DefaultRouteParams())
	if err != nil {
		t.Fatalf("RouteAndFill: %v", err)
	}
	if !exec.Unfilled.IsZero() {
		t.Fatalf("expected fully filled, got unfilled %s", exec.Unfilled)
	}
	if p9.Reserves2.Cmp(amount.Zero) != 0 {
		t.Fatalf("expected 9bps position depleted, reserves2=%s", p9.Reserves2)
	}
	if p10.Reserves2.Cmp(amount.FromUint64(100_000)) != 0 || p11.Reserves2.Cmp(amount.FromUint64(100_000)) != 0 {
		t.Fatalf("expected 10bps and 11bps untouched")
	}

	if _, err := book.RouteAndFill(gm, gn, amount.FromUint64(100_101), DefaultRouteParams()); err != nil {
		t.Fatalf("RouteAndFill: %v", err)
	}
	if p10.Reserves2.Cmp(amount.Zero) != 0 {
		t.Fatalf("expected 10bps position depleted, reserves2=%s", p10.Reserves2)
	}
	if p11.Reserves2.Cmp(amount.FromUint64(100_000)) != 0 {
		t.Fatalf("expected 11bps still untouched")
	}

	if _, err := book.RouteAndFill(gm, gn, amount.FromUint64(100_111), DefaultRouteParams()); err != nil {
		t.Fatalf("RouteAndFill: %v", err)
	}
	if p11.Reserves2.Cmp(amount.Zero) != 0 {
		t.Fatalf("expected 11bps position depleted, reserves2=%s", p11.Reserves2)
	}
}

// TestMultiHopRouting exercises a two-hop route with no direct edge
// between asset_in and asset_out, with reserves sized so both hops have
// the liquidity the requested input needs.
func TestMultiHopRouting(t *testing.T) {
	penumbra := assetreg.DeriveAssetID("penumbra")

	book := NewBook()
	// gm -> penumbra at 2:1, penumbra held in reserve so it can be sold for gm input.
	book.Add(mustPos(t, 1, gm, penumbra, 2, 1, 0, 500, 1_000, false))
	// penumbra -> gn at 3:1.
	book.Add(mustPos(t, 2, penumbra, gn, 3, 1, 0, 500, 1_000, false))

	exec, err := book.RouteAndFill(gm, gn, amount.FromUint64(10), DefaultRouteParams())
	if err != nil {
		t.Fatalf("RouteAndFill: %v", err)
	}
	if exec.Output.Cmp(amount.FromUint64(60)) != 0 {
		t.Fatalf("expected output 60, got %s", exec.Output)
	}
	if !exec.Unfilled.IsZero() {
		t.Fatalf("expected no unfilled, got %s", exec.Unfilled)
	}
	if len(exec.Traces) != 1 || len(exec.Traces[0]) != 3 {
		t.Fatalf("expected a single 3-point (2-hop) trace, got %v", exec.Traces)
	}
}

func idsOf(ps []*Position) []uint64 {
	out := make([]uint64, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestRouteAndFillRejectsSameAsset(t *testing.T) {
	book := NewBook()
	if _, err := book.RouteAndFill(gm, gm, amount.FromUint64(1), DefaultRouteParams()); err != ErrSameAsset {
		t.Fatalf("expected ErrSameAsset, got %v", err)
	}
}
