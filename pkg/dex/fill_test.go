package dex

import (
	"math/big"
	"testing"

	"github.com/certen/ledgercore/internal/assetreg"
	"github.com/certen/ledgercore/pkg/amount"
)

var (
	gm = assetreg.DeriveAssetID("gm")
	gn = assetreg.DeriveAssetID("gn")
)

func mustPos(t *testing.T, id uint64, a1, a2 assetreg.AssetID, p, q int64, feeBps uint32, r1, r2 uint64, closeOnFill bool) *Position {
	t.Helper()
	pos, err := NewPosition(id, a1, a2, TradingFunction{P: big.NewInt(p), Q: big.NewInt(q), FeeBps: feeBps}, amount.FromUint64(r1), amount.FromUint64(r2), closeOnFill)
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	return pos
}

// A market order larger than a position can absorb exhausts the position
// exactly; a second identical order comes back fully unfilled.
func TestSingleOrderExhaust(t *testing.T) {
	pos := mustPos(t, 1, gm, gn, 12, 10, 0, 0, 120_000, false)

	res, err := pos.Fill(gm, amount.FromUint64(100_000))
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if !res.Unfilled.IsZero() {
		t.Fatalf("expected zero unfilled, got %s", res.Unfilled)
	}
	if res.Output.Cmp(amount.FromUint64(120_000)) != 0 {
		t.Fatalf("expected output 120000, got %s", res.Output)
	}
	if pos.Reserves1.Cmp(amount.FromUint64(100_000)) != 0 || !pos.Reserves2.IsZero() {
		t.Fatalf("unexpected reserves: (%s, %s)", pos.Reserves1, pos.Reserves2)
	}

	res2, err := pos.Fill(gm, amount.FromUint64(100_000))
	if err != nil {
		t.Fatalf("second Fill: %v", err)
	}
	if res2.Unfilled.Cmp(amount.FromUint64(100_000)) != 0 {
		t.Fatalf("expected all-unfilled second order, got %s", res2.Unfilled)
	}
	if !res2.Output.IsZero() {
		t.Fatalf("expected zero output, got %s", res2.Output)
	}
	if pos.Reserves1.Cmp(amount.FromUint64(100_000)) != 0 || !pos.Reserves2.IsZero() {
		t.Fatalf("reserves must not change on a fully-depleted fill")
	}
}

// 100 market orders of 1_000 gm each drain the same position the single
// exhausting order above does, with no rounding drift.
func TestPartialFills(t *testing.T) {
	pos := mustPos(t, 1, gm, gn, 12, 10, 0, 0, 120_000, false)
	for i := 0; i < 100; i++ {
		res, err := pos.Fill(gm, amount.FromUint64(1_000))
		if err != nil {
			t.Fatalf("Fill %d: %v", i, err)
		}
		if !res.Unfilled.IsZero() {
			t.Fatalf("Fill %d: expected zero unfilled, got %s", i, res.Unfilled)
		}
		if res.Output.Cmp(amount.FromUint64(1_200)) != 0 {
			t.Fatalf("Fill %d: expected output 1200, got %s", i, res.Output)
		}
	}
	if pos.Reserves1.Cmp(amount.FromUint64(100_000)) != 0 || !pos.Reserves2.IsZero() {
		t.Fatalf("unexpected final reserves: (%s, %s)", pos.Reserves1, pos.Reserves2)
	}
}
