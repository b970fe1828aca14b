package dex

import (
	"testing"

	"github.com/certen/ledgercore/pkg/amount"
)

func TestProRataOutputsZeroDenominatorIsZero(t *testing.T) {
	d := &BatchSwapOutputData{
		Delta1:    amount.Zero,
		Delta2:    amount.FromUint64(100),
		Lambda1:   amount.FromUint64(50),
		Unfilled2: amount.FromUint64(10),
	}
	l1, l2, err := d.ProRataOutputs(amount.FromUint64(5), amount.FromUint64(20))
	if err != nil {
		t.Fatalf("ProRataOutputs: %v", err)
	}
	// delta1I's share of Delta1==0 is defined as zero, so l1 is purely the
	// delta2I/Delta2 share of Lambda1: (20/100)*50 = 10.
	if l1.Cmp(amount.FromUint64(10)) != 0 {
		t.Fatalf("expected lambda1=10, got %s", l1)
	}
	// l2's Lambda2 term has Delta1==0 and contributes zero, so l2 is purely
	// the delta2I/Delta2 share of Unfilled2: (20/100)*10 = 2.
	if l2.Cmp(amount.FromUint64(2)) != 0 {
		t.Fatalf("expected lambda2=2, got %s", l2)
	}
}

func TestProRataOutputsNeverOverDistributes(t *testing.T) {
	d := &BatchSwapOutputData{
		Delta1:    amount.FromUint64(100),
		Delta2:    amount.FromUint64(200),
		Lambda1:   amount.FromUint64(40),
		Lambda2:   amount.FromUint64(60),
		Unfilled1: amount.FromUint64(10),
		Unfilled2: amount.FromUint64(20),
	}
	users := [][2]uint64{{30, 50}, {70, 150}}
	var sumL1, sumL2 amount.Amount
	for _, u := range users {
		l1, l2, err := d.ProRataOutputs(amount.FromUint64(u[0]), amount.FromUint64(u[1]))
		if err != nil {
			t.Fatalf("ProRataOutputs: %v", err)
		}
		var err2 error
		sumL1, err2 = sumL1.Add(l1)
		if err2 != nil {
			t.Fatalf("sumL1 overflow: %v", err2)
		}
		sumL2, err2 = sumL2.Add(l2)
		if err2 != nil {
			t.Fatalf("sumL2 overflow: %v", err2)
		}
	}
	maxL1, err := d.Lambda1.Add(d.Unfilled1)
	if err != nil {
		t.Fatalf("maxL1: %v", err)
	}
	maxL2, err := d.Lambda2.Add(d.Unfilled2)
	if err != nil {
		t.Fatalf("maxL2: %v", err)
	}
	if sumL1.Cmp(maxL1) > 0 {
		t.Fatalf("sum lambda1_i %s exceeds Lambda1+Unfilled1 %s", sumL1, maxL1)
	}
	if sumL2.Cmp(maxL2) > 0 {
		t.Fatalf("sum lambda2_i %s exceeds Lambda2+Unfilled2 %s", sumL2, maxL2)
	}
}

func TestRunBatchSwapCanonicalOrder(t *testing.T) {
	book := NewBook()
	book.Add(mustPos(t, 1, gm, gn, 1, 1, 0, 0, 1_000, false))
	book.Add(mustPos(t, 2, gm, gn, 1, 1, 0, 1_000, 0, false))

	pair := NewTradingPair(gm, gn)
	out, err := book.RunBatchSwap(1, pair, amount.FromUint64(500), amount.FromUint64(500), DefaultRouteParams())
	if err != nil {
		t.Fatalf("RunBatchSwap: %v", err)
	}
	if out.Lambda2.Cmp(amount.FromUint64(500)) != 0 {
		t.Fatalf("expected Lambda2=500 from the asset1->asset2 route, got %s", out.Lambda2)
	}
	if out.Lambda1.Cmp(amount.FromUint64(500)) != 0 {
		t.Fatalf("expected Lambda1=500 from the asset2->asset1 route, got %s", out.Lambda1)
	}
}
