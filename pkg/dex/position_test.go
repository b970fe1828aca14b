package dex

import (
	"testing"

	"github.com/certen/ledgercore/pkg/amount"
)

// A PositionOpen with both reserves zero is rejected at stateless
// validation.
func TestRejectEmptyPosition(t *testing.T) {
	_, err := NewPosition(1, gm, gn, TradingFunctionOneToOne(), amount.Zero, amount.Zero, false)
	if err != ErrEmptyPosition {
		t.Fatalf("expected ErrEmptyPosition, got %v", err)
	}
}

// TestPositionLifecycle walks the state sequence the
// position state machine allows: Opened -> Closed -> Withdrawn(0) ->
// Withdrawn(1) -> ...
func TestPositionLifecycle(t *testing.T) {
	pos, err := NewPosition(1, gm, gn, TradingFunctionOneToOne(), amount.FromUint64(10), amount.FromUint64(0), false)
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	if !pos.State.Opened() {
		t.Fatalf("new position must be Opened")
	}

	if _, _, err := pos.Withdraw(); err != ErrPositionNotClosed {
		t.Fatalf("expected ErrPositionNotClosed before Close, got %v", err)
	}

	pos.Close()
	if pos.State.Opened() {
		t.Fatalf("position must not be Opened after Close")
	}

	r1, r2, err := pos.Withdraw()
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if r1.Cmp(amount.FromUint64(10)) != 0 || !r2.IsZero() {
		t.Fatalf("expected withdrawn reserves (10,0), got (%s,%s)", r1, r2)
	}
	if pos.State.WithdrawalN != 0 {
		t.Fatalf("expected WithdrawalN=0 after first withdraw, got %d", pos.State.WithdrawalN)
	}
	if !pos.Reserves1.IsZero() || !pos.Reserves2.IsZero() {
		t.Fatalf("expected zero reserves retained after withdraw")
	}

	_, _, err = pos.Withdraw()
	if err != nil {
		t.Fatalf("second Withdraw: %v", err)
	}
	if pos.State.WithdrawalN != 1 {
		t.Fatalf("expected WithdrawalN=1 after second withdraw, got %d", pos.State.WithdrawalN)
	}
}

// TestCloseOnFillDepletion is the "Opened ->(fill with
// close_on_fill and depletion)-> Closed" transition.
func TestCloseOnFillDepletion(t *testing.T) {
	pos := mustPos(t, 1, gm, gn, 1, 1, 0, 0, 1_000, true)
	if _, err := pos.Fill(gm, amount.FromUint64(1_000)); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if pos.State.Opened() {
		t.Fatalf("expected position closed after depleting fill with close_on_fill")
	}
}
