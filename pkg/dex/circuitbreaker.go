package dex

import (
	"github.com/certen/ledgercore/internal/assetreg"
	"github.com/certen/ledgercore/pkg/amount"
	"github.com/certen/ledgercore/pkg/events"
)

// CircuitBreaker tracks, per asset, the running credit and debit totals
// that every fill must reconcile against: reserves + unclaimed swap
// outputs may never exceed credit - debit.
type CircuitBreaker struct {
	credit map[assetreg.AssetID]amount.Amount
	debit  map[assetreg.AssetID]amount.Amount
}

// NewCircuitBreaker creates an empty per-asset credit/debit tracker.
func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{
		credit: make(map[assetreg.AssetID]amount.Amount),
		debit:  make(map[assetreg.AssetID]amount.Amount),
	}
}

// Credit records asset entering the DEX subsystem's custody (a deposit
// into a position, or a swap input) and emits CircuitBreakerCredit.
func (cb *CircuitBreaker) Credit(bus *events.Bus, txIdx, actionIdx int, asset assetreg.AssetID, amt amount.Amount) error {
	cur := cb.credit[asset]
	next, err := cur.Add(amt)
	if err != nil {
		return err
	}
	cb.credit[asset] = next
	bus.Emit(txIdx, actionIdx, events.KindCircuitBreakerCredit,
		events.Attrs("asset", assetHex(asset), "amount", amt.String())...)
	return nil
}

// Debit records asset leaving the DEX subsystem's custody (a withdrawal,
// or a claimed swap output) and emits CircuitBreakerDebit.
func (cb *CircuitBreaker) Debit(bus *events.Bus, txIdx, actionIdx int, asset assetreg.AssetID, amt amount.Amount) error {
	cur := cb.debit[asset]
	next, err := cur.Add(amt)
	if err != nil {
		return err
	}
	cb.debit[asset] = next
	bus.Emit(txIdx, actionIdx, events.KindCircuitBreakerDebit,
		events.Attrs("asset", assetHex(asset), "amount", amt.String())...)
	return nil
}

// Check verifies the per-asset invariant against the caller-supplied sum of
// current reserves and unclaimed swap outputs for asset: that sum must
// never exceed credit - debit. A violation is fatal; the caller should
// halt the node.
func (cb *CircuitBreaker) Check(asset assetreg.AssetID, reservesPlusUnclaimed amount.Amount) error {
	credit := cb.credit[asset]
	debit := cb.debit[asset]
	net, err := credit.Sub(debit)
	if err != nil {
		return ErrValueCircuitBreaker
	}
	if reservesPlusUnclaimed.Cmp(net) > 0 {
		return ErrValueCircuitBreaker
	}
	return nil
}

// Clone returns a deep copy of the circuit breaker's credit/debit ledgers,
// used by pkg/ledger to snapshot state before executing a transaction (see
// Book.Clone).
func (cb *CircuitBreaker) Clone() *CircuitBreaker {
	cp := NewCircuitBreaker()
	for k, v := range cb.credit {
		cp.credit[k] = v
	}
	for k, v := range cb.debit {
		cp.debit[k] = v
	}
	return cp
}

func assetHex(id assetreg.AssetID) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, len(id)*2)
	for i, b := range id {
		buf[i*2] = hexDigits[b>>4]
		buf[i*2+1] = hexDigits[b&0xf]
	}
	return string(buf)
}
