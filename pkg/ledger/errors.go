// Copyright 2025 Certen Protocol
//
// Package ledger provides sentinel errors for ledger operations.

package ledger

import "errors"

// Validation/policy errors: reject the action and the
// enclosing transaction, but never the block.
var (
	ErrUnknownActionKind  = errors.New("ledger: unknown action kind")
	ErrNullifierSpent     = errors.New("ledger: nullifier already spent")
	ErrUnknownPosition    = errors.New("ledger: position not found")
	ErrUnknownValidator   = errors.New("ledger: validator not found")
	ErrUnknownAsset       = errors.New("ledger: asset not registered")
	ErrFeeBelowMinimum    = errors.New("ledger: fee below minimum")
	ErrTransactionExpired = errors.New("ledger: transaction expiry height elapsed")
	ErrWrongChainID       = errors.New("ledger: transaction parameters name a different chain")
	ErrUnknownSwapWindow  = errors.New("ledger: no batch swap output recorded for this height/pair")
	ErrUnknownProposal    = errors.New("ledger: proposal not found or not in the required state")
	ErrProposalExists     = errors.New("ledger: proposal id already in use")
)

// Fatal errors: halt the node. Callers that observe
// these from Commit must not attempt to continue block production.
var (
	ErrValueCircuitBreaker       = errors.New("ledger: value circuit breaker invariant violated")
	ErrImpossibleStateTransition = errors.New("ledger: impossible validator state transition requested")
)
