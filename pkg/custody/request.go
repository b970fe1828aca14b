// Copyright 2025 Certen Protocol

package custody

import "github.com/certen/ledgercore/pkg/txhash"

// NewTransactionSigningRequest builds the SigningRequest for a transaction
// plan with numSpends spend authorizations and numVotes delegator-vote
// authorizations, each keyed to its own randomizer drawn deterministically
// from the transaction plan. randomizers must supply exactly
// numSpends+numVotes entries, spend randomizers first.
func NewTransactionSigningRequest(effectHash txhash.Hash, numSpends, numVotes int, randomizers [][32]byte) SigningRequest {
	return SigningRequest{
		Kind:          RequestTransactionPlan,
		EffectHash:    effectHash,
		NumSignatures: numSpends + numVotes,
		NumSpends:     numSpends,
		NumVotes:      numVotes,
		Randomizers:   randomizers,
	}
}

// NewValidatorSigningRequest builds the single-signature SigningRequest
// used to authorize a validator definition or vote, over the canonical
// encoded body rather than an effect hash.
func NewValidatorSigningRequest(kind RequestKind, body []byte) SigningRequest {
	return SigningRequest{Kind: kind, Body: body, NumSignatures: 1}
}

// RequestIndexFromEffectHash content-addresses a transaction-plan request
// by its effect hash, per the retry semantics.
func RequestIndexFromEffectHash(h txhash.Hash) RequestIndex {
	var idx RequestIndex
	copy(idx[:], h[:])
	return idx
}
