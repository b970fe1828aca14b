// Copyright 2025 Certen Protocol

package custody

import (
	"crypto/ed25519"

	"github.com/certen/ledgercore/pkg/txhash"
)

// SigningCommitment is a follower's round-1 nonce commitment pair
// (hiding, binding). Both are opaque 32-byte group-element encodings;
// scalar arithmetic runs over the bn254 scalar field (see DESIGN.md).
type SigningCommitment struct {
	Hiding  [32]byte
	Binding [32]byte
}

// CoordinatorRound1 is the message the coordinator broadcasts to start a
// ceremony, naming the request every follower must commit nonces against.
type CoordinatorRound1 struct {
	CeremonyIndex [16]byte
	Request       SigningRequest
}

// FollowerRound1 is a participant's round-1 response: one nonce commitment
// per signature the request needs, authenticated by the follower's
// long-term verification key so the coordinator can reject responses from
// an unknown or unexpected signer before round 2 begins.
type FollowerRound1 struct {
	Signer      Identifier
	Commitments []SigningCommitment
	SignerKey   ed25519.PublicKey
	Sig         []byte
}

// SigningPackage bundles every follower's round-1 commitment for one
// signature index, which round 2 needs to compute the shared binding
// factor.
type SigningPackage struct {
	Message     []byte
	Commitments map[Identifier]SigningCommitment
	orderedIDs  []Identifier // sorted once at construction, never recomputed from the map
}

// NewSigningPackage builds a SigningPackage with a fixed, sorted signer
// order so every downstream computation (binding factors, the aggregated
// signature) is independent of map iteration order.
func NewSigningPackage(message []byte, commitments map[Identifier]SigningCommitment) SigningPackage {
	ids := make([]Identifier, 0, len(commitments))
	for id := range commitments {
		ids = append(ids, id)
	}
	sortIdentifiers(ids)
	return SigningPackage{Message: message, Commitments: commitments, orderedIDs: ids}
}

// CoordinatorRound2 is the message the coordinator broadcasts once
// threshold-many round-1 responses are in hand: one SigningPackage per
// signature the request needs.
type CoordinatorRound2 struct {
	CeremonyIndex [16]byte
	Packages      []SigningPackage
}

// SignatureShare is one follower's partial signature for one signature
// index within the request.
type SignatureShare struct {
	Signer Identifier
	Share  [32]byte
}

// FollowerRound2 is a participant's round-2 response: one signature share
// per signature the request needs.
type FollowerRound2 struct {
	Signer    Identifier
	Shares    []SignatureShare
	SignerKey ed25519.PublicKey
	Sig       []byte
}

// AuthorizationData is the ceremony's final output: the aggregated
// signatures a transaction plan (or validator definition/vote) needs to
// become authorized. DelegatorVoteAuths is populated only for
// RequestTransactionPlan, where SpendAuths holds the spend signatures;
// RequestValidatorDefinition/RequestValidatorVote populate exactly one
// entry in SpendAuths (the single validator-level signature).
type AuthorizationData struct {
	EffectHash         txhash.Hash
	SpendAuths         [][64]byte
	DelegatorVoteAuths [][64]byte
}

func sortIdentifiers(ids []Identifier) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && lessIdentifier(ids[j], ids[j-1]); j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

func lessIdentifier(a, b Identifier) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
