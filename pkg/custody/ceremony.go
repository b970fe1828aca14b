// Copyright 2025 Certen Protocol
//
// Package custody implements the threshold (FROST) custody ceremony: a
// two-round signing protocol that produces a randomized-Schnorr signature
// over a transaction's effect-hash (or a validator definition / vote)
// from t-of-n participating operators.
package custody

import (
	"crypto/ed25519"
	"errors"

	"github.com/certen/ledgercore/pkg/txhash"
	"github.com/google/uuid"
)

// RequestKind identifies what a signing ceremony authorizes: the
// operators hold FROST key shares of a single joint spend-authority,
// exercised over one of three request shapes.
type RequestKind int

const (
	RequestTransactionPlan RequestKind = iota
	RequestValidatorDefinition
	RequestValidatorVote
)

// SigningRequest is the body a ceremony authorizes. EffectHash is required
// for RequestTransactionPlan (it is the randomizer/message domain for
// spend and delegator-vote signatures); Body is the canonical
// proto-encoded bytes of the validator definition or vote for the other
// two kinds. NumSignatures is the count of independent signatures the
// request needs: one per spend + one per delegator vote for a
// transaction plan, or exactly one for a validator-level request.
type SigningRequest struct {
	Kind          RequestKind
	EffectHash    txhash.Hash
	Body          []byte
	NumSignatures int
	// NumSpends and NumVotes split NumSignatures for RequestTransactionPlan
	// (spend signatures precede delegator-vote signatures in signature
	// order); both are zero for validator-level requests.
	NumSpends int
	NumVotes  int
	// Randomizers supplies one per-spend randomizer for transaction
	// requests, drawn deterministically from the transaction plan; unused
	// for validator-level requests.
	Randomizers [][32]byte
}

// RequestIndex content-addresses a signing request by its effect-hash (or
// body hash for non-transaction requests). A failed ceremony may be
// retried with a new ceremony-index against the same request-index.
type RequestIndex [32]byte

// Phase is a ceremony's current position in the two-round protocol.
type Phase int

const (
	PhasePending Phase = iota
	PhaseStartedRound1
	PhaseStartedRound2
	PhaseFinished
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "Pending"
	case PhaseStartedRound1:
		return "StartedRound1"
	case PhaseStartedRound2:
		return "StartedRound2"
	case PhaseFinished:
		return "Finished"
	case PhaseFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// FailureReason names why a ceremony moved to PhaseFailed.
type FailureReason int

const (
	FailureNone FailureReason = iota
	FailureTimeout
	FailureBadCommitment
	FailureBadShare
	FailureCanceled
)

func (r FailureReason) String() string {
	switch r {
	case FailureTimeout:
		return "Timeout"
	case FailureBadCommitment:
		return "BadCommitment"
	case FailureBadShare:
		return "BadShare"
	case FailureCanceled:
		return "Canceled"
	default:
		return "None"
	}
}

var (
	ErrWrongPhase       = errors.New("custody: message received in the wrong ceremony phase")
	ErrUnknownSigner    = errors.New("custody: signer not in the configured verification-key set")
	ErrBadFollowerSig   = errors.New("custody: follower signature failed verification")
	ErrThresholdNotMet  = errors.New("custody: not enough follower responses to proceed")
	ErrCeremonyFailed   = errors.New("custody: ceremony already failed")
	ErrCeremonyFinished = errors.New("custody: ceremony already finished")
)

// Ceremony drives one signing-request's state through Pending ->
// StartedRound1 -> StartedRound2 -> Finished (or Failed at any point).
// Each ceremony runs on its own single-threaded cooperative scheduler,
// so Ceremony does no internal locking.
type Ceremony struct {
	CeremonyIndex uuid.UUID
	RequestIndex  RequestIndex
	Request       SigningRequest
	Threshold     int
	VerifyKeys    map[Identifier]ed25519.PublicKey

	Phase         Phase
	FailureReason FailureReason

	round1 map[Identifier]FollowerRound1
	round2 map[Identifier]FollowerRound2
}

// NewCeremony constructs a Pending ceremony for request, to be driven by a
// coordinator against the given t-of-n verification-key set.
func NewCeremony(requestIndex RequestIndex, request SigningRequest, threshold int, verifyKeys map[Identifier]ed25519.PublicKey) *Ceremony {
	return &Ceremony{
		CeremonyIndex: uuid.New(),
		RequestIndex:  requestIndex,
		Request:       request,
		Threshold:     threshold,
		VerifyKeys:    verifyKeys,
		Phase:         PhasePending,
		round1:        make(map[Identifier]FollowerRound1),
		round2:        make(map[Identifier]FollowerRound2),
	}
}

// ShortCircuit reports whether request needs no signatures at all: a
// transaction plan with zero spends and zero votes produces an empty
// AuthorizationData without running the ceremony.
func (r SigningRequest) ShortCircuit() bool {
	return r.Kind == RequestTransactionPlan && r.NumSignatures == 0
}

// Fail transitions the ceremony to Failed with the given reason. It sets
// the phase and reason unconditionally: calling it again, or on a
// Finished ceremony, overwrites the earlier state and reports no error.
func (c *Ceremony) Fail(reason FailureReason) {
	c.Phase = PhaseFailed
	c.FailureReason = reason
}
