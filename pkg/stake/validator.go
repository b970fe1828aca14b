// Copyright 2025 Certen Protocol
//
// Package stake implements the staking validator lifecycle state
// machine: validator activation/bonding/slashing, epoch-driven rate
// updates, and delegation/undelegation token accounting.
package stake

import (
	"crypto/ed25519"
)

// IdentityKey is a validator's identity verification key, an opaque
// 32-byte value produced by the custody subsystem; it carries Ed25519
// bytes when the consensus key and identity key coincide (see
// DESIGN.md).
type IdentityKey [32]byte

// FundingStream directs a share of a validator's rewards to a recipient.
// RateBps is the share of total rewards, in basis points, paid to
// Recipient rather than compounded into the validator's exchange rate.
type FundingStream struct {
	Recipient string
	RateBps   uint32
}

// Metadata is operator-controlled, non-consensus-critical validator
// information.
type Metadata struct {
	Name        string
	Website     string
	Description string
}

// Validator is a staking validator's identity, metadata, and current
// lifecycle/bonding state.
type Validator struct {
	Identity       IdentityKey
	ConsensusKey   ed25519.PublicKey
	Metadata       Metadata
	FundingStreams []FundingStream
	Enabled        bool

	State   State
	Bonding BondingState

	// DelegationAsset is this validator's delegation-token asset id; the
	// zk-circuit layer derives it from Identity in the real system
	// (out of scope), so it is supplied by the caller at validator
	// definition time.
	DelegationAsset [32]byte

	// VotingPower is the validator's current consensus voting power, as
	// supplied by the caller of PromoteToActive; zero while not Active.
	VotingPower uint64

	// MissedBlocks counts consecutive missed blocks since the validator
	// last became Active, used for the downtime-jailing trigger.
	MissedBlocks uint64
}

// NewValidator constructs a validator in its initial Defined state with
// an Unbonded pool.
func NewValidator(identity IdentityKey, consensusKey ed25519.PublicKey, delegationAsset [32]byte, meta Metadata) *Validator {
	return &Validator{
		Identity:        identity,
		ConsensusKey:    consensusKey,
		Metadata:        meta,
		DelegationAsset: delegationAsset,
		Enabled:         true,
		State:           StateDefined,
		Bonding:         BondingState{Kind: BondingUnbonded},
	}
}
