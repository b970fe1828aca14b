// Copyright 2025 Certen Protocol
//
// Package txhash computes the personalized effect hash used to authorize
// every signed action in ledgercore: a hash over the
// canonical, proto-encoded fields of a transaction body and its actions,
// domain-separated per action type so that two actions with coincidentally
// identical encodings never collide across types.
//
// golang.org/x/crypto/blake2b does not expose BLAKE2b's native
// personalization parameter, so personalization is emulated by hashing a
// fixed domain-separation label ahead of the real input, the same way
// pkg/jmt domain-separates leaf and internal node hashes.
package txhash

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// Hash is an effect hash: the output of a personalized BLAKE2b-512 digest,
// truncated to 32 bytes.
type Hash [32]byte

// ActionKind enumerates the action types that carry their own effecting
// data, mirroring the authorization-relevant action set.
type ActionKind string

const (
	ActionSpend                ActionKind = "spend"
	ActionOutput               ActionKind = "output"
	ActionSwap                 ActionKind = "swap"
	ActionSwapClaim            ActionKind = "swap_claim"
	ActionDelegate             ActionKind = "delegate"
	ActionUndelegate           ActionKind = "undelegate"
	ActionUndelegateClaim      ActionKind = "undelegate_claim"
	ActionValidatorDefinition  ActionKind = "validator_definition"
	ActionValidatorVote        ActionKind = "validator_vote"
	ActionDelegatorVote        ActionKind = "delegator_vote"
	ActionProposalSubmit       ActionKind = "proposal_submit"
	ActionProposalWithdraw     ActionKind = "proposal_withdraw"
	ActionProposalDepositClaim ActionKind = "proposal_deposit_claim"
	ActionPositionOpen         ActionKind = "position_open"
	ActionPositionClose        ActionKind = "position_close"
	ActionPositionWithdraw     ActionKind = "position_withdraw"
	ActionIcs20Withdrawal      ActionKind = "ics20_withdrawal"
	ActionCommunityPoolSpend   ActionKind = "community_pool_spend"
	ActionCommunityPoolOutput  ActionKind = "community_pool_output"
	ActionCommunityPoolDeposit ActionKind = "community_pool_deposit"
	ActionIbcRelay             ActionKind = "ibc_relay"
)

const personalization = "certen-effect-hash-v1/"

// personalizedHasher returns a BLAKE2b-512 state pre-seeded with the
// personalization label, standing in for blake2b's native Person parameter.
func personalizedHasher() (*blake2bState, error) {
	h, err := blake2b.New512(nil)
	if err != nil {
		return nil, err
	}
	h.Write([]byte(personalization))
	return &blake2bState{h}, nil
}

type blake2bState struct {
	h interface {
		Write([]byte) (int, error)
		Sum([]byte) []byte
	}
}

func (s *blake2bState) writeLenPrefixed(b []byte) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(b)))
	s.h.Write(lenBuf[:])
	s.h.Write(b)
}

func (s *blake2bState) sum32() Hash {
	full := s.h.Sum(nil)
	var out Hash
	copy(out[:], full[:32])
	return out
}

// EffectingAction is anything that can contribute length-prefixed canonical
// bytes to an effect hash. Callers supply the proto-canonical encoding of
// the action; txhash never interprets the bytes itself.
type EffectingAction interface {
	Kind() ActionKind
	CanonicalBytes() []byte
}

// TransactionParameters carries the fields that bind a transaction to a
// specific chain and expiry window, hashed ahead of the fee, memo and
// actions.
type TransactionParameters struct {
	ChainID                string
	ExpiryHeight           uint64
	CanonicalParamsEncoded []byte
}

// ActionHash computes the effect hash of a single action, domain-separated
// by its kind so identical bytes under two different kinds never collide.
func ActionHash(a EffectingAction) (Hash, error) {
	s, err := personalizedHasher()
	if err != nil {
		return Hash{}, err
	}
	s.writeLenPrefixed([]byte(a.Kind()))
	s.writeLenPrefixed(a.CanonicalBytes())
	return s.sum32(), nil
}

// TransactionEffectHash computes the effect hash of a whole transaction
// body: chain parameters, then fee, then memo ciphertext, then an
// explicit action count, then each action in the order it appears in the
// transaction.
func TransactionEffectHash(params TransactionParameters, feeEncoded, memoCiphertext []byte, actions []EffectingAction) (Hash, error) {
	s, err := personalizedHasher()
	if err != nil {
		return Hash{}, err
	}
	s.writeLenPrefixed([]byte(params.ChainID))
	var heightBuf [8]byte
	binary.BigEndian.PutUint64(heightBuf[:], params.ExpiryHeight)
	s.h.Write(heightBuf[:])
	s.writeLenPrefixed(params.CanonicalParamsEncoded)
	s.writeLenPrefixed(feeEncoded)
	s.writeLenPrefixed(memoCiphertext)

	var countBuf [8]byte
	binary.BigEndian.PutUint64(countBuf[:], uint64(len(actions)))
	s.h.Write(countBuf[:])

	for _, a := range actions {
		ah, err := ActionHash(a)
		if err != nil {
			return Hash{}, err
		}
		s.writeLenPrefixed([]byte(a.Kind()))
		s.h.Write(ah[:])
	}
	return s.sum32(), nil
}
