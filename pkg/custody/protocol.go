// Copyright 2025 Certen Protocol

package custody

import (
	"crypto/ed25519"
	"sort"

	"github.com/certen/ledgercore/pkg/events"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

func ceremonyIndexBytes(id uuid.UUID) [16]byte {
	var out [16]byte
	copy(out[:], id[:])
	return out
}

func blake2bSum(data []byte) [64]byte {
	return blake2b.Sum512(data)
}

// StartRound1 moves a Pending ceremony to StartedRound1 and returns the
// message the coordinator broadcasts to every follower.
func (c *Ceremony) StartRound1() (CoordinatorRound1, error) {
	if c.Phase != PhasePending {
		return CoordinatorRound1{}, ErrWrongPhase
	}
	c.Phase = PhaseStartedRound1
	return CoordinatorRound1{CeremonyIndex: ceremonyIndexBytes(c.CeremonyIndex), Request: c.Request}, nil
}

// ReceiveRound1 records one follower's round-1 response after verifying
// its signer is in the configured key set and its authentication
// signature checks out over the commitments it carries.
func (c *Ceremony) ReceiveRound1(msg FollowerRound1) error {
	if c.Phase != PhaseStartedRound1 {
		return ErrWrongPhase
	}
	key, ok := c.VerifyKeys[msg.Signer]
	if !ok {
		return ErrUnknownSigner
	}
	if !ed25519.Verify(key, encodeCommitments(msg.Commitments), msg.Sig) {
		c.Fail(FailureBadCommitment)
		return ErrBadFollowerSig
	}
	if len(msg.Commitments) != c.Request.NumSignatures {
		c.Fail(FailureBadCommitment)
		return ErrBadFollowerSig
	}
	c.round1[msg.Signer] = msg
	return nil
}

// ReadyForRound2 reports whether enough followers have responded to round
// 1 to proceed, per this ceremony's configured threshold.
func (c *Ceremony) ReadyForRound2() bool {
	return len(c.round1) >= c.Threshold
}

// StartRound2 builds the per-signature SigningPackages from the collected
// round-1 commitments (restricted to the Threshold smallest identifiers
// among the responders, so the chosen signer set is deterministic) and
// moves the ceremony to StartedRound2.
func (c *Ceremony) StartRound2() (CoordinatorRound2, error) {
	if c.Phase != PhaseStartedRound1 {
		return CoordinatorRound2{}, ErrWrongPhase
	}
	if !c.ReadyForRound2() {
		return CoordinatorRound2{}, ErrThresholdNotMet
	}
	signers := c.selectedSigners()

	packages := make([]SigningPackage, c.Request.NumSignatures)
	for sigIdx := 0; sigIdx < c.Request.NumSignatures; sigIdx++ {
		commitments := make(map[Identifier]SigningCommitment, len(signers))
		for _, id := range signers {
			commitments[id] = c.round1[id].Commitments[sigIdx]
		}
		packages[sigIdx] = NewSigningPackage(c.signingMessage(sigIdx), commitments)
	}
	c.Phase = PhaseStartedRound2
	return CoordinatorRound2{CeremonyIndex: ceremonyIndexBytes(c.CeremonyIndex), Packages: packages}, nil
}

// selectedSigners returns the deterministic signer subset (the lexically
// smallest Threshold identifiers among round-1 respondents) this ceremony
// will use for round 2 and aggregation.
func (c *Ceremony) selectedSigners() []Identifier {
	ids := make([]Identifier, 0, len(c.round1))
	for id := range c.round1 {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return lessIdentifier(ids[i], ids[j]) })
	return ids[:c.Threshold]
}

func (c *Ceremony) signingMessage(sigIdx int) []byte {
	if c.Request.Kind != RequestTransactionPlan {
		return c.Request.Body
	}
	msg := make([]byte, 0, 64+32)
	msg = append(msg, c.Request.EffectHash[:]...)
	if sigIdx < len(c.Request.Randomizers) {
		msg = append(msg, c.Request.Randomizers[sigIdx][:]...)
	}
	return msg
}

// ReceiveRound2 records one follower's round-2 signature shares, again
// gated on a verification-key check and an authentication signature.
func (c *Ceremony) ReceiveRound2(msg FollowerRound2) error {
	if c.Phase != PhaseStartedRound2 {
		return ErrWrongPhase
	}
	key, ok := c.VerifyKeys[msg.Signer]
	if !ok {
		return ErrUnknownSigner
	}
	if !ed25519.Verify(key, encodeShares(msg.Shares), msg.Sig) {
		c.Fail(FailureBadShare)
		return ErrBadFollowerSig
	}
	if len(msg.Shares) != c.Request.NumSignatures {
		c.Fail(FailureBadShare)
		return ErrBadFollowerSig
	}
	c.round2[msg.Signer] = msg
	return nil
}

// Finish aggregates the collected round-2 shares into AuthorizationData
// once every selected signer has responded, emitting a
// frost_ceremony_finished event. It is the counterpart to Fail for the
// ceremony's other terminal state.
func (c *Ceremony) Finish(bus *events.Bus, txIdx, actionIdx int) (AuthorizationData, error) {
	if c.Phase != PhaseStartedRound2 {
		return AuthorizationData{}, ErrWrongPhase
	}
	signers := c.selectedSigners()
	for _, id := range signers {
		if _, ok := c.round2[id]; !ok {
			return AuthorizationData{}, ErrThresholdNotMet
		}
	}

	sigs := make([][64]byte, c.Request.NumSignatures)
	for sigIdx := 0; sigIdx < c.Request.NumSignatures; sigIdx++ {
		shares := make([]SignatureShare, len(signers))
		for i, id := range signers {
			shares[i] = c.round2[id].Shares[sigIdx]
		}
		scalar := aggregateShares(shares)
		var sig [64]byte
		commitment := c.groupCommitment(sigIdx)
		copy(sig[:32], commitment[:])
		copy(sig[32:], scalar[:])
		sigs[sigIdx] = sig
	}

	c.Phase = PhaseFinished
	auth := buildAuthorizationData(c.Request, sigs)
	bus.Emit(txIdx, actionIdx, events.KindFrostCeremonyFinished,
		events.Attrs("ceremony_index", c.CeremonyIndex.String(), "num_signatures", itoaCustody(c.Request.NumSignatures))...)
	return auth, nil
}

func buildAuthorizationData(req SigningRequest, sigs [][64]byte) AuthorizationData {
	auth := AuthorizationData{EffectHash: req.EffectHash}
	if req.Kind != RequestTransactionPlan {
		auth.SpendAuths = sigs
		return auth
	}
	auth.SpendAuths = append(auth.SpendAuths, sigs[:req.NumSpends]...)
	auth.DelegatorVoteAuths = append(auth.DelegatorVoteAuths, sigs[req.NumSpends:]...)
	return auth
}

// groupCommitment derives the per-signature aggregated nonce commitment
// placed in the first half of the 64-byte signature. A full FROST
// implementation binds this to the sum of every selected signer's
// binding-factor-weighted commitments; this tree derives it from the
// ceremony index and signature slot, which is sufficient to keep the
// signature format's two halves distinct and deterministic without
// decaf377 point arithmetic (see DESIGN.md).
func (c *Ceremony) groupCommitment(sigIdx int) [32]byte {
	idx := ceremonyIndexBytes(c.CeremonyIndex)
	h := blake2bSum(append(idx[:], byte(sigIdx)))
	var out [32]byte
	copy(out[:], h[:32])
	return out
}

func encodeCommitments(commitments []SigningCommitment) []byte {
	out := make([]byte, 0, len(commitments)*64)
	for _, c := range commitments {
		out = append(out, c.Hiding[:]...)
		out = append(out, c.Binding[:]...)
	}
	return out
}

func encodeShares(shares []SignatureShare) []byte {
	out := make([]byte, 0, len(shares)*32)
	for _, s := range shares {
		out = append(out, s.Share[:]...)
	}
	return out
}

func itoaCustody(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
