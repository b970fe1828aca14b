// Copyright 2025 Certen Protocol
//
// Package ics23 defines and verifies the two-level commitment proofs
// pkg/storage builds and exposes to callers: an inner proof
// against a single substore's Jellyfish Merkle root, chained to an outer
// proof that the substore's root is itself committed under the main
// substore's root. When there is no outer proof, the substore root is
// compared with the main root using crypto/subtle.ConstantTimeCompare; the
// JMT proof checks in pkg/jmt compare hashes with ==.
package ics23

import (
	"crypto/subtle"
	"errors"

	"github.com/certen/ledgercore/pkg/jmt"
)

// ErrProofMismatch is returned when a chained proof's computed root does
// not match the root it was checked against.
var ErrProofMismatch = errors.New("ics23: proof does not match committed root")

// CommitmentProof is the proof pkg/storage returns from a "get with proof"
// call on a namespaced key: an inner proof against the substore's own JMT
// root, and (unless the key lives in the main substore itself) an outer
// proof that the substore's root is committed under the main substore's
// root.
type CommitmentProof struct {
	SubstorePrefix string
	Key            []byte
	Value          []byte
	Inner          *jmt.Proof

	// Outer is nil when SubstorePrefix addresses the main substore, since
	// the main substore's root needs no further chaining.
	Outer *jmt.Proof
}

// Verify checks a CommitmentProof against the main substore's root. It
// first recomputes the substore's root from Inner and the claimed value,
// then (if Outer is present) checks that substore root is itself committed
// under mainRoot via the substore-root key "substore/" + SubstorePrefix.
func Verify(mainRoot jmt.Hash, substoreRoot jmt.Hash, proof *CommitmentProof) error {
	if len(proof.Value) > 0 {
		if !jmt.Verify(substoreRoot, proof.Key, jmt.HashValue(proof.Value), proof.Inner) {
			return ErrProofMismatch
		}
	} else if !jmt.VerifyAbsence(substoreRoot, proof.Key, proof.Inner) {
		return ErrProofMismatch
	}

	if proof.Outer == nil {
		return constantTimeRootEqual(mainRoot, substoreRoot)
	}

	substoreRootKey := []byte("substore/" + proof.SubstorePrefix)
	if !jmt.Verify(mainRoot, substoreRootKey, jmt.HashValue(substoreRoot[:]), proof.Outer) {
		return ErrProofMismatch
	}
	return nil
}

func constantTimeRootEqual(a, b jmt.Hash) error {
	if subtle.ConstantTimeCompare(a[:], b[:]) != 1 {
		return ErrProofMismatch
	}
	return nil
}
