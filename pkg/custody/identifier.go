// Copyright 2025 Certen Protocol

package custody

import (
	"encoding/binary"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"golang.org/x/crypto/blake2b"
)

// identifierPersonalization domain-separates FROST identifier derivation
// from every other BLAKE2b use in this tree (txhash effect-hashes), per
// the personalization discipline.
var identifierPersonalization = [16]byte{'c', 'e', 'r', 't', 'e', 'n', '-', 'f', 'r', 'o', 's', 't', '-', 'i', 'd'}

// Identifier is a FROST participant identifier: a nonzero scalar in the
// signing group's scalar field, derived deterministically from a
// participant's long-term verification key rather than assigned an
// arbitrary index. decaf377 (the group this ceremony was specified
// against) is out of scope here; per DESIGN.md this tree performs the
// scalar-field arithmetic over the bn254 scalar field via gnark-crypto
// instead, treating group elements as opaque 32-byte values.
type Identifier [32]byte

// DeriveIdentifier computes a participant's FROST identifier from its
// long-term verification key, by hashing the key into the scalar field
// and rejecting the all-zero result (which has no multiplicative
// inverse, and so cannot serve as a Lagrange-interpolation coordinate).
func DeriveIdentifier(verifyKey []byte) Identifier {
	var counter uint32
	for {
		h, err := blake2b.New(32, nil)
		if err != nil {
			panic(err) // blake2b.New(32, nil) cannot fail
		}
		h.Write(identifierPersonalization[:])
		h.Write(verifyKey)
		var ctrBytes [4]byte
		binary.BigEndian.PutUint32(ctrBytes[:], counter)
		h.Write(ctrBytes[:])
		sum := h.Sum(nil)

		var e fr.Element
		e.SetBytes(sum)
		if !e.IsZero() {
			var id Identifier
			b := e.Bytes()
			copy(id[:], b[:])
			return id
		}
		counter++
	}
}

func (id Identifier) element() fr.Element {
	var e fr.Element
	e.SetBytes(id[:])
	return e
}
