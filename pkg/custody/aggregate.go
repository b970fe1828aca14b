// Copyright 2025 Certen Protocol

package custody

import "github.com/consensys/gnark-crypto/ecc/bn254/fr"

// lagrangeCoefficient computes participant id's Lagrange basis coefficient
// at x=0 over the given participant set, the standard t-of-n secret
// reconstruction weight FROST applies to each signer's partial signature
// before summing. Arithmetic runs over the bn254 scalar field.
func lagrangeCoefficient(ids []Identifier, id Identifier) fr.Element {
	var num, den fr.Element
	num.SetOne()
	den.SetOne()
	xi := id.element()
	for _, other := range ids {
		if other == id {
			continue
		}
		xj := other.element()
		var negXj fr.Element
		negXj.Neg(&xj) // each numerator factor is (0 - x_j) == -x_j
		num.Mul(&num, &negXj)
		diff := new(fr.Element).Sub(&xi, &xj)
		den.Mul(&den, diff)
	}
	var inv fr.Element
	inv.Inverse(&den)
	var out fr.Element
	out.Mul(&num, &inv)
	return out
}

// aggregateShares combines every participant's signature share for one
// signature index into the final scalar, weighted by each signer's
// Lagrange coefficient over the full responding set.
func aggregateShares(shares []SignatureShare) [32]byte {
	ids := make([]Identifier, len(shares))
	for i, s := range shares {
		ids[i] = s.Signer
	}
	var acc fr.Element
	for _, s := range shares {
		lambda := lagrangeCoefficient(ids, s.Signer)
		var share fr.Element
		share.SetBytes(s.Share[:])
		var term fr.Element
		term.Mul(&lambda, &share)
		acc.Add(&acc, &term)
	}
	out := acc.Bytes()
	var result [32]byte
	copy(result[:], out[:])
	return result
}
