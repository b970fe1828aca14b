// Copyright 2025 Certen Protocol
//
// Amount is the ledger's unsigned 128-bit integer type. All arithmetic is
// checked: overflow and underflow return an error instead of wrapping, since
// both are fatal to the enclosing action.

package amount

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrOverflow  = errors.New("amount: overflow")
	ErrUnderflow = errors.New("amount: underflow")
	ErrNegative  = errors.New("amount: negative value")
)

var maxU128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Amount is an unsigned 128-bit integer stored as two 64-bit words.
type Amount struct {
	Lo uint64
	Hi uint64
}

// Zero is the additive identity.
var Zero = Amount{}

// FromUint64 builds an Amount from a native integer.
func FromUint64(v uint64) Amount {
	return Amount{Lo: v}
}

// FromBigInt converts a big.Int, failing if it does not fit in 128 bits or is negative.
func FromBigInt(v *big.Int) (Amount, error) {
	if v.Sign() < 0 {
		return Amount{}, ErrNegative
	}
	if v.Cmp(maxU128) > 0 {
		return Amount{}, ErrOverflow
	}
	var buf [16]byte
	v.FillBytes(buf[:])
	return Amount{
		Hi: binary.BigEndian.Uint64(buf[0:8]),
		Lo: binary.BigEndian.Uint64(buf[8:16]),
	}, nil
}

// BigInt returns the value as a big.Int.
func (a Amount) BigInt() *big.Int {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], a.Hi)
	binary.BigEndian.PutUint64(buf[8:16], a.Lo)
	return new(big.Int).SetBytes(buf[:])
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.Lo == 0 && a.Hi == 0 }

// Cmp compares two amounts: -1, 0, or 1.
func (a Amount) Cmp(b Amount) int {
	if a.Hi != b.Hi {
		if a.Hi < b.Hi {
			return -1
		}
		return 1
	}
	if a.Lo != b.Lo {
		if a.Lo < b.Lo {
			return -1
		}
		return 1
	}
	return 0
}

// Add returns a+b, or ErrOverflow if the result does not fit in 128 bits.
func (a Amount) Add(b Amount) (Amount, error) {
	sum := new(big.Int).Add(a.BigInt(), b.BigInt())
	if sum.Cmp(maxU128) > 0 {
		return Amount{}, ErrOverflow
	}
	return FromBigInt(sum)
}

// Sub returns a-b, or ErrUnderflow if b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.Cmp(b) < 0 {
		return Amount{}, ErrUnderflow
	}
	diff := new(big.Int).Sub(a.BigInt(), b.BigInt())
	return FromBigInt(diff)
}

// Mul returns a*b, or ErrOverflow if the result does not fit in 128 bits.
func (a Amount) Mul(b Amount) (Amount, error) {
	prod := new(big.Int).Mul(a.BigInt(), b.BigInt())
	if prod.Cmp(maxU128) > 0 {
		return Amount{}, ErrOverflow
	}
	return FromBigInt(prod)
}

// MustAdd panics on overflow; reserved for call sites that have already
// checked bounds (e.g. genesis construction).
func (a Amount) MustAdd(b Amount) Amount {
	r, err := a.Add(b)
	if err != nil {
		panic(fmt.Sprintf("amount: MustAdd overflow: %s + %s", a, b))
	}
	return r
}

func (a Amount) String() string { return a.BigInt().String() }

// Bytes returns the big-endian 16-byte encoding, used for canonical hashing
// and storage keys.
func (a Amount) Bytes() []byte {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], a.Hi)
	binary.BigEndian.PutUint64(buf[8:16], a.Lo)
	return buf[:]
}

// FromBytes parses the big-endian 16-byte encoding produced by Bytes.
func FromBytes(b []byte) (Amount, error) {
	if len(b) != 16 {
		return Amount{}, fmt.Errorf("amount: expected 16 bytes, got %d", len(b))
	}
	return Amount{
		Hi: binary.BigEndian.Uint64(b[0:8]),
		Lo: binary.BigEndian.Uint64(b[8:16]),
	}, nil
}
