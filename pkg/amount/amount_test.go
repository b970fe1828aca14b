package amount

import (
	"math/big"
	"testing"
)

func TestAddOverflow(t *testing.T) {
	max, err := FromBigInt(maxU128)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := max.Add(FromUint64(1)); err != ErrOverflow {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestSubUnderflow(t *testing.T) {
	if _, err := FromUint64(5).Sub(FromUint64(6)); err != ErrUnderflow {
		t.Fatalf("expected ErrUnderflow, got %v", err)
	}
}

func TestMulOverflow(t *testing.T) {
	big64 := FromUint64(1 << 63)
	sq, err := big64.Mul(big64)
	if err != nil {
		t.Fatalf("2^63 * 2^63 = 2^126 fits in 128 bits, got %v", err)
	}
	if _, err := sq.Mul(FromUint64(4)); err == nil {
		t.Fatalf("expected overflow for 2^63 * 2^63 * 4")
	}
}

func TestRoundTripBytes(t *testing.T) {
	v := FromUint64(123456789)
	b := v.Bytes()
	got, err := FromBytes(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Cmp(v) != 0 {
		t.Fatalf("round trip mismatch: got %s want %s", got, v)
	}
}

func TestCmp(t *testing.T) {
	a := FromUint64(10)
	b := FromUint64(20)
	if a.Cmp(b) >= 0 {
		t.Fatalf("expected a < b")
	}
	if b.Cmp(a) <= 0 {
		t.Fatalf("expected b > a")
	}
	if a.Cmp(a) != 0 {
		t.Fatalf("expected a == a")
	}
}

func TestFromBigIntNegative(t *testing.T) {
	if _, err := FromBigInt(big.NewInt(-1)); err != ErrNegative {
		t.Fatalf("expected ErrNegative, got %v", err)
	}
}
