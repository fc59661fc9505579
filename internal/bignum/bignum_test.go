package bignum

import (
	"math/big"
	"testing"

	"orglang/internal/arena"
	"orglang/internal/value"
)

func newTestArena(t *testing.T) *arena.Arena {
	t.Helper()
	a, err := arena.New(4096)
	if err != nil {
		t.Fatalf("arena.New: %v", err)
	}
	return a
}

func TestToIntSmallAndBig(t *testing.T) {
	a := newTestArena(t)
	if got := ToInt(a, value.TagSmall(42)); got.Int64() != 42 {
		t.Fatalf("ToInt(small) = %v, want 42", got)
	}
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	v, err := value.NewBigInt(a, huge)
	if err != nil {
		t.Fatalf("NewBigInt: %v", err)
	}
	if got := ToInt(a, v); got.Cmp(huge) != 0 {
		t.Fatalf("ToInt(big) = %v, want %v", got, huge)
	}
}

func TestToRatAcrossVariants(t *testing.T) {
	a := newTestArena(t)
	if got := ToRat(a, value.TagSmall(3)); got.Cmp(big.NewRat(3, 1)) != 0 {
		t.Fatalf("ToRat(small) = %v", got)
	}
	rv, _ := value.NewRational(a, big.NewRat(1, 3))
	if got := ToRat(a, rv); got.Cmp(big.NewRat(1, 3)) != 0 {
		t.Fatalf("ToRat(rational) = %v", got)
	}
	dv, _ := value.NewDecimal(a, big.NewRat(314, 100), 2)
	if got := ToRat(a, dv); got.Cmp(big.NewRat(314, 100)) != 0 {
		t.Fatalf("ToRat(decimal) = %v", got)
	}
}

func TestMulSmallAndHuge(t *testing.T) {
	x := big.NewInt(6)
	y := big.NewInt(7)
	if got := Mul(x, y); got.Int64() != 42 {
		t.Fatalf("Mul(6,7) = %v, want 42", got)
	}

	bigX := new(big.Int).Lsh(big.NewInt(1), 3000)
	bigY := new(big.Int).Lsh(big.NewInt(1), 3000)
	want := new(big.Int).Lsh(big.NewInt(1), 6000)
	if got := Mul(bigX, bigY); got.Cmp(want) != 0 {
		t.Fatalf("Mul of 2^3000 operands did not match stdlib result")
	}
}

func TestReduceCanonicalizes(t *testing.T) {
	n, d := Reduce(big.NewInt(6), big.NewInt(-8))
	if d.Sign() <= 0 {
		t.Fatalf("Reduce should leave denominator positive, got %v", d)
	}
	if n.Int64() != -3 || d.Int64() != 4 {
		t.Fatalf("Reduce(6,-8) = %v/%v, want -3/4", n, d)
	}
}

func TestWrapIntNormalizes(t *testing.T) {
	a := newTestArena(t)
	v, err := WrapInt(a, big.NewInt(7))
	if err != nil {
		t.Fatalf("WrapInt: %v", err)
	}
	if !value.IsSmall(v) || value.UntagSmall(v) != 7 {
		t.Fatalf("WrapInt(7) did not normalize to SmallInt")
	}

	huge, _ := new(big.Int).SetString("99999999999999999999999999999", 10)
	v2, err := WrapInt(a, huge)
	if err != nil {
		t.Fatalf("WrapInt: %v", err)
	}
	if value.IsSmall(v2) {
		t.Fatalf("WrapInt(huge) should not fit in SmallInt")
	}
	if got := ToInt(a, v2); got.Cmp(huge) != 0 {
		t.Fatalf("round trip mismatch: %v vs %v", got, huge)
	}
}

func TestWrapRationalCollapsesToInteger(t *testing.T) {
	a := newTestArena(t)
	v, err := WrapRational(a, big.NewRat(10, 2))
	if err != nil {
		t.Fatalf("WrapRational: %v", err)
	}
	if !value.IsInteger(v) {
		t.Fatalf("WrapRational(10/2) should collapse to Integer")
	}
	if value.UntagSmall(v) != 5 {
		t.Fatalf("WrapRational(10/2) = %v, want 5", value.UntagSmall(v))
	}

	v2, err := WrapRational(a, big.NewRat(1, 3))
	if err != nil {
		t.Fatalf("WrapRational: %v", err)
	}
	if !value.IsRational(v2) {
		t.Fatalf("WrapRational(1/3) should stay Rational")
	}
}

func TestWrapDecimalKeepsScaleEvenWhenWhole(t *testing.T) {
	a := newTestArena(t)
	v, err := WrapDecimal(a, big.NewRat(4, 1), 2)
	if err != nil {
		t.Fatalf("WrapDecimal: %v", err)
	}
	if !value.IsDecimal(v) {
		t.Fatalf("WrapDecimal should never collapse to Integer")
	}
	if Scale(v) != 2 {
		t.Fatalf("Scale = %d, want 2", Scale(v))
	}
}

func TestScaleIsZeroForNonDecimal(t *testing.T) {
	if Scale(value.TagSmall(5)) != 0 {
		t.Fatalf("Scale(SmallInt) should be 0")
	}
}

func TestCurrentArena(t *testing.T) {
	a := newTestArena(t)
	SetCurrentArena(a)
	if CurrentArena() != a {
		t.Fatalf("CurrentArena did not return the arena set by SetCurrentArena")
	}
}
