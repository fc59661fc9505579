// Package numeric implements OrgLang's numeric promotion matrix: dispatch
// across Int/Rational/Decimal for the arithmetic and comparison operators,
// with an immediate-integer fast path that falls through to arbitrary
// precision arithmetic on overflow.
package numeric

import (
	"math/big"

	"orglang/internal/arena"
	"orglang/internal/bignum"
	"orglang/internal/value"
)

// category mirrors ops.c's NumCat: the four numeric shapes a Value can
// take, plus "none" for anything non-numeric.
type category int

const (
	catSmall category = iota
	catBigInt
	catRational
	catDecimal
	catNone
)

func categoryOf(v value.Value) category {
	if value.IsSmall(v) {
		return catSmall
	}
	if !value.IsPtr(v) {
		return catNone
	}
	switch value.GetType(v) {
	case value.TypeBigInt:
		return catBigInt
	case value.TypeRational:
		return catRational
	case value.TypeDecimal:
		return catDecimal
	default:
		return catNone
	}
}

func isIntCat(c category) bool { return c == catSmall || c == catBigInt }

// Add implements org_add's promotion rules: small+small with overflow
// checking falls to BigInt; Integer+Integer stays Integer; Decimal
// involvement promotes to Decimal with the wider scale; otherwise Rational.
func Add(a *arena.Arena, x, y value.Value) value.Value {
	if value.IsSmall(x) && value.IsSmall(y) {
		sx, sy := value.UntagSmall(x), value.UntagSmall(y)
		if r, ok := addOverflow(sx, sy); ok && value.SmallFits(r) {
			return value.TagSmall(r)
		}
		return wrapIntOrError(a, new(big.Int).Add(big.NewInt(sx), big.NewInt(sy)))
	}
	if value.IsError(x) || value.IsError(y) {
		return value.Error
	}
	cx, cy := categoryOf(x), categoryOf(y)
	if cx == catNone || cy == catNone {
		return value.Error
	}
	if isIntCat(cx) && isIntCat(cy) {
		return wrapIntOrError(a, new(big.Int).Add(bignum.ToInt(a, x), bignum.ToInt(a, y)))
	}
	if cx == catDecimal || cy == catDecimal {
		qr := new(big.Rat).Add(bignum.ToRat(a, x), bignum.ToRat(a, y))
		return wrapDecimalOrError(a, qr, maxScale(x, y))
	}
	qr := new(big.Rat).Add(bignum.ToRat(a, x), bignum.ToRat(a, y))
	return wrapRationalOrError(a, qr)
}

// Sub mirrors org_sub.
func Sub(a *arena.Arena, x, y value.Value) value.Value {
	if value.IsSmall(x) && value.IsSmall(y) {
		sx, sy := value.UntagSmall(x), value.UntagSmall(y)
		if r, ok := subOverflow(sx, sy); ok && value.SmallFits(r) {
			return value.TagSmall(r)
		}
		return wrapIntOrError(a, new(big.Int).Sub(big.NewInt(sx), big.NewInt(sy)))
	}
	if value.IsError(x) || value.IsError(y) {
		return value.Error
	}
	cx, cy := categoryOf(x), categoryOf(y)
	if cx == catNone || cy == catNone {
		return value.Error
	}
	if isIntCat(cx) && isIntCat(cy) {
		return wrapIntOrError(a, new(big.Int).Sub(bignum.ToInt(a, x), bignum.ToInt(a, y)))
	}
	if cx == catDecimal || cy == catDecimal {
		qr := new(big.Rat).Sub(bignum.ToRat(a, x), bignum.ToRat(a, y))
		return wrapDecimalOrError(a, qr, maxScale(x, y))
	}
	qr := new(big.Rat).Sub(bignum.ToRat(a, x), bignum.ToRat(a, y))
	return wrapRationalOrError(a, qr)
}

// Mul mirrors org_mul. Decimal scale is the sum of the operand scales.
func Mul(a *arena.Arena, x, y value.Value) value.Value {
	if value.IsSmall(x) && value.IsSmall(y) {
		sx, sy := value.UntagSmall(x), value.UntagSmall(y)
		if r, ok := mulOverflow(sx, sy); ok && value.SmallFits(r) {
			return value.TagSmall(r)
		}
		return wrapIntOrError(a, bignum.Mul(big.NewInt(sx), big.NewInt(sy)))
	}
	if value.IsError(x) || value.IsError(y) {
		return value.Error
	}
	cx, cy := categoryOf(x), categoryOf(y)
	if cx == catNone || cy == catNone {
		return value.Error
	}
	if isIntCat(cx) && isIntCat(cy) {
		return wrapIntOrError(a, bignum.Mul(bignum.ToInt(a, x), bignum.ToInt(a, y)))
	}
	if cx == catDecimal || cy == catDecimal {
		qr := new(big.Rat).Mul(bignum.ToRat(a, x), bignum.ToRat(a, y))
		return wrapDecimalOrError(a, qr, bignum.Scale(x)+bignum.Scale(y))
	}
	qr := new(big.Rat).Mul(bignum.ToRat(a, x), bignum.ToRat(a, y))
	return wrapRationalOrError(a, qr)
}

// Div mirrors org_div: Integer/Integer divides exactly when it can,
// otherwise becomes Rational; Decimal involvement yields Decimal with a
// scale fallback of 1 when neither operand carries one; division by zero
// is always Error.
func Div(a *arena.Arena, x, y value.Value) value.Value {
	if value.IsError(x) || value.IsError(y) {
		return value.Error
	}
	if isZero(a, y) {
		return value.Error
	}
	cx, cy := categoryOf(x), categoryOf(y)
	if cx == catNone || cy == catNone {
		return value.Error
	}

	if isIntCat(cx) && isIntCat(cy) {
		zx, zy := bignum.ToInt(a, x), bignum.ToInt(a, y)
		quo, rem := new(big.Int).QuoRem(zx, zy, new(big.Int))
		if rem.Sign() == 0 {
			return wrapIntOrError(a, quo)
		}
		qr := new(big.Rat).SetFrac(zx, zy)
		return wrapRationalOrError(a, qr)
	}

	if cx == catDecimal || cy == catDecimal {
		qr := new(big.Rat).Quo(bignum.ToRat(a, x), bignum.ToRat(a, y))
		scale := bignum.Scale(x)
		if scale == 0 {
			scale = bignum.Scale(y)
		}
		if scale == 0 {
			scale = 1
		}
		return wrapDecimalOrError(a, qr, scale)
	}

	qr := new(big.Rat).Quo(bignum.ToRat(a, x), bignum.ToRat(a, y))
	return wrapRationalOrError(a, qr)
}

// Mod mirrors org_mod: integer-only, Error for any other operand shape or
// division by zero.
func Mod(a *arena.Arena, x, y value.Value) value.Value {
	if value.IsError(x) || value.IsError(y) {
		return value.Error
	}
	cx, cy := categoryOf(x), categoryOf(y)
	if !isIntCat(cx) || !isIntCat(cy) {
		return value.Error
	}
	if isZero(a, y) {
		return value.Error
	}
	if value.IsSmall(x) && value.IsSmall(y) {
		return value.TagSmall(value.UntagSmall(x) % value.UntagSmall(y))
	}
	zx, zy := bignum.ToInt(a, x), bignum.ToInt(a, y)
	return wrapIntOrError(a, new(big.Int).Mod(zx, zy))
}

// Neg mirrors org_neg.
func Neg(a *arena.Arena, x value.Value) value.Value {
	if value.IsError(x) {
		return value.Error
	}
	if value.IsSmall(x) {
		sx := value.UntagSmall(x)
		if r, ok := subOverflow(0, sx); ok && value.SmallFits(r) {
			return value.TagSmall(r)
		}
		return wrapIntOrError(a, new(big.Int).Neg(big.NewInt(sx)))
	}
	switch categoryOf(x) {
	case catBigInt:
		return wrapIntOrError(a, new(big.Int).Neg(bignum.ToInt(a, x)))
	case catDecimal:
		return wrapDecimalOrError(a, new(big.Rat).Neg(bignum.ToRat(a, x)), bignum.Scale(x))
	case catRational:
		return wrapRationalOrError(a, new(big.Rat).Neg(bignum.ToRat(a, x)))
	default:
		return value.Error
	}
}

// Pow mirrors org_pow: the exponent must be a non-negative integer; the
// base may be Integer, Rational or Decimal. (p/q)^n is computed as p^n/q^n
// then canonicalized.
func Pow(a *arena.Arena, base, exp value.Value) value.Value {
	if value.IsError(base) || value.IsError(exp) {
		return value.Error
	}
	if !value.IsInteger(exp) {
		return value.Error
	}
	e, ok := nonNegativeUint(a, exp)
	if !ok {
		return value.Error
	}

	cb := categoryOf(base)
	if cb == catNone {
		return value.Error
	}
	if isIntCat(cb) {
		return wrapIntOrError(a, new(big.Int).Exp(bignum.ToInt(a, base), new(big.Int).SetUint64(e), nil))
	}

	r := bignum.ToRat(a, base)
	num := new(big.Int).Exp(r.Num(), new(big.Int).SetUint64(e), nil)
	den := new(big.Int).Exp(r.Denom(), new(big.Int).SetUint64(e), nil)
	qr := new(big.Rat).SetFrac(num, den)
	if cb == catDecimal {
		return wrapDecimalOrError(a, qr, bignum.Scale(base)*int32(e))
	}
	return wrapRationalOrError(a, qr)
}

// ---- Comparisons ----

// cmp converts both operands to *big.Rat and compares, matching
// org_cmp_internal's "convert to rationals for universal comparison" rule,
// with an immediate-integer fast path for the common case.
func cmp(a *arena.Arena, x, y value.Value) int {
	if value.IsSmall(x) && value.IsSmall(y) {
		sx, sy := value.UntagSmall(x), value.UntagSmall(y)
		switch {
		case sx < sy:
			return -1
		case sx > sy:
			return 1
		default:
			return 0
		}
	}
	return bignum.ToRat(a, x).Cmp(bignum.ToRat(a, y))
}

// Eq falls back to identity comparison for non-numeric operands, rather
// than Error, matching org_eq.
func Eq(a *arena.Arena, x, y value.Value) value.Value {
	if value.IsError(x) || value.IsError(y) {
		return value.Error
	}
	if !value.IsNumeric(x) || !value.IsNumeric(y) {
		return value.Bool(x == y)
	}
	return value.Bool(cmp(a, x, y) == 0)
}

// Ne mirrors org_ne, Eq's identity-fallback counterpart.
func Ne(a *arena.Arena, x, y value.Value) value.Value {
	if value.IsError(x) || value.IsError(y) {
		return value.Error
	}
	if !value.IsNumeric(x) || !value.IsNumeric(y) {
		return value.Bool(x != y)
	}
	return value.Bool(cmp(a, x, y) != 0)
}

func Lt(a *arena.Arena, x, y value.Value) value.Value { return ordered(a, x, y, func(c int) bool { return c < 0 }) }
func Le(a *arena.Arena, x, y value.Value) value.Value { return ordered(a, x, y, func(c int) bool { return c <= 0 }) }
func Gt(a *arena.Arena, x, y value.Value) value.Value { return ordered(a, x, y, func(c int) bool { return c > 0 }) }
func Ge(a *arena.Arena, x, y value.Value) value.Value { return ordered(a, x, y, func(c int) bool { return c >= 0 }) }

func ordered(a *arena.Arena, x, y value.Value, pred func(int) bool) value.Value {
	if value.IsError(x) || value.IsError(y) {
		return value.Error
	}
	if !value.IsNumeric(x) || !value.IsNumeric(y) {
		return value.Error
	}
	return value.Bool(pred(cmp(a, x, y)))
}

// ---- helpers ----

func maxScale(x, y value.Value) int32 {
	sx, sy := bignum.Scale(x), bignum.Scale(y)
	if sy > sx {
		return sy
	}
	return sx
}

func isZero(a *arena.Arena, v value.Value) bool {
	if value.IsSmall(v) {
		return value.UntagSmall(v) == 0
	}
	if value.IsPtr(v) {
		switch value.GetType(v) {
		case value.TypeBigInt:
			return value.GetBigInt(a, v).Sign() == 0
		case value.TypeRational, value.TypeDecimal:
			return bignum.ToRat(a, v).Sign() == 0
		}
	}
	return false
}

func nonNegativeUint(a *arena.Arena, exp value.Value) (uint64, bool) {
	if value.IsSmall(exp) {
		se := value.UntagSmall(exp)
		if se < 0 {
			return 0, false
		}
		return uint64(se), true
	}
	z := value.GetBigInt(a, exp)
	if z.Sign() < 0 || !z.IsUint64() {
		return 0, false
	}
	return z.Uint64(), true
}

func wrapIntOrError(a *arena.Arena, z *big.Int) value.Value {
	v, err := bignum.WrapInt(a, z)
	if err != nil {
		return value.Error
	}
	return v
}

func wrapRationalOrError(a *arena.Arena, q *big.Rat) value.Value {
	v, err := bignum.WrapRational(a, q)
	if err != nil {
		return value.Error
	}
	return v
}

func wrapDecimalOrError(a *arena.Arena, q *big.Rat, scale int32) value.Value {
	v, err := bignum.WrapDecimal(a, q, scale)
	if err != nil {
		return value.Error
	}
	return v
}

// addOverflow, subOverflow and mulOverflow check for int64 overflow the way
// __builtin_{add,sub,mul}_overflow do in the C original: ok is false if the
// mathematically exact result does not fit in int64, in which case the
// caller must fall through to BigInt arithmetic.
func addOverflow(x, y int64) (int64, bool) {
	r := x + y
	if (r > x) == (y > 0) {
		return r, true
	}
	return 0, false
}

func subOverflow(x, y int64) (int64, bool) {
	r := x - y
	if (r < x) == (y > 0) {
		return r, true
	}
	return 0, false
}

func mulOverflow(x, y int64) (int64, bool) {
	if x == 0 || y == 0 {
		return 0, true
	}
	if x == -1 && y == minInt64 || y == -1 && x == minInt64 {
		return 0, false
	}
	r := x * y
	if r/y != x {
		return 0, false
	}
	return r, true
}

const minInt64 = -1 << 63
