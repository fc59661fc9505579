// Package bignum bridges OrgLang's tagged Values to Go's arbitrary
// precision math/big types, and wraps the results back into arena-resident
// BigInt/Rational/Decimal values — the role the original's gmp_glue.c plays
// for GMP, adapted to an allocator Go's math/big does not let us redirect.
package bignum

import (
	"math/big"

	"github.com/remyoudompheng/bigfft"
	"modernc.org/mathutil"

	"orglang/internal/arena"
	"orglang/internal/value"
)

// fftThreshold is the operand bit length above which Mul reaches for
// bigfft's multiplication instead of math/big's built-in algorithm. The
// threshold mirrors the crossover bigfft's own benchmarks document for FFT
// multiplication becoming worthwhile over schoolbook/Karatsuba.
const fftThreshold = 2048

// currentArena mirrors gmp_glue.c's thread-local current_fiber_arena: the
// scheduler sets it on every fiber resume (see internal/scheduler), and the
// Scoped iterator saves and restores it around each upstream pull. No
// function in this package reads it: each one takes an explicit
// *arena.Arena instead, since math/big offers no allocator hook for this
// package to redirect through the way gmp_glue.c redirects GMP itself.
var currentArena *arena.Arena

// SetCurrentArena records the arena backing the fiber now running.
func SetCurrentArena(a *arena.Arena) { currentArena = a }

// CurrentArena returns the arena set by the most recent SetCurrentArena.
func CurrentArena() *arena.Arena { return currentArena }

// ToInt converts any integer Value (immediate or BigInt) to a *big.Int.
func ToInt(a *arena.Arena, v value.Value) *big.Int {
	if value.IsSmall(v) {
		return big.NewInt(value.UntagSmall(v))
	}
	return new(big.Int).Set(value.GetBigInt(a, v))
}

// ToRat converts any numeric Value (immediate, BigInt, Rational or Decimal)
// to a *big.Rat.
func ToRat(a *arena.Arena, v value.Value) *big.Rat {
	if value.IsSmall(v) {
		return new(big.Rat).SetInt64(value.UntagSmall(v))
	}
	switch value.GetType(v) {
	case value.TypeBigInt:
		return new(big.Rat).SetInt(value.GetBigInt(a, v))
	case value.TypeRational:
		return new(big.Rat).Set(value.GetRational(a, v))
	case value.TypeDecimal:
		return new(big.Rat).Set(value.GetDecimal(a, v))
	default:
		return new(big.Rat)
	}
}

// Mul multiplies two big integers, routing through bigfft's FFT-based
// multiplication once both operands are longer than fftThreshold bits.
func Mul(x, y *big.Int) *big.Int {
	if x.BitLen() > fftThreshold && y.BitLen() > fftThreshold {
		return bigfft.Mul(x, y)
	}
	return new(big.Int).Mul(x, y)
}

// Reduce divides n and d by their greatest common divisor and fixes the
// sign so d is positive, the canonical form every Rational/Decimal value
// must be stored in. It takes the int64 fast path through mathutil.GCD
// when both operands fit, falling back to big.Int's GCD otherwise —
// mirroring the small-int-first, BigInt-fallback shape every arithmetic
// path in this runtime follows.
func Reduce(n, d *big.Int) (*big.Int, *big.Int) {
	if d.Sign() < 0 {
		n = new(big.Int).Neg(n)
		d = new(big.Int).Neg(d)
	}
	var g *big.Int
	if n.IsInt64() && d.IsInt64() {
		g = big.NewInt(mathutil.GCD(n.Int64(), d.Int64()))
	} else {
		g = new(big.Int).GCD(nil, nil, new(big.Int).Abs(n), new(big.Int).Abs(d))
	}
	if g.Sign() == 0 {
		return n, d
	}
	qn := new(big.Int).Quo(n, g)
	qd := new(big.Int).Quo(d, g)
	return qn, qd
}

// WrapInt normalizes z to an immediate SmallInt if it fits, otherwise
// allocates a BigInt value — org_normalize_int's and wrap_mpz's combined
// behavior.
func WrapInt(a *arena.Arena, z *big.Int) (value.Value, error) {
	if z.IsInt64() {
		n := z.Int64()
		if value.SmallFits(n) {
			return value.TagSmall(n), nil
		}
	}
	return value.NewBigInt(a, z)
}

// WrapRational wraps q as a Rational value, or as an Integer if its
// denominator reduces to 1 (wrap_mpq_rational's collapsing behavior). It
// re-canonicalizes q's numerator/denominator through Reduce first — q
// arrives already in lowest terms for math/big-constructed values, but
// callers building a Rational from operands that did not pass through
// math/big's own arithmetic (e.g. two raw BigInts from a parsed literal)
// rely on this to establish gcd(num,den)=1 before WrapRational ever sees it.
func WrapRational(a *arena.Arena, q *big.Rat) (value.Value, error) {
	n, d := Reduce(q.Num(), q.Denom())
	q = new(big.Rat).SetFrac(n, d)
	if q.IsInt() {
		return WrapInt(a, new(big.Int).Set(q.Num()))
	}
	return value.NewRational(a, q)
}

// WrapDecimal wraps q as a Decimal value carrying scale, without
// collapsing to Integer even if the denominator happens to be 1 — Decimal
// always keeps its display scale, unlike Rational.
func WrapDecimal(a *arena.Arena, q *big.Rat, scale int32) (value.Value, error) {
	return value.NewDecimal(a, q, scale)
}

// Scale returns a Value's decimal scale, or 0 for anything that isn't a
// Decimal (get_scale's behavior).
func Scale(v value.Value) int32 {
	if value.IsPtr(v) && value.GetType(v) == value.TypeDecimal {
		return value.GetDecimalScale(v)
	}
	return 0
}
