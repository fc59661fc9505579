// Package ops implements CORE's external interface: the operator dispatch
// generated code calls through (`call`, `op_infix`, `op_prefix`), plus
// `print` and a host-`syscall` stub table.
//
// Per the enumerated-operator-token redesign: op_infix/op_prefix dispatch
// on the Operator enum below, not on strings. ParseOperator is the one
// place a string ever turns into an Operator — the thin boundary a
// (not-in-scope) code generator calls through, exactly as the redesign
// note asks for.
package ops

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"orglang/internal/arena"
	"orglang/internal/flow"
	"orglang/internal/numeric"
	"orglang/internal/resource"
	"orglang/internal/scheduler"
	"orglang/internal/table"
	"orglang/internal/value"
)

// Operator enumerates every infix and prefix operator CORE understands.
type Operator int

const (
	OpAdd Operator = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe
	OpFlow
	OpDot
	OpQuery
	OpErrorCheck
	OpElvis
	OpComma
	OpAnd
	OpOr
	OpXor
	OpPair
	// Prefix-only.
	OpAt
	OpNegate
)

var operatorNames = map[string]Operator{
	"+": OpAdd, "-": OpSub, "*": OpMul, "/": OpDiv, "%": OpMod, "**": OpPow,
	"<": OpLt, "<=": OpLe, ">": OpGt, ">=": OpGe, "=": OpEq, "<>": OpNe,
	"->": OpFlow, ".": OpDot, "?": OpQuery, "??": OpErrorCheck, "?:": OpElvis,
	",": OpComma, "&": OpAnd, "|": OpOr, "^": OpXor, ":": OpPair,
	"@": OpAt,
}

// ParseOperator maps the surface-syntax spelling of an operator to its
// Operator token. It is the only string-dispatch boundary in this package;
// everything past it is enum dispatch.
func ParseOperator(s string) (Operator, bool) {
	op, ok := operatorNames[s]
	return op, ok
}

// Call invokes fn (expected to be a Closure) with this and args, the same
// (arena, this, args) shape the reference's OrgFunc callables use.
func Call(a *arena.Arena, fn, this, args value.Value) value.Value {
	return value.Call(a, fn, this, args)
}

// truthy implements the non-numeric "is this falsy" check shared by `?:`,
// `&`, `|` and `^`: Error and boolean False are falsy, a zero SmallInt is
// falsy, an empty String or empty Table is falsy, everything else is truthy.
func truthy(v value.Value) bool {
	switch {
	case value.IsError(v), value.IsFalse(v):
		return false
	case value.IsTrue(v):
		return true
	case value.IsSmall(v):
		return value.UntagSmall(v) != 0
	case value.IsPtr(v) && value.GetType(v) == value.TypeString:
		return value.StringByteLen(v) != 0
	case table.IsTable(v):
		return table.Count(v) != 0
	default:
		return true
	}
}

// pairOrList builds the two-element Table the reference's comma operator
// and pair constructor both produce, since this runtime has no standalone
// list/pair heap type — every sequence is the one hybrid Table.
func pairOrList(a *arena.Arena, left, right value.Value) value.Value {
	l, err := table.New(a)
	if err != nil {
		return value.Error
	}
	table.Push(a, l, left)
	table.Push(a, l, right)
	return l
}

// Infix applies op to (left, right). OpFlow is handled by delegating to
// internal/flow with both operands wrapped as plain-Value Operands — a
// caller chaining multiple `->` applications where an intermediate result
// is a live Iterator (not representable as a value.Value, see DESIGN.md)
// must call flow.Apply directly instead of going through this boundary;
// Infix's OpFlow case exists for the common single-shot case generated
// code actually needs at this layer.
func Infix(a *arena.Arena, s *scheduler.Scheduler, op Operator, left, right value.Value) value.Value {
	switch op {
	case OpAdd:
		return numeric.Add(a, left, right)
	case OpSub:
		return numeric.Sub(a, left, right)
	case OpMul:
		return numeric.Mul(a, left, right)
	case OpDiv:
		return numeric.Div(a, left, right)
	case OpMod:
		return numeric.Mod(a, left, right)
	case OpPow:
		return numeric.Pow(a, left, right)
	case OpLt:
		return numeric.Lt(a, left, right)
	case OpLe:
		return numeric.Le(a, left, right)
	case OpGt:
		return numeric.Gt(a, left, right)
	case OpGe:
		return numeric.Ge(a, left, right)
	case OpEq:
		return numeric.Eq(a, left, right)
	case OpNe:
		return numeric.Ne(a, left, right)
	case OpFlow:
		result := flow.Apply(a, s, flow.FromValue(left), flow.FromValue(right))
		if result.IsIterator() {
			return value.Error
		}
		return result.Val
	case OpDot:
		return table.Get(left, right)
	case OpQuery:
		return table.Get(right, left)
	case OpErrorCheck:
		if value.IsError(left) {
			return right
		}
		return left
	case OpElvis:
		if !truthy(left) {
			return right
		}
		return left
	case OpComma:
		if table.IsTable(left) {
			return table.Push(a, left, right)
		}
		return pairOrList(a, left, right)
	case OpAnd:
		return value.Bool(truthy(left) && truthy(right))
	case OpOr:
		return value.Bool(truthy(left) || truthy(right))
	case OpXor:
		return value.Bool(truthy(left) != truthy(right))
	case OpPair:
		return pairOrList(a, left, right)
	default:
		return value.Error
	}
}

// Prefix applies a prefix operator to right.
func Prefix(a *arena.Arena, op Operator, right value.Value) value.Value {
	switch op {
	case OpAt:
		return resource.Instantiate(a, right)
	case OpNegate:
		return numeric.Neg(a, right)
	default:
		return value.Error
	}
}

// Print renders v to w, matching the diagnostic layer's job of producing a
// readable representation of any Value — never itself part of the OrgLang
// value domain. When w is a terminal (per isatty), Error values are
// highlighted; large Table entry counts are rendered with thousands
// separators via go-humanize, the same ambient formatting touch the rest
// of the CORE's diagnostics carries through internal/rtfault.
func Print(w io.Writer, a *arena.Arena, v value.Value) {
	highlight := false
	if f, ok := w.(*os.File); ok {
		highlight = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	fmt.Fprint(w, renderValue(a, v, highlight))
}

func renderValue(a *arena.Arena, v value.Value, highlight bool) string {
	switch {
	case value.IsError(v):
		if highlight {
			return "\x1b[31mError\x1b[0m"
		}
		return "Error"
	case value.IsUnused(v):
		return "<unused>"
	case value.IsTrue(v):
		return "true"
	case value.IsFalse(v):
		return "false"
	case value.IsSmall(v):
		return fmt.Sprintf("%d", value.UntagSmall(v))
	case value.IsPtr(v) && value.GetType(v) == value.TypeString:
		return value.StringData(v)
	case value.IsPtr(v) && value.GetType(v) == value.TypeBigInt:
		return value.GetBigInt(a, v).String()
	case value.IsPtr(v) && value.GetType(v) == value.TypeRational:
		return value.GetRational(a, v).RatString()
	case value.IsPtr(v) && value.GetType(v) == value.TypeDecimal:
		r := value.GetDecimal(a, v)
		return r.FloatString(int(value.GetDecimalScale(v)))
	case table.IsTable(v):
		count := table.Count(v)
		if count > 999 {
			return fmt.Sprintf("Table(%s entries)", humanize.Comma(int64(count)))
		}
		return fmt.Sprintf("Table(%d entries)", count)
	case value.IsClosure(v):
		return "<closure>"
	case resource.IsResource(v):
		if resource.IsInstance(v) {
			return "<resource instance>"
		}
		return "<resource definition>"
	default:
		return value.TypeName(v)
	}
}

// syscallNames recognizes the host operation names the reference's syscall
// bridge names, without performing any real host syscall — kernel bridging
// is explicitly out of scope (see SPEC_FULL.md §1's out-of-scope list); these are
// acknowledged as no-ops so generated code calling through them gets a
// defined Value back rather than silently failing to link.
var syscallNames = map[string]bool{
	"read": true, "write": true, "arena_create": true, "arena_release": true,
}

// Syscall looks up a host operation by name (a String value) and returns
// value.Unused for a recognized no-op name, or value.Error for anything it
// doesn't recognize or if name isn't a String.
func Syscall(a *arena.Arena, name value.Value, args value.Value) value.Value {
	if !value.IsPtr(name) || value.GetType(name) != value.TypeString {
		return value.Error
	}
	if !syscallNames[value.StringData(name)] {
		return value.Error
	}
	return value.Unused
}
