// Package flow implements the `->` operator, the one piece of CORE that
// composes resources, iterators and the scheduler into a running pipeline.
package flow

import (
	"orglang/internal/arena"
	"orglang/internal/iterator"
	"orglang/internal/resource"
	"orglang/internal/scheduler"
	"orglang/internal/value"
)

// Operand is either a plain Value or a live Iterator — `->`'s left side may
// be either, since a previous `->` in the same pipeline can itself have
// produced an Iterator, which (per DESIGN.md's Open Question decision) is
// not representable as a value.Value.
type Operand struct {
	Iter *iterator.Iterator
	Val  value.Value
}

// FromValue wraps a plain Value as an Operand.
func FromValue(v value.Value) Operand { return Operand{Val: v} }

// FromIterator wraps a live Iterator as an Operand.
func FromIterator(it *iterator.Iterator) Operand { return Operand{Iter: it} }

// IsIterator reports whether this Operand already carries a live Iterator.
func (o Operand) IsIterator() bool { return o.Iter != nil }

// errorOperand is the Operand form of the sticky ERROR value.
var errorOperand = Operand{Val: value.Error}

// Apply implements `->`: left composes with right according to what each
// operand is. a is the arena any heap values a callable produces land in
// (Map/Scoped iterators themselves are plain Go structs, not arena
// allocations); s is the scheduler pump and sink tasks are spawned on.
//
// Composition modes, matching the reference's org_op_infix flow branch and
// SPEC_FULL.md §4.6:
//   - Left promotes to an Iterator if it already is one, or is a Resource
//     Instance with a next callable.
//   - If Right is a Resource Definition and Left promoted to an Iterator,
//     the result is a Scoped (middleware) Iterator wrapping Left — the
//     reference's blanket "Resource Definition in Flow is an error" guard
//     is narrowed to exactly this: a bare Definition on either side with no
//     Iterator context to scope is still rejected, but a Definition
//     immediately following an Iterator is the middleware-wrap syntax.
//   - If Right is callable and Left promoted to an Iterator, the result is
//     a lazy Map Iterator.
//   - If Right is a Resource Instance with a step callable and Left
//     promoted to an Iterator, a pump fiber is spawned that drains Left,
//     spawning one sink fiber per produced value (stopping at the first
//     Error or end of sequence) — the scheduled pump/sink drain.
//   - Otherwise Left is a scalar: a callable Right is invoked immediately;
//     a Resource Instance Right is driven by a single scheduled sink fiber;
//     anything else, Right is returned unchanged (the reference's default
//     push-through fallback).
func Apply(a *arena.Arena, s *scheduler.Scheduler, left, right Operand) Operand {
	if !left.IsIterator() && resource.IsDefinition(left.Val) {
		return errorOperand
	}

	iter := left.Iter
	if iter == nil && !left.IsIterator() {
		if resource.IsInstance(left.Val) && value.IsClosure(resource.Next(left.Val)) {
			iter = iterator.NewResource(left.Val)
		}
	}

	if iter != nil {
		switch {
		case resource.IsDefinition(right.Val):
			return FromIterator(iterator.NewScoped(iter, right.Val))
		case value.IsClosure(right.Val):
			return FromIterator(iterator.NewMap(iter, right.Val))
		case resource.IsInstance(right.Val) && value.IsClosure(resource.Step(right.Val)):
			spawnPumpSink(a, s, iter, right.Val)
			return FromValue(value.Unused)
		default:
			return FromValue(value.Unused)
		}
	}

	if resource.IsDefinition(right.Val) {
		return errorOperand
	}
	if value.IsClosure(right.Val) {
		return FromValue(value.Call(a, right.Val, left.Val, value.Unused))
	}
	if resource.IsInstance(right.Val) && value.IsClosure(resource.Step(right.Val)) {
		spawnSingleSink(a, s, right.Val, left.Val)
		return FromValue(value.Unused)
	}
	return FromValue(right.Val)
}

// spawnPumpSink enqueues a pump fiber that repeatedly pulls iter, spawning
// one sink fiber per produced value before re-enqueuing itself — the
// scheduler's Run loop guarantees that sink runs before the pump's next
// turn, preserving per-pipeline emission order.
func spawnPumpSink(a *arena.Arena, s *scheduler.Scheduler, iter *iterator.Iterator, sinkInst value.Value) {
	var pump scheduler.ResumeFunc
	pump = func(a *arena.Arena, state value.Value) (value.Value, bool) {
		val, more := iter.Pull(a)
		if !more || value.IsError(val) {
			return value.Unused, true
		}
		s.Spawn(a, func(a *arena.Arena, sinkState value.Value) (value.Value, bool) {
			resource.CallStep(a, sinkInst, val)
			return value.Unused, true
		}, value.Unused)
		return value.Unused, false
	}
	s.Spawn(a, pump, value.Unused)
}

// spawnSingleSink enqueues one fiber that drives sinkInst's step callable
// once with arg, for a scalar left operand flowing into a Resource
// Instance.
func spawnSingleSink(a *arena.Arena, s *scheduler.Scheduler, sinkInst, arg value.Value) {
	s.Spawn(a, func(a *arena.Arena, state value.Value) (value.Value, bool) {
		resource.CallStep(a, sinkInst, arg)
		return value.Unused, true
	}, value.Unused)
}
