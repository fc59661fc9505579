// Package iterator implements OrgLang's lazy sequences. An Iterator is a
// pull-based pair (next_fn, state); this package models it as a genuine
// tagged sum type rather than routing every flavor through the Closure heap
// value, since Iterator is deliberately not one of the eight closed ObjType
// heap variants (see DESIGN.md) — it is a pure Go-side construct the flow
// and scheduler packages drive directly, each of its four flavors carrying
// its own distinct state shape.
package iterator

import (
	"orglang/internal/arena"
	"orglang/internal/bignum"
	"orglang/internal/resource"
	"orglang/internal/table"
	"orglang/internal/value"
)

// Kind discriminates an Iterator's state shape.
type Kind int

const (
	KindList Kind = iota
	KindResource
	KindMap
	KindScoped
)

// Iterator is a pull-based lazy sequence. The zero value is not usable;
// construct one with NewList, NewResource, NewMap or NewScoped.
type Iterator struct {
	kind Kind

	// List: state = (source_list, cursor).
	list   value.Value
	cursor uint32

	// Resource: state = a Resource Instance, delegating to its next callable.
	instance value.Value

	// Map: state = (upstream, transform).
	upstream  *Iterator
	transform value.Value

	// Scoped (middleware): state = (upstream, resource_def, context).
	resourceDef value.Value
	context     value.Value
	started     bool
	ended       bool
}

// Kind reports which flavor it is.
func (it *Iterator) Kind() Kind { return it.kind }

// NewList builds a List iterator walking source's integer-indexed entries
// from 0, as produced by Push, until the first missing index.
func NewList(source value.Value) *Iterator {
	return &Iterator{kind: KindList, list: source}
}

// NewResource builds a Resource iterator delegating each pull to instance's
// next callable.
func NewResource(instance value.Value) *Iterator {
	return &Iterator{kind: KindResource, instance: instance}
}

// NewMap builds a Map iterator applying transform to each value upstream
// produces, propagating errors and end-of-sequence without invoking
// transform.
func NewMap(upstream *Iterator, transform value.Value) *Iterator {
	return &Iterator{kind: KindMap, upstream: upstream, transform: transform}
}

// NewScoped builds a Scoped (middleware) iterator: on first pull it invokes
// resourceDef's setup callable (if any) and caches the result as context;
// each pull switches the current arena to a for the duration of the
// upstream pull (the arena-threading analogue of "if the context carries
// one" — see DESIGN.md); once upstream ends or yields an error, resourceDef's
// teardown callable (if any) is invoked with the cached context.
func NewScoped(upstream *Iterator, resourceDef value.Value) *Iterator {
	return &Iterator{kind: KindScoped, upstream: upstream, resourceDef: resourceDef}
}

// Pull advances the iterator. It returns (value, true) for a produced value
// — which may itself be value.Error, propagated rather than filtered — or
// (value.Unused, false) once the sequence is exhausted.
func (it *Iterator) Pull(a *arena.Arena) (value.Value, bool) {
	switch it.kind {
	case KindList:
		return it.pullList(a)
	case KindResource:
		return it.pullResource(a)
	case KindMap:
		return it.pullMap(a)
	case KindScoped:
		return it.pullScoped(a)
	default:
		return value.Unused, false
	}
}

// pullList walks list's auto-indexed entries from 0. table.Get reports a
// missing index as value.Error, the same sentinel a legitimately stored
// Error value would produce — an inherent ambiguity of keying end-of-list
// off the hybrid table's absent-key result, accepted here since a list built
// by Push never has gaps.
func (it *Iterator) pullList(a *arena.Arena) (value.Value, bool) {
	got := table.Get(it.list, value.TagSmall(int64(it.cursor)))
	if value.IsError(got) {
		return value.Unused, false
	}
	it.cursor++
	return got, true
}

func (it *Iterator) pullResource(a *arena.Arena) (value.Value, bool) {
	got := resource.CallNext(a, it.instance)
	if value.IsUnused(got) {
		return value.Unused, false
	}
	return got, true
}

// pullMap applies transform to each upstream value. transform may be a
// plain callable or a Resource Instance, in which case its step callable is
// invoked instead, matching map_iterator_next's
// transform->type == ORG_RESOURCE_INSTANCE_TYPE branch.
func (it *Iterator) pullMap(a *arena.Arena) (value.Value, bool) {
	got, more := it.upstream.Pull(a)
	if !more {
		return value.Unused, false
	}
	if value.IsError(got) {
		return value.Error, true
	}
	if resource.IsInstance(it.transform) {
		return resource.CallStep(a, it.transform, got), true
	}
	return value.Call(a, it.transform, got, value.Unused), true
}

func (it *Iterator) pullScoped(a *arena.Arena) (value.Value, bool) {
	if it.ended {
		return value.Unused, false
	}
	if !it.started {
		it.started = true
		if resource.IsDefinition(it.resourceDef) {
			setup := resource.Setup(it.resourceDef)
			if value.IsClosure(setup) {
				it.context = value.Call(a, setup, value.Unused, value.Unused)
			}
		}
	}

	prevArena := bignum.CurrentArena()
	bignum.SetCurrentArena(a)
	got, more := it.upstream.Pull(a)
	bignum.SetCurrentArena(prevArena)

	if !more || value.IsError(got) {
		it.runTeardown(a)
	}
	if !more {
		return value.Unused, false
	}
	return got, true
}

func (it *Iterator) runTeardown(a *arena.Arena) {
	it.ended = true
	if !resource.IsDefinition(it.resourceDef) {
		return
	}
	teardown := resource.TeardownFn(it.resourceDef)
	if value.IsClosure(teardown) {
		value.Call(a, teardown, it.context, value.Unused)
	}
}
