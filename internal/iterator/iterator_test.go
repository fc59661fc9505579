package iterator

import (
	"testing"

	"orglang/internal/arena"
	"orglang/internal/resource"
	"orglang/internal/table"
	"orglang/internal/value"
)

func newTestArena(t *testing.T) *arena.Arena {
	t.Helper()
	a, err := arena.New(65536)
	if err != nil {
		t.Fatalf("arena.New: %v", err)
	}
	return a
}

func TestListIteratorWalksPushedEntries(t *testing.T) {
	a := newTestArena(t)
	list, _ := table.New(a)
	table.Push(a, list, value.TagSmall(10))
	table.Push(a, list, value.TagSmall(20))
	table.Push(a, list, value.TagSmall(30))

	it := NewList(list)
	var got []int64
	for {
		v, more := it.Pull(a)
		if !more {
			break
		}
		got = append(got, value.UntagSmall(v))
	}
	want := []int64{10, 20, 30}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestListIteratorEmptyListExhaustsImmediately(t *testing.T) {
	a := newTestArena(t)
	list, _ := table.New(a)
	it := NewList(list)
	if _, more := it.Pull(a); more {
		t.Fatalf("empty list iterator should be exhausted on first pull")
	}
}

func TestResourceIteratorDelegatesToNext(t *testing.T) {
	a := newTestArena(t)
	setup, _ := value.NewClosure(a, func(a *arena.Arena, left, right value.Value) value.Value {
		return value.TagSmall(0)
	})
	next, _ := value.NewClosure(a, func(a *arena.Arena, left, right value.Value) value.Value {
		n := value.UntagSmall(resource.State(left))
		if n >= 3 {
			return value.Unused
		}
		return value.TagSmall(n + 1)
	})
	def, _ := resource.NewDefinition(a, setup, value.Unused, value.Unused, next)
	inst := resource.Instantiate(a, def)

	it := NewResource(inst)
	v1, more1 := it.Pull(a)
	if !more1 || value.UntagSmall(v1) != 1 {
		t.Fatalf("first pull = %v, %v, want 1, true", v1, more1)
	}
}

func TestResourceIteratorExhaustsOnUnusedSentinel(t *testing.T) {
	a := newTestArena(t)
	next, _ := value.NewClosure(a, func(a *arena.Arena, left, right value.Value) value.Value {
		return value.Unused
	})
	def, _ := resource.NewDefinition(a, value.Unused, value.Unused, value.Unused, next)
	inst := resource.Instantiate(a, def)

	it := NewResource(inst)
	if _, more := it.Pull(a); more {
		t.Fatalf("next returning Unused should exhaust the iterator")
	}
}

func TestMapIteratorAppliesTransform(t *testing.T) {
	a := newTestArena(t)
	list, _ := table.New(a)
	table.Push(a, list, value.TagSmall(1))
	table.Push(a, list, value.TagSmall(2))

	double, _ := value.NewClosure(a, func(a *arena.Arena, left, right value.Value) value.Value {
		return value.TagSmall(value.UntagSmall(left) * 2)
	})

	it := NewMap(NewList(list), double)
	v1, more1 := it.Pull(a)
	if !more1 || value.UntagSmall(v1) != 2 {
		t.Fatalf("first mapped pull = %v, %v, want 2, true", v1, more1)
	}
	v2, more2 := it.Pull(a)
	if !more2 || value.UntagSmall(v2) != 4 {
		t.Fatalf("second mapped pull = %v, %v, want 4, true", v2, more2)
	}
	if _, more3 := it.Pull(a); more3 {
		t.Fatalf("map iterator should exhaust once upstream does")
	}
}

func TestMapIteratorPropagatesErrorWithoutTransforming(t *testing.T) {
	a := newTestArena(t)
	next, _ := value.NewClosure(a, func(a *arena.Arena, left, right value.Value) value.Value {
		return value.Error
	})
	def, _ := resource.NewDefinition(a, value.Unused, value.Unused, value.Unused, next)
	inst := resource.Instantiate(a, def)

	called := false
	transform, _ := value.NewClosure(a, func(a *arena.Arena, left, right value.Value) value.Value {
		called = true
		return left
	})

	it := NewMap(NewResource(inst), transform)
	v, more := it.Pull(a)
	if !more || v != value.Error {
		t.Fatalf("pull = %v, %v, want Error, true", v, more)
	}
	if called {
		t.Fatalf("transform must not be invoked on a propagated Error")
	}
}

func TestMapIteratorAppliesResourceInstanceStepAsTransform(t *testing.T) {
	a := newTestArena(t)
	list, _ := table.New(a)
	table.Push(a, list, value.TagSmall(1))
	table.Push(a, list, value.TagSmall(2))

	setup, _ := value.NewClosure(a, func(a *arena.Arena, left, right value.Value) value.Value {
		return value.TagSmall(100)
	})
	step, _ := value.NewClosure(a, func(a *arena.Arena, left, right value.Value) value.Value {
		return value.TagSmall(value.UntagSmall(resource.State(left)) + value.UntagSmall(right))
	})
	def, _ := resource.NewDefinition(a, setup, step, value.Unused, value.Unused)
	inst := resource.Instantiate(a, def)

	it := NewMap(NewList(list), inst)
	v1, more1 := it.Pull(a)
	if !more1 || value.UntagSmall(v1) != 101 {
		t.Fatalf("first mapped pull = %v, %v, want 101, true", v1, more1)
	}
	v2, more2 := it.Pull(a)
	if !more2 || value.UntagSmall(v2) != 102 {
		t.Fatalf("second mapped pull = %v, %v, want 102, true", v2, more2)
	}
}

func TestScopedIteratorRunsSetupOnceAndTeardownOnExhaustion(t *testing.T) {
	a := newTestArena(t)
	list, _ := table.New(a)
	table.Push(a, list, value.TagSmall(1))

	setupCalls := 0
	setup, _ := value.NewClosure(a, func(a *arena.Arena, left, right value.Value) value.Value {
		setupCalls++
		return value.TagSmall(99)
	})
	var teardownGot value.Value
	teardownCalls := 0
	teardown, _ := value.NewClosure(a, func(a *arena.Arena, left, right value.Value) value.Value {
		teardownCalls++
		teardownGot = left
		return value.Unused
	})
	def, _ := resource.NewDefinition(a, setup, value.Unused, teardown, value.Unused)

	it := NewScoped(NewList(list), def)

	v, more := it.Pull(a)
	if !more || value.UntagSmall(v) != 1 {
		t.Fatalf("first pull = %v, %v, want 1, true", v, more)
	}
	if setupCalls != 1 {
		t.Fatalf("setup should run exactly once, ran %d times", setupCalls)
	}
	if teardownCalls != 0 {
		t.Fatalf("teardown must not run before upstream is exhausted")
	}

	if _, more := it.Pull(a); more {
		t.Fatalf("iterator should be exhausted after the single list entry")
	}
	if teardownCalls != 1 {
		t.Fatalf("teardown should run exactly once on exhaustion, ran %d times", teardownCalls)
	}
	if !value.IsSmall(teardownGot) || value.UntagSmall(teardownGot) != 99 {
		t.Fatalf("teardown should receive the cached setup context, got %v", teardownGot)
	}

	if _, more := it.Pull(a); more {
		t.Fatalf("pulling again after exhaustion should stay exhausted")
	}
	if teardownCalls != 1 {
		t.Fatalf("teardown should not run a second time, ran %d times", teardownCalls)
	}
}

func TestScopedIteratorRunsTeardownOnUpstreamError(t *testing.T) {
	a := newTestArena(t)
	next, _ := value.NewClosure(a, func(a *arena.Arena, left, right value.Value) value.Value {
		return value.Error
	})
	def, _ := resource.NewDefinition(a, value.Unused, value.Unused, value.Unused, next)
	upstreamInst := resource.Instantiate(a, def)

	teardownCalls := 0
	teardown, _ := value.NewClosure(a, func(a *arena.Arena, left, right value.Value) value.Value {
		teardownCalls++
		return value.Unused
	})
	scopeDef, _ := resource.NewDefinition(a, value.Unused, value.Unused, teardown, value.Unused)

	it := NewScoped(NewResource(upstreamInst), scopeDef)
	v, more := it.Pull(a)
	if !more || v != value.Error {
		t.Fatalf("pull = %v, %v, want Error, true", v, more)
	}
	if teardownCalls != 1 {
		t.Fatalf("teardown should run once the upstream yields Error, ran %d times", teardownCalls)
	}
}
