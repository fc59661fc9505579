package resource

import (
	"testing"

	"orglang/internal/arena"
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

func TestNewDefinitionIsDefinitionNotInstance(t *testing.T) {
	a := newTestArena(t)
	def, err := NewDefinition(a, value.Unused, value.Unused, value.Unused, value.Unused)
	if err != nil {
		t.Fatalf("NewDefinition: %v", err)
	}
	if !IsResource(def) {
		t.Fatalf("NewDefinition did not produce a Resource value")
	}
	if !IsDefinition(def) {
		t.Fatalf("fresh resource should be a Definition")
	}
	if IsInstance(def) {
		t.Fatalf("fresh resource should not be an Instance")
	}
}

func TestInstantiateRunsSetupAndStoresState(t *testing.T) {
	a := newTestArena(t)
	setup, _ := value.NewClosure(a, func(a *arena.Arena, left, right value.Value) value.Value {
		return value.TagSmall(42)
	})
	def, _ := NewDefinition(a, setup, value.Unused, value.Unused, value.Unused)

	inst := Instantiate(a, def)
	if !IsInstance(inst) {
		t.Fatalf("Instantiate should produce an Instance")
	}
	got := State(inst)
	if !value.IsSmall(got) || value.UntagSmall(got) != 42 {
		t.Fatalf("State = %v, want SmallInt(42)", got)
	}
	if Definition(inst) != def {
		t.Fatalf("Instance should remember its originating Definition")
	}
}

func TestInstantiateWithoutSetupLeavesStateUnused(t *testing.T) {
	a := newTestArena(t)
	def, _ := NewDefinition(a, value.Unused, value.Unused, value.Unused, value.Unused)
	inst := Instantiate(a, def)
	if !value.IsUnused(State(inst)) {
		t.Fatalf("State without setup should be Unused, got %v", State(inst))
	}
}

func TestInstantiateNonDefinitionIsError(t *testing.T) {
	a := newTestArena(t)
	if got := Instantiate(a, value.TagSmall(1)); got != value.Error {
		t.Fatalf("Instantiate on a non-Resource = %v, want Error", got)
	}
	def, _ := NewDefinition(a, value.Unused, value.Unused, value.Unused, value.Unused)
	inst := Instantiate(a, def)
	if got := Instantiate(a, inst); got != value.Error {
		t.Fatalf("Instantiate on an Instance = %v, want Error", got)
	}
}

func TestInstantiatePropagatesSetupError(t *testing.T) {
	a := newTestArena(t)
	setup, _ := value.NewClosure(a, func(a *arena.Arena, left, right value.Value) value.Value {
		return value.Error
	})
	def, _ := NewDefinition(a, setup, value.Unused, value.Unused, value.Unused)
	if got := Instantiate(a, def); got != value.Error {
		t.Fatalf("Instantiate with failing setup = %v, want Error", got)
	}
}

func TestTeardownRunsOnArenaRestore(t *testing.T) {
	a := newTestArena(t)
	ran := false
	var gotState value.Value

	setup, _ := value.NewClosure(a, func(a *arena.Arena, left, right value.Value) value.Value {
		return value.TagSmall(7)
	})
	teardown, _ := value.NewClosure(a, func(a *arena.Arena, left, right value.Value) value.Value {
		ran = true
		gotState = left
		return value.Unused
	})
	def, _ := NewDefinition(a, setup, value.Unused, teardown, value.Unused)

	cp := a.Save()
	Instantiate(a, def)
	if ran {
		t.Fatalf("teardown must not run before Restore")
	}

	a.Restore(cp)
	if !ran {
		t.Fatalf("Restore should have run the instance's teardown")
	}
	if !value.IsSmall(gotState) || value.UntagSmall(gotState) != 7 {
		t.Fatalf("teardown should receive the instance's stored state, got %v", gotState)
	}
}

func TestCallStepInvokesStepWithInstanceAsReceiver(t *testing.T) {
	a := newTestArena(t)
	setup, _ := value.NewClosure(a, func(a *arena.Arena, left, right value.Value) value.Value {
		return value.TagSmall(10)
	})
	step, _ := value.NewClosure(a, func(a *arena.Arena, left, right value.Value) value.Value {
		if !IsInstance(left) {
			t.Fatalf("step should receive the Instance itself as its receiver, got %v", left)
		}
		return value.TagSmall(value.UntagSmall(State(left)) + value.UntagSmall(right))
	})
	def, _ := NewDefinition(a, setup, step, value.Unused, value.Unused)
	inst := Instantiate(a, def)

	got := CallStep(a, inst, value.TagSmall(5))
	if !value.IsSmall(got) || value.UntagSmall(got) != 15 {
		t.Fatalf("CallStep = %v, want SmallInt(15)", got)
	}
}

func TestCallStepWithoutStepIsError(t *testing.T) {
	a := newTestArena(t)
	def, _ := NewDefinition(a, value.Unused, value.Unused, value.Unused, value.Unused)
	inst := Instantiate(a, def)
	if got := CallStep(a, inst, value.TagSmall(1)); got != value.Error {
		t.Fatalf("CallStep without a step callable = %v, want Error", got)
	}
}

func TestCallNextInvokesNextWithInstanceAsReceiver(t *testing.T) {
	a := newTestArena(t)
	setup, _ := value.NewClosure(a, func(a *arena.Arena, left, right value.Value) value.Value {
		return value.TagSmall(0)
	})
	next, _ := value.NewClosure(a, func(a *arena.Arena, left, right value.Value) value.Value {
		if !IsInstance(left) {
			t.Fatalf("next should receive the Instance itself as its receiver, got %v", left)
		}
		return value.TagSmall(value.UntagSmall(State(left)) + 1)
	})
	def, _ := NewDefinition(a, setup, value.Unused, value.Unused, next)
	inst := Instantiate(a, def)

	got := CallNext(a, inst)
	if !value.IsSmall(got) || value.UntagSmall(got) != 1 {
		t.Fatalf("CallNext = %v, want SmallInt(1)", got)
	}
}

func TestAccessorsReadBackCallables(t *testing.T) {
	a := newTestArena(t)
	setup, _ := value.NewClosure(a, func(a *arena.Arena, left, right value.Value) value.Value { return value.Unused })
	step, _ := value.NewClosure(a, func(a *arena.Arena, left, right value.Value) value.Value { return value.Unused })
	teardown, _ := value.NewClosure(a, func(a *arena.Arena, left, right value.Value) value.Value { return value.Unused })
	next, _ := value.NewClosure(a, func(a *arena.Arena, left, right value.Value) value.Value { return value.Unused })
	def, _ := NewDefinition(a, setup, step, teardown, next)

	if Setup(def) != setup || Step(def) != step || TeardownFn(def) != teardown || Next(def) != next {
		t.Fatalf("accessors did not round-trip the definition's callables")
	}
}
