// Package resource implements OrgLang's resource lifecycle: a Resource
// Definition is a 4-tuple of optional callables {setup, step, teardown,
// next}, and the `@` prefix operator instantiates one into a Resource
// Instance that owns a piece of state for the lifetime of the arena that
// created it.
package resource

import (
	"unsafe"

	"orglang/internal/arena"
	"orglang/internal/value"
)

// obj is the arena-resident Resource heap object. A single ObjType covers
// both Definition and Instance (see DESIGN.md's Open Question decision):
// flagIsInstance distinguishes them, and State/Def are only meaningful on an
// Instance. The four callables are stored as plain Values (value.Unused when
// absent) rather than a packed slice, so a Definition and the Instance it
// produces share the same field layout and accessors.
type obj struct {
	value.Header
	Setup    value.Value
	Step     value.Value
	Teardown value.Value
	Next     value.Value
	State    value.Value
	Def      value.Value
}

func resourceOf(v value.Value) *obj {
	return (*obj)(value.Ptr(v))
}

// IsResource reports whether v is any Resource heap value, Definition or
// Instance.
func IsResource(v value.Value) bool {
	return value.IsPtr(v) && value.GetType(v) == value.TypeResource
}

const flagIsInstance = 1 << 0

// IsDefinition reports whether v is a Resource Definition.
func IsDefinition(v value.Value) bool {
	return IsResource(v) && resourceOf(v).Flags&flagIsInstance == 0
}

// IsInstance reports whether v is a Resource Instance.
func IsInstance(v value.Value) bool {
	return IsResource(v) && resourceOf(v).Flags&flagIsInstance != 0
}

// NewDefinition allocates a Resource Definition from its four optional
// callables. Pass value.Unused for any callable the definition doesn't
// provide.
func NewDefinition(a *arena.Arena, setup, step, teardown, next value.Value) (value.Value, error) {
	p, err := a.Alloc(int(unsafe.Sizeof(obj{})), 8)
	if err != nil {
		return 0, err
	}
	r := (*obj)(p)
	r.Type = value.TypeResource
	r.Size = uint32(unsafe.Sizeof(obj{}))
	r.Setup = setup
	r.Step = step
	r.Teardown = teardown
	r.Next = next
	r.State = value.Unused
	r.Def = value.Unused
	return value.TagPtr(p), nil
}

// Setup, Step, TeardownFn and Next read back a Definition's (or an Instance's
// originating Definition's) callables. Each returns value.Unused if the
// definition didn't provide that callable.
func Setup(v value.Value) value.Value { return resourceOf(v).Setup }
func Step(v value.Value) value.Value  { return resourceOf(v).Step }
func TeardownFn(v value.Value) value.Value {
	return resourceOf(v).Teardown
}
func Next(v value.Value) value.Value { return resourceOf(v).Next }

// State returns a Resource Instance's stored state. Only meaningful when
// IsInstance(v).
func State(v value.Value) value.Value { return resourceOf(v).State }

// Definition returns the Resource Definition an Instance was created from.
func Definition(v value.Value) value.Value { return resourceOf(v).Def }

// Instantiate implements the `@` prefix operator: it invokes def's setup
// callable (if any) with an empty argument, stores the result as the new
// instance's state, and registers the instance's teardown hook on a, so
// a.Restore or a.Destroy calls TeardownFn(def) with the stored state. Returns
// value.Error if def is not a Resource Definition.
func Instantiate(a *arena.Arena, def value.Value) value.Value {
	if !IsDefinition(def) {
		return value.Error
	}
	r := resourceOf(def)

	state := value.Unused
	if value.IsClosure(r.Setup) {
		state = value.Call(a, r.Setup, value.Unused, value.Unused)
		if value.IsError(state) {
			return value.Error
		}
	}

	p, err := a.Alloc(int(unsafe.Sizeof(obj{})), 8)
	if err != nil {
		return value.Error
	}
	inst := (*obj)(p)
	inst.Type = value.TypeResource
	inst.Flags = flagIsInstance
	inst.Size = uint32(unsafe.Sizeof(obj{}))
	inst.Setup = r.Setup
	inst.Step = r.Step
	inst.Teardown = r.Teardown
	inst.Next = r.Next
	inst.State = state
	inst.Def = def

	instVal := value.TagPtr(p)
	if value.IsClosure(r.Teardown) {
		teardownFn, instState := r.Teardown, state
		a.OnTeardown(func() {
			value.Call(a, teardownFn, instState, value.Unused)
		})
	}
	return instVal
}

// CallStep invokes an instance's step callable with inst itself as the
// receiver and input as the argument, returning value.Error if the instance
// has no step callable — matching step->func_val->func(a, transform, val)'s
// calling convention, which passes the whole instance through, not just its
// state.
func CallStep(a *arena.Arena, inst, input value.Value) value.Value {
	if !IsInstance(inst) {
		return value.Error
	}
	step := resourceOf(inst).Step
	if !value.IsClosure(step) {
		return value.Error
	}
	return value.Call(a, step, inst, input)
}

// CallNext invokes an instance's next callable to pull the next value from a
// Resource iterator, with inst itself as the receiver, returning value.Error
// if the instance has no next callable — matching
// next_func->func_val->func(a, instance_val, NULL)'s calling convention.
func CallNext(a *arena.Arena, inst value.Value) value.Value {
	if !IsInstance(inst) {
		return value.Error
	}
	next := resourceOf(inst).Next
	if !value.IsClosure(next) {
		return value.Error
	}
	return value.Call(a, next, inst, value.Unused)
}
