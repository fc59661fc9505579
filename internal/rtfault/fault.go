// Package rtfault carries host-side runtime diagnostics.
//
// These are ordinary Go errors, not OrgLang values: arithmetic and table
// operations that fail at the language level return the ERROR value
// sentinel (see package value) and never touch this package. rtfault exists
// for failures a generated program cannot see at all — the kind of thing a
// host embedding the runtime wants in its own logs. In this module the one
// place a Fault is raised is arena page allocation; a malformed resource
// definition reaching `@` or an unknown operator token yields the ERROR
// value instead.
package rtfault

import (
	"fmt"

	"github.com/pkg/errors"
)

// Component identifies which CORE component raised a Fault.
type Component string

const (
	ComponentArena     Component = "arena"
	ComponentValue     Component = "value"
	ComponentBignum    Component = "bignum"
	ComponentNumeric   Component = "numeric"
	ComponentTable     Component = "table"
	ComponentResource  Component = "resource"
	ComponentIterator  Component = "iterator"
	ComponentScheduler Component = "scheduler"
	ComponentFlow      Component = "flow"
	ComponentOps       Component = "ops"
)

// Kind classifies a Fault per the taxonomy in the error handling design.
type Kind string

const (
	KindTypeMismatch   Kind = "type_mismatch"
	KindDomainViolation Kind = "domain_violation"
	KindResourceAbsence Kind = "resource_absence"
	KindAllocExhausted  Kind = "allocator_exhausted"
	KindInvariant       Kind = "invariant_violation"
)

// Fault is a structured host-side diagnostic. It wraps an underlying cause
// (when there is one) with github.com/pkg/errors so that callers printing
// it with "%+v" get a stack trace rooted at the point of failure.
type Fault struct {
	Component Component
	Kind      Kind
	Operation string // e.g. "add", "table_set", "spawn"
	Detail    string
	cause     error
}

func (f *Fault) Error() string {
	if f.Detail == "" {
		return fmt.Sprintf("%s: %s in %s", f.Component, f.Kind, f.Operation)
	}
	return fmt.Sprintf("%s: %s in %s: %s", f.Component, f.Kind, f.Operation, f.Detail)
}

// Unwrap lets errors.Is/As see through to a wrapped cause, if any.
func (f *Fault) Unwrap() error { return f.cause }

// New builds a Fault and attaches a stack trace via github.com/pkg/errors.
func New(c Component, k Kind, operation, detail string) error {
	return errors.WithStack(&Fault{Component: c, Kind: k, Operation: operation, Detail: detail})
}

// Wrap attaches component/kind context to an existing error, preserving its
// stack trace if it already carries one.
func Wrap(err error, c Component, k Kind, operation string) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&Fault{Component: c, Kind: k, Operation: operation, cause: err})
}
