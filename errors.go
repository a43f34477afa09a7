package loom

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/loomkit/loom/internal/graph"
)

// Sentinel errors. These are wrapped in typed errors when more context is
// available; match them with errors.Is.
var (
	ErrContainerClosed = errors.New("container has been closed")
	ErrConstructorNil  = errors.New("constructor cannot be nil")
	ErrTypeNil         = errors.New("service type cannot be nil")
	ErrNotRegistered   = errors.New("not registered")
)

var (
	_ error = (*NotRegisteredError)(nil)
	_ error = (*CapabilityMismatchError)(nil)
	_ error = (*UnsatisfiedDependencyError)(nil)
	_ error = (*ConstructionError)(nil)
	_ error = (*CircularDependencyError)(nil)
)

// CircularDependencyError reports a dependency cycle with the full ordered
// path (A -> B -> A). Produced by registration validation, health checks,
// and the per-call resolution stack.
type CircularDependencyError = graph.CircularDependencyError

// NotRegisteredError indicates that a requested service type has no binding.
// Registered carries every currently bound type as a remediation hint.
type NotRegisteredError struct {
	Requested  reflect.Type
	Registered []reflect.Type
}

func (e *NotRegisteredError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is not registered", formatType(e.Requested))

	if similar := findSimilarTypes(e.Requested, e.Registered); len(similar) > 0 {
		b.WriteString("\n\nDid you mean one of these?\n")
		for _, t := range similar {
			fmt.Fprintf(&b, "  - %s\n", formatType(t))
		}
	}

	if len(e.Registered) > 0 {
		b.WriteString("\nRegistered types:\n")
		for _, t := range e.Registered {
			fmt.Fprintf(&b, "  - %s\n", formatType(t))
		}
	} else {
		b.WriteString("\nThe container has no registered types.")
	}

	return b.String()
}

func (e *NotRegisteredError) Unwrap() error { return ErrNotRegistered }

// CapabilityMismatchError indicates that an implementation does not satisfy
// the interface it was registered under. Missing names each absent or
// signature-incompatible method.
type CapabilityMismatchError struct {
	Interface      reflect.Type
	Implementation reflect.Type
	Missing        []string
	Registered     []reflect.Type
}

func (e *CapabilityMismatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s does not implement %s\n\nMissing or incompatible methods:\n",
		formatType(e.Implementation), formatType(e.Interface))
	for _, m := range e.Missing {
		fmt.Fprintf(&b, "  - %s\n", m)
	}

	if len(e.Registered) > 0 {
		b.WriteString("\nRegistered types:\n")
		for _, t := range e.Registered {
			fmt.Fprintf(&b, "  - %s\n", formatType(t))
		}
	}

	return b.String()
}

// UnsatisfiedDependencyError indicates that a constructor dependency could
// not be satisfied: either it is simply unregistered (validation time) or a
// deeper resolution failed (Cause non-nil). Nested causes produce the full
// "needed by" chain for deep graphs.
type UnsatisfiedDependencyError struct {
	Dependency reflect.Type
	Parameter  string // parameter name or position within the constructor
	RequiredBy reflect.Type
	Cause      error
	Registered []reflect.Type
}

func (e *UnsatisfiedDependencyError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cannot resolve %s", formatType(e.Dependency))
	if e.Parameter != "" {
		fmt.Fprintf(&b, " (%s)", e.Parameter)
	}
	fmt.Fprintf(&b, " needed by %s", formatType(e.RequiredBy))

	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	} else {
		b.WriteString(": it is not registered")
		if len(e.Registered) > 0 {
			b.WriteString("\n\nRegistered types:\n")
			for _, t := range e.Registered {
				fmt.Fprintf(&b, "  - %s\n", formatType(t))
			}
		}
	}

	return b.String()
}

func (e *UnsatisfiedDependencyError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return ErrNotRegistered
}

// ConstructionError indicates that a constructor itself failed, either by
// returning an error or by panicking. The original cause is preserved.
type ConstructionError struct {
	Implementation reflect.Type
	Cause          error
	Panic          any
	Stack          []byte
}

func (e *ConstructionError) Error() string {
	var b strings.Builder

	if e.Panic != nil {
		fmt.Fprintf(&b, "constructor for %s panicked: %v\n", formatType(e.Implementation), e.Panic)
		b.WriteString("\nConstructors should be pure dependency wiring.\n")
		b.WriteString("Move failure-prone initialization into the constructor's error return\n")
		b.WriteString("or a separate start-up step.\n")
		if len(e.Stack) > 0 {
			b.WriteString("\nStack trace:\n")
			b.Write(e.Stack)
		}
		return b.String()
	}

	fmt.Fprintf(&b, "constructor for %s failed: %v", formatType(e.Implementation), e.Cause)
	return b.String()
}

func (e *ConstructionError) Unwrap() error { return e.Cause }

// formatType renders a reflect.Type compactly for error messages, preferring
// the bare type name over the package-qualified form.
func formatType(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind() {
	case reflect.Pointer:
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "*" + elem.Name()
		}
		return t.String()
	case reflect.Slice:
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "[]" + elem.Name()
		}
		return t.String()
	default:
		if t.Name() != "" {
			return t.Name()
		}
		return t.String()
	}
}

// findSimilarTypes picks registered types whose names resemble the target,
// for "did you mean" suggestions. Capped at five.
func findSimilarTypes(target reflect.Type, available []reflect.Type) []reflect.Type {
	if target == nil || len(available) == 0 {
		return nil
	}

	targetName := strings.ToLower(shortName(target))

	var similar []reflect.Type
	for _, t := range available {
		if t == nil || t == target {
			continue
		}

		name := strings.ToLower(shortName(t))
		if name == targetName ||
			strings.Contains(name, targetName) ||
			strings.Contains(targetName, name) {
			similar = append(similar, t)
		}

		if len(similar) >= 5 {
			break
		}
	}

	return similar
}

func shortName(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
