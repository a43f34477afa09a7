package graph

import (
	"reflect"
	"strings"
)

// CircularDependencyError reports a dependency cycle. Path holds the ordered
// types on the cycle, repeating the entry node at the end (A, B, C, A).
type CircularDependencyError struct {
	Path []reflect.Type
}

func (e *CircularDependencyError) Error() string {
	var b strings.Builder
	b.WriteString("circular dependency detected: ")
	b.WriteString(e.PathString())
	b.WriteString("\n\nTo resolve this:\n")
	b.WriteString("  - break the cycle with an interface owned by one side\n")
	b.WriteString("  - resolve one participant lazily through a factory\n")
	b.WriteString("  - restructure so the shared logic lives in a third service\n")
	return b.String()
}

// PathString renders the cycle as "A -> B -> A".
func (e *CircularDependencyError) PathString() string {
	parts := make([]string, len(e.Path))
	for i, t := range e.Path {
		parts[i] = typeName(t)
	}
	return strings.Join(parts, " -> ")
}

// typeName renders a type compactly, preferring the bare name over the
// package-qualified form.
func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if t.Kind() == reflect.Pointer {
		if name := t.Elem().Name(); name != "" {
			return "*" + name
		}
		return t.String()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}
