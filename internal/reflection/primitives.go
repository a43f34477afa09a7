package reflection

import (
	"reflect"
	"strings"
)

// IsPrimitive reports whether a type is a plain value type that the container
// must never attempt to auto-resolve: basic kinds, byte sequences, generic
// containers, date-like values, and anything defined in the standard library.
// Pointers classify by their element type.
func IsPrimitive(t reflect.Type) bool {
	if t == nil {
		return false
	}

	if t.Kind() == reflect.Pointer {
		return IsPrimitive(t.Elem())
	}

	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128,
		reflect.String,
		reflect.Slice, reflect.Array, reflect.Map, reflect.Chan, reflect.Func:
		return true
	}

	// Named types from the standard library (time.Time, context.Context, ...)
	// are values to be supplied by the caller, not services.
	return isStdlibType(t)
}

// isStdlibType reports whether a type's defining package belongs to the Go
// standard library. Standard library packages have no dot in the first path
// element, unlike module paths such as github.com/....
func isStdlibType(t reflect.Type) bool {
	pkg := t.PkgPath()
	if pkg == "" {
		return false
	}

	first := pkg
	if i := strings.IndexByte(pkg, '/'); i >= 0 {
		first = pkg[:i]
	}

	return !strings.Contains(first, ".")
}
