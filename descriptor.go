package loom

import (
	"reflect"

	"github.com/loomkit/loom/internal/reflection"
)

// binding is one committed registration: a service type bound to an analyzed
// constructor with a lifetime. Singleton bindings additionally memoize the
// materialized instance.
type binding struct {
	serviceType reflect.Type
	lifetime    Lifetime
	ctor        *reflection.ConstructorInfo

	// Singleton memoization, guarded by the container mutex.
	instance any
	built    bool
}

// dependencies returns the binding's non-primitive constructor parameters.
func (b *binding) dependencies() []reflection.Parameter {
	return b.ctor.Dependencies()
}

// dependencyTypes returns the types of all non-primitive parameters, used to
// wire the static graph.
func (b *binding) dependencyTypes() []reflect.Type {
	deps := b.dependencies()
	types := make([]reflect.Type, len(deps))
	for i, d := range deps {
		types[i] = d.Type
	}
	return types
}
