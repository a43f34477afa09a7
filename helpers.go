package loom

import (
	"fmt"
	"reflect"
)

// Resolve is a generic helper that resolves a service as type T.
func Resolve[T any](c *Container) (T, error) {
	var zero T

	serviceType := reflect.TypeOf((*T)(nil)).Elem()

	instance, err := c.Resolve(serviceType)
	if err != nil {
		return zero, err
	}

	result, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("type assertion failed: expected %T, got %T", zero, instance)
	}

	return result, nil
}

// MustResolve resolves a service and panics on error. Intended for start-up
// wiring where a resolution failure is fatal anyway.
func MustResolve[T any](c *Container) T {
	result, err := Resolve[T](c)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %T: %v", *new(T), err))
	}
	return result
}

// IsRegistered reports whether type T has a binding.
func IsRegistered[T any](c *Container) bool {
	return c.IsRegistered(reflect.TypeOf((*T)(nil)).Elem())
}

// TypeOf returns the reflect.Type for T, for use with the non-generic
// container methods.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
