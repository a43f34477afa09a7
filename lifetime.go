package loom

import "fmt"

// Lifetime controls how the container caches instances produced by a binding.
type Lifetime int

const (
	// Singleton bindings produce one instance, created on first resolution
	// and shared afterwards.
	Singleton Lifetime = iota

	// Transient bindings invoke their constructor on every resolution.
	Transient
)

func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Transient:
		return "transient"
	default:
		return fmt.Sprintf("Lifetime(%d)", int(l))
	}
}

// IsValid reports whether l is a known lifetime value.
func (l Lifetime) IsValid() bool {
	return l == Singleton || l == Transient
}
