package loom

import "context"

// Disposable is implemented by services that hold resources needing release.
// Container.Close calls Close on created singletons in reverse creation
// order, so dependents are disposed before their dependencies.
type Disposable interface {
	Close() error
}

// DisposableWithContext is the context-aware variant; it takes precedence
// over Disposable when both are implemented.
type DisposableWithContext interface {
	Close(ctx context.Context) error
}
