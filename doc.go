// Package loom provides a reflection-based dependency injection container
// with eager validation, cycle detection, and diagnostic tooling, plus a
// typed in-process event bus (subpackage events) for decoupled service
// communication.
//
// # Overview
//
// The container maps service types to constructor functions and resolves
// fully wired instances by reflectively walking constructor parameters:
//   - Two lifetimes: Singleton (memoized) and Transient (fresh per resolve)
//   - Automatic recursive dependency resolution
//   - Path-sensitive cycle detection with full-path error reporting
//   - Optional registration-time validation (capabilities, dependency
//     chains, cycles) with atomic rejection
//   - Static diagnostics: failure diagnosis, dependency graph dumps,
//     health checks, resolution-path traces
//   - Thread-safe operations
//
// # Basic Usage
//
// Create a container, register constructors, resolve root services:
//
//	c := loom.New()
//	c.RegisterSingleton(NewRepository)
//	c.RegisterSingleton(NewService)
//
//	svc, err := loom.Resolve[*Service](c)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close(context.Background())
//
// # Dependency Injection
//
// Services declare dependencies through constructor parameters:
//
//	func NewService(repo *Repository) *Service {
//	    return &Service{repo: repo}
//	}
//
// The container resolves each non-primitive parameter recursively. Primitive
// parameters (strings, numbers, booleans, slices, maps, time values, and any
// standard-library type) are never auto-resolved; they receive their zero
// value.
//
// # Interface Bindings
//
// Bind a constructor's product under an interface with the As option:
//
//	c.RegisterSingleton(NewPostgresRepository, loom.As(new(Repository)))
//
// # Validated Registration
//
// RegisterWithValidation rejects a binding before committing it when the
// implementation does not satisfy its interface, when a mandatory dependency
// is unregistered, or when the binding would introduce a cycle:
//
//	err := c.RegisterWithValidation(NewService, loom.As(new(Servicer)))
//
// # Diagnostics
//
// When resolution fails, the container explains why:
//
//	fmt.Println(c.DiagnoseResolutionFailure(loom.TypeOf[*Service]()))
//	ok, issues := c.ValidateHealth()
//	for _, line := range c.ResolutionPath(loom.TypeOf[*Service]()) {
//	    fmt.Println(line)
//	}
//
// # Error Handling
//
// Failures are typed and machine-inspectable:
//   - NotRegisteredError: the requested type has no binding
//   - UnsatisfiedDependencyError: a constructor dependency cannot be met
//   - CircularDependencyError: a dependency cycle, with the full path
//   - CapabilityMismatchError: an implementation fails interface validation
//   - ConstructionError: a constructor returned an error or panicked
//
// Applications should treat container errors at start-up as fatal and print
// the diagnostic report; event bus handler failures (see package events) are
// non-fatal and only logged.
package loom
