package loom

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"go.uber.org/multierr"

	"github.com/loomkit/loom/internal/graph"
	"github.com/loomkit/loom/internal/reflection"
)

// Container is the dependency injection container: a registry of
// type-to-constructor bindings that can resolve fully wired instances.
//
// Registration is expected during application start-up; Resolve is safe to
// call concurrently afterwards. Constructors never run while the container
// lock is held, so a constructor may itself resolve further services.
type Container struct {
	mu       sync.RWMutex
	bindings map[reflect.Type]*binding
	created  []any // singleton instances in creation order
	closed   bool

	graph    *graph.Graph
	analyzer *reflection.Analyzer
}

// New creates an empty container.
func New() *Container {
	return &Container{
		bindings: make(map[reflect.Type]*binding),
		graph:    graph.New(),
		analyzer: reflection.New(),
	}
}

// RegisterSingleton binds a constructor with singleton lifetime: the first
// resolution creates the instance, later resolutions share it.
//
// Registration is pure bookkeeping; dependency and cycle checks happen at
// resolution time, or eagerly via RegisterWithValidation. Re-registering a
// type overwrites the previous binding.
func (c *Container) RegisterSingleton(constructor any, opts ...RegisterOption) error {
	return c.register(Singleton, constructor, opts)
}

// RegisterTransient binds a constructor with transient lifetime: every
// resolution invokes the constructor and yields a fresh instance. The
// constructor doubles as the factory.
func (c *Container) RegisterTransient(constructor any, opts ...RegisterOption) error {
	return c.register(Transient, constructor, opts)
}

// RegisterInstance binds an already-constructed value as a singleton.
func (c *Container) RegisterInstance(instance any, opts ...RegisterOption) error {
	if instance == nil {
		return ErrConstructorNil
	}
	if reflect.TypeOf(instance).Kind() == reflect.Func {
		// Functions are constructors; binding one as an instance is almost
		// certainly a mistake.
		return c.register(Singleton, instance, opts)
	}

	cfg, err := applyOptions(opts)
	if err != nil {
		return err
	}

	info, err := c.analyzer.Analyze(instance)
	if err != nil {
		return err
	}

	key := info.ServiceType
	if cfg.as != nil {
		if missing := missingMethods(cfg.as, info.ServiceType); len(missing) > 0 {
			return &CapabilityMismatchError{
				Interface:      cfg.as,
				Implementation: info.ServiceType,
				Missing:        missing,
				Registered:     c.RegisteredTypes(),
			}
		}
		key = cfg.as
	}

	b := &binding{
		serviceType: key,
		lifetime:    Singleton,
		ctor:        info,
		instance:    instance,
		built:       true,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrContainerClosed
	}
	c.bindings[key] = b
	c.graph.Add(key, nil)
	return nil
}

// register analyzes the constructor and commits the binding.
func (c *Container) register(lifetime Lifetime, constructor any, opts []RegisterOption) error {
	if constructor == nil {
		return ErrConstructorNil
	}

	cfg, err := applyOptions(opts)
	if err != nil {
		return err
	}

	info, err := c.analyzer.Analyze(constructor)
	if err != nil {
		return err
	}
	if !info.IsFunc {
		return c.RegisterInstance(constructor, opts...)
	}

	key := info.ServiceType
	if cfg.as != nil {
		// The compiler cannot see this mismatch through the any-typed
		// registration API, so it is checked here even on the fast path.
		if missing := missingMethods(cfg.as, info.ServiceType); len(missing) > 0 {
			return &CapabilityMismatchError{
				Interface:      cfg.as,
				Implementation: info.ServiceType,
				Missing:        missing,
				Registered:     c.RegisteredTypes(),
			}
		}
		key = cfg.as
	}

	b := &binding{
		serviceType: key,
		lifetime:    lifetime,
		ctor:        info,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrContainerClosed
	}
	c.bindings[key] = b
	c.graph.Add(key, b.dependencyTypes())
	return nil
}

// Resolve returns an instance for the requested service type, creating and
// memoizing singletons on first use. See the package documentation for the
// parameter classification rules.
func (c *Container) Resolve(serviceType reflect.Type) (any, error) {
	if serviceType == nil {
		return nil, ErrTypeNil
	}

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, ErrContainerClosed
	}

	ctx := newResolutionContext()
	return c.resolve(ctx, serviceType)
}

// IsRegistered reports whether serviceType has a binding.
func (c *Container) IsRegistered(serviceType reflect.Type) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.bindings[serviceType]
	return ok
}

// RegisteredTypes returns every bound service type, sorted by name.
func (c *Container) RegisteredTypes() []reflect.Type {
	c.mu.RLock()
	defer c.mu.RUnlock()

	types := make([]reflect.Type, 0, len(c.bindings))
	for t := range c.bindings {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].String() < types[j].String() })
	return types
}

// Close disposes every created singleton in reverse creation order and marks
// the container unusable. Instances implementing DisposableWithContext or
// Disposable get their Close invoked; errors are aggregated.
func (c *Container) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrContainerClosed
	}
	c.closed = true
	created := c.created
	c.created = nil
	c.mu.Unlock()

	var err error
	for i := len(created) - 1; i >= 0; i-- {
		switch d := created[i].(type) {
		case DisposableWithContext:
			err = multierr.Append(err, d.Close(ctx))
		case Disposable:
			err = multierr.Append(err, d.Close())
		}
	}
	return err
}

// lookup returns the binding for t, or nil.
func (c *Container) lookup(t reflect.Type) *binding {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bindings[t]
}

// missingMethods returns the interface methods the implementation lacks or
// implements with an incompatible signature. Empty when impl satisfies iface.
func missingMethods(iface, impl reflect.Type) []string {
	if impl.Implements(iface) {
		return nil
	}

	var missing []string
	for i := 0; i < iface.NumMethod(); i++ {
		m := iface.Method(i)
		got, ok := impl.MethodByName(m.Name)
		if !ok {
			missing = append(missing, m.Name+" (missing)")
			continue
		}
		// Interface method types carry no receiver; concrete ones do.
		skipReceiver := impl.Kind() != reflect.Interface
		if !methodSignatureMatches(m.Type, got.Type, skipReceiver) {
			missing = append(missing, m.Name+" (incompatible signature)")
		}
	}

	if len(missing) == 0 {
		// Implements was false but every named method matched; the mismatch
		// is receiver-related (value type with pointer-receiver methods).
		missing = append(missing, "method set requires a pointer receiver (*"+shortName(impl)+")")
	}

	return missing
}

// methodSignatureMatches compares an interface method signature against an
// implementation's, skipping the receiver parameter of concrete methods.
func methodSignatureMatches(ifaceMethod, implMethod reflect.Type, skipReceiver bool) bool {
	offset := 0
	if skipReceiver {
		offset = 1
	}
	if ifaceMethod.NumIn() != implMethod.NumIn()-offset || ifaceMethod.NumOut() != implMethod.NumOut() {
		return false
	}
	for i := 0; i < ifaceMethod.NumIn(); i++ {
		if ifaceMethod.In(i) != implMethod.In(i+offset) {
			return false
		}
	}
	for i := 0; i < ifaceMethod.NumOut(); i++ {
		if ifaceMethod.Out(i) != implMethod.Out(i) {
			return false
		}
	}
	return true
}
