package loom

import (
	"reflect"
	"sort"

	"github.com/loomkit/loom/internal/reflection"
)

// RegisterWithValidation binds a singleton constructor only after three
// checks pass, in order:
//
//  1. capability: the constructor's product must satisfy the As interface
//     (when one is given); failure names every missing method,
//  2. dependency chain: every mandatory non-primitive parameter, followed
//     transitively through already-registered bindings, must be registered;
//     failure names the first unsatisfied dependency,
//  3. cycles: the binding must not introduce a dependency cycle; failure
//     carries the full path.
//
// On any failure nothing is committed: the registry and graph are exactly as
// they were before the call.
func (c *Container) RegisterWithValidation(constructor any, opts ...RegisterOption) error {
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

	candidate := &binding{serviceType: key, lifetime: Singleton, ctor: info}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrContainerClosed
	}

	if err := c.validateChainLocked(candidate); err != nil {
		return err
	}
	if err := c.validateAcyclicLocked(candidate); err != nil {
		return err
	}

	c.bindings[key] = candidate
	c.graph.Add(key, candidate.dependencyTypes())
	return nil
}

// validateChainLocked walks the candidate's mandatory dependencies and,
// transitively, those of the registered bindings they lead to. The first
// type that is neither registered, optional, nor the candidate itself fails
// the check. Caller holds the container lock.
func (c *Container) validateChainLocked(candidate *binding) error {
	visited := make(map[reflect.Type]bool)

	var walk func(owner *binding) error
	walk = func(owner *binding) error {
		if visited[owner.serviceType] {
			return nil
		}
		visited[owner.serviceType] = true

		for _, p := range owner.ctor.Parameters {
			if p.Kind != reflection.KindService {
				continue
			}
			if p.Type == candidate.serviceType {
				continue // self-reference surfaces as a cycle, not a gap
			}

			dep, ok := c.bindings[p.Type]
			if !ok {
				return &UnsatisfiedDependencyError{
					Dependency: p.Type,
					Parameter:  parameterLabel(p),
					RequiredBy: owner.serviceType,
					Registered: c.registeredTypesLocked(),
				}
			}
			if err := walk(dep); err != nil {
				return err
			}
		}
		return nil
	}

	return walk(candidate)
}

// validateAcyclicLocked checks that committing the candidate keeps the graph
// acyclic, restoring the previous graph state on failure. Caller holds the
// container lock.
func (c *Container) validateAcyclicLocked(candidate *binding) error {
	key := candidate.serviceType

	prev, hadPrev := c.bindings[key]

	c.graph.Add(key, candidate.dependencyTypes())
	err := c.graph.DetectCycle(key)
	if err == nil {
		// Leave the tentative edges in place; register will overwrite them
		// with identical ones.
		return nil
	}

	if hadPrev {
		c.graph.Add(key, prev.dependencyTypes())
	} else {
		// The key may have existed as a dependency placeholder; keep the
		// edges pointing at it.
		c.graph.Demote(key)
	}
	return err
}

func (c *Container) registeredTypesLocked() []reflect.Type {
	types := make([]reflect.Type, 0, len(c.bindings))
	for t := range c.bindings {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].String() < types[j].String() })
	return types
}
