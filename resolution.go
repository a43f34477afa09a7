package loom

import (
	"fmt"
	"reflect"
	"runtime/debug"

	"github.com/loomkit/loom/internal/reflection"
)

// resolutionContext tracks the types on the current resolution path so that
// cycles fail fast with the full path instead of recursing forever. One
// context exists per top-level Resolve call; it is never shared.
type resolutionContext struct {
	path   []reflect.Type
	onPath map[reflect.Type]bool
}

func newResolutionContext() *resolutionContext {
	return &resolutionContext{onPath: make(map[reflect.Type]bool)}
}

func (ctx *resolutionContext) enter(t reflect.Type) error {
	if ctx.onPath[t] {
		return &CircularDependencyError{Path: append(cycleSlice(ctx.path, t), t)}
	}
	ctx.path = append(ctx.path, t)
	ctx.onPath[t] = true
	return nil
}

func (ctx *resolutionContext) leave(t reflect.Type) {
	ctx.path = ctx.path[:len(ctx.path)-1]
	delete(ctx.onPath, t)
}

// cycleSlice trims the path to the segment beginning at the repeated type.
func cycleSlice(path []reflect.Type, repeated reflect.Type) []reflect.Type {
	start := 0
	for i, t := range path {
		if t == repeated {
			start = i
			break
		}
	}
	out := make([]reflect.Type, len(path)-start)
	copy(out, path[start:])
	return out
}

// resolve produces an instance for t, recursing into its dependencies.
func (c *Container) resolve(ctx *resolutionContext, t reflect.Type) (any, error) {
	b := c.lookup(t)
	if b == nil {
		return nil, &NotRegisteredError{Requested: t, Registered: c.RegisteredTypes()}
	}

	if b.lifetime == Singleton {
		c.mu.RLock()
		if b.built {
			instance := b.instance
			c.mu.RUnlock()
			return instance, nil
		}
		c.mu.RUnlock()
	}

	if err := ctx.enter(t); err != nil {
		return nil, err
	}
	defer ctx.leave(t)

	args, err := c.buildArguments(ctx, b)
	if err != nil {
		return nil, err
	}

	instance, err := c.construct(b.ctor, args)
	if err != nil {
		return nil, err
	}

	if b.lifetime == Singleton {
		c.mu.Lock()
		if b.built {
			// Another goroutine won the race; keep the first instance.
			instance = b.instance
		} else {
			b.instance = instance
			b.built = true
			c.created = append(c.created, instance)
		}
		c.mu.Unlock()
	}

	return instance, nil
}

// buildArguments prepares the constructor's argument list. Primitive
// parameters receive their zero value, optional parameters fall back to zero
// when resolution fails, and service parameters resolve recursively with
// "needed by" context added per frame.
func (c *Container) buildArguments(ctx *resolutionContext, b *binding) ([]reflect.Value, error) {
	info := b.ctor
	if !info.IsFunc {
		return nil, nil
	}

	if info.IsParamObject {
		obj, err := c.buildParamObject(ctx, b)
		if err != nil {
			return nil, err
		}
		return []reflect.Value{obj}, nil
	}

	args := make([]reflect.Value, len(info.Parameters))
	for i, p := range info.Parameters {
		switch p.Kind {
		case reflection.KindPrimitive:
			args[i] = reflect.Zero(p.Type)
		default:
			instance, err := c.resolve(ctx, p.Type)
			if err != nil {
				return nil, &UnsatisfiedDependencyError{
					Dependency: p.Type,
					Parameter:  parameterLabel(p),
					RequiredBy: b.serviceType,
					Cause:      err,
				}
			}
			args[i] = reflect.ValueOf(instance)
		}
	}

	return args, nil
}

// buildParamObject fills an In struct: primitive fields stay zero, optional
// fields resolve best-effort, service fields are mandatory.
func (c *Container) buildParamObject(ctx *resolutionContext, b *binding) (reflect.Value, error) {
	structType := b.ctor.Type.In(0)
	obj := reflect.New(structType).Elem()

	for _, p := range b.ctor.Parameters {
		switch p.Kind {
		case reflection.KindPrimitive:
			// Left at the zero value; primitives are caller-supplied.
		case reflection.KindOptional:
			instance, err := c.resolve(ctx, p.Type)
			if err != nil {
				continue // absent: zero value
			}
			obj.Field(p.Index).Set(reflect.ValueOf(instance))
		default:
			instance, err := c.resolve(ctx, p.Type)
			if err != nil {
				return reflect.Value{}, &UnsatisfiedDependencyError{
					Dependency: p.Type,
					Parameter:  parameterLabel(p),
					RequiredBy: b.serviceType,
					Cause:      err,
				}
			}
			obj.Field(p.Index).Set(reflect.ValueOf(instance))
		}
	}

	return obj, nil
}

// construct invokes the constructor, converting error returns and panics
// into ConstructionError.
func (c *Container) construct(info *reflection.ConstructorInfo, args []reflect.Value) (instance any, err error) {
	if !info.IsFunc {
		return info.Value.Interface(), nil
	}

	defer func() {
		if r := recover(); r != nil {
			instance = nil
			err = &ConstructionError{
				Implementation: info.ServiceType,
				Panic:          r,
				Stack:          debug.Stack(),
			}
		}
	}()

	results := info.Value.Call(args)

	if info.HasErrorReturn && !results[1].IsNil() {
		return nil, &ConstructionError{
			Implementation: info.ServiceType,
			Cause:          results[1].Interface().(error),
		}
	}

	return results[0].Interface(), nil
}

func parameterLabel(p reflection.Parameter) string {
	if p.Name != "" {
		return "field " + p.Name
	}
	return fmt.Sprintf("parameter %d", p.Index)
}
