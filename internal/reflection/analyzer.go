// Package reflection analyzes constructor functions: it extracts their
// parameters, classifies each one (primitive, optional, service), and
// determines the service type a constructor produces.
package reflection

import (
	"fmt"
	"reflect"
	"sync"
)

// In marks a struct as a parameter object. A constructor taking a single
// struct with an embedded In has its exported fields treated as individual
// dependencies; fields may carry an `optional:"true"` tag.
type In struct{}

var (
	inType  = reflect.TypeOf(In{})
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// ParameterKind classifies how the resolver treats a constructor parameter.
type ParameterKind int

const (
	// KindService is a mandatory dependency that must be registered.
	KindService ParameterKind = iota

	// KindPrimitive is a value type the container never resolves; it
	// receives its zero value.
	KindPrimitive

	// KindOptional is a dependency resolved when registered and left at its
	// zero value otherwise.
	KindOptional
)

func (k ParameterKind) String() string {
	switch k {
	case KindService:
		return "service"
	case KindPrimitive:
		return "primitive"
	case KindOptional:
		return "optional"
	default:
		return fmt.Sprintf("ParameterKind(%d)", int(k))
	}
}

// Parameter describes one constructor parameter or one field of an In struct.
type Parameter struct {
	Type  reflect.Type
	Kind  ParameterKind
	Index int    // parameter position, or field index for In structs
	Name  string // field name for In structs, empty for plain parameters
}

// ConstructorInfo is the analyzed shape of a constructor function or of a
// pre-built instance.
type ConstructorInfo struct {
	Type           reflect.Type  // function type, or instance type
	Value          reflect.Value // function value, or instance value
	Parameters     []Parameter
	ServiceType    reflect.Type // type of the first non-error return
	IsFunc         bool
	IsParamObject  bool // constructor takes a single In struct
	HasErrorReturn bool // last return value is error
}

// Dependencies returns the parameters the resolver must supply from the
// registry, i.e. everything that is not primitive.
func (info *ConstructorInfo) Dependencies() []Parameter {
	deps := make([]Parameter, 0, len(info.Parameters))
	for _, p := range info.Parameters {
		if p.Kind != KindPrimitive {
			deps = append(deps, p)
		}
	}
	return deps
}

// Analyzer performs reflection-based constructor analysis and caches results
// per function pointer.
type Analyzer struct {
	mu    sync.RWMutex
	cache map[uintptr]*ConstructorInfo
}

// New creates a new Analyzer.
func New() *Analyzer {
	return &Analyzer{cache: make(map[uintptr]*ConstructorInfo)}
}

// Analyze inspects a constructor and extracts its dependency information.
// Non-function values are treated as pre-built instances with no parameters.
func (a *Analyzer) Analyze(constructor any) (*ConstructorInfo, error) {
	if constructor == nil {
		return nil, fmt.Errorf("constructor cannot be nil")
	}

	val := reflect.ValueOf(constructor)
	if !val.IsValid() || (val.Kind() == reflect.Func && val.IsNil()) {
		return nil, fmt.Errorf("constructor cannot be nil")
	}

	typ := reflect.TypeOf(constructor)

	if typ.Kind() != reflect.Func {
		return &ConstructorInfo{
			Type:        typ,
			Value:       val,
			ServiceType: typ,
		}, nil
	}

	cacheKey := val.Pointer()
	a.mu.RLock()
	if cached, ok := a.cache[cacheKey]; ok {
		a.mu.RUnlock()
		return cached, nil
	}
	a.mu.RUnlock()

	info := &ConstructorInfo{
		Type:   typ,
		Value:  val,
		IsFunc: true,
	}

	if err := a.analyzeParameters(info); err != nil {
		return nil, err
	}
	if err := a.analyzeReturns(info); err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.cache[cacheKey] = info
	a.mu.Unlock()

	return info, nil
}

// Clear drops all cached analyses.
func (a *Analyzer) Clear() {
	a.mu.Lock()
	a.cache = make(map[uintptr]*ConstructorInfo)
	a.mu.Unlock()
}

func (a *Analyzer) analyzeParameters(info *ConstructorInfo) error {
	fnType := info.Type

	if fnType.IsVariadic() {
		return fmt.Errorf("variadic constructors are not supported")
	}

	// A single struct parameter embedding In is a parameter object.
	if fnType.NumIn() == 1 && hasEmbeddedIn(fnType.In(0)) {
		info.IsParamObject = true
		return a.analyzeParamObject(info, fnType.In(0))
	}

	info.Parameters = make([]Parameter, fnType.NumIn())
	for i := 0; i < fnType.NumIn(); i++ {
		paramType := fnType.In(i)
		info.Parameters[i] = Parameter{
			Type:  paramType,
			Kind:  classify(paramType, false),
			Index: i,
		}
	}

	return nil
}

func (a *Analyzer) analyzeParamObject(info *ConstructorInfo, structType reflect.Type) error {
	if structType.Kind() != reflect.Struct {
		return fmt.Errorf("parameter object must be a struct, got %v", structType.Kind())
	}

	params := make([]Parameter, 0, structType.NumField())
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)

		if !field.IsExported() {
			continue
		}
		if field.Anonymous && field.Type == inType {
			continue
		}

		optional := field.Tag.Get("optional") == "true"
		params = append(params, Parameter{
			Type:  field.Type,
			Kind:  classify(field.Type, optional),
			Index: i,
			Name:  field.Name,
		})
	}

	info.Parameters = params
	return nil
}

func (a *Analyzer) analyzeReturns(info *ConstructorInfo) error {
	fnType := info.Type

	switch fnType.NumOut() {
	case 1:
		if fnType.Out(0) == errType {
			return fmt.Errorf("constructor must return a service, not only an error")
		}
		info.ServiceType = fnType.Out(0)
	case 2:
		if fnType.Out(1) != errType {
			return fmt.Errorf("constructor's second return value must be error, got %v", fnType.Out(1))
		}
		info.ServiceType = fnType.Out(0)
		info.HasErrorReturn = true
	case 0:
		return fmt.Errorf("constructor must return a value")
	default:
		return fmt.Errorf("constructor must return (T) or (T, error), got %d return values", fnType.NumOut())
	}

	return nil
}

// classify maps a parameter type to its resolution kind. Optional wins over
// primitivity only when the type could be a service; a primitive tagged
// optional stays primitive.
func classify(t reflect.Type, optional bool) ParameterKind {
	if IsPrimitive(t) {
		return KindPrimitive
	}
	if optional {
		return KindOptional
	}
	return KindService
}

// hasEmbeddedIn reports whether a struct type embeds reflection.In.
func hasEmbeddedIn(t reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous && field.Type == inType {
			return true
		}
	}
	return false
}
