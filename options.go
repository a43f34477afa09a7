package loom

import (
	"fmt"
	"reflect"
)

// RegisterOption customizes a single registration.
type RegisterOption func(*registerConfig) error

type registerConfig struct {
	as reflect.Type // interface the binding is keyed under
}

// As binds the service under an interface type instead of the constructor's
// concrete product type. Pass a pointer to the interface:
//
//	c.RegisterSingleton(NewPostgresRepository, loom.As(new(Repository)))
func As(iface any) RegisterOption {
	return func(cfg *registerConfig) error {
		if iface == nil {
			return fmt.Errorf("As: interface pointer cannot be nil")
		}

		t := reflect.TypeOf(iface)
		if t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Interface {
			return fmt.Errorf("As: expected a pointer to an interface, got %s", t)
		}

		cfg.as = t.Elem()
		return nil
	}
}

func applyOptions(opts []RegisterOption) (*registerConfig, error) {
	cfg := &registerConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
