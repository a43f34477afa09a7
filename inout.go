package loom

import "github.com/loomkit/loom/internal/reflection"

// In marks a struct as a parameter object. A constructor taking a single
// struct that embeds In has each exported field treated as a separate
// dependency:
//
//	type ServiceParams struct {
//	    loom.In
//
//	    Repo   Repository
//	    Cache  Cache  `optional:"true"`
//	    Prefix string // primitive: left at its zero value
//	}
//
//	func NewService(p ServiceParams) *Service { ... }
//
// Fields tagged `optional:"true"` resolve when their type is registered and
// stay at the zero value otherwise.
type In = reflection.In
