package loom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Types for the validation tests.
type Storage struct{}

type Indexer struct {
	Store *Storage
}

type Searcher struct {
	Index *Indexer
}

func NewStorage() *Storage             { return &Storage{} }
func NewIndexer(s *Storage) *Indexer   { return &Indexer{Store: s} }
func NewSearcher(i *Indexer) *Searcher { return &Searcher{Index: i} }

type Reader interface {
	Read(p []byte) (int, error)
}

func TestRegisterWithValidation_Success(t *testing.T) {
	c := New()
	require.NoError(t, c.RegisterWithValidation(NewStorage))
	require.NoError(t, c.RegisterWithValidation(NewIndexer))
	require.NoError(t, c.RegisterWithValidation(NewSearcher))

	s, err := Resolve[*Searcher](c)
	require.NoError(t, err)
	assert.NotNil(t, s.Index)
	assert.NotNil(t, s.Index.Store)
}

func TestRegisterWithValidation_MissingDependency(t *testing.T) {
	c := New()

	// Indexer needs Storage, which is not registered yet.
	err := c.RegisterWithValidation(NewIndexer)
	require.Error(t, err)

	var ude *UnsatisfiedDependencyError
	require.ErrorAs(t, err, &ude)
	assert.Contains(t, err.Error(), "Storage")
	assert.Contains(t, err.Error(), "needed by")

	// Nothing was committed.
	assert.False(t, IsRegistered[*Indexer](c))
	assert.Empty(t, c.RegisteredTypes())
}

func TestRegisterWithValidation_TransitiveGap(t *testing.T) {
	c := New()

	// Indexer is registered without validation, so the missing Storage is
	// latent until Searcher is validated against the chain.
	require.NoError(t, c.RegisterSingleton(NewIndexer))

	err := c.RegisterWithValidation(NewSearcher)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Storage")
	assert.False(t, IsRegistered[*Searcher](c))
}

func TestRegisterWithValidation_Cycle(t *testing.T) {
	type LoopA struct{}
	type LoopB struct{}

	c := New()
	require.NoError(t, c.RegisterSingleton(func(a *LoopA) *LoopB { return &LoopB{} }))

	err := c.RegisterWithValidation(func(b *LoopB) *LoopA { return &LoopA{} })
	require.Error(t, err)

	var cde *CircularDependencyError
	require.ErrorAs(t, err, &cde)

	path := cde.PathString()
	assert.Contains(t, path, "LoopA")
	assert.Contains(t, path, "LoopB")

	// The rejected binding left no trace.
	assert.False(t, IsRegistered[*LoopA](c))
	assert.True(t, IsRegistered[*LoopB](c))
}

func TestRegisterWithValidation_SelfCycle(t *testing.T) {
	type Ouroboros struct{}

	c := New()
	err := c.RegisterWithValidation(func(o *Ouroboros) *Ouroboros { return &Ouroboros{} })
	require.Error(t, err)

	var cde *CircularDependencyError
	require.ErrorAs(t, err, &cde)
	assert.False(t, IsRegistered[*Ouroboros](c))
}

func TestRegisterWithValidation_CapabilityMismatch(t *testing.T) {
	c := New()

	err := c.RegisterWithValidation(NewStorage, As(new(Reader)))
	require.Error(t, err)

	var cme *CapabilityMismatchError
	require.ErrorAs(t, err, &cme)
	assert.Contains(t, err.Error(), "does not implement")
	assert.Contains(t, err.Error(), "Read")

	assert.False(t, IsRegistered[Reader](c))
	assert.False(t, IsRegistered[*Storage](c))
}

func TestRegisterWithValidation_AtomicRejection(t *testing.T) {
	c := New()

	// A batch where the last registration fails must leave the earlier
	// successful registrations intact and nothing from the failed one.
	require.NoError(t, c.RegisterWithValidation(NewStorage))
	require.NoError(t, c.RegisterWithValidation(NewIndexer))

	type Orphan struct{}
	type Reporter struct {
		O *Orphan
		I *Indexer
	}

	err := c.RegisterWithValidation(func(o *Orphan, i *Indexer) *Reporter {
		return &Reporter{O: o, I: i}
	})
	require.Error(t, err)

	assert.Len(t, c.RegisteredTypes(), 2)
	assert.False(t, IsRegistered[*Reporter](c))

	// The surviving bindings still resolve.
	_, err = Resolve[*Indexer](c)
	assert.NoError(t, err)
}

func TestRegisterWithValidation_RejectedCycleKeepsGraphIntact(t *testing.T) {
	type LoopA struct{}
	type LoopB struct{}

	c := New()
	require.NoError(t, c.RegisterSingleton(func(a *LoopA) *LoopB { return &LoopB{} }))

	err := c.RegisterWithValidation(func(b *LoopB) *LoopA { return &LoopA{} })
	require.Error(t, err)

	// The health check still sees LoopB's dangling dependency on LoopA;
	// the rejected registration did not erase that edge.
	ok, issues := c.ValidateHealth()
	assert.False(t, ok)
	require.NotEmpty(t, issues)
	assert.Contains(t, issues[0], "LoopA")
}

func TestRegisterWithValidation_OptionalGapAllowed(t *testing.T) {
	type Tracer struct{}
	type Pipeline struct {
		T *Tracer
	}

	type PipelineDeps struct {
		In
		T *Tracer `optional:"true"`
	}

	c := New()

	// An optional dependency may be absent at validation time.
	require.NoError(t, c.RegisterWithValidation(func(deps PipelineDeps) *Pipeline {
		return &Pipeline{T: deps.T}
	}))

	p, err := Resolve[*Pipeline](c)
	require.NoError(t, err)
	assert.Nil(t, p.T)
}
