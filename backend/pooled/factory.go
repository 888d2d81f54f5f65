// Package pooled is the pooled backend: regions come from power-of-two size
// buckets below the chunk size, and root allocators round requests to those
// buckets.
package pooled

import (
	"sync"

	"github.com/23skdu/arrowmem/allocator"
	"github.com/23skdu/arrowmem/backend"
	"github.com/23skdu/arrowmem/rounding"
)

const (
	// BackendName labels allocators built by this package.
	BackendName = "pooled"
	// AllocatorFactoryName is the registry name of the allocator factory.
	AllocatorFactoryName = "github.com/23skdu/arrowmem/backend/pooled.AllocatorFactory"
	// ManagerFactoryName is the registry name of the manager factory.
	ManagerFactoryName = "github.com/23skdu/arrowmem/backend/pooled.ManagerFactory"
)

func init() {
	backend.RegisterAllocatorFactory(AllocatorFactoryName, func() allocator.Factory { return AllocatorFactory() })
	backend.RegisterManagerFactory(ManagerFactoryName, func() allocator.ManagerFactory { return ManagerFactory() })
}

// Factory builds root allocators on the pooled backend.
type Factory struct{}

// AllocatorFactory returns the process-wide pooled factory.
var AllocatorFactory = sync.OnceValue(func() *Factory { return &Factory{} })

// Create implements allocator.Factory. A config without a manager factory is
// bound to the process-wide pool; one without a rounding policy gets
// RoundingPolicy(). The empty buffer reuses the canonical empty region.
func (f *Factory) Create(cfg allocator.Config) (*allocator.RootAllocator, error) {
	if cfg.ManagerFactory == nil {
		cfg.ManagerFactory = ManagerFactory()
	}
	if cfg.RoundingPolicy == nil {
		cfg.RoundingPolicy = RoundingPolicy()
	}
	return allocator.NewRootAllocator(BackendName, cfg, Empty())
}

// Create returns an unlimited pooled root allocator.
func Create() (*allocator.RootAllocator, error) {
	return CreateWithListener(allocator.NoopListener, allocator.Unlimited)
}

// CreateWithLimit returns a pooled root allocator with the given limit.
func CreateWithLimit(limit int64) (*allocator.RootAllocator, error) {
	return CreateWithListener(allocator.NoopListener, limit)
}

// CreateWithListener returns a pooled root allocator reporting to listener.
func CreateWithListener(listener allocator.Listener, limit int64) (*allocator.RootAllocator, error) {
	return CreateWithPolicy(listener, limit, RoundingPolicy())
}

// CreateWithPolicy returns a pooled root allocator with an explicit policy.
func CreateWithPolicy(listener allocator.Listener, limit int64, policy rounding.Policy) (*allocator.RootAllocator, error) {
	return AllocatorFactory().Create(allocator.DefaultConfig().
		WithManagerFactory(ManagerFactory()).
		WithListener(listener).
		WithMaxAllocation(limit).
		WithRoundingPolicy(policy))
}

var _ allocator.Factory = (*Factory)(nil)
