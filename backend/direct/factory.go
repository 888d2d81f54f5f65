// Package direct is the unpooled backend: every region is a fresh heap
// acquisition and requests are rounded with the default policy.
package direct

import (
	"sync"

	"github.com/23skdu/arrowmem/allocator"
	"github.com/23skdu/arrowmem/backend"
	"github.com/23skdu/arrowmem/internal/errors"
	"github.com/23skdu/arrowmem/rounding"
)

const (
	// BackendName labels allocators built by this package.
	BackendName = "direct"
	// AllocatorFactoryName is the registry name of the allocator factory.
	AllocatorFactoryName = "github.com/23skdu/arrowmem/backend/direct.AllocatorFactory"
	// ManagerFactoryName is the registry name of the manager factory.
	ManagerFactoryName = "github.com/23skdu/arrowmem/backend/direct.ManagerFactory"
)

func init() {
	backend.RegisterAllocatorFactory(AllocatorFactoryName, func() allocator.Factory { return AllocatorFactory() })
	backend.RegisterManagerFactory(ManagerFactoryName, func() allocator.ManagerFactory { return ManagerFactory() })
}

// Factory builds root allocators on the direct backend.
type Factory struct{}

// AllocatorFactory returns the process-wide direct factory.
var AllocatorFactory = sync.OnceValue(func() *Factory { return &Factory{} })

// Create implements allocator.Factory. Construction acquires one zero-length
// region from the manager factory to back the allocator's empty buffer; that
// region is never charged against the limit.
func (f *Factory) Create(cfg allocator.Config) (*allocator.RootAllocator, error) {
	if cfg.ManagerFactory == nil {
		cfg.ManagerFactory = ManagerFactory()
	}
	if cfg.RoundingPolicy == nil {
		cfg.RoundingPolicy = rounding.Default
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	empty, err := cfg.ManagerFactory.Create(0)
	if err != nil {
		return nil, errors.WrapAllocationError(err, "direct_create", "cannot acquire empty region")
	}
	var emptyBytes []byte
	if empty != nil {
		emptyBytes = empty.Bytes()
	}
	return allocator.NewRootAllocator(BackendName, cfg, emptyBytes)
}

// Create returns an unlimited direct root allocator.
func Create() (*allocator.RootAllocator, error) {
	return CreateWithListener(allocator.NoopListener, allocator.Unlimited)
}

// CreateWithLimit returns a direct root allocator with the given limit.
func CreateWithLimit(limit int64) (*allocator.RootAllocator, error) {
	return CreateWithListener(allocator.NoopListener, limit)
}

// CreateWithListener returns a direct root allocator reporting to listener.
func CreateWithListener(listener allocator.Listener, limit int64) (*allocator.RootAllocator, error) {
	return CreateWithPolicy(listener, limit, rounding.Default)
}

// CreateWithPolicy returns a direct root allocator with an explicit policy.
func CreateWithPolicy(listener allocator.Listener, limit int64, policy rounding.Policy) (*allocator.RootAllocator, error) {
	return AllocatorFactory().Create(allocator.DefaultConfig().
		WithManagerFactory(ManagerFactory()).
		WithListener(listener).
		WithMaxAllocation(limit).
		WithRoundingPolicy(policy))
}

var _ allocator.Factory = (*Factory)(nil)
