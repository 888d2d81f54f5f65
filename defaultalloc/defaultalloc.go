// Package defaultalloc chooses the allocation backend from configuration and
// builds root allocators on it.
//
// The allocator-level backend is read from the arrow.allocator.type property
// or the ARROW_ALLOCATOR_TYPE environment variable; the manager-level backend
// from arrow.allocation.manager.type or ARROW_ALLOCATION_MANAGER_TYPE.
// Recognized values are Netty (pooled), Unsafe (direct) and Unknown (the
// default, pooled); the manager level also accepts Test. Any other value is
// treated as the registry name of an out-of-tree factory (see package backend).
//
// Settings are read once per process, on first use.
package defaultalloc

import (
	"sync"

	"github.com/23skdu/arrowmem/allocator"
	"github.com/23skdu/arrowmem/internal/config"
	"github.com/23skdu/arrowmem/internal/logging"
	"github.com/23skdu/arrowmem/rounding"
)

// RootBackendName labels allocators built by NewRootAllocator.
const RootBackendName = "root"

var (
	processResolver = sync.OnceValue(func() *Resolver {
		return NewResolver(config.ProcessSources(), logging.Default())
	})

	allocatorType = sync.OnceValue(func() Resolution[AllocatorType] {
		return processResolver().ResolveAllocatorType()
	})
	managerType = sync.OnceValue(func() Resolution[ManagerType] {
		return processResolver().ResolveManagerType()
	})

	allocatorFactory = sync.OnceValues(func() (allocator.Factory, error) {
		return processResolver().AllocatorFactoryFor(allocatorType())
	})
	managerFactory = sync.OnceValues(func() (allocator.ManagerFactory, error) {
		return processResolver().ManagerFactoryFor(managerType())
	})
)

// DefaultAllocatorType returns the process's allocator-level resolution.
func DefaultAllocatorType() Resolution[AllocatorType] {
	return allocatorType()
}

// DefaultManagerType returns the process's manager-level resolution.
func DefaultManagerType() Resolution[ManagerType] {
	return managerType()
}

// DefaultAllocatorFactory returns the factory for the process's allocator type.
func DefaultAllocatorFactory() (allocator.Factory, error) {
	return allocatorFactory()
}

// DefaultManagerFactory returns the manager factory for the process's manager type.
func DefaultManagerFactory() (allocator.ManagerFactory, error) {
	return managerFactory()
}

// Create returns an unlimited root allocator on the configured backend with
// that backend's default rounding policy.
func Create() (*allocator.RootAllocator, error) {
	return CreateWithConfig(allocator.DefaultConfig())
}

// CreateWithLimit is Create with an allocation limit.
func CreateWithLimit(limit int64) (*allocator.RootAllocator, error) {
	return CreateWithConfig(allocator.DefaultConfig().WithMaxAllocation(limit))
}

// CreateWithConfig returns a root allocator on the configured backend.
func CreateWithConfig(cfg allocator.Config) (*allocator.RootAllocator, error) {
	f, err := DefaultAllocatorFactory()
	if err != nil {
		return nil, err
	}
	return f.Create(cfg)
}

// CreateForType returns an unlimited root allocator on the given backend,
// ignoring configuration.
func CreateForType(t AllocatorType) (*allocator.RootAllocator, error) {
	return CreateForTypeWithConfig(t, allocator.DefaultConfig())
}

// CreateForTypeWithConfig returns a root allocator on the given backend,
// ignoring configuration.
func CreateForTypeWithConfig(t AllocatorType, cfg allocator.Config) (*allocator.RootAllocator, error) {
	f, err := processResolver().AllocatorFactoryFor(Resolution[AllocatorType]{Kind: ResolvedKnown, Type: t})
	if err != nil {
		return nil, err
	}
	return f.Create(cfg)
}

// ManagerFactoryForType returns the manager factory of the given type,
// ignoring configuration.
func ManagerFactoryForType(t ManagerType) (allocator.ManagerFactory, error) {
	return processResolver().ManagerFactoryFor(Resolution[ManagerType]{Kind: ResolvedKnown, Type: t})
}

// NewRootAllocator builds a root allocator that is not tied to an
// allocator-level backend: regions come from cfg's manager factory, or the
// process's default manager factory when cfg has none, and requests are
// rounded with rounding.Default unless cfg sets a policy.
func NewRootAllocator(cfg allocator.Config) (*allocator.RootAllocator, error) {
	if cfg.ManagerFactory == nil {
		mf, err := DefaultManagerFactory()
		if err != nil {
			return nil, err
		}
		cfg.ManagerFactory = mf
	}
	if cfg.RoundingPolicy == nil {
		cfg.RoundingPolicy = rounding.Default
	}
	return allocator.NewRootAllocator(RootBackendName, cfg, nil)
}
