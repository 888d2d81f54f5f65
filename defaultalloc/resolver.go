package defaultalloc

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/23skdu/arrowmem/allocator"
	"github.com/23skdu/arrowmem/backend"
	"github.com/23skdu/arrowmem/backend/direct"
	"github.com/23skdu/arrowmem/backend/pooled"
	"github.com/23skdu/arrowmem/internal/config"
	"github.com/23skdu/arrowmem/internal/errors"
	"github.com/23skdu/arrowmem/internal/metrics"
)

const defaultTypeNote = "allocation manager type not specified, using netty as the default type"

// Resolver reads backend settings from a fixed pair of sources and locates
// the matching factories. It does not cache; the package-level functions
// cache a process-wide Resolver's results.
type Resolver struct {
	sources config.Sources
	logger  zerolog.Logger
}

// NewResolver returns a Resolver over src that logs to logger.
func NewResolver(src config.Sources, logger zerolog.Logger) *Resolver {
	return &Resolver{
		sources: src,
		logger:  logger.With().Str("component", "defaultalloc").Logger(),
	}
}

func resolve[T fmt.Stringer](src config.Sources, variant, propKey, envKey string, def T, parse func(string) (T, bool)) Resolution[T] {
	var res Resolution[T]
	raw, present := config.Lookup(src, propKey, envKey)
	switch t, ok := parse(raw); {
	case !present:
		res = Resolution[T]{Kind: ResolvedDefault, Type: def}
	case ok:
		res = Resolution[T]{Kind: ResolvedKnown, Type: t}
	default:
		res = Resolution[T]{Kind: ResolvedRawName, Name: raw}
	}
	metrics.BackendResolutionsTotal.WithLabelValues(variant, res.Kind.String()).Inc()
	return res
}

// ResolveAllocatorType reads arrow.allocator.type / ARROW_ALLOCATOR_TYPE.
func (r *Resolver) ResolveAllocatorType() Resolution[AllocatorType] {
	return resolve(r.sources, "allocator", AllocatorTypeProperty, AllocatorTypeEnv, Unknown, ParseAllocatorType)
}

// ResolveManagerType reads arrow.allocation.manager.type / ARROW_ALLOCATION_MANAGER_TYPE.
func (r *Resolver) ResolveManagerType() Resolution[ManagerType] {
	return resolve(r.sources, "manager", AllocationManagerTypeProperty, AllocationManagerTypeEnv, ManagerUnknown, ParseManagerType)
}

// AllocatorFactory resolves the configured allocator type and locates its factory.
func (r *Resolver) AllocatorFactory() (allocator.Factory, error) {
	return r.AllocatorFactoryFor(r.ResolveAllocatorType())
}

// ManagerFactory resolves the configured manager type and locates its factory.
func (r *Resolver) ManagerFactory() (allocator.ManagerFactory, error) {
	return r.ManagerFactoryFor(r.ResolveManagerType())
}

// AllocatorFactoryFor locates the factory for a resolution.
func (r *Resolver) AllocatorFactoryFor(res Resolution[AllocatorType]) (allocator.Factory, error) {
	switch res.Kind {
	case ResolvedRawName:
		return backend.AllocatorFactoryByName(res.Name)
	case ResolvedDefault:
		r.logger.Info().Msg(defaultTypeNote)
		return backend.AllocatorFactoryByName(pooled.AllocatorFactoryName)
	}

	switch res.Type {
	case Netty:
		return backend.AllocatorFactoryByName(pooled.AllocatorFactoryName)
	case Unsafe:
		return backend.AllocatorFactoryByName(direct.AllocatorFactoryName)
	case Unknown:
		r.logger.Info().Msg(defaultTypeNote)
		return backend.AllocatorFactoryByName(pooled.AllocatorFactoryName)
	default:
		return nil, errors.NewValidationError("locate", "unknown allocator type "+res.Type.String())
	}
}

// ManagerFactoryFor locates the manager factory for a resolution.
func (r *Resolver) ManagerFactoryFor(res Resolution[ManagerType]) (allocator.ManagerFactory, error) {
	switch res.Kind {
	case ResolvedRawName:
		return backend.ManagerFactoryByName(res.Name)
	case ResolvedDefault:
		r.logger.Info().Msg(defaultTypeNote)
		return backend.ManagerFactoryByName(pooled.ManagerFactoryName)
	}

	switch res.Type {
	case ManagerNetty:
		return backend.ManagerFactoryByName(pooled.ManagerFactoryName)
	case ManagerUnsafe:
		return backend.ManagerFactoryByName(direct.ManagerFactoryName)
	case ManagerUnknown:
		r.logger.Info().Msg(defaultTypeNote)
		return backend.ManagerFactoryByName(pooled.ManagerFactoryName)
	case ManagerTest:
		r.logger.Warn().Msg("an empty allocation manager is being used for the default manager type; is this correct?")
		return testManagerFactory, nil
	default:
		return nil, errors.NewValidationError("locate", "unknown manager type "+res.Type.String())
	}
}

// Create builds a root allocator on the configured backend.
func (r *Resolver) Create(cfg allocator.Config) (*allocator.RootAllocator, error) {
	f, err := r.AllocatorFactory()
	if err != nil {
		return nil, err
	}
	return f.Create(cfg)
}

// testManagerFactory never yields a manager.
var testManagerFactory allocator.ManagerFactory = allocator.ManagerFactoryFunc(
	func(int) (allocator.Manager, error) { return nil, nil },
)
