// Package allocator defines the capabilities that backends implement and the
// accounting root allocator that backend factories hand out.
package allocator

import (
	"math"

	"github.com/23skdu/arrowmem/internal/errors"
	"github.com/23skdu/arrowmem/rounding"
)

// Unlimited is the MaxAllocation value meaning "no limit".
const Unlimited int64 = math.MaxInt64

// Manager owns one memory region acquired from a backend.
type Manager interface {
	// Bytes returns the region. Its length is the size passed to Create.
	Bytes() []byte
	// Release returns the region to the backend.
	Release()
}

// ManagerFactory acquires regions from a backend.
// Implementations must be safe for concurrent use.
type ManagerFactory interface {
	Create(size int) (Manager, error)
}

// ManagerFactoryFunc adapts a function to ManagerFactory.
type ManagerFactoryFunc func(size int) (Manager, error)

// Create calls f(size).
func (f ManagerFactoryFunc) Create(size int) (Manager, error) {
	return f(size)
}

// Factory builds root allocators bound to one backend.
// Create must be reentrant.
type Factory interface {
	Create(cfg Config) (*RootAllocator, error)
}

// Listener observes allocation activity of a root allocator. Sizes are the
// rounded sizes charged against the limit.
type Listener interface {
	OnPreAllocation(size int64)
	OnAllocation(size int64)
	OnRelease(size int64)
	// OnFailedAllocation is called when the limit refuses a request.
	// Returning true makes the allocator retry the reservation once.
	OnFailedAllocation(size int64, err error) bool
}

type noopListener struct{}

func (noopListener) OnPreAllocation(int64)                 {}
func (noopListener) OnAllocation(int64)                    {}
func (noopListener) OnRelease(int64)                       {}
func (noopListener) OnFailedAllocation(int64, error) bool { return false }

// NoopListener ignores all events.
var NoopListener Listener = noopListener{}

// Config is the immutable set of options a Factory consumes.
// ManagerFactory and RoundingPolicy are optional; when nil the factory
// substitutes its backend's defaults.
type Config struct {
	ManagerFactory ManagerFactory
	Listener       Listener
	MaxAllocation  int64
	RoundingPolicy rounding.Policy
}

// DefaultConfig returns an unlimited config with no listener and backend defaults.
func DefaultConfig() Config {
	return Config{
		Listener:      NoopListener,
		MaxAllocation: Unlimited,
	}
}

// WithManagerFactory returns a copy of c that acquires regions from f.
func (c Config) WithManagerFactory(f ManagerFactory) Config {
	c.ManagerFactory = f
	return c
}

// WithListener returns a copy of c that reports to l.
func (c Config) WithListener(l Listener) Config {
	c.Listener = l
	return c
}

// WithMaxAllocation returns a copy of c limited to limit bytes.
func (c Config) WithMaxAllocation(limit int64) Config {
	c.MaxAllocation = limit
	return c
}

// WithRoundingPolicy returns a copy of c that rounds requests with p.
func (c Config) WithRoundingPolicy(p rounding.Policy) Config {
	c.RoundingPolicy = p
	return c
}

// Validate reports whether the config can build an allocator.
func (c Config) Validate() error {
	if c.MaxAllocation < 0 {
		return errors.NewValidationError("validate_config", "max allocation must not be negative").
			WithContext("max_allocation", c.MaxAllocation)
	}
	return nil
}
