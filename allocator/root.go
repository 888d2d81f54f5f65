package allocator

import (
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/dolthub/swiss"

	"github.com/23skdu/arrowmem/internal/errors"
	"github.com/23skdu/arrowmem/internal/logging"
	"github.com/23skdu/arrowmem/internal/metrics"
	"github.com/23skdu/arrowmem/rounding"
)

var (
	// ErrOutOfMemory is returned when a request would exceed the allocation limit.
	ErrOutOfMemory = stderrors.New("allocation limit exceeded")
	// ErrNoManager is returned when a manager factory yields no manager.
	ErrNoManager = stderrors.New("manager factory returned no manager")
	// ErrShortRegion is returned when a manager's region is smaller than requested.
	ErrShortRegion = stderrors.New("manager region shorter than requested")
	// ErrClosed is returned by allocations on a closed allocator.
	ErrClosed = stderrors.New("allocator is closed")
	// ErrLeaked is returned by Close when allocations are outstanding.
	ErrLeaked = stderrors.New("allocations outstanding at close")
)

// region is a live allocation charged to the root.
type region struct {
	mgr  Manager
	size int64
}

// RootAllocator is the top of an accounting hierarchy, bound to one backend
// and one rounding policy for its lifetime. It is safe for concurrent use and
// satisfies arrow's memory.Allocator.
type RootAllocator struct {
	backend  string
	managers ManagerFactory
	listener Listener
	policy   rounding.Policy
	limit    int64
	empty    *memory.Buffer

	allocated atomic.Int64
	peak      atomic.Int64
	closed    atomic.Bool

	mu   sync.Mutex
	live *swiss.Map[uintptr, region]
}

// NewRootAllocator builds a root allocator. cfg must carry a ManagerFactory
// and a RoundingPolicy; backend factories fill them in before calling.
// empty backs the canonical zero-length buffer and is never charged.
func NewRootAllocator(backend string, cfg Config, empty []byte) (*RootAllocator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ManagerFactory == nil {
		return nil, errors.NewValidationError("new_root_allocator", "config has no manager factory").
			WithContext("backend", backend)
	}
	if cfg.RoundingPolicy == nil {
		return nil, errors.NewValidationError("new_root_allocator", "config has no rounding policy").
			WithContext("backend", backend)
	}
	listener := cfg.Listener
	if listener == nil {
		listener = NoopListener
	}

	a := &RootAllocator{
		backend:  backend,
		managers: cfg.ManagerFactory,
		listener: listener,
		policy:   cfg.RoundingPolicy,
		limit:    cfg.MaxAllocation,
		empty:    memory.NewBufferBytes(empty[:0]),
		live:     swiss.NewMap[uintptr, region](64),
	}
	metrics.RootAllocatorsCreatedTotal.WithLabelValues(backend).Inc()
	return a, nil
}

// Backend names the backend this allocator is bound to.
func (a *RootAllocator) Backend() string { return a.backend }

// RoundingPolicy returns the policy applied to every request.
func (a *RootAllocator) RoundingPolicy() rounding.Policy { return a.policy }

// Limit returns the maximum number of bytes that may be outstanding.
func (a *RootAllocator) Limit() int64 { return a.limit }

// Allocated returns the rounded bytes currently outstanding.
func (a *RootAllocator) Allocated() int64 { return a.allocated.Load() }

// Peak returns the highest value Allocated has reached.
func (a *RootAllocator) Peak() int64 { return a.peak.Load() }

// Headroom returns how many more bytes may be reserved.
func (a *RootAllocator) Headroom() int64 {
	h := a.limit - a.allocated.Load()
	if h < 0 {
		return 0
	}
	return h
}

// Empty returns the canonical zero-length buffer.
func (a *RootAllocator) Empty() *memory.Buffer { return a.empty }

// Buffer allocates a reference-counted buffer of the given size. The buffer
// frees its region back to this allocator on its final Release. A zero size
// returns the canonical empty buffer.
func (a *RootAllocator) Buffer(size int) (*memory.Buffer, error) {
	if size == 0 {
		return a.empty, nil
	}
	data, err := a.allocate(size)
	if err != nil {
		return nil, err
	}
	return memory.NewBufferWithAllocator(data, a), nil
}

// Allocate implements memory.Allocator. It panics when the request cannot be
// served; use Buffer for an error-returning path.
func (a *RootAllocator) Allocate(size int) []byte {
	data, err := a.allocate(size)
	if err != nil {
		panic(err)
	}
	return data
}

// Reallocate implements memory.Allocator.
func (a *RootAllocator) Reallocate(size int, b []byte) []byte {
	if size == len(b) {
		return b
	}
	newBuf := a.Allocate(size)
	copy(newBuf, b)
	a.Free(b)
	return newBuf
}

// Free implements memory.Allocator.
func (a *RootAllocator) Free(b []byte) {
	if len(b) == 0 {
		return
	}

	key := regionKey(b)
	a.mu.Lock()
	r, ok := a.live.Get(key)
	if ok {
		a.live.Delete(key)
	}
	a.mu.Unlock()

	if !ok {
		logger := logging.Default()
		logger.Warn().
			Str("backend", a.backend).
			Int("size", len(b)).
			Msg("free of a region not owned by this allocator ignored")
		return
	}

	r.mgr.Release()
	a.allocated.Add(-r.size)
	a.listener.OnRelease(r.size)

	metrics.AllocatorBytesFreedTotal.WithLabelValues(a.backend).Add(float64(r.size))
	metrics.AllocatorAllocationsActive.WithLabelValues(a.backend).Dec()
}

func (a *RootAllocator) allocate(size int) ([]byte, error) {
	if a.closed.Load() {
		return nil, errors.WrapAllocationError(ErrClosed, "allocate", "cannot allocate").
			WithContext("backend", a.backend)
	}
	if size < 0 {
		return nil, errors.NewValidationError("allocate", fmt.Sprintf("negative size %d", size))
	}
	if size == 0 {
		return a.empty.Bytes(), nil
	}

	requested := int64(size)
	rounded := a.policy.RoundedSize(requested)
	if rounded < requested {
		return nil, errors.NewValidationError("allocate",
			fmt.Sprintf("rounding policy shrank %d bytes to %d", requested, rounded)).
			WithContext("backend", a.backend).
			WithContext("policy", fmt.Sprint(a.policy))
	}

	a.listener.OnPreAllocation(rounded)
	if !a.reserve(rounded) {
		oom := a.outOfMemory(requested, rounded)
		if !a.listener.OnFailedAllocation(rounded, oom) || !a.reserve(rounded) {
			metrics.AllocatorLimitRejectsTotal.WithLabelValues(a.backend).Inc()
			return nil, oom
		}
	}

	mgr, err := a.managers.Create(int(rounded))
	if err == nil && mgr == nil {
		err = ErrNoManager
	}
	if err == nil && len(mgr.Bytes()) < size {
		mgr.Release()
		err = ErrShortRegion
	}
	if err != nil {
		a.allocated.Add(-rounded)
		return nil, errors.WrapAllocationError(err, "allocate", "backend could not acquire memory").
			WithContext("backend", a.backend).
			WithContext("rounded", rounded)
	}

	data := mgr.Bytes()[:size]
	a.mu.Lock()
	a.live.Put(regionKey(data), region{mgr: mgr, size: rounded})
	a.mu.Unlock()

	a.listener.OnAllocation(rounded)

	metrics.AllocatorBytesAllocatedTotal.WithLabelValues(a.backend).Add(float64(rounded))
	metrics.AllocatorRoundingOverheadBytesTotal.WithLabelValues(a.backend).Add(float64(rounded - requested))
	metrics.AllocatorAllocationsActive.WithLabelValues(a.backend).Inc()
	return data, nil
}

// reserve charges size against the limit.
func (a *RootAllocator) reserve(size int64) bool {
	for {
		cur := a.allocated.Load()
		next := cur + size
		if next > a.limit || next < cur {
			return false
		}
		if a.allocated.CompareAndSwap(cur, next) {
			a.updatePeak(next)
			return true
		}
	}
}

func (a *RootAllocator) updatePeak(v int64) {
	for {
		p := a.peak.Load()
		if v <= p || a.peak.CompareAndSwap(p, v) {
			return
		}
	}
}

func (a *RootAllocator) outOfMemory(requested, rounded int64) error {
	return errors.WrapAllocationError(ErrOutOfMemory, "allocate",
		fmt.Sprintf("unable to allocate buffer of size %d (rounded from %d)", rounded, requested)).
		WithContext("backend", a.backend).
		WithContext("requested", requested).
		WithContext("rounded", rounded).
		WithContext("limit", a.limit).
		WithContext("allocated", a.allocated.Load())
}

// Verify checks that the live regions account for exactly Allocated bytes.
func (a *RootAllocator) Verify() error {
	a.mu.Lock()
	var sum int64
	count := 0
	a.live.Iter(func(_ uintptr, r region) bool {
		sum += r.size
		count++
		return false
	})
	a.mu.Unlock()

	if got := a.allocated.Load(); got != sum {
		return errors.NewValidationError("verify",
			fmt.Sprintf("accounted %d bytes but %d live regions hold %d bytes", got, count, sum)).
			WithContext("backend", a.backend)
	}
	return nil
}

// Close marks the allocator closed. It reports ErrLeaked if any allocation
// is still outstanding; outstanding regions remain valid until freed.
func (a *RootAllocator) Close() error {
	a.closed.Store(true)
	if n := a.allocated.Load(); n != 0 {
		return errors.WrapAllocationError(ErrLeaked, "close",
			fmt.Sprintf("%d bytes still allocated", n)).
			WithContext("backend", a.backend)
	}
	return nil
}

func (a *RootAllocator) String() string {
	return fmt.Sprintf("RootAllocator(backend=%s, allocated=%d, limit=%d)", a.backend, a.allocated.Load(), a.limit)
}

func regionKey(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

var _ memory.Allocator = (*RootAllocator)(nil)
