package pooled

import (
	"math/bits"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/23skdu/arrowmem/allocator"
	"github.com/23skdu/arrowmem/internal/errors"
	"github.com/23skdu/arrowmem/internal/metrics"
	"github.com/23skdu/arrowmem/rounding"
)

const (
	// defaultMaxPooled caps idle regions kept per bucket before they are dropped.
	defaultMaxPooled = 64
	// trimMinSize is the smallest bucket Trim hands back to the OS; smaller
	// regions are not page aligned.
	trimMinSize = 64 * 1024
)

// bucket recycles regions of exactly one power-of-two size.
type bucket struct {
	size        int
	label       string
	pool        sync.Pool
	activeCount int64 // regions handed out and not yet released
	pooledCount int64 // regions currently idle in the pool
	maxPooled   int64
}

func newBucket(size int) *bucket {
	return &bucket{
		size:      size,
		label:     strconv.Itoa(size),
		maxPooled: defaultMaxPooled,
	}
}

// take removes one idle region, or returns nil when the pool is empty. An
// empty pool resets pooledCount, which drifts when the GC clears the pool.
func (b *bucket) take() *[]byte {
	v, _ := b.pool.Get().(*[]byte)
	if v == nil {
		atomic.StoreInt64(&b.pooledCount, 0)
		return nil
	}
	for {
		n := atomic.LoadInt64(&b.pooledCount)
		if n <= 0 || atomic.CompareAndSwapInt64(&b.pooledCount, n, n-1) {
			return v
		}
	}
}

func (b *bucket) get() []byte {
	atomic.AddInt64(&b.activeCount, 1)
	if v := b.take(); v != nil {
		buf := *v
		// Reused regions are dirty; callers expect zeroed memory like make.
		clear(buf)
		metrics.PoolAllocationsTotal.WithLabelValues(b.label, "hit").Inc()
		return buf
	}
	metrics.PoolAllocationsTotal.WithLabelValues(b.label, "miss").Inc()
	return make([]byte, b.size)
}

func (b *bucket) put(buf []byte) {
	if cap(buf) != b.size {
		return
	}
	atomic.AddInt64(&b.activeCount, -1)

	if atomic.LoadInt64(&b.pooledCount) >= b.maxPooled {
		metrics.PoolReleasesTotal.WithLabelValues("dropped").Inc()
		return
	}
	atomic.AddInt64(&b.pooledCount, 1)
	buf = buf[:cap(buf)]
	b.pool.Put(&buf)
	metrics.PoolReleasesTotal.WithLabelValues("pooled").Inc()
}

// trim hands idle regions beyond half the cap back to the OS.
func (b *bucket) trim() int {
	released := 0
	threshold := b.maxPooled / 2
	for atomic.LoadInt64(&b.pooledCount) > threshold {
		v := b.take()
		if v == nil {
			break
		}
		if err := releaseRegion(*v); err != nil {
			atomic.AddInt64(&b.pooledCount, 1)
			b.pool.Put(v)
			break
		}
		released++
	}
	return released
}

// Pool is the pooled backend's manager factory. Requests below the chunk
// size are served from power-of-two buckets; larger requests are unpooled.
type Pool struct {
	chunkSize int64
	buckets   []*bucket
}

// NewPool builds a pool for the given chunk size.
func NewPool(chunkSize int64) *Pool {
	if chunkSize <= 0 {
		panic("pooled: chunk size must be positive")
	}
	n := bits.Len64(uint64(chunkSize - 1))
	p := &Pool{chunkSize: chunkSize, buckets: make([]*bucket, n+1)}
	for i := range p.buckets {
		p.buckets[i] = newBucket(1 << i)
	}
	return p
}

// ChunkSize returns the size at and above which requests bypass the buckets.
func (p *Pool) ChunkSize() int64 { return p.chunkSize }

// Create implements allocator.ManagerFactory.
func (p *Pool) Create(size int) (allocator.Manager, error) {
	if size < 0 {
		return nil, errors.NewValidationError("pooled_create", "negative size").WithContext("size", size)
	}
	if size == 0 {
		return &region{buf: Empty()}, nil
	}
	if int64(size) >= p.chunkSize {
		metrics.PoolAllocationsTotal.WithLabelValues("huge", "unpooled").Inc()
		return &region{buf: make([]byte, size)}, nil
	}
	b := p.buckets[bits.Len(uint(size-1))]
	return &region{buf: b.get()[:size], bucket: b}, nil
}

// ActiveCount returns the number of pooled regions currently handed out.
func (p *Pool) ActiveCount() int64 {
	var n int64
	for _, b := range p.buckets {
		n += atomic.LoadInt64(&b.activeCount)
	}
	return n
}

// PooledCount returns the number of idle regions held by the buckets.
func (p *Pool) PooledCount() int64 {
	var n int64
	for _, b := range p.buckets {
		n += atomic.LoadInt64(&b.pooledCount)
	}
	return n
}

// Trim releases excess idle regions of large buckets back to the OS and
// returns how many were released.
func (p *Pool) Trim() int {
	released := 0
	for _, b := range p.buckets {
		if b.size >= trimMinSize {
			released += b.trim()
		}
	}
	return released
}

type region struct {
	buf      []byte
	bucket   *bucket
	released atomic.Bool
}

func (r *region) Bytes() []byte { return r.buf }

func (r *region) Release() {
	if !r.released.CompareAndSwap(false, true) {
		return
	}
	if r.bucket != nil {
		r.bucket.put(r.buf[:cap(r.buf)])
	}
}

var emptyRegion = sync.OnceValue(func() []byte {
	return make([]byte, 0, 64)
})

// Empty returns the pooled backend's canonical zero-length region.
func Empty() []byte {
	return emptyRegion()
}

// ManagerFactory returns the process-wide pool, sized by ChunkSize or the
// default chunk size when that is unavailable.
var ManagerFactory = sync.OnceValue(func() *Pool {
	return poolFor(ChunkSize())
})

func poolFor(chunk int64, err error) *Pool {
	if err != nil {
		chunk = rounding.DefaultChunkSize
	}
	return NewPool(chunk)
}

var _ allocator.ManagerFactory = (*Pool)(nil)
