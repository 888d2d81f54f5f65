package direct

import (
	"sync"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/arrowmem/allocator"
	"github.com/23skdu/arrowmem/internal/errors"
)

// Heap acquires every region directly from an arrow memory.Allocator, with no
// pooling. It is the direct backend's manager factory.
type Heap struct {
	mem      memory.Allocator
	acquired atomic.Int64
}

// NewHeap returns a manager factory over mem. A nil mem uses a Go allocator,
// which hands out 64-byte aligned heap memory.
func NewHeap(mem memory.Allocator) *Heap {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &Heap{mem: mem}
}

// Create implements allocator.ManagerFactory.
func (h *Heap) Create(size int) (allocator.Manager, error) {
	if size < 0 {
		return nil, errors.NewValidationError("direct_create", "negative size").WithContext("size", size)
	}
	h.acquired.Add(1)
	return &region{heap: h, buf: h.mem.Allocate(size)}, nil
}

// Acquisitions returns how many regions this heap has handed out.
func (h *Heap) Acquisitions() int64 { return h.acquired.Load() }

type region struct {
	heap     *Heap
	buf      []byte
	released atomic.Bool
}

func (r *region) Bytes() []byte { return r.buf }

func (r *region) Release() {
	if r.released.CompareAndSwap(false, true) {
		r.heap.mem.Free(r.buf)
	}
}

// ManagerFactory returns the process-wide direct heap.
var ManagerFactory = sync.OnceValue(func() *Heap { return NewHeap(nil) })

var _ allocator.ManagerFactory = (*Heap)(nil)
