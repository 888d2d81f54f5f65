package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Root Allocator Metrics
// =============================================================================

var (
	// RootAllocatorsCreatedTotal counts root allocators built per backend
	RootAllocatorsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arrowmem_root_allocators_created_total",
			Help: "Total number of root allocators created",
		},
		[]string{"backend"},
	)

	// AllocatorBytesAllocatedTotal counts rounded bytes handed out
	AllocatorBytesAllocatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arrowmem_allocator_bytes_allocated_total",
			Help: "Total rounded bytes allocated by root allocators",
		},
		[]string{"backend"},
	)

	// AllocatorBytesFreedTotal counts rounded bytes returned
	AllocatorBytesFreedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arrowmem_allocator_bytes_freed_total",
			Help: "Total rounded bytes freed back to root allocators",
		},
		[]string{"backend"},
	)

	// AllocatorAllocationsActive tracks live allocations
	AllocatorAllocationsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arrowmem_allocator_allocations_active",
			Help: "Current number of live allocations",
		},
		[]string{"backend"},
	)

	// AllocatorRoundingOverheadBytesTotal counts bytes added by rounding
	AllocatorRoundingOverheadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arrowmem_allocator_rounding_overhead_bytes_total",
			Help: "Total bytes added to requests by the rounding policy",
		},
		[]string{"backend"},
	)

	// AllocatorLimitRejectsTotal counts allocations refused by the limit
	AllocatorLimitRejectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arrowmem_allocator_limit_rejects_total",
			Help: "Total number of allocations rejected by the allocation limit",
		},
		[]string{"backend"},
	)
)

// =============================================================================
// Pooled Backend Metrics
// =============================================================================

var (
	PoolAllocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arrowmem_pool_allocations_total",
			Help: "Total number of pooled backend acquisitions (both pooled and new)",
		},
		[]string{"size", "result"}, // result: "hit", "miss", "unpooled"
	)

	PoolReleasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arrowmem_pool_releases_total",
			Help: "Total number of regions returned to the pooled backend",
		},
		[]string{"result"}, // result: "pooled", "dropped"
	)
)
