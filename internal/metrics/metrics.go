package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BackendResolutionsTotal counts configuration resolutions by outcome
	BackendResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arrowmem_backend_resolutions_total",
			Help: "Total number of backend resolutions by variant and outcome",
		},
		[]string{"variant", "outcome"}, // outcome: "default", "known", "raw_name"
	)

	// BackendLookupsTotal counts registry lookups by result
	BackendLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arrowmem_backend_lookups_total",
			Help: "Total number of factory registry lookups",
		},
		[]string{"kind", "result"}, // result: "found", "not_found", "missing_factory", "panic"
	)
)
