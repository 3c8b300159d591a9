package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Gateway search Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lazyq",
			Subsystem: "gateway",
			Name:      "search_requests_total",
			Help:      "Total number of search requests",
		},
		[]string{"index", "status"},
	)

	SearchResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lazyq",
			Subsystem: "gateway",
			Name:      "search_results",
			Help:      "Number of results returned per search request",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 250, 500, 1000},
		},
		[]string{"index"},
	)

	ExcerptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lazyq",
			Subsystem: "gateway",
			Name:      "excerpts_total",
			Help:      "Total number of highlighted results",
		},
		[]string{"index", "status"},
	)
)

var registerSearchOnce sync.Once

// RegisterSearchMetrics registers the gateway search metrics. Safe to call more than once.
func RegisterSearchMetrics() {
	registerSearchOnce.Do(func() {
		prometheus.MustRegister(SearchRequestsTotal)
		prometheus.MustRegister(SearchResults)
		prometheus.MustRegister(ExcerptsTotal)
	})
}
