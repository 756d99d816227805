package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// RoutingResolves counts path resolutions by source (osrm or straight_line fallback)
	RoutingResolves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "routing_resolves_total", Help: "Path resolutions by source."},
		[]string{"source"},
	)
	// ScoreRuns counts batch cluster-scoring runs
	ScoreRuns = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "score_runs_total", Help: "Batch cluster scoring runs."},
	)
	// LedgerTransitions counts fleet ledger operations by op and outcome
	LedgerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ledger_transitions_total", Help: "Fleet ledger operations by outcome."},
		[]string{"op", "outcome"},
	)
)

// RegisterDefault registers collectors to the package registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(RoutingResolves)
		Registry.MustRegister(ScoreRuns)
		Registry.MustRegister(LedgerTransitions)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
