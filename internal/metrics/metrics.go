package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Transfers
	TransfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfers_total",
			Help: "Transfer operations by outcome",
		},
		[]string{"outcome"}, // completed|rejected|conflict|error
	)
	TransferRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transfer_retries_total",
			Help: "Transfer attempts repeated after a version conflict",
		},
	)

	// Growth job
	GrowthApplied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "growth_increases_applied_total",
			Help: "Per-account growth increases committed",
		},
	)
	GrowthSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "growth_increases_skipped_total",
			Help: "Accounts skipped at or above the growth ceiling",
		},
	)
	GrowthConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "growth_conflicts_total",
			Help: "Accounts skipped this cycle because of a version conflict",
		},
	)

	// Read cache
	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "account_cache_hits_total", Help: "Account cache hits"},
	)
	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "account_cache_misses_total", Help: "Account cache misses"},
	)

	// Worker queue
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

// handler for the /metrics endpoint
var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(TransfersTotal)
	prometheus.MustRegister(TransferRetries)
	prometheus.MustRegister(GrowthApplied)
	prometheus.MustRegister(GrowthSkipped)
	prometheus.MustRegister(GrowthConflicts)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(WorkerQueueDepth)
}
