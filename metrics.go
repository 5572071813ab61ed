package discovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// --- Prometheus Metrics Definition ---

// Metrics contains all the Prometheus metrics for the factory discovery system.
// Encapsulating them in a struct keeps the main system struct clean and organized.
type Metrics struct {
	// --- Tier 1: Critical System Health & Liveness ---
	LastProcessedBlock *prometheus.GaugeVec
	ErrorsTotal        *prometheus.CounterVec

	// --- Tier 2: Performance & Bottleneck Identification ---
	BlockProcessingDur *prometheus.HistogramVec
	ProbeDuration      *prometheus.HistogramVec
	PruningDuration    *prometheus.HistogramVec

	// --- Tier 3: Data & State Integrity ---
	FactoriesInRegistry *prometheus.GaugeVec
	CreationEventsTotal *prometheus.CounterVec
	PoolsCreatedTotal   *prometheus.CounterVec
	FactoriesPruned     *prometheus.CounterVec
}

// NewMetrics creates and registers all the Prometheus metrics for the system.
// It takes a prometheus.Registerer to allow for flexible registration (e.g., default vs. custom).
func NewMetrics(reg prometheus.Registerer, systemName string) *Metrics {
	return &Metrics{
		// --- Tier 1 Metrics ---
		LastProcessedBlock: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Subsystem: systemName,
			Name:      "factory_discovery_last_processed_block",
			Help:      "The block number of the last block successfully processed or skipped by the system.",
		}, []string{}),

		ErrorsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Subsystem: systemName,
			Name:      "factory_discovery_errors_total",
			Help:      "Total number of errors encountered by the system, labeled by error type.",
		}, []string{"type"}),

		// --- Tier 2 Metrics ---
		BlockProcessingDur: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: systemName,
			Name:      "factory_discovery_block_processing_duration_seconds",
			Help:      "A histogram of the time it takes to process a single block.",
			Buckets:   prometheus.DefBuckets,
		}, []string{}),

		ProbeDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: systemName,
			Name:      "factory_discovery_probe_duration_seconds",
			Help:      "A histogram of the time it takes for the prober to verify the registry's factories on-chain.",
			Buckets:   prometheus.DefBuckets,
		}, []string{}),

		PruningDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: systemName,
			Name:      "factory_discovery_pruning_duration_seconds",
			Help:      "A histogram of the time it takes for the pruner to run a full cycle.",
			Buckets:   prometheus.DefBuckets,
		}, []string{}),

		// --- Tier 3 Metrics ---
		FactoriesInRegistry: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Subsystem: systemName,
			Name:      "factory_discovery_factories_in_registry_total",
			Help:      "The total number of candidate factories currently tracked in the system's registry.",
		}, []string{}),

		CreationEventsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Subsystem: systemName,
			Name:      "factory_discovery_creation_events_total",
			Help:      "A counter of pool-creation events observed in processed blocks.",
		}, []string{}),

		PoolsCreatedTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Subsystem: systemName,
			Name:      "factory_discovery_pools_created_total",
			Help:      "A counter of pool deployments decoded out of creation events.",
		}, []string{}),

		FactoriesPruned: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Subsystem: systemName,
			Name:      "factory_discovery_factories_pruned_total",
			Help:      "A counter of factories removed from the registry by the pruner.",
		}, []string{}),
	}
}
