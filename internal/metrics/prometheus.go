package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the table layer
type Metrics struct {
	// Table operation metrics
	SelectsTotal    prometheus.Counter
	InsertsTotal    prometheus.Counter
	UpdatesTotal    prometheus.Counter
	RemovesTotal    prometheus.Counter
	OpDuration      *prometheus.HistogramVec
	RowsAffected    prometheus.Histogram
	AuthorityDenied prometheus.Counter
	SchemaRejected  prometheus.Counter

	// Key cache metrics
	CacheHitsTotal     prometheus.Counter
	CacheMissesTotal   prometheus.Counter
	TombstoneReloads   prometheus.Counter
	CachedKeys         prometheus.Gauge
	RemoteFetchesTotal prometheus.Counter
	RemoteFetchErrors  prometheus.Counter
	RemoteFetchSeconds prometheus.Histogram

	// Journal metrics
	JournalEntries  prometheus.Gauge
	RollbacksTotal  prometheus.Counter
	SavepointsTotal prometheus.Counter

	// Commit metrics
	OpenTables    prometheus.Gauge
	CommitsTotal  prometheus.Counter
	CommitSeconds prometheus.Histogram
	HashSeconds   prometheus.Histogram

	// System metrics
	MemoryUsageBytes prometheus.Gauge
	GoroutinesTotal  prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(instanceID string) *Metrics {
	labels := prometheus.Labels{"instance_id": instanceID}

	return &Metrics{
		SelectsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "statetable",
			Subsystem:   "table",
			Name:        "selects_total",
			Help:        "Total number of select operations",
			ConstLabels: labels,
		}),
		InsertsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "statetable",
			Subsystem:   "table",
			Name:        "inserts_total",
			Help:        "Total number of insert operations",
			ConstLabels: labels,
		}),
		UpdatesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "statetable",
			Subsystem:   "table",
			Name:        "updates_total",
			Help:        "Total number of update operations",
			ConstLabels: labels,
		}),
		RemovesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "statetable",
			Subsystem:   "table",
			Name:        "removes_total",
			Help:        "Total number of remove operations",
			ConstLabels: labels,
		}),
		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "statetable",
			Subsystem:   "table",
			Name:        "operation_duration_seconds",
			Help:        "Histogram of table operation durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"op"}),
		RowsAffected: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "statetable",
			Subsystem:   "table",
			Name:        "rows_affected",
			Help:        "Histogram of rows affected per mutating operation",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1, 2, 10),
		}),
		AuthorityDenied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "statetable",
			Subsystem:   "table",
			Name:        "authority_denied_total",
			Help:        "Total number of operations rejected by the authority check",
			ConstLabels: labels,
		}),
		SchemaRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "statetable",
			Subsystem:   "table",
			Name:        "schema_rejected_total",
			Help:        "Total number of entries rejected by field validation",
			ConstLabels: labels,
		}),

		CacheHitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "statetable",
			Subsystem:   "cache",
			Name:        "hits_total",
			Help:        "Total number of key cache hits",
			ConstLabels: labels,
		}),
		CacheMissesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "statetable",
			Subsystem:   "cache",
			Name:        "misses_total",
			Help:        "Total number of key cache misses",
			ConstLabels: labels,
		}),
		TombstoneReloads: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "statetable",
			Subsystem:   "cache",
			Name:        "tombstone_reloads_total",
			Help:        "Total number of reloads of rollback-invalidated slots",
			ConstLabels: labels,
		}),
		CachedKeys: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "statetable",
			Subsystem:   "cache",
			Name:        "keys",
			Help:        "Number of key cache slots, tombstones included",
			ConstLabels: labels,
		}),
		RemoteFetchesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "statetable",
			Subsystem:   "cache",
			Name:        "remote_fetches_total",
			Help:        "Total number of reads from the remote store",
			ConstLabels: labels,
		}),
		RemoteFetchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "statetable",
			Subsystem:   "cache",
			Name:        "remote_fetch_errors_total",
			Help:        "Total number of failed reads from the remote store",
			ConstLabels: labels,
		}),
		RemoteFetchSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "statetable",
			Subsystem:   "cache",
			Name:        "remote_fetch_duration_seconds",
			Help:        "Histogram of remote store read durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),

		JournalEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "statetable",
			Subsystem:   "journal",
			Name:        "entries",
			Help:        "Current number of journaled changes in the open block",
			ConstLabels: labels,
		}),
		RollbacksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "statetable",
			Subsystem:   "journal",
			Name:        "rollbacks_total",
			Help:        "Total number of journaled changes undone",
			ConstLabels: labels,
		}),
		SavepointsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "statetable",
			Subsystem:   "journal",
			Name:        "savepoints_total",
			Help:        "Total number of savepoints taken",
			ConstLabels: labels,
		}),

		OpenTables: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "statetable",
			Subsystem:   "commit",
			Name:        "open_tables",
			Help:        "Number of tables open in the current block",
			ConstLabels: labels,
		}),
		CommitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "statetable",
			Subsystem:   "commit",
			Name:        "commits_total",
			Help:        "Total number of block commits",
			ConstLabels: labels,
		}),
		CommitSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "statetable",
			Subsystem:   "commit",
			Name:        "duration_seconds",
			Help:        "Histogram of block commit durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		HashSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "statetable",
			Subsystem:   "commit",
			Name:        "hash_duration_seconds",
			Help:        "Histogram of state hash computation durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),

		MemoryUsageBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "statetable",
			Subsystem:   "system",
			Name:        "memory_usage_bytes",
			Help:        "Current heap allocation in bytes",
			ConstLabels: labels,
		}),
		GoroutinesTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "statetable",
			Subsystem:   "system",
			Name:        "goroutines",
			Help:        "Current number of goroutines",
			ConstLabels: labels,
		}),
	}
}

// UpdateSystemStats refreshes the system-level gauges
func (m *Metrics) UpdateSystemStats(memoryBytes int64, goroutines int) {
	m.MemoryUsageBytes.Set(float64(memoryBytes))
	m.GoroutinesTotal.Set(float64(goroutines))
}
