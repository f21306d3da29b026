package querycache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes cache behavior counters. All methods are nil-safe so the
// cache can run without a registry (tests, short-lived tools).
type Metrics struct {
	hits          prometheus.Counter
	misses        prometheus.Counter
	fetches       prometheus.Counter
	dedupedReads  prometheus.Counter
	invalidations prometheus.Counter
	entries       prometheus.Gauge
}

// NewMetrics registers cache metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		hits: factory.NewCounter(prometheus.CounterOpts{
			Name: "livesync_cache_hits_total",
			Help: "Reads served from a fresh cached value.",
		}),
		misses: factory.NewCounter(prometheus.CounterOpts{
			Name: "livesync_cache_misses_total",
			Help: "Reads that required a fetch.",
		}),
		fetches: factory.NewCounter(prometheus.CounterOpts{
			Name: "livesync_cache_fetches_total",
			Help: "Network fetches started by the cache.",
		}),
		dedupedReads: factory.NewCounter(prometheus.CounterOpts{
			Name: "livesync_cache_deduped_reads_total",
			Help: "Reads that attached to an already in-flight fetch.",
		}),
		invalidations: factory.NewCounter(prometheus.CounterOpts{
			Name: "livesync_cache_invalidations_total",
			Help: "Invalidation calls processed.",
		}),
		entries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "livesync_cache_entries",
			Help: "Live cache entries.",
		}),
	}
}

func (m *Metrics) incHits() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *Metrics) incMisses() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *Metrics) incFetches() {
	if m != nil {
		m.fetches.Inc()
	}
}

func (m *Metrics) incDedupedReads() {
	if m != nil {
		m.dedupedReads.Inc()
	}
}

func (m *Metrics) incInvalidations() {
	if m != nil {
		m.invalidations.Inc()
	}
}

func (m *Metrics) addEntries(delta float64) {
	if m != nil {
		m.entries.Add(delta)
	}
}
