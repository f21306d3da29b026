// Package mutation executes write operations against the server with
// optional optimistic cache patches and automatic invalidation on settle.
package mutation

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sitesentry/livesync/internal/logger"
	"github.com/sitesentry/livesync/internal/querycache"
)

// Tx captures the optimistic patches of one mutation so they can be rolled
// back together. Snapshots are restored in reverse order of application;
// either all patches are reverted or none.
type Tx struct {
	cache     *querycache.Cache
	snapshots []snapshot
}

type snapshot struct {
	key      querycache.Key
	previous any
	existed  bool
}

// Patch applies a tentative cache write, remembering the previous value.
func (t *Tx) Patch(key querycache.Key, update func(old any, ok bool) any) {
	prev, existed := t.cache.Peek(key)
	t.snapshots = append(t.snapshots, snapshot{key: key, previous: prev, existed: existed})
	t.cache.Write(key, update)
}

func (t *Tx) rollback() {
	for i := len(t.snapshots) - 1; i >= 0; i-- {
		s := t.snapshots[i]
		if s.existed {
			t.cache.Write(s.key, func(any, bool) any { return s.previous })
		} else {
			t.cache.Remove(s.key)
		}
	}
}

// Mutation describes one write operation.
type Mutation struct {
	// Name labels the operation in logs and metrics.
	Name string
	// Run performs the network call.
	Run func(ctx context.Context) (any, error)
	// Optimistic, when set, patches the cache before Run resolves.
	Optimistic func(tx *Tx)
	// InvalidateKeys returns the key prefixes to invalidate after a
	// successful Run. The result re-syncs the cache with authoritative
	// state even when the optimistic patch was imprecise.
	InvalidateKeys func(result any) []querycache.Key
}

// Metrics counts mutation outcomes. Nil-safe.
type Metrics struct {
	executed  *prometheus.CounterVec
	rollbacks prometheus.Counter
}

// NewMetrics registers mutation metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		executed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "livesync_mutations_total",
			Help: "Mutations executed, by name and outcome.",
		}, []string{"name", "outcome"}),
		rollbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "livesync_mutation_rollbacks_total",
			Help: "Optimistic patches rolled back after a failed mutation.",
		}),
	}
}

// Engine runs mutations against the cache. It never retries: retrying a
// failed user action is the caller's decision.
type Engine struct {
	cache   *querycache.Cache
	log     logger.Logger
	metrics *Metrics
}

// NewEngine creates a mutation engine bound to the session cache.
func NewEngine(cache *querycache.Cache, log logger.Logger, metrics *Metrics) *Engine {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Engine{cache: cache, log: log, metrics: metrics}
}

// Do executes the mutation. On failure every optimistic patch is restored
// and the error is returned unwrapped for the caller to surface.
func (e *Engine) Do(ctx context.Context, m Mutation) (any, error) {
	var tx *Tx
	if m.Optimistic != nil {
		tx = &Tx{cache: e.cache}
		m.Optimistic(tx)
	}

	result, err := m.Run(ctx)
	if err != nil {
		if tx != nil {
			tx.rollback()
			if e.metrics != nil {
				e.metrics.rollbacks.Inc()
			}
		}
		if e.metrics != nil {
			e.metrics.executed.WithLabelValues(m.Name, "error").Inc()
		}
		e.log.Warn("mutation failed",
			logger.String("mutation", m.Name),
			logger.Error(err),
		)
		return nil, err
	}

	if m.InvalidateKeys != nil {
		for _, key := range m.InvalidateKeys(result) {
			e.cache.Invalidate(key)
		}
	}
	if e.metrics != nil {
		e.metrics.executed.WithLabelValues(m.Name, "success").Inc()
	}
	e.log.Debug("mutation applied", logger.String("mutation", m.Name))
	return result, nil
}
