// Package metrics exposes the sync engine's counters as Prometheus metrics.
// Each collector implements an observer interface from one of the engine
// packages, so the engine itself stays free of a metrics dependency.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the metric set.
type Config struct {
	// Namespace is the metrics namespace (default: "minishop").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Set holds the engine metrics. It implements dedup.Observer,
// resource.Observer, optimistic.Observer and status.Observer.
type Set struct {
	dedupTotal     *prometheus.CounterVec
	cacheTotal     *prometheus.CounterVec
	mutationsTotal *prometheus.CounterVec
	rollbacksTotal prometheus.Counter
	streamConnects prometheus.Counter
	reconnects     prometheus.Counter
	pollRefreshes  prometheus.Counter
}

// New registers and returns the metric set.
func New(cfg Config) *Set {
	ns := cfg.Namespace
	if ns == "" {
		ns = "minishop"
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Set{
		dedupTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "dedup_requests_total",
			Help:        "Requests seen by the deduplicator, by outcome.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"outcome"}),
		cacheTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "cache_reads_total",
			Help:        "Resource reads, by cache outcome.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"outcome"}),
		mutationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "mutations_total",
			Help:        "Optimistic mutations settled, by result.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"result"}),
		rollbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "rollbacks_total",
			Help:        "Speculative updates rolled back after a server failure.",
			ConstLabels: cfg.ConstLabels,
		}),
		streamConnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "status_stream_connects_total",
			Help:        "Successful status stream connections.",
			ConstLabels: cfg.ConstLabels,
		}),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "status_stream_reconnects_total",
			Help:        "Stream errors that scheduled a reconnect.",
			ConstLabels: cfg.ConstLabels,
		}),
		pollRefreshes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "status_poll_refreshes_total",
			Help:        "Status refreshes served by the fallback poll.",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}

// DedupHit implements dedup.Observer.
func (s *Set) DedupHit(key string) { s.dedupTotal.WithLabelValues("hit").Inc() }

// DedupMiss implements dedup.Observer.
func (s *Set) DedupMiss(key string) { s.dedupTotal.WithLabelValues("miss").Inc() }

// CacheHit implements resource.Observer.
func (s *Set) CacheHit(key string) { s.cacheTotal.WithLabelValues("hit").Inc() }

// CacheMiss implements resource.Observer.
func (s *Set) CacheMiss(key string) { s.cacheTotal.WithLabelValues("miss").Inc() }

// MutationSettled implements optimistic.Observer.
func (s *Set) MutationSettled(key string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	s.mutationsTotal.WithLabelValues(result).Inc()
}

// RolledBack implements optimistic.Observer.
func (s *Set) RolledBack(key string) { s.rollbacksTotal.Inc() }

// StreamConnected implements status.Observer.
func (s *Set) StreamConnected() { s.streamConnects.Inc() }

// ReconnectScheduled implements status.Observer.
func (s *Set) ReconnectScheduled() { s.reconnects.Inc() }

// PollRefreshed implements status.Observer.
func (s *Set) PollRefreshed() { s.pollRefreshes.Inc() }
