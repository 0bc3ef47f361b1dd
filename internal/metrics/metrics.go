// Package metrics exposes rollback counters and durations as Prometheus
// metrics, fed from the event bus.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/RevCBH/trunkback/internal/events"
)

// Config names the metric family.
type Config struct {
	Namespace string
	Subsystem string

	// DurationBuckets for rollback_duration_seconds (default: 0.5s to ~17m)
	DurationBuckets []float64
}

// Outcome label values for rollbacks_total
const (
	OutcomeCompleted = "completed"
	OutcomeNoOp      = "noop"
	OutcomeDryRun    = "dry_run"
	OutcomeFailed    = "failed"
)

// RollbackMetrics tracks rollback runs.
//
// Metrics:
//   - <ns>_rollbacks_total: runs by strategy and outcome
//   - <ns>_rollback_paths_total: paths removed or restored
//   - <ns>_rollback_conflicts_resolved_total: merge conflicts resolved by policy
//   - <ns>_rollback_duration_seconds: run duration by strategy
type RollbackMetrics struct {
	rollbacksTotal    *prometheus.CounterVec
	pathsTotal        *prometheus.CounterVec
	conflictsResolved *prometheus.CounterVec
	duration          *prometheus.HistogramVec

	mu      sync.Mutex
	started map[string]time.Time
}

// NewRollbackMetrics creates and registers rollback metrics with registry.
func NewRollbackMetrics(cfg Config, registry prometheus.Registerer) *RollbackMetrics {
	buckets := cfg.DurationBuckets
	if len(buckets) == 0 {
		buckets = prometheus.ExponentialBuckets(0.5, 2, 12)
	}

	m := &RollbackMetrics{
		rollbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rollbacks_total",
				Help:      "Total number of rollback runs",
			},
			[]string{"strategy", "outcome"},
		),
		pathsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rollback_paths_total",
				Help:      "Total number of paths removed or restored by rollbacks",
			},
			[]string{"action"},
		),
		conflictsResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rollback_conflicts_resolved_total",
				Help:      "Total number of merge conflicts resolved by policy",
			},
			[]string{"resolution"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rollback_duration_seconds",
				Help:      "Duration of rollback runs in seconds",
				Buckets:   buckets,
			},
			[]string{"strategy"},
		),
		started: make(map[string]time.Time),
	}

	registry.MustRegister(
		m.rollbacksTotal,
		m.pathsTotal,
		m.conflictsResolved,
		m.duration,
	)
	return m
}

// Handler returns an event handler that updates the metrics.
func (m *RollbackMetrics) Handler() events.Handler {
	return func(e events.Event) {
		switch e.Type {
		case events.RollbackStarted:
			m.mu.Lock()
			m.started[e.Run] = e.Time
			m.mu.Unlock()
		case events.PathRemoved:
			m.pathsTotal.WithLabelValues("remove").Inc()
		case events.PathRestored:
			m.pathsTotal.WithLabelValues("restore").Inc()
		case events.ConflictResolved:
			m.conflictsResolved.WithLabelValues(payloadString(e.Payload, "resolution")).Inc()
		case events.RollbackCompleted:
			m.finish(e, OutcomeCompleted)
		case events.RollbackNoOp:
			m.finish(e, OutcomeNoOp)
		case events.DryRunCompleted:
			m.finish(e, OutcomeDryRun)
		case events.RollbackFailed:
			m.finish(e, OutcomeFailed)
		}
	}
}

func (m *RollbackMetrics) finish(e events.Event, outcome string) {
	m.rollbacksTotal.WithLabelValues(e.Strategy, outcome).Inc()

	m.mu.Lock()
	start, ok := m.started[e.Run]
	delete(m.started, e.Run)
	m.mu.Unlock()
	if ok && !start.IsZero() && !e.Time.IsZero() {
		m.duration.WithLabelValues(e.Strategy).Observe(e.Time.Sub(start).Seconds())
	}
}

// WriteTextfile writes every metric in gatherer to path in the node
// exporter textfile format.
func WriteTextfile(path string, gatherer prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func payloadString(payload any, key string) string {
	if m, ok := payload.(map[string]any); ok {
		if s, ok := m[key].(string); ok {
			return s
		}
	}
	return "unknown"
}
