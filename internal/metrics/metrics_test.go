package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RevCBH/trunkback/internal/events"
)

func newTestMetrics(t *testing.T) (*RollbackMetrics, *prometheus.Registry, *events.Bus) {
	t.Helper()
	registry := prometheus.NewRegistry()
	m := NewRollbackMetrics(Config{Namespace: "trunkback"}, registry)
	bus := events.NewBus()
	bus.Subscribe(m.Handler())
	return m, registry, bus
}

func at(e events.Event, ts time.Time) events.Event {
	e.Time = ts
	return e
}

func TestHandler_CountsOutcomes(t *testing.T) {
	m, _, bus := newTestMetrics(t)

	bus.Emit(events.NewEvent(events.RollbackCompleted, "a").WithStrategy("diff"))
	bus.Emit(events.NewEvent(events.RollbackCompleted, "b").WithStrategy("diff"))
	bus.Emit(events.NewEvent(events.RollbackNoOp, "c").WithStrategy("merge"))
	bus.Emit(events.NewEvent(events.RollbackFailed, "d").WithStrategy("merge").WithError(errors.New("x")))
	bus.Emit(events.NewEvent(events.DryRunCompleted, "e").WithStrategy("diff"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rollbacksTotal.WithLabelValues("diff", OutcomeCompleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rollbacksTotal.WithLabelValues("merge", OutcomeNoOp)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rollbacksTotal.WithLabelValues("merge", OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rollbacksTotal.WithLabelValues("diff", OutcomeDryRun)))
}

func TestHandler_CountsPathsAndConflicts(t *testing.T) {
	m, _, bus := newTestMetrics(t)

	bus.Emit(events.NewEvent(events.PathRemoved, "a").WithPath("c.txt"))
	bus.Emit(events.NewEvent(events.PathRestored, "a").WithPath("a.txt"))
	bus.Emit(events.NewEvent(events.PathRestored, "a").WithPath("b.txt"))
	bus.Emit(events.NewEvent(events.ConflictResolved, "a").WithPayload(map[string]any{"resolution": "keep-theirs"}))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.pathsTotal.WithLabelValues("remove")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pathsTotal.WithLabelValues("restore")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflictsResolved.WithLabelValues("keep-theirs")))
}

func TestHandler_ObservesDuration(t *testing.T) {
	m, _, bus := newTestMetrics(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	bus.Emit(at(events.NewEvent(events.RollbackStarted, "a").WithStrategy("diff"), start))
	bus.Emit(at(events.NewEvent(events.RollbackCompleted, "a").WithStrategy("diff"), start.Add(3*time.Second)))

	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
	assert.Empty(t, m.started)
}

func TestWriteTextfile(t *testing.T) {
	_, registry, bus := newTestMetrics(t)
	bus.Emit(events.NewEvent(events.RollbackCompleted, "a").WithStrategy("diff"))

	path := filepath.Join(t.TempDir(), "trunkback.prom")
	require.NoError(t, WriteTextfile(path, registry))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data),
		`trunkback_rollbacks_total{outcome="completed",strategy="diff"} 1`), string(data))
}

func TestWriteTextfile_BadPath(t *testing.T) {
	_, registry, _ := newTestMetrics(t)

	err := WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"), registry)
	assert.Error(t, err)
}
