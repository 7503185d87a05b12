package search

import (
	"context"
	"testing"

	"github.com/poiesic/ontoquery/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMonitor(t *testing.T) {
	reg := prometheus.NewRegistry()
	monitor, err := NewPrometheusMonitor(reg)
	require.NoError(t, err)

	f := newFixture(t, WithMonitor(monitor))
	ctx := context.Background()

	_, err = f.searcher.Search(ctx, core.Query{Terms: []core.QueryTerm{term("C0205076", 1), term("lung", 0)}})
	require.NoError(t, err)
	_, err = f.searcher.Search(ctx, core.Query{})
	require.ErrorIs(t, err, core.ErrEmptyQuery)

	assert.Equal(t, 1.0, testutil.ToFloat64(monitor.queries.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(monitor.queries.WithLabelValues(OutcomeEmptyQuery)))
	assert.Equal(t, 0.0, testutil.ToFloat64(monitor.queries.WithLabelValues(OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(monitor.failures.WithLabelValues(core.StageCompiled.String())))

	// one series per stage label
	assert.Equal(t, 6, testutil.CollectAndCount(monitor.stageDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(monitor.expansionSize))
	assert.Equal(t, 1, testutil.CollectAndCount(monitor.resultRows))
}

func TestNewPrometheusMonitor_ReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPrometheusMonitor(reg)
	require.NoError(t, err)
	second, err := NewPrometheusMonitor(reg)
	require.NoError(t, err)

	first.Failed(core.StageExecuted, assert.AnError)
	assert.Equal(t, 1.0, testutil.ToFloat64(second.queries.WithLabelValues(OutcomeError)))
}

func TestMonitors(t *testing.T) {
	a, b := &recordingMonitor{}, &recordingMonitor{}
	f := newFixture(t, WithMonitor(Monitors(a, nil, b)))

	_, err := f.searcher.Search(context.Background(), core.Query{Terms: []core.QueryTerm{term("C0205076", 0)}})
	require.NoError(t, err)
	assert.Len(t, a.stages, 6)
	assert.Equal(t, a.stages, b.stages)
	assert.NotNil(t, b.finished)

	assert.IsType(t, &noopMonitor{}, Monitors())
}
