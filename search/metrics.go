package search

import (
	"errors"
	"time"

	"github.com/poiesic/ontoquery/compiler"
	"github.com/poiesic/ontoquery/core"
	"github.com/poiesic/ontoquery/expand"
	"github.com/prometheus/client_golang/prometheus"
)

// Query outcomes reported by PrometheusMonitor.
const (
	OutcomeSuccess    = "success"
	OutcomeEmptyQuery = "empty_query"
	OutcomeError      = "error"
)

// PrometheusMonitor records query lifecycle metrics.
type PrometheusMonitor struct {
	queries       *prometheus.CounterVec
	failures      *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	expansionSize prometheus.Histogram
	resultRows    prometheus.Histogram
}

var _ QueryMonitor = (*PrometheusMonitor)(nil)

// NewPrometheusMonitor creates the query metrics and registers them on reg.
// A nil reg uses prometheus.DefaultRegisterer. Metrics already registered
// by an earlier monitor are reused.
func NewPrometheusMonitor(reg prometheus.Registerer) (*PrometheusMonitor, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &PrometheusMonitor{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ontoquery",
			Name:      "queries_total",
			Help:      "Total queries by outcome",
		}, []string{"outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ontoquery",
			Name:      "query_failures_total",
			Help:      "Total failed queries by the stage that failed",
		}, []string{"stage"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ontoquery",
			Name:      "stage_duration_seconds",
			Help:      "Time spent reaching each query stage",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 0.1ms to ~26s
		}, []string{"stage"}),
		expansionSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ontoquery",
			Name:      "term_expansion_concepts",
			Help:      "Number of concept ids each query term expanded to",
			Buckets:   []float64{0, 1, 2, 5, 10, 50, 100, 500, 1000, 5000},
		}),
		resultRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ontoquery",
			Name:      "result_rows",
			Help:      "Number of rows returned per query",
			Buckets:   prometheus.ExponentialBuckets(1, 10, 7),
		}),
	}

	register := func(c prometheus.Collector) (prometheus.Collector, error) {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				return already.ExistingCollector, nil
			}
			return nil, err
		}
		return c, nil
	}
	c, err := register(m.queries)
	if err != nil {
		return nil, err
	}
	m.queries = c.(*prometheus.CounterVec)
	if c, err = register(m.failures); err != nil {
		return nil, err
	}
	m.failures = c.(*prometheus.CounterVec)
	if c, err = register(m.stageDuration); err != nil {
		return nil, err
	}
	m.stageDuration = c.(*prometheus.HistogramVec)
	if c, err = register(m.expansionSize); err != nil {
		return nil, err
	}
	m.expansionSize = c.(prometheus.Histogram)
	if c, err = register(m.resultRows); err != nil {
		return nil, err
	}
	m.resultRows = c.(prometheus.Histogram)

	return m, nil
}

func (m *PrometheusMonitor) Start(_ core.Query) {}

func (m *PrometheusMonitor) Reached(stage core.Stage, elapsed time.Duration) {
	m.stageDuration.WithLabelValues(stage.String()).Observe(elapsed.Seconds())
}

func (m *PrometheusMonitor) AfterExpansion(expansions []expand.Expansion) {
	for _, exp := range expansions {
		m.expansionSize.Observe(float64(len(exp.IDs)))
	}
}

func (m *PrometheusMonitor) AfterCompile(_ *compiler.CompiledQuery) {}

func (m *PrometheusMonitor) Failed(stage core.Stage, err error) {
	if errors.Is(err, core.ErrEmptyQuery) {
		m.queries.WithLabelValues(OutcomeEmptyQuery).Inc()
	} else {
		m.queries.WithLabelValues(OutcomeError).Inc()
	}
	m.failures.WithLabelValues(stage.String()).Inc()
}

func (m *PrometheusMonitor) Finish(result *Result) {
	m.queries.WithLabelValues(OutcomeSuccess).Inc()
	m.resultRows.Observe(float64(result.Projection.Len()))
}
