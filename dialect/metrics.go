package dialect

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of a MetricsDriver.
type Metrics struct {
	StatementsTotal    *prometheus.CounterVec
	StatementDuration  *prometheus.HistogramVec
	StatementsInFlight prometheus.Gauge
	ChangesTotal       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// registers with the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		StatementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "velograph_statements_total",
				Help: "Total number of executed statements",
			},
			[]string{"clause", "status"},
		),
		StatementDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "velograph_statement_duration_seconds",
				Help:    "Duration of executed statements in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"clause"},
		),
		StatementsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "velograph_statements_in_flight",
				Help: "Number of statements currently being executed",
			},
		),
		ChangesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "velograph_changes_total",
				Help: "Total number of graph changes reported by executed statements",
			},
			[]string{"kind"},
		),
	}
}

// RecordStatement records one executed statement.
func (m *Metrics) RecordStatement(clause, status string, duration time.Duration) {
	m.StatementsTotal.WithLabelValues(clause, status).Inc()
	m.StatementDuration.WithLabelValues(clause).Observe(duration.Seconds())
}

// RecordChanges adds the mutation counters of a statement.
func (m *Metrics) RecordChanges(s Stats) {
	for kind, n := range map[string]int{
		"nodes_created":         s.NodesCreated,
		"nodes_deleted":         s.NodesDeleted,
		"relationships_created": s.RelationshipsCreated,
		"relationships_deleted": s.RelationshipsDeleted,
		"properties_set":        s.PropertiesSet,
		"labels_added":          s.LabelsAdded,
		"labels_removed":        s.LabelsRemoved,
	} {
		if n > 0 {
			m.ChangesTotal.WithLabelValues(kind).Add(float64(n))
		}
	}
}

// MetricsDriver wraps a Driver with Prometheus instrumentation.
type MetricsDriver struct {
	Driver
	metrics *Metrics
}

// NewMetricsDriver wraps drv and records into m.
func NewMetricsDriver(drv Driver, m *Metrics) *MetricsDriver {
	return &MetricsDriver{Driver: drv, metrics: m}
}

// Metrics returns the collectors of the driver.
func (d *MetricsDriver) Metrics() *Metrics {
	return d.metrics
}

// Exec executes a statement and records its outcome.
func (d *MetricsDriver) Exec(ctx context.Context, stmt string, params map[string]any) (*Result, error) {
	d.metrics.StatementsInFlight.Inc()
	defer d.metrics.StatementsInFlight.Dec()
	start := time.Now()
	res, err := d.Driver.Exec(ctx, stmt, params)
	status := "ok"
	if err != nil {
		status = "error"
	}
	d.metrics.RecordStatement(Clause(stmt), status, time.Since(start))
	if res != nil {
		d.metrics.RecordChanges(res.Stats)
	}
	return res, err
}

// Clause returns the leading clause keyword of a statement in lower case,
// e.g. "match" or "create". It keeps metric label cardinality bounded.
func Clause(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if i := strings.IndexAny(stmt, " \t\n("); i > 0 {
		stmt = stmt[:i]
	}
	switch s := strings.ToLower(stmt); s {
	case "match", "optional", "create", "merge", "unwind", "with", "call", "return":
		return s
	}
	return "other"
}

var _ Driver = (*MetricsDriver)(nil)
