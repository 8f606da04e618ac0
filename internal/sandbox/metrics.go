package sandbox

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "kobra"

const sandboxSubsystem = "sandbox"

// Run outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Metrics records statement and run counts. A nil *Metrics records nothing.
type Metrics struct {
	// StatementsTotal counts executed statements.
	// Labels: block (create, fit, predict, print, plot), outcome (ok, failed)
	StatementsTotal *prometheus.CounterVec

	// StatementDurationSeconds measures statement latency.
	// Labels: block
	StatementDurationSeconds *prometheus.HistogramVec

	// RunsTotal counts program runs.
	// Labels: outcome (ok, failed, cancelled)
	RunsTotal *prometheus.CounterVec
}

// NewMetrics registers the sandbox metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StatementsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: sandboxSubsystem,
			Name:      "statements_total",
			Help:      "Executed statements by block type and outcome",
		}, []string{"block", "outcome"}),
		StatementDurationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: sandboxSubsystem,
			Name:      "statement_duration_seconds",
			Help:      "Statement execution time in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"block"}),
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: sandboxSubsystem,
			Name:      "runs_total",
			Help:      "Program runs by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) observeStatement(block, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.StatementsTotal.WithLabelValues(block, outcome).Inc()
	m.StatementDurationSeconds.WithLabelValues(block).Observe(d.Seconds())
}

func (m *Metrics) observeRun(outcome string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
}
