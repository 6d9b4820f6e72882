package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "expensebot"

// Outcome labels of the commands counter.
const (
	OutcomeOK      = "ok"
	OutcomeUsage   = "usage_error"
	OutcomeEmpty   = "empty"
	OutcomeFailure = "failure"
)

type Metrics struct {
	registry *prometheus.Registry

	Commands         *prometheus.CounterVec
	HandlerDuration  *prometheus.HistogramVec
	ExpensesRecorded prometheus.Counter
	PendingSessions  prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands and callbacks handled, by outcome.",
		}, []string{"command", "outcome"}),
		HandlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Time spent handling a command or callback.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		ExpensesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expenses_recorded_total",
			Help:      "Expenses persisted through the add flow.",
		}),
		PendingSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_sessions",
			Help:      "Add flows waiting for a category.",
		}),
	}

	m.registry.MustRegister(
		m.Commands,
		m.HandlerDuration,
		m.ExpensesRecorded,
		m.PendingSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Observe(command, outcome string, started time.Time) {
	m.Commands.WithLabelValues(command, outcome).Inc()
	m.HandlerDuration.WithLabelValues(command).Observe(time.Since(started).Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
