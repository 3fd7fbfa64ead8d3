// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector. Each instance owns its registry so tests
// can build one without touching global state.
type Metrics struct {
	registry *prometheus.Registry

	Reconciliations *prometheus.CounterVec
	PoidTransitions prometheus.Counter
	OutboxTasks     *prometheus.CounterVec
	EmailsSent      *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// Reconciliation results.
const (
	ResultWritten   = "written"
	ResultCompleted = "completed"
	ResultError     = "error"
)

// Task and delivery results.
const (
	ResultSent     = "sent"
	ResultRetry    = "retry"
	ResultFailed   = "failed"
	ResultDeduped  = "deduped"
	ResultEnqueued = "enqueued"
)

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_reconciliations_total",
			Help: "Instruction submissions by outcome.",
		}, []string{"result"}),
		PoidTransitions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_poid_transitions_total",
			Help: "Instructions that entered the poid status.",
		}),
		OutboxTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_outbox_tasks_total",
			Help: "Outbox task transitions by kind and result.",
		}, []string{"kind", "result"}),
		EmailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_emails_sent_total",
			Help: "Email deliveries by transport and result.",
		}, []string{"transport", "result"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intake_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Reconciliations,
		m.PoidTransitions,
		m.OutboxTasks,
		m.EmailsSent,
		m.HTTPDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
