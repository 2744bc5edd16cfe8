package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photopro",
			Subsystem: "jobs",
			Name:      "total",
			Help:      "Total number of photo jobs by terminal outcome.",
		},
		[]string{"status"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "photopro",
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Wall time from submit to terminal state.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10), // 500ms to ~4m
		},
		[]string{"status"},
	)

	ledgerOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photopro",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Total number of ledger operations.",
		},
		[]string{"op", "outcome"},
	)

	eventsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "photopro",
			Subsystem: "notify",
			Name:      "events_sent_total",
			Help:      "Job events delivered over a live connection.",
		},
	)

	eventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "photopro",
			Subsystem: "notify",
			Name:      "events_dropped_total",
			Help:      "Job events dropped because no connection was attached.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		jobsTotal,
		jobDuration,
		ledgerOps,
		eventsSent,
		eventsDropped,
	)
}

// Handler exposes the registry for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveJob records a terminal job outcome.
func ObserveJob(status string, elapsed time.Duration) {
	jobsTotal.WithLabelValues(status).Inc()
	jobDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// ObserveLedgerOp records a ledger operation outcome.
func ObserveLedgerOp(op, outcome string) {
	ledgerOps.WithLabelValues(op, outcome).Inc()
}

// EventSent counts one delivered notification.
func EventSent() { eventsSent.Inc() }

// EventDropped counts one dropped notification.
func EventDropped() { eventsDropped.Inc() }
