// Package metrics declares the prometheus collectors of the playback pipeline.
// Collectors work unregistered; Register exposes them on a registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kitsune"

var (
	LiveHandles = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "engine_live_handles",
		Help:      "Adapter handles currently attached, by media surface.",
	}, []string{"surface"})

	EngineErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "engine_errors_total",
		Help:      "Stream engine errors by kind and fatality.",
	}, []string{"kind", "fatal"})

	EngineRecoveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "engine_recoveries_total",
		Help:      "Recovery actions taken by the adapter.",
	}, []string{"action"})

	UpstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Upstream stream requests by category and outcome.",
	}, []string{"category", "outcome"})

	UpstreamDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_request_duration_seconds",
		Help:      "Upstream request duration including retries.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10},
	}, []string{"category"})

	ProgressWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "progress_writes_total",
		Help:      "Watch progress writes by outcome.",
	}, []string{"outcome"})

	Sessions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_transitions_total",
		Help:      "Session state transitions by target state.",
	}, []string{"state"})

	TeardownDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "teardown_duration_seconds",
		Help:      "Time taken to release a session.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})

	TeardownStepFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "teardown_step_failures_total",
		Help:      "Failed teardown steps by step name.",
	}, []string{"step"})
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		LiveHandles,
		EngineErrors,
		EngineRecoveries,
		UpstreamRequests,
		UpstreamDuration,
		ProgressWrites,
		Sessions,
		TeardownDuration,
		TeardownStepFailures,
	)
}
