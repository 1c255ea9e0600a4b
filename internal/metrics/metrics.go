// Package metrics exposes the client's Prometheus registry: counters per
// reason-code family and histograms per component, satisfying the
// Observability component's "metrics" responsibility (spec.md §2, left
// unconcretized by the distillation).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dev-console/browserctl/internal/reason"
)

// Registry bundles the metrics the client records. A Registry is owned by
// the Client Facade and passed by reference into every subsystem
// constructor, never reached via a package-level global.
type Registry struct {
	reg *prometheus.Registry

	Outcomes     *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
	CommandsSent prometheus.Counter
	Reconnects   prometheus.Counter
	RecoveryAttempts *prometheus.CounterVec
	PoisonedContexts prometheus.Gauge
	QueueDepth       prometheus.Gauge
}

// New builds a Registry with all metrics registered against a fresh
// prometheus.Registry (never the global DefaultRegisterer, so tests and
// concurrent Client instances never collide).
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "browserctl_outcomes_total",
			Help: "Count of terminal outcomes by component and reason code.",
		}, []string{"component", "code"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "browserctl_step_duration_seconds",
			Help:    "Duration of executed steps by component.",
			Buckets: prometheus.DefBuckets,
		}, []string{"component"}),
		CommandsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "browserctl_commands_sent_total",
			Help: "Total protocol commands sent over all sessions.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "browserctl_session_reconnects_total",
			Help: "Total session reconnect attempts.",
		}),
		RecoveryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "browserctl_recovery_attempts_total",
			Help: "Recovery attempts by level and success.",
		}, []string{"level", "success"}),
		PoisonedContexts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "browserctl_poisoned_contexts",
			Help: "Current number of poisoned contexts under cooldown.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "browserctl_job_queue_depth",
			Help: "Current depth of the concurrency manager's job queue.",
		}),
	}

	reg.MustRegister(r.Outcomes, r.StepDuration, r.CommandsSent, r.Reconnects,
		r.RecoveryAttempts, r.PoisonedContexts, r.QueueDepth)
	return r
}

// Gatherer exposes the underlying registry for a /metrics HTTP handler.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// RecordOutcome increments the outcome counter for a component/reason pair.
func (r *Registry) RecordOutcome(component string, code reason.Code) {
	r.Outcomes.WithLabelValues(component, string(code)).Inc()
}
