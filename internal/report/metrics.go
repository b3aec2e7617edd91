package report

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are boring counters plus two histograms.
// Every counter must be explainable by looking at the batch's results.
type Metrics struct {
	// Timer lifecycle
	TimersStarted atomic.Uint64 // Start() called
	TimersStopped atomic.Uint64 // Stop() completed (any outcome)

	// Outcomes (source of truth: Result.Outcome)
	Reported atomic.Uint64
	TimedOut atomic.Uint64
	Dropped  atomic.Uint64

	// Reported lines the console failed to write
	WriteFailures atomic.Uint64

	registry      *prometheus.Registry
	started       prometheus.Counter
	outcomes      *prometheus.CounterVec
	writeFailures prometheus.Counter
	lifetime prometheus.Histogram
	wait     prometheus.Histogram
	budget   prometheus.Gauge
}

// NewMetrics creates metrics registered on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ctime_timers_started_total",
			Help: "Scoped timers started",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ctime_timers_total",
			Help: "Scoped timers stopped, by report outcome",
		}, []string{"strategy", "outcome"}),
		writeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ctime_report_write_failures_total",
			Help: "Report lines that failed to reach the console",
		}),
		lifetime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ctime_thread_lifetime_seconds",
			Help:    "Measured lifetime of each timed scope",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		wait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ctime_report_wait_seconds",
			Help:    "Time spent acquiring the reporting role",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		budget: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ctime_timeout_budget_seconds",
			Help: "Configured wait budget for the reporting role",
		}),
	}
	m.registry.MustRegister(m.started, m.outcomes, m.writeFailures, m.lifetime, m.wait, m.budget)
	return m
}

// Registry returns the prometheus registry backing the metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// IncrStarted increments the started counter
func (m *Metrics) IncrStarted() {
	m.TimersStarted.Add(1)
	m.started.Inc()
}

// SetBudget records the configured wait budget
func (m *Metrics) SetBudget(d time.Duration) {
	m.budget.Set(d.Seconds())
}

// RecordResult updates all counters from a single immutable Result.
// This is the ONLY way to update outcome metrics.
func (m *Metrics) RecordResult(r *Result) {
	m.TimersStopped.Add(1)

	switch r.Outcome {
	case OutcomeReported:
		m.Reported.Add(1)
	case OutcomeTimedOut:
		m.TimedOut.Add(1)
	case OutcomeDropped:
		m.Dropped.Add(1)
	}

	if r.WriteFailed {
		m.WriteFailures.Add(1)
		m.writeFailures.Inc()
	}

	m.outcomes.WithLabelValues(r.Strategy, string(r.Outcome)).Inc()
	m.lifetime.Observe(r.Duration.Seconds())
	m.wait.Observe(r.Wait.Seconds())
}

// Snapshot returns current counter values
func (m *Metrics) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"timers_started": m.TimersStarted.Load(),
		"timers_stopped": m.TimersStopped.Load(),
		"reported":       m.Reported.Load(),
		"timed_out":      m.TimedOut.Load(),
		"dropped":        m.Dropped.Load(),
		"write_failures": m.WriteFailures.Load(),
	}
}
