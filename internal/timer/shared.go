// Package timer implements the scoped thread timer: start it when a scope
// begins, defer Stop, and Stop reports the scope's lifetime on the shared
// console without ever interleaving with other threads.
package timer

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/psantana5/ctime/internal/condvar"
	"github.com/psantana5/ctime/internal/console"
	"github.com/psantana5/ctime/internal/logging"
	"github.com/psantana5/ctime/internal/observe"
	"github.com/psantana5/ctime/internal/report"
)

// Options configures a Shared context
type Options struct {
	Strategy Strategy
	// Budget bounds the wait for the reporting role. Ignored by StrategyMutex.
	Budget  time.Duration
	Unit    report.Unit
	Console *console.Console
	Logger  *logging.Logger
	Metrics *report.Metrics
	Tracer  trace.Tracer
}

// Shared is the state every timer of one batch synchronizes through.
// Build one per batch and hand it to every worker.
type Shared struct {
	strategy Strategy
	budget   time.Duration
	unit     report.Unit
	console  *console.Console
	logger   *logging.Logger
	metrics  *report.Metrics
	tracer   trace.Tracer

	// mutex strategy: holding mu is holding the role
	mu sync.Mutex

	// handshake and timeout strategies
	roleMu    sync.Mutex
	cond      *condvar.Cond // bound to roleMu
	available bool          // handshake predicate, guarded by roleMu
	busy      bool          // timeout role holder flag, guarded by roleMu

	timedOut *report.Registry
	dropped  *report.Registry
}

// NewShared creates the shared context. Nil collaborators get defaults.
func NewShared(opts Options) *Shared {
	s := &Shared{
		strategy:  opts.Strategy,
		budget:    opts.Budget,
		unit:      opts.Unit,
		console:   opts.Console,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
		available: true,
		timedOut:  report.NewRegistry(),
		dropped:   report.NewRegistry(),
	}
	s.cond = condvar.New(&s.roleMu)

	if s.strategy == "" {
		s.strategy = StrategyMutex
	}
	if s.unit == "" {
		s.unit = report.Milliseconds
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.metrics == nil {
		s.metrics = report.NewMetrics()
	}
	if s.tracer == nil {
		s.tracer = noop.NewTracerProvider().Tracer("ctime")
	}
	if s.strategy.UsesBudget() {
		s.metrics.SetBudget(s.budget)
	}
	return s
}

// Start captures the current time for the scope of id. No I/O, no locking.
func (s *Shared) Start(ctx context.Context, id report.ThreadID) *Timer {
	s.metrics.IncrStarted()
	_, span := s.tracer.Start(ctx, "thread.lifetime", trace.WithTimestamp(time.Now()))
	return &Timer{
		shared: s,
		id:     id,
		timing: observe.NewTiming(),
		span:   span,
	}
}

// Strategy returns the configured strategy
func (s *Shared) Strategy() Strategy { return s.strategy }

// Budget returns the configured wait budget
func (s *Shared) Budget() time.Duration { return s.budget }

// Unit returns the report unit
func (s *Shared) Unit() report.Unit { return s.unit }

// Console returns the console sink
func (s *Shared) Console() *console.Console { return s.console }

// Metrics returns the batch metrics
func (s *Shared) Metrics() *report.Metrics { return s.metrics }

// TimedOut returns the registry of threads whose wait budget expired
func (s *Shared) TimedOut() *report.Registry { return s.timedOut }

// Dropped returns the threads whose report the handshake dropped
func (s *Shared) Dropped() *report.Registry { return s.dropped }

// print writes the report line. Write errors are logged and flagged on r,
// never returned.
func (s *Shared) print(r *report.Result) {
	if s.console == nil {
		return
	}
	if err := s.console.Println(r.Line(s.unit)); err != nil {
		r.WriteFailed = true
		s.logger.Error("failed to write report", map[string]interface{}{
			"thread": r.Thread.Index,
			"error":  err.Error(),
		})
	}
}

// report acquires the reporting role with the configured strategy and
// fills in r's outcome
func (s *Shared) report(r *report.Result) {
	switch s.strategy {
	case StrategyHandshake:
		s.reportHandshake(r)
	case StrategyTimeout:
		s.reportTimeout(r)
	default:
		s.reportMutex(r)
	}
}

func (s *Shared) reportMutex(r *report.Result) {
	waitStart := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	r.SetOutcome(report.OutcomeReported, time.Since(waitStart))
	s.print(r)
}

// reportHandshake is the condition-variable emulation of a mutex. Do not
// copy it: on timeout it resets the predicate regardless of who holds the
// role, and the report is lost.
func (s *Shared) reportHandshake(r *report.Result) {
	waitStart := time.Now()

	s.roleMu.Lock()
	s.cond.Signal()
	ok := s.cond.WaitFor(s.budget, func() bool { return s.available })
	waited := time.Since(waitStart)

	if !ok {
		// Must not strand other waiters
		s.available = true
		s.roleMu.Unlock()
		s.cond.Signal()

		r.SetOutcome(report.OutcomeDropped, waited)
		s.dropped.Record(r)
		return
	}

	s.available = false
	s.roleMu.Unlock()

	r.SetOutcome(report.OutcomeReported, waited)
	s.print(r)

	s.roleMu.Lock()
	s.available = true
	s.roleMu.Unlock()
	s.cond.Signal()
}

func (s *Shared) reportTimeout(r *report.Result) {
	waitStart := time.Now()

	s.roleMu.Lock()
	ok := s.cond.WaitFor(s.budget, func() bool { return !s.busy })
	waited := time.Since(waitStart)

	if !ok {
		s.roleMu.Unlock()
		r.SetOutcome(report.OutcomeTimedOut, waited)
		s.timedOut.Record(r)
		s.cond.Signal()
		return
	}

	s.busy = true
	s.roleMu.Unlock()

	r.SetOutcome(report.OutcomeReported, waited)
	s.print(r)

	s.roleMu.Lock()
	s.busy = false
	s.roleMu.Unlock()
	s.cond.Signal()
}
