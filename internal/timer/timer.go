package timer

import (
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/psantana5/ctime/internal/observe"
	"github.com/psantana5/ctime/internal/report"
)

// Timer measures one scope. Use it as
//
//	t := shared.Start(ctx, id)
//	defer t.Stop()
type Timer struct {
	shared *Shared
	id     report.ThreadID
	timing *observe.Timing
	span   trace.Span

	once   sync.Once
	result *report.Result
}

// ID returns the thread identity of the timer
func (t *Timer) ID() report.ThreadID {
	return t.id
}

// Stop computes the elapsed time, then acquires the reporting role and
// reports. It never panics and never fails. Only the first call does work;
// later calls return the same result.
func (t *Timer) Stop() *report.Result {
	t.once.Do(t.stop)
	return t.result
}

func (t *Timer) stop() {
	s := t.shared

	t.timing.Complete()
	r := report.NewResult(t.id, string(s.strategy), t.timing)
	t.result = r

	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("timer report panicked", map[string]interface{}{
				"thread": t.id.Index,
				"panic":  fmt.Sprint(p),
			})
			t.span.SetStatus(codes.Error, fmt.Sprint(p))
		}

		s.metrics.RecordResult(r)
		r.LogSummary(s.logger)

		t.span.SetAttributes(
			attribute.Int("thread.index", t.id.Index),
			attribute.Int("thread.tid", t.id.TID),
			attribute.String("report.strategy", r.Strategy),
			attribute.String("report.outcome", string(r.Outcome)),
			attribute.Int64("report.wait_ns", r.Wait.Nanoseconds()),
		)
		t.span.End()
	}()

	s.report(r)
}
