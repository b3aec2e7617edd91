package report

// A timer's report is best effort. A worker never fails because of it.

import (
	"fmt"
	"strings"
	"time"

	"github.com/psantana5/ctime/internal/logging"
	"github.com/psantana5/ctime/internal/observe"
)

// Outcome is how a timer's report step ended
type Outcome string

const (
	// OutcomeReported means the timer held the reporting role and wrote its
	// line. WriteFailed tells whether the write itself failed.
	OutcomeReported Outcome = "reported"
	// OutcomeTimedOut means the wait budget expired and the thread went to the timed-out registry
	OutcomeTimedOut Outcome = "timed_out"
	// OutcomeDropped means the handshake wait expired and nothing was printed
	OutcomeDropped Outcome = "dropped"
)

// Unit is the unit elapsed times are reported in
type Unit string

const (
	Milliseconds Unit = "ms"
	Seconds      Unit = "s"
)

// ParseUnit parses "ms" or "s"
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ms", "millis", "milliseconds":
		return Milliseconds, nil
	case "s", "sec", "seconds":
		return Seconds, nil
	default:
		return "", fmt.Errorf("unknown report unit %q (want ms or s)", s)
	}
}

// Format renders d in the unit
func (u Unit) Format(d time.Duration) string {
	if u == Seconds {
		return fmt.Sprintf("%.3f seconds", d.Seconds())
	}
	return fmt.Sprintf("%d ms", d.Milliseconds())
}

// ThreadID identifies a timer. Index 0 is the main span, workers count from 1.
// TID is the OS thread id when the worker is locked to one, 0 otherwise.
type ThreadID struct {
	Index int `json:"index"`
	TID   int `json:"tid,omitempty"`
}

func (id ThreadID) String() string {
	if id.TID > 0 {
		return fmt.Sprintf("%d (tid %d)", id.Index, id.TID)
	}
	return fmt.Sprintf("%d", id.Index)
}

// Result is immutable timer-level truth. Set once at Stop, never change.
type Result struct {
	Thread   ThreadID `json:"thread"`
	Strategy string   `json:"strategy"`

	// Timing (immutable)
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"elapsed_ns"`

	// Report step
	Outcome     Outcome       `json:"outcome"`
	Wait        time.Duration `json:"wait_ns"`
	WriteFailed bool          `json:"write_failed,omitempty"`
}

// NewResult creates a result from a completed timing. Outcome is filled in
// by SetOutcome.
func NewResult(id ThreadID, strategy string, timing *observe.Timing) *Result {
	return &Result{
		Thread:    id,
		Strategy:  strategy,
		StartTime: timing.StartedAt,
		EndTime:   timing.CompletedAt,
		Duration:  timing.Duration(),
	}
}

// SetOutcome records how the report step ended. Call this ONCE.
func (r *Result) SetOutcome(o Outcome, wait time.Duration) {
	r.Outcome = o
	r.Wait = wait
}

// Line is the console report for this result
func (r *Result) Line(unit Unit) string {
	return fmt.Sprintf("Thread %s timed-out after... %s.", r.Thread, unit.Format(r.Duration))
}

// LogSummary emits a one-line debug summary of the result
func (r *Result) LogSummary(logger *logging.Logger) {
	fields := map[string]interface{}{
		"thread":   r.Thread.Index,
		"strategy": r.Strategy,
		"outcome":  string(r.Outcome),
		"elapsed":  r.Duration.String(),
		"wait":     r.Wait.String(),
	}
	if r.Thread.TID > 0 {
		fields["tid"] = r.Thread.TID
	}
	if r.WriteFailed {
		fields["write_failed"] = true
	}

	if r.Outcome == OutcomeDropped {
		logger.Warn("report dropped by handshake wait", fields)
		return
	}
	logger.Debug("timer stopped", fields)
}
