package observe

// Elapsed time is always derived from the monotonic reading carried by time.Time.
// Wall-clock fields are for display only.

import "time"

// Timing records start/end readings of a single scope
type Timing struct {
	StartedAt   time.Time
	CompletedAt time.Time
}

// NewTiming creates timing with current start time
func NewTiming() *Timing {
	return &Timing{
		StartedAt: time.Now(),
	}
}

// Complete records completion time. Only the first call counts.
func (t *Timing) Complete() {
	if !t.CompletedAt.IsZero() {
		return
	}
	t.CompletedAt = time.Now()
}

// Duration returns the elapsed duration, never negative
func (t *Timing) Duration() time.Duration {
	var d time.Duration
	if t.CompletedAt.IsZero() {
		d = time.Since(t.StartedAt)
	} else {
		d = t.CompletedAt.Sub(t.StartedAt)
	}
	if d < 0 {
		return 0
	}
	return d
}
