// Package batch runs one batch of timed sleeping workers and joins them.
package batch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/psantana5/ctime/internal/logging"
	"github.com/psantana5/ctime/internal/random"
	"github.com/psantana5/ctime/internal/report"
	"github.com/psantana5/ctime/internal/timer"
)

// Config describes one batch
type Config struct {
	Threads     int
	MaxDuration int
	// Unit is the length of one duration step. Defaults to one second.
	Unit time.Duration
	// MainSpan brackets spawn and join with timer 0
	MainSpan bool
	// LockOSThread pins every worker to its own OS thread
	LockOSThread bool
}

// Summary is what a finished batch leaves behind
type Summary struct {
	RunID    string
	Strategy timer.Strategy
	Budget   time.Duration
	// Results holds worker i+1 at index i
	Results  []*report.Result
	Main     *report.Result
	TimedOut []report.ThreadID
	Dropped  []report.ThreadID
}

// Runner spawns workers against one shared timer context
type Runner struct {
	shared    *timer.Shared
	logger    *logging.Logger
	durations func(max int) int
}

// NewRunner creates a runner
func NewRunner(shared *timer.Shared, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{
		shared:    shared,
		logger:    logger,
		durations: random.Duration,
	}
}

// Run spawns cfg.Threads workers, each sleeping a random number of units in
// [1, cfg.MaxDuration], and joins all of them. A panicking worker is returned
// as an error after every other worker has been joined.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Summary, error) {
	if err := Validate(cfg.Threads, cfg.MaxDuration); err != nil {
		return nil, err
	}
	unit := cfg.Unit
	if unit <= 0 {
		unit = time.Second
	}

	s := r.shared
	summary := &Summary{
		RunID:    uuid.NewString(),
		Strategy: s.Strategy(),
		Budget:   s.Budget(),
		Results:  make([]*report.Result, cfg.Threads),
	}
	logger := r.logger.WithField("run", summary.RunID)
	logger.Info("batch starting", map[string]interface{}{
		"threads":      cfg.Threads,
		"max_duration": cfg.MaxDuration,
		"unit":         unit.String(),
		"strategy":     string(s.Strategy()),
	})

	if s.Strategy().UsesBudget() && s.Console() != nil {
		if err := s.Console().Printf("Timeout budget: %d ms", s.Budget().Milliseconds()); err != nil {
			logger.Error("failed to write budget", map[string]interface{}{"error": err.Error()})
		}
	}

	var mainTimer *timer.Timer
	if cfg.MainSpan {
		mainTimer = s.Start(ctx, report.ThreadID{Index: 0})
	}

	wg := conc.NewWaitGroup()
	for i := 0; i < cfg.Threads; i++ {
		idx := i
		wg.Go(func() {
			timer.RunOnThread(cfg.LockOSThread, func(tid int) {
				t := s.Start(ctx, report.ThreadID{Index: idx + 1, TID: tid})
				defer func() { summary.Results[idx] = t.Stop() }()

				steps := r.durations(cfg.MaxDuration)
				logger.Debug("worker sleeping", map[string]interface{}{
					"thread": idx + 1,
					"tid":    tid,
					"steps":  steps,
				})
				time.Sleep(time.Duration(steps) * unit)
			})
		})
	}
	recovered := wg.WaitAndRecover()

	if mainTimer != nil {
		summary.Main = mainTimer.Stop()
	}
	summary.TimedOut = s.TimedOut().Threads()
	summary.Dropped = s.Dropped().Threads()

	if recovered != nil {
		logger.Error("worker panicked", map[string]interface{}{"panic": recovered.String()})
		return summary, fmt.Errorf("worker failed: %w", recovered.AsError())
	}

	logger.Info("batch finished", map[string]interface{}{
		"timed_out": len(summary.TimedOut),
		"dropped":   len(summary.Dropped),
	})
	return summary, nil
}

// Lines is the trailing summary. The mutex strategy has none.
func (s *Summary) Lines() []string {
	if !s.Strategy.UsesBudget() {
		return nil
	}

	var lines []string
	if len(s.TimedOut) == 0 {
		lines = append(lines, "no threads timed out")
	} else {
		lines = append(lines, "threads timed out: "+joinIDs(s.TimedOut))
	}
	if len(s.Dropped) > 0 {
		lines = append(lines, "reports dropped by handshake: "+joinIDs(s.Dropped))
	}
	return lines
}

// All returns the main span result, if any, followed by the worker results
func (s *Summary) All() []*report.Result {
	all := make([]*report.Result, 0, len(s.Results)+1)
	if s.Main != nil {
		all = append(all, s.Main)
	}
	return append(all, s.Results...)
}

func joinIDs(ids []report.ThreadID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ", ")
}
