package timer

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/ctime/internal/console"
	"github.com/psantana5/ctime/internal/report"
)

// slowWriter holds every write for delay, so the reporting role stays busy
type slowWriter struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	delay time.Duration
}

func (w *slowWriter) Write(p []byte) (int, error) {
	time.Sleep(w.delay)
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *slowWriter) lines() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := strings.TrimSuffix(w.buf.String(), "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// runTimers starts n timers, sleeps for sleep in each goroutine, and stops
// all of them at about the same time
func runTimers(t *testing.T, s *Shared, n int, sleep time.Duration) []*report.Result {
	t.Helper()

	results := make([]*report.Result, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			tm := s.Start(context.Background(), report.ThreadID{Index: i + 1})
			defer func() { results[i] = tm.Stop() }()
			time.Sleep(sleep)
		}(i)
	}
	close(start)
	wg.Wait()
	return results
}

func countOutcome(results []*report.Result, o report.Outcome) int {
	n := 0
	for _, r := range results {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

func TestParseStrategy(t *testing.T) {
	for _, s := range Strategies {
		got, err := ParseStrategy(strings.ToUpper(string(s)))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStrategy("spinlock")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutex, handshake, timeout")

	assert.False(t, StrategyMutex.UsesBudget())
	assert.True(t, StrategyHandshake.UsesBudget())
	assert.True(t, StrategyTimeout.UsesBudget())
}

func TestMutexEveryTimerReports(t *testing.T) {
	w := &slowWriter{delay: time.Millisecond}
	s := NewShared(Options{Strategy: StrategyMutex, Console: console.New(w)})

	const n = 6
	sleep := 5 * time.Millisecond
	results := runTimers(t, s, n, sleep)

	assert.Len(t, w.lines(), n)
	assert.Equal(t, n, countOutcome(results, report.OutcomeReported))
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Duration, sleep)
		assert.Equal(t, "mutex", r.Strategy)
	}
	for _, line := range w.lines() {
		assert.Regexp(t, `^Thread \d+ timed-out after\.\.\. \d+ ms\.$`, line)
	}
	assert.Equal(t, uint64(n), s.Metrics().Snapshot()["reported"])
}

func TestTimeoutGenerousBudget(t *testing.T) {
	w := &slowWriter{delay: time.Millisecond}
	s := NewShared(Options{Strategy: StrategyTimeout, Budget: 10 * time.Second, Console: console.New(w)})

	const n = 5
	results := runTimers(t, s, n, 2*time.Millisecond)

	assert.Len(t, w.lines(), n)
	assert.Equal(t, n, countOutcome(results, report.OutcomeReported))
	assert.Equal(t, 0, s.TimedOut().Len())
}

func TestTimeoutTinyBudget(t *testing.T) {
	w := &slowWriter{delay: 30 * time.Millisecond}
	s := NewShared(Options{Strategy: StrategyTimeout, Budget: time.Millisecond, Console: console.New(w)})

	const n = 5
	results := runTimers(t, s, n, time.Millisecond)

	printed := len(w.lines())
	timedOut := s.TimedOut().Len()

	assert.Equal(t, n, printed+timedOut, "each timer prints or times out, never both")
	assert.GreaterOrEqual(t, timedOut, 1)
	assert.Equal(t, printed, countOutcome(results, report.OutcomeReported))
	assert.Equal(t, timedOut, countOutcome(results, report.OutcomeTimedOut))

	for _, id := range s.TimedOut().Threads() {
		for _, line := range w.lines() {
			assert.False(t, strings.HasPrefix(line, "Thread "+id.String()+" "), "timed-out thread %s also printed", id)
		}
	}
}

func TestHandshakeGenerousBudget(t *testing.T) {
	w := &slowWriter{delay: time.Millisecond}
	s := NewShared(Options{Strategy: StrategyHandshake, Budget: 10 * time.Second, Console: console.New(w)})

	const n = 5
	results := runTimers(t, s, n, 2*time.Millisecond)

	assert.Len(t, w.lines(), n)
	assert.Equal(t, n, countOutcome(results, report.OutcomeReported))
	assert.Equal(t, 0, s.Dropped().Len())
}

func TestHandshakeDropsUnderContention(t *testing.T) {
	w := &slowWriter{delay: 30 * time.Millisecond}
	s := NewShared(Options{Strategy: StrategyHandshake, Budget: time.Millisecond, Console: console.New(w)})

	const n = 5
	results := runTimers(t, s, n, time.Millisecond)

	printed := len(w.lines())
	dropped := s.Dropped().Len()

	assert.Equal(t, n, printed+dropped)
	assert.GreaterOrEqual(t, dropped, 1)
	assert.Equal(t, dropped, countOutcome(results, report.OutcomeDropped))
	assert.Equal(t, 0, s.TimedOut().Len(), "handshake never uses the timed-out registry")
}

func TestStopIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	s := NewShared(Options{Strategy: StrategyMutex, Console: console.New(&buf), Unit: report.Seconds})

	tm := s.Start(context.Background(), report.ThreadID{Index: 7, TID: 99})
	first := tm.Stop()
	second := tm.Stop()

	assert.Same(t, first, second)
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "Thread 7 (tid 99) timed-out after... ")
	assert.Contains(t, buf.String(), " seconds.")
	assert.GreaterOrEqual(t, first.Duration, time.Duration(0))
}

func TestStopRunsOnPanicPath(t *testing.T) {
	var buf bytes.Buffer
	s := NewShared(Options{Strategy: StrategyTimeout, Budget: time.Second, Console: console.New(&buf)})

	func() {
		defer func() { recover() }()
		tm := s.Start(context.Background(), report.ThreadID{Index: 1})
		defer tm.Stop()
		panic("worker failed")
	}()

	assert.Regexp(t, `^Thread 1 timed-out after\.\.\. \d+ ms\.\n$`, buf.String())
}

type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) { return 0, assert.AnError }

func TestStopSwallowsConsoleErrors(t *testing.T) {
	s := NewShared(Options{Strategy: StrategyMutex, Console: console.New(failWriter{})})

	tm := s.Start(context.Background(), report.ThreadID{Index: 1})
	r := tm.Stop()

	assert.Equal(t, report.OutcomeReported, r.Outcome)
	assert.True(t, r.WriteFailed)
	snap := s.Metrics().Snapshot()
	assert.Equal(t, uint64(1), snap["timers_stopped"])
	assert.Equal(t, uint64(1), snap["write_failures"])
}

func TestWriteFailuresCountedPerStrategy(t *testing.T) {
	for _, strategy := range Strategies {
		t.Run(string(strategy), func(t *testing.T) {
			s := NewShared(Options{Strategy: strategy, Budget: time.Second, Console: console.New(failWriter{})})
			results := runTimers(t, s, 3, time.Millisecond)

			assert.Equal(t, 3, countOutcome(results, report.OutcomeReported))
			for _, r := range results {
				assert.True(t, r.WriteFailed, "thread %d", r.Thread.Index)
			}
			assert.Equal(t, uint64(3), s.Metrics().Snapshot()["write_failures"])
			assert.Equal(t, uint64(0), s.Metrics().Snapshot()["timed_out"])
		})
	}
}

func TestCurrentTIDStable(t *testing.T) {
	if CurrentTID() == 0 {
		t.Skip("thread ids not available on this platform")
	}
	done := make(chan [2]int)
	go func() {
		// pinned like a worker
		lockAndRun(func() {
			done <- [2]int{CurrentTID(), CurrentTID()}
		})
	}()
	got := <-done
	assert.Equal(t, got[0], got[1])
	assert.Positive(t, got[0])
}
