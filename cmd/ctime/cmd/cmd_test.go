package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/psantana5/ctime/internal/batch"
	"github.com/psantana5/ctime/internal/config"
)

// resetFlags restores every flag to its default so tests do not leak
// values into each other through the package-level commands
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append(args, "--log-level", "error"))

	err := rootCmd.Execute()
	return out.String(), err
}

func countReports(out string) int {
	n := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "Thread ") {
			n++
		}
	}
	return n
}

func TestRunFromStdinMutex(t *testing.T) {
	out, err := execute(t, "3 2\n", "run", "--strategy", "mutex", "--unit", "1ms")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !strings.HasPrefix(out, batch.Banner+"\n") {
		t.Errorf("output should start with the banner, got %q", out)
	}
	if got := countReports(out); got != 3 {
		t.Errorf("got %d report lines, want 3:\n%s", got, out)
	}
	if strings.Contains(out, "timed out") {
		t.Errorf("mutex strategy should print no summary:\n%s", out)
	}
	if strings.Contains(out, "Thread 0 ") {
		t.Errorf("mutex strategy should not time the main span by default:\n%s", out)
	}
}

func TestRunMutexExplicitMainSpan(t *testing.T) {
	out, err := execute(t, "", "run", "-t", "3", "-d", "2", "--strategy", "mutex", "--unit", "1ms", "--main-span")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got := countReports(out); got != 4 {
		t.Errorf("got %d report lines, want 4:\n%s", got, out)
	}
}

func TestRunJSONRegistries(t *testing.T) {
	out, err := execute(t, "", "run", "-t", "2", "-d", "1", "--unit", "1ms", "--timeout", "1s", "--main-span=false", "--json")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	start := strings.Index(out, "{")
	if start < 0 {
		t.Fatalf("no json in output:\n%s", out)
	}
	var got runRegistries
	if err := json.Unmarshal([]byte(out[start:]), &got); err != nil {
		t.Fatalf("invalid json %q: %v", out[start:], err)
	}
	if got.RunID == "" || got.Strategy != "timeout" || got.BudgetMS != 1000 {
		t.Errorf("unexpected header: %+v", got)
	}
	if string(got.TimedOut) != "[]" || string(got.Dropped) != "[]" {
		t.Errorf("registries should be empty, got %s and %s", got.TimedOut, got.Dropped)
	}
}

type closedWriter struct{}

func (closedWriter) Write(p []byte) (int, error) { return 0, io.ErrClosedPipe }

func TestRunBannerWriteFailure(t *testing.T) {
	resetFlags(rootCmd)
	rootCmd.SetOut(closedWriter{})
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader("3 2\n"))
	rootCmd.SetArgs([]string{"run", "--unit", "1ms", "--log-level", "error"})

	err := rootCmd.Execute()
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("error = %v, want ErrClosedPipe", err)
	}
}

func TestRunTimeoutGenerousBudget(t *testing.T) {
	out, err := execute(t, "", "run", "-t", "5", "-d", "1", "--unit", "1ms", "--timeout-multiplier", "100")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !strings.Contains(out, "Timeout budget: 100 ms\n") {
		t.Errorf("budget echo missing:\n%s", out)
	}
	// 5 workers plus the main span
	if got := countReports(out); got != 6 {
		t.Errorf("got %d report lines, want 6:\n%s", got, out)
	}
	if !strings.HasSuffix(out, "no threads timed out\n") {
		t.Errorf("summary missing:\n%s", out)
	}
	if strings.Contains(out, batch.Banner) {
		t.Error("banner printed although inputs came from flags")
	}
}

func TestRunTableAndMetrics(t *testing.T) {
	out, err := execute(t, "", "run", "-t", "2", "-d", "1", "--unit", "1ms", "--strategy", "mutex", "--table", "--metrics")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for _, want := range []string{"reported", "ctime_timers_started_total 2", "ctime_thread_lifetime_seconds"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunInvalidStdin(t *testing.T) {
	_, err := execute(t, "abc 2\n", "run", "--unit", "1ms")
	if !errors.Is(err, batch.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestRunInvalidStrategy(t *testing.T) {
	_, err := execute(t, "", "run", "-t", "1", "-d", "1", "--strategy", "spin")
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestConfigShowJSON(t *testing.T) {
	out, err := execute(t, "", "config", "show", "-o", "json")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}

	var cfg config.Config
	if err := json.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("invalid json %q: %v", out, err)
	}
	if cfg.Strategy != "timeout" || !cfg.MainSpan || cfg.TimeoutMultiplier != 1.5 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestConfigShowYAML(t *testing.T) {
	out, err := execute(t, "", "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(out, "strategy: timeout") || !strings.Contains(out, "unit: 1s") {
		t.Errorf("unexpected yaml:\n%s", out)
	}
}
