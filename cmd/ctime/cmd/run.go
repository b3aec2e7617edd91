package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"

	"github.com/psantana5/ctime/internal/batch"
	"github.com/psantana5/ctime/internal/console"
	"github.com/psantana5/ctime/internal/report"
	"github.com/psantana5/ctime/internal/shutdown"
	"github.com/psantana5/ctime/internal/sysinfo"
	"github.com/psantana5/ctime/internal/timer"
	"github.com/psantana5/ctime/internal/tracing"
)

var (
	showTable   bool
	showMetrics bool
	showJSON    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one batch of timed threads",
	Long: `Run spawns a batch of worker threads. Each worker sleeps for a random
number of units in [1, max-duration] and reports its lifetime when it ends.

Without --threads and --max-duration both values are read from stdin.

Strategies for the shared console:
  mutex      block on a plain mutex; every thread reports
  handshake  condition variable plus a shared flag (anti-pattern demo; reports
             whose wait expires are dropped and listed in the summary)
  timeout    wait up to the budget for the console, otherwise record the
             thread as timed out

Example:
  echo "5 2" | ctime run
  ctime run --threads 5 --max-duration 1 --strategy timeout --timeout-multiplier 10
  ctime run -t 5 -d 1 --timeout 1ms --table --metrics
  ctime run -t 5 -d 1 --strategy handshake --timeout 1ms --json`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringP("strategy", "s", string(timer.StrategyTimeout), "console strategy: "+timer.StrategyNames(", "))
	f.IntP("threads", "t", -1, "number of worker threads (read from stdin when unset)")
	f.IntP("max-duration", "d", 0, "maximum sleep per thread, in units (read from stdin when unset)")
	f.Float64("timeout-multiplier", batch.DefaultMultiplier, "wait budget as a multiple of max-duration")
	f.Duration("timeout", 0, "explicit wait budget, overrides --timeout-multiplier")
	f.Duration("unit", time.Second, "length of one duration unit")
	f.String("report-unit", string(report.Milliseconds), "unit of reported lifetimes: ms or s")
	f.Bool("main-span", false, "also time the whole spawn/join block as thread 0 (on by default for handshake and timeout)")
	f.Bool("lock-os-thread", true, "pin every worker to its own OS thread")

	for key, flag := range map[string]string{
		"strategy":           "strategy",
		"threads":            "threads",
		"max_duration":       "max-duration",
		"timeout_multiplier": "timeout-multiplier",
		"timeout":            "timeout",
		"unit":               "unit",
		"report_unit":        "report-unit",
		"main_span":          "main-span",
		"lock_os_thread":     "lock-os-thread",
	} {
		viper.BindPFlag(key, f.Lookup(flag))
	}

	f.BoolVar(&showTable, "table", false, "print a per-thread results table after the summary")
	f.BoolVar(&showMetrics, "metrics", false, "print Prometheus metrics after the summary")
	f.BoolVar(&showJSON, "json", false, "print the timed-out and dropped registries as JSON after the summary")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)

	logger := newLogger(cfg.Log)
	out := cmd.OutOrStdout()
	con := console.New(out)

	threads, maxDuration := cfg.Threads, cfg.MaxDuration
	if cfg.Interactive() {
		if err := con.Println(batch.Banner); err != nil {
			return fmt.Errorf("failed to write banner: %w", err)
		}
		threads, maxDuration, err = batch.ReadInput(cmd.InOrStdin())
		if err != nil {
			return err
		}
		// re-check limits that depend on the thread count
		cfg.Threads, cfg.MaxDuration = threads, maxDuration
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	strategy, _ := timer.ParseStrategy(cfg.Strategy)
	unit, _ := report.ParseUnit(cfg.ReportUnit)

	if host, err := sysinfo.Detect(ctx); err == nil {
		logger.Debug("host detected", map[string]interface{}{
			"cpus":          host.LogicalCPUs,
			"gomaxprocs":    host.GoMaxProcs,
			"mem_available": sysinfo.FormatBytes(host.MemAvailable),
			"load1":         host.Load1,
		})
	}

	closer := shutdown.New(5*time.Second, logger)
	defer closer.Shutdown()

	provider, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: Version,
		Endpoint:       cfg.Tracing.Endpoint,
	}, logger)
	if err != nil {
		return err
	}
	closer.Register("tracer", provider.Shutdown)

	ctx, span := provider.StartSpan(ctx, "batch.run",
		attribute.String("strategy", string(strategy)),
		attribute.Int("threads", threads),
		attribute.Int("max_duration", maxDuration),
	)
	closer.Register("batch span", func(context.Context) error {
		span.End()
		return nil
	})

	metrics := report.NewMetrics()
	shared := timer.NewShared(timer.Options{
		Strategy: strategy,
		Budget:   cfg.Budget(maxDuration),
		Unit:     unit,
		Console:  con,
		Logger:   logger,
		Metrics:  metrics,
		Tracer:   provider.Tracer(),
	})

	summary, runErr := batch.NewRunner(shared, logger).Run(ctx, batch.Config{
		Threads:      threads,
		MaxDuration:  maxDuration,
		Unit:         cfg.Unit,
		MainSpan:     cfg.MainSpan,
		LockOSThread: cfg.LockOSThread,
	})
	if summary == nil {
		return runErr
	}

	for _, line := range summary.Lines() {
		if err := con.Println(line); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}
	if showTable {
		if err := report.WriteTable(out, summary.All(), unit); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}
	}
	if showMetrics {
		if err := report.PrometheusExport(out, metrics.Registry()); err != nil {
			return err
		}
	}
	if showJSON {
		if err := writeRegistriesJSON(out, summary, shared); err != nil {
			return err
		}
	}

	return runErr
}

// runRegistries is the --json view of a finished batch
type runRegistries struct {
	RunID    string          `json:"run_id"`
	Strategy string          `json:"strategy"`
	BudgetMS int64           `json:"budget_ms"`
	TimedOut json.RawMessage `json:"timed_out"`
	Dropped  json.RawMessage `json:"dropped"`
}

func writeRegistriesJSON(w io.Writer, summary *batch.Summary, shared *timer.Shared) error {
	timedOut, err := report.RegistryJSON(shared.TimedOut())
	if err != nil {
		return err
	}
	dropped, err := report.RegistryJSON(shared.Dropped())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(runRegistries{
		RunID:    summary.RunID,
		Strategy: string(summary.Strategy),
		BudgetMS: summary.Budget.Milliseconds(),
		TimedOut: json.RawMessage(timedOut),
		Dropped:  json.RawMessage(dropped),
	}); err != nil {
		return fmt.Errorf("failed to encode registries: %w", err)
	}
	return nil
}
