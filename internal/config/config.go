// Package config holds the effective settings of a ctime run. Values come
// from flags, CTIME_* environment variables and an optional YAML file, in
// that order of precedence, through viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/psantana5/ctime/internal/batch"
	"github.com/psantana5/ctime/internal/report"
	"github.com/psantana5/ctime/internal/timer"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// MaxPinnedThreads keeps pinned workers well under the runtime's default
// limit of 10000 OS threads
const MaxPinnedThreads = 8000

// Config is the effective configuration
type Config struct {
	Strategy          string        `mapstructure:"strategy" json:"strategy" yaml:"strategy"`
	Threads           int           `mapstructure:"threads" json:"threads" yaml:"threads"`
	MaxDuration       int           `mapstructure:"max_duration" json:"max_duration" yaml:"max_duration"`
	TimeoutMultiplier float64       `mapstructure:"timeout_multiplier" json:"timeout_multiplier" yaml:"timeout_multiplier"`
	Timeout           time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
	Unit              time.Duration `mapstructure:"unit" json:"unit" yaml:"unit"`
	ReportUnit        string        `mapstructure:"report_unit" json:"report_unit" yaml:"report_unit"`
	MainSpan          bool          `mapstructure:"main_span" json:"main_span" yaml:"main_span"`
	LockOSThread      bool          `mapstructure:"lock_os_thread" json:"lock_os_thread" yaml:"lock_os_thread"`

	Log     LogConfig     `mapstructure:"log" json:"log" yaml:"log"`
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing" yaml:"tracing"`
}

// LogConfig configures the stderr logger
type LogConfig struct {
	Level string `mapstructure:"level" json:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" json:"json" yaml:"json"`
}

// TracingConfig configures the optional OTLP span export
type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint" json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	ServiceName string `mapstructure:"service_name" json:"service_name" yaml:"service_name"`
}

// SetDefaults registers default values on v. main_span has no static
// default, Load derives it from the strategy.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("strategy", string(timer.StrategyTimeout))
	v.SetDefault("threads", -1)
	v.SetDefault("max_duration", 0)
	v.SetDefault("timeout_multiplier", batch.DefaultMultiplier)
	v.SetDefault("timeout", time.Duration(0))
	v.SetDefault("unit", time.Second)
	v.SetDefault("report_unit", string(report.Milliseconds))
	v.SetDefault("lock_os_thread", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "ctime")
}

// Load decodes and validates the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if !v.IsSet("main_span") {
		cfg.MainSpan = DefaultMainSpan(cfg.Strategy)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultMainSpan is the main_span value used when none is configured.
// Only the budget strategies time the main span.
func DefaultMainSpan(strategy string) bool {
	s, err := timer.ParseStrategy(strategy)
	return err == nil && s.UsesBudget()
}

// Interactive reports whether thread count and max duration must be read
// from stdin
func (c *Config) Interactive() bool {
	return c.Threads < 0 && c.MaxDuration == 0
}

// Validate checks ranges and enum values
func (c *Config) Validate() error {
	strategy, err := timer.ParseStrategy(c.Strategy)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := report.ParseUnit(c.ReportUnit); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if !c.Interactive() {
		if err := batch.Validate(c.Threads, c.MaxDuration); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	if c.LockOSThread && c.Threads > MaxPinnedThreads {
		return fmt.Errorf("%w: %d pinned threads exceeds %d, disable lock_os_thread", ErrInvalidConfig, c.Threads, MaxPinnedThreads)
	}
	if c.Unit <= 0 {
		return fmt.Errorf("%w: unit must be positive, got %s", ErrInvalidConfig, c.Unit)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative, got %s", ErrInvalidConfig, c.Timeout)
	}
	if strategy.UsesBudget() && c.Timeout == 0 && c.TimeoutMultiplier <= 0 {
		return fmt.Errorf("%w: timeout_multiplier must be positive, got %g", ErrInvalidConfig, c.TimeoutMultiplier)
	}
	return nil
}

// Budget returns the wait budget for maxDuration: the explicit timeout when
// set, the multiplier rule otherwise
func (c *Config) Budget(maxDuration int) time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return batch.Budget(c.TimeoutMultiplier, maxDuration, c.Unit)
}
