package bench

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/roach88/vrtb/internal/fault"
	"github.com/roach88/vrtb/internal/network"
	"github.com/roach88/vrtb/internal/sim"
	"github.com/roach88/vrtb/internal/task"
)

// Environment variables read by LoadConfig.
const (
	EnvNetwork       = "VRTB_NETWORK"
	EnvLogLevel      = "VRTB_LOG_LEVEL"
	EnvClockPeriodNS = "VRTB_CLOCK_PERIOD_NS"
)

// MaxClockPeriodNS bounds VRTB_CLOCK_PERIOD_NS (1ms) so that simulated time,
// counted in picoseconds, stays far from overflow.
const MaxClockPeriodNS = 1_000_000

// Config selects the environment a bench runs in.
type Config struct {
	Network     network.Implementation
	LogLevel    slog.Level
	ClockPeriod sim.Time
}

// DefaultConfig returns the configuration used when no variable is set.
func DefaultConfig() Config {
	return Config{
		Network:     network.Bus,
		LogLevel:    slog.LevelInfo,
		ClockPeriod: task.DefaultPeriod,
	}
}

// LoadConfig reads the configuration from the process environment.
func LoadConfig() (Config, error) {
	return LoadConfigFrom(os.LookupEnv)
}

// LoadConfigFrom reads the configuration through lookup. Every value is
// validated; the first invalid one is returned as a ConfigError.
func LoadConfigFrom(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()

	if v, ok := lookup(EnvNetwork); ok && v != "" {
		impl, err := network.Parse(v)
		if err != nil {
			return Config{}, err
		}
		cfg.Network = impl
	}

	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
			return Config{}, fault.NewConfigError(fault.ErrCodeInvalidConfig, "%s: %v", EnvLogLevel, err)
		}
	}

	if v, ok := lookup(EnvClockPeriodNS); ok && v != "" {
		ns, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || ns <= 0 || ns > MaxClockPeriodNS {
			return Config{}, fault.NewConfigError(fault.ErrCodeInvalidConfig,
				"%s must be an integer in [1, %d], got %q", EnvClockPeriodNS, MaxClockPeriodNS, v)
		}
		cfg.ClockPeriod = sim.Time(ns) * sim.Nanosecond
	}

	return cfg, nil
}
