package nativeapi

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/polyglot-native/errors"
	"github.com/wippyai/polyglot-native/reference"
	"github.com/wippyai/polyglot-native/scope"
)

// ConfigEnv names the environment variable holding the path of the config
// file read by the shared library.
const ConfigEnv = "POLYGLOT_CONFIG"

// Config tunes an Isolate.
type Config struct {
	// FrameCapacity is the slot capacity reserved for every frame.
	FrameCapacity int `toml:"frame_capacity"`

	// ReferenceQuarantine is the number of deleted reference slots held
	// back before any of them is reused.
	ReferenceQuarantine int `toml:"reference_quarantine"`

	// RecurringCallbacks enables RegisterRecurringCallback.
	RecurringCallbacks bool `toml:"recurring_callbacks"`

	// MinRecurringInterval is the shortest accepted recurring interval.
	// Shorter requests are raised to it.
	MinRecurringInterval Duration `toml:"min_recurring_interval"`

	Log LogConfig `toml:"log"`
}

// LogConfig selects the isolate logger.
type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Duration is a time.Duration written as a string ("5ms") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		FrameCapacity:        scope.DefaultFrameCapacity,
		ReferenceQuarantine:  reference.DefaultQuarantine,
		RecurringCallbacks:   true,
		MinRecurringInterval: Duration{time.Millisecond},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads a TOML file over the defaults. Unknown keys are
// rejected so a typo does not silently fall back to a default.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "cannot read "+path)
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse error in "+path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return cfg, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path(path).
			Detail("unknown keys: %s", strings.Join(keys, ", ")).
			Build()
	}
	return cfg, cfg.Validate()
}

// ConfigFromEnv loads the file named by POLYGLOT_CONFIG, or returns the
// defaults when the variable is unset.
func ConfigFromEnv() (Config, error) {
	path := os.Getenv(ConfigEnv)
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.FrameCapacity <= 0:
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("frame_capacity").
			Value(c.FrameCapacity).
			Detail("frame_capacity must be positive").
			Build()
	case c.ReferenceQuarantine < 0:
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("reference_quarantine").
			Value(c.ReferenceQuarantine).
			Detail("reference_quarantine must not be negative").
			Build()
	case c.MinRecurringInterval.Duration <= 0:
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("min_recurring_interval").
			Value(c.MinRecurringInterval.String()).
			Detail("min_recurring_interval must be positive").
			Build()
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("log", "level").
			Value(c.Log.Level).
			Cause(err).
			Detail("unknown log level %q", c.Log.Level).
			Build()
	}
	return nil
}

// NewLogger builds the zap logger described by c.
func NewLogger(c LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
