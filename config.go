package orchestrator

import (
	"time"

	"github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from yaml strings ("5s",
// "2m") as well as integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, errors.CategoryValidation, "invalid duration").
				WithTextCode("INVALID_DURATION").
				WithMetadata(map[string]any{"value": v})
		}
		*d = Duration(parsed)
		return nil
	case int:
		*d = Duration(time.Duration(v))
		return nil
	default:
		return errors.New("duration must be a string or integer", errors.CategoryValidation).
			WithTextCode("INVALID_DURATION")
	}
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the underlying time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LaunchRetryConfig bounds the engine's launch-retry policy: attempt N waits
// min(BaseDelay * 2^(N-1), MaxDelay) before the next try.
type LaunchRetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay"`
}

// PollingConfig bounds the reconciliation loop. Throttle protects the
// backend from fast ticks; MaxAttempts is the hard poll ceiling after which
// a record is forced to failed.
type PollingConfig struct {
	Throttle    Duration `yaml:"throttle"`
	MaxAttempts int      `yaml:"max_attempts"`
}

// HTTPBackendConfig is the per-adapter endpoint and credential surface. The
// engine never reads it; each adapter owns its own auth.
type HTTPBackendConfig struct {
	BaseURL  string   `yaml:"base_url"`
	Token    string   `yaml:"token,omitempty"`
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
	Timeout  Duration `yaml:"timeout"`
}

type BackendsConfig struct {
	AWX HTTPBackendConfig `yaml:"awx"`
	OO  HTTPBackendConfig `yaml:"oo"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type APIConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the host-facing configuration surface.
type Config struct {
	Cadence     Duration          `yaml:"cadence"`
	LaunchRetry LaunchRetryConfig `yaml:"launch_retry"`
	Polling     PollingConfig     `yaml:"polling"`
	Backends    BackendsConfig    `yaml:"backends"`
	Store       StoreConfig       `yaml:"store"`
	API         APIConfig         `yaml:"api"`
}

// DefaultConfig mirrors the observed production cadence: 5s ticks, 5 launch
// attempts backed off 5s..120s, and a 1440-poll ceiling (~2h at 5s).
func DefaultConfig() Config {
	return Config{
		Cadence: Duration(5 * time.Second),
		LaunchRetry: LaunchRetryConfig{
			MaxAttempts: 5,
			BaseDelay:   Duration(5 * time.Second),
			MaxDelay:    Duration(120 * time.Second),
		},
		Polling: PollingConfig{
			Throttle:    Duration(5 * time.Second),
			MaxAttempts: 1440,
		},
		Backends: BackendsConfig{
			AWX: HTTPBackendConfig{Timeout: Duration(30 * time.Second)},
			OO:  HTTPBackendConfig{Timeout: Duration(30 * time.Second)},
		},
		Store: StoreConfig{Path: "orchestrator.db"},
		API:   APIConfig{Addr: ":8080"},
	}
}

// ParseConfig unmarshals yaml over the defaults and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, errors.CategoryValidation, "config parse failed").
			WithTextCode("INVALID_CONFIG")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Cadence.Std() <= 0 {
		return errors.New("cadence must be positive", errors.CategoryValidation).
			WithTextCode("INVALID_CONFIG")
	}
	if c.LaunchRetry.MaxAttempts <= 0 {
		return errors.New("launch_retry.max_attempts must be positive", errors.CategoryValidation).
			WithTextCode("INVALID_CONFIG")
	}
	if c.LaunchRetry.BaseDelay.Std() <= 0 || c.LaunchRetry.MaxDelay.Std() < c.LaunchRetry.BaseDelay.Std() {
		return errors.New("launch_retry delays must satisfy 0 < base_delay <= max_delay", errors.CategoryValidation).
			WithTextCode("INVALID_CONFIG")
	}
	if c.Polling.MaxAttempts <= 0 {
		return errors.New("polling.max_attempts must be positive", errors.CategoryValidation).
			WithTextCode("INVALID_CONFIG")
	}
	if c.Polling.Throttle.Std() < 0 {
		return errors.New("polling.throttle must not be negative", errors.CategoryValidation).
			WithTextCode("INVALID_CONFIG")
	}
	return nil
}
