// Package config loads and validates the watcher configuration from YAML,
// with the bearer token sourced from the environment rather than the file.
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/market-watch/pkg/errors"
)

// TokenEnvVar names the environment variable holding the bearer token.
const TokenEnvVar = "MARKET_WATCH_TOKEN"

// Config is the full watcher configuration.
type Config struct {
	// BaseURL is the backend origin; both the REST client and the stream
	// controller derive their endpoints from it.
	BaseURL string `yaml:"base_url" validate:"required,url"`

	// Watchlist seeds the session when the backend watchlist is empty.
	Watchlist []string `yaml:"watchlist" validate:"dive,required"`

	// Timeframe is the initial detail timeframe.
	Timeframe string `yaml:"timeframe" validate:"omitempty,oneof=minute day week month"`

	Stream StreamConfig `yaml:"stream"`
	Poll   PollConfig   `yaml:"poll"`
}

// StreamConfig tunes the push-transport lifecycle.
type StreamConfig struct {
	ReconnectBase time.Duration `yaml:"reconnect_base" validate:"omitempty,min=100ms"`
	ReconnectMax  time.Duration `yaml:"reconnect_max" validate:"omitempty,min=1s"`
	DegradedAfter time.Duration `yaml:"degraded_after" validate:"omitempty,min=1s"`
}

// PollConfig tunes the degraded-mode polling cadences.
type PollConfig struct {
	SnapshotInterval time.Duration `yaml:"snapshot_interval" validate:"omitempty,min=1s"`
	BarsInterval     time.Duration `yaml:"bars_interval" validate:"omitempty,min=1s"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Timeframe: "day",
		Stream: StreamConfig{
			ReconnectBase: time.Second,
			ReconnectMax:  10 * time.Second,
			DegradedAfter: 10 * time.Second,
		},
		Poll: PollConfig{
			SnapshotInterval: 4 * time.Second,
			BarsInterval:     20 * time.Second,
		},
	}
}

// Load reads and validates a YAML configuration file. Unset tuning values
// fall back to the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	return Parse(data)
}

// Parse parses and validates YAML configuration bytes.
func Parse(data []byte) (*Config, error) {
	config := Default()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Timeframe == "" {
		c.Timeframe = defaults.Timeframe
	}

	if c.Stream.ReconnectBase <= 0 {
		c.Stream.ReconnectBase = defaults.Stream.ReconnectBase
	}

	if c.Stream.ReconnectMax <= 0 {
		c.Stream.ReconnectMax = defaults.Stream.ReconnectMax
	}

	if c.Stream.DegradedAfter <= 0 {
		c.Stream.DegradedAfter = defaults.Stream.DegradedAfter
	}

	if c.Poll.SnapshotInterval <= 0 {
		c.Poll.SnapshotInterval = defaults.Poll.SnapshotInterval
	}

	if c.Poll.BarsInterval <= 0 {
		c.Poll.BarsInterval = defaults.Poll.BarsInterval
	}
}

// Validate validates the configuration fields.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	return nil
}

// Token reads the bearer token from the environment. An empty string means
// no credentials are available and the session stays disconnected.
func Token() string {
	return os.Getenv(TokenEnvVar)
}
