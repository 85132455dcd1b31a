// Package config loads flin settings from a .env file and FLIN_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key (FLIN_DATA_DIR, ...).
const EnvPrefix = "FLIN"

// Config is the full runtime configuration.
type Config struct {
	DataDir   string       `mapstructure:"data_dir"`
	InMemory  bool         `mapstructure:"in_memory"`
	HTTPAddr  string       `mapstructure:"http_addr"`
	LogLevel  string       `mapstructure:"log_level"`
	LogFormat string       `mapstructure:"log_format"`
	Fanout    FanoutConfig `mapstructure:"fanout"`
}

// FanoutConfig tunes query splitting and physical query pacing.
type FanoutConfig struct {
	// ChunkSize is the store's cap on values per membership filter.
	ChunkSize int `mapstructure:"chunk_size"`
	// WarnVariants logs a warning once a query needs more physical queries.
	WarnVariants int `mapstructure:"warn_variants"`
	// RatePerSec paces physical queries; 0 disables pacing.
	RatePerSec float64 `mapstructure:"rate_per_sec"`
	Burst      int     `mapstructure:"burst"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./data")
	v.SetDefault("in_memory", false)
	v.SetDefault("http_addr", ":8888")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("fanout.chunk_size", 10)
	v.SetDefault("fanout.warn_variants", 50)
	v.SetDefault("fanout.rate_per_sec", 0)
	v.SetDefault("fanout.burst", 1)
}

// Load reads envFiles (default ".env", missing files are ignored) into the
// process environment, then resolves Config from FLIN_* variables.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	// fanout.chunk_size -> FLIN_FANOUT_CHUNK_SIZE
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Fanout.ChunkSize <= 0 {
		return fmt.Errorf("fanout.chunk_size must be positive, got %d", c.Fanout.ChunkSize)
	}
	if c.Fanout.RatePerSec < 0 {
		return fmt.Errorf("fanout.rate_per_sec must not be negative, got %v", c.Fanout.RatePerSec)
	}
	if c.Fanout.Burst <= 0 {
		c.Fanout.Burst = 1
	}
	if !c.InMemory && c.DataDir == "" {
		return errors.New("data_dir is required unless in_memory is set")
	}
	return nil
}
