package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete testrun configuration
type Config struct {
	Runtime  RuntimeConfig         `mapstructure:"runtime" yaml:"runtime"`
	Pipeline PipelineConfig        `mapstructure:"pipeline" yaml:"pipeline"`
	Nodes    map[string]NodeConfig `mapstructure:"nodes" yaml:"nodes"`
	Logging  LoggingConfig         `mapstructure:"logging" yaml:"logging"`
	TUI      TUIConfig             `mapstructure:"tui" yaml:"tui"`
}

// RuntimeConfig controls how the remote task runtime is reached
type RuntimeConfig struct {
	// BaseURL is the absolute URL of the runtime API (default: "http://localhost:4000")
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// TimeoutSeconds bounds each runtime request (default: 15)
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// PipelineConfig controls pipeline polling and retention
type PipelineConfig struct {
	// PollIntervalMs is the delay between report polls (default: 1000)
	PollIntervalMs int `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
	// MaxBackoffMs caps the poll delay after consecutive report failures (default: 10000)
	MaxBackoffMs int `mapstructure:"max_backoff_ms" yaml:"max_backoff_ms"`
	// EvictAfterSeconds is how long a finished, disconnected run is kept (default: 300)
	EvictAfterSeconds int `mapstructure:"evict_after_seconds" yaml:"evict_after_seconds"`
	// JanitorIntervalSeconds is how often finished runs are evicted (default: 60)
	JanitorIntervalSeconds int `mapstructure:"janitor_interval_seconds" yaml:"janitor_interval_seconds"`
}

// NodeConfig controls test runs for one node type or glob pattern of types
type NodeConfig struct {
	// Enabled defaults to true when the entry exists
	Enabled *bool `mapstructure:"enabled" yaml:"enabled,omitempty"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is where testrun.log is written. Empty logs to stderr.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// TUIConfig controls the terminal UI behavior
type TUIConfig struct {
	// Enabled shows the live progress view when stdout is a terminal (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	enabled := true
	return &Config{
		Runtime: RuntimeConfig{
			BaseURL:        "http://localhost:4000",
			TimeoutSeconds: 15,
		},
		Pipeline: PipelineConfig{
			PollIntervalMs:         1000,
			MaxBackoffMs:           10000,
			EvictAfterSeconds:      300,
			JanitorIntervalSeconds: 60,
		},
		Nodes: map[string]NodeConfig{
			"start": {Enabled: &enabled},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		TUI: TUIConfig{
			Enabled: true,
		},
	}
}

// Timeout returns the runtime request timeout as a time.Duration
func (c *RuntimeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PollInterval returns the poll interval as a time.Duration
func (c *PipelineConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// MaxBackoff returns the maximum poll backoff as a time.Duration
func (c *PipelineConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMs) * time.Millisecond
}

// EvictAfter returns the retention of finished runs as a time.Duration
func (c *PipelineConfig) EvictAfter() time.Duration {
	return time.Duration(c.EvictAfterSeconds) * time.Second
}

// JanitorInterval returns the eviction period as a time.Duration
func (c *PipelineConfig) JanitorInterval() time.Duration {
	return time.Duration(c.JanitorIntervalSeconds) * time.Second
}

// IsEnabled reports whether the entry allows test runs.
func (n NodeConfig) IsEnabled() bool {
	return n.Enabled == nil || *n.Enabled
}

// SetDefaults registers default values with viper
func SetDefaults() {
	SetDefaultsOn(viper.GetViper())
}

// SetDefaultsOn registers default values with v.
func SetDefaultsOn(v *viper.Viper) {
	defaults := Default()

	// Runtime defaults
	v.SetDefault("runtime.base_url", defaults.Runtime.BaseURL)
	v.SetDefault("runtime.timeout_seconds", defaults.Runtime.TimeoutSeconds)

	// Pipeline defaults
	v.SetDefault("pipeline.poll_interval_ms", defaults.Pipeline.PollIntervalMs)
	v.SetDefault("pipeline.max_backoff_ms", defaults.Pipeline.MaxBackoffMs)
	v.SetDefault("pipeline.evict_after_seconds", defaults.Pipeline.EvictAfterSeconds)
	v.SetDefault("pipeline.janitor_interval_seconds", defaults.Pipeline.JanitorIntervalSeconds)

	// Node defaults
	v.SetDefault("nodes.start.enabled", true)

	// Logging defaults
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.dir", defaults.Logging.Dir)

	// TUI defaults
	v.SetDefault("tui.enabled", defaults.TUI.Enabled)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	addBareNodes(v, &cfg)

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// addBareNodes adds node entries with no settings, such as `llm: {}`.
// Viper only unmarshals keys that have leaf values, so these entries would
// otherwise be lost even though their presence enables the node type.
func addBareNodes(v *viper.Viper, cfg *Config) {
	raw, ok := v.Get("nodes").(map[string]any)
	if !ok {
		return
	}
	for key := range raw {
		key = strings.ToLower(key)
		if _, ok := cfg.Nodes[key]; ok {
			continue
		}
		if cfg.Nodes == nil {
			cfg.Nodes = make(map[string]NodeConfig)
		}
		cfg.Nodes[key] = NodeConfig{}
	}
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "testrun")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".testrun"
	}
	return filepath.Join(home, ".config", "testrun")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
