package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaultsOn(v)
	v.SetEnvPrefix("TESTRUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if yaml != "" {
		v.SetConfigType("yaml")
		if err := v.ReadConfig(strings.NewReader(yaml)); err != nil {
			t.Fatalf("ReadConfig: %v", err)
		}
	}
	return v
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Runtime.BaseURL != "http://localhost:4000" {
		t.Errorf("Runtime.BaseURL = %q", cfg.Runtime.BaseURL)
	}
	if cfg.Runtime.Timeout() != 15*time.Second {
		t.Errorf("Runtime.Timeout() = %v, want 15s", cfg.Runtime.Timeout())
	}
	if cfg.Pipeline.PollInterval() != time.Second {
		t.Errorf("Pipeline.PollInterval() = %v, want 1s", cfg.Pipeline.PollInterval())
	}
	if cfg.Pipeline.MaxBackoff() != 10*time.Second {
		t.Errorf("Pipeline.MaxBackoff() = %v, want 10s", cfg.Pipeline.MaxBackoff())
	}
	if cfg.Pipeline.EvictAfter() != 5*time.Minute {
		t.Errorf("Pipeline.EvictAfter() = %v, want 5m", cfg.Pipeline.EvictAfter())
	}
	if cfg.Pipeline.JanitorInterval() != time.Minute {
		t.Errorf("Pipeline.JanitorInterval() = %v, want 1m", cfg.Pipeline.JanitorInterval())
	}
	if !cfg.Nodes["start"].IsEnabled() {
		t.Error("start node should be enabled by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if !cfg.TUI.Enabled {
		t.Error("TUI.Enabled should be true by default")
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Default().Validate() = %v", errs)
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(newViper(t, ""))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Pipeline.PollIntervalMs != 1000 {
		t.Errorf("PollIntervalMs = %d, want 1000", cfg.Pipeline.PollIntervalMs)
	}
	if !cfg.Nodes["start"].IsEnabled() {
		t.Error("start node should be enabled")
	}
}

func TestLoadFrom_File(t *testing.T) {
	cfg, err := LoadFrom(newViper(t, `
runtime:
  base_url: https://runtime.example.com
pipeline:
  poll_interval_ms: 250
nodes:
  start:
    enabled: false
  llm: {}
  code:
  "http_*":
    enabled: true
logging:
  level: debug
`))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Runtime.BaseURL != "https://runtime.example.com" {
		t.Errorf("BaseURL = %q", cfg.Runtime.BaseURL)
	}
	if cfg.Runtime.TimeoutSeconds != 15 {
		t.Errorf("TimeoutSeconds = %d, want default 15", cfg.Runtime.TimeoutSeconds)
	}
	if cfg.Pipeline.PollIntervalMs != 250 {
		t.Errorf("PollIntervalMs = %d, want 250", cfg.Pipeline.PollIntervalMs)
	}
	if cfg.Nodes["start"].IsEnabled() {
		t.Error("start should be disabled by the file")
	}
	if _, ok := cfg.Nodes["llm"]; !ok || !cfg.Nodes["llm"].IsEnabled() {
		t.Error("llm entry should exist and default to enabled")
	}
	if _, ok := cfg.Nodes["code"]; !ok || !cfg.Nodes["code"].IsEnabled() {
		t.Error("code entry without a value should exist and default to enabled")
	}
	if !cfg.Nodes["http_*"].IsEnabled() {
		t.Error("http_* should be enabled")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadFrom_Env(t *testing.T) {
	t.Setenv("TESTRUN_RUNTIME_TIMEOUT_SECONDS", "42")
	t.Setenv("TESTRUN_TUI_ENABLED", "false")

	cfg, err := LoadFrom(newViper(t, ""))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Runtime.TimeoutSeconds != 42 {
		t.Errorf("TimeoutSeconds = %d, want 42", cfg.Runtime.TimeoutSeconds)
	}
	if cfg.TUI.Enabled {
		t.Error("TUI should be disabled by env")
	}
}

func TestLoadFrom_Invalid(t *testing.T) {
	_, err := LoadFrom(newViper(t, `
pipeline:
  poll_interval_ms: 0
logging:
  level: loud
`))
	if err == nil {
		t.Fatal("LoadFrom() should fail validation")
	}
	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("error type = %T, want ValidationErrors", err)
	}
	if len(verrs) != 2 {
		t.Errorf("len(errors) = %d, want 2: %v", len(verrs), verrs)
	}
}

func TestGet(t *testing.T) {
	// Set defaults in viper first (normally done by cmd init)
	SetDefaults()

	cfg := Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}
	if cfg.Runtime.BaseURL != Default().Runtime.BaseURL {
		t.Errorf("Get().Runtime.BaseURL = %q", cfg.Runtime.BaseURL)
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		if got := ConfigDir(); got != "/custom/config/testrun" {
			t.Errorf("ConfigDir() = %q, want /custom/config/testrun", got)
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", home)
		want := filepath.Join(home, ".config", "testrun")
		if got := ConfigDir(); got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got := ConfigFile(); got != "/custom/config/testrun/config.yaml" {
		t.Errorf("ConfigFile() = %q", got)
	}
}
