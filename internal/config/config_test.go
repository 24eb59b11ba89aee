package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Voice.ConfirmationTimeoutSeconds != 30 {
		t.Errorf("expected ConfirmationTimeoutSeconds=30, got %d", cfg.Voice.ConfirmationTimeoutSeconds)
	}
	if cfg.History.MaxEntries != 50 {
		t.Errorf("expected MaxEntries=50, got %d", cfg.History.MaxEntries)
	}
	if !cfg.Workflow.UnlockOnSelected {
		t.Error("expected UnlockOnSelected=true by default")
	}
	if cfg.ConfirmationTimeout() != 30*time.Second {
		t.Errorf("unexpected confirmation timeout: %s", cfg.ConfirmationTimeout())
	}
}

func TestLoadFrom_CreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom error: %v", err)
	}
	if cfg.Engines.Decision != "http://localhost:7003" {
		t.Fatalf("unexpected decision engine url: %s", cfg.Engines.Decision)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config to be written: %v", err)
	}
}

func TestLoadFrom_ReadsSnakeAndCamelKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{
  "engines": {"unified_url": "http://engines.local", "TimeoutSeconds": 3},
  "workflow": {"unlock_on_selected": false, "actor_id": "u-7"},
  "history": {"backend": "SQLite", "max_entries": 10},
  "log": {"level": "DEBUG"}
}`
	if err := os.WriteFile(path, []byte(raw), 0600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom error: %v", err)
	}
	if cfg.Engines.UnifiedURL != "http://engines.local" || cfg.Engines.TimeoutSeconds != 3 {
		t.Fatalf("unexpected engines config: %+v", cfg.Engines)
	}
	if cfg.Workflow.UnlockOnSelected || cfg.Workflow.ActorID != "u-7" {
		t.Fatalf("unexpected workflow config: %+v", cfg.Workflow)
	}
	if cfg.History.Backend != "sqlite" || cfg.History.MaxEntries != 10 {
		t.Fatalf("unexpected history config: %+v", cfg.History)
	}
	if !strings.HasSuffix(cfg.HistoryPath(), "history.db") {
		t.Fatalf("expected sqlite history path, got %s", cfg.HistoryPath())
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected normalized log level, got %s", cfg.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad backend", mutate: func(c *Config) { c.History.Backend = "redis" }, errSub: "history.backend"},
		{name: "negative timeout", mutate: func(c *Config) { c.Engines.TimeoutSeconds = -1 }, errSub: "engines.timeout_seconds"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "trace" }, errSub: "log.level"},
		{name: "advisory without model", mutate: func(c *Config) {
			c.Advisory.Enabled = true
			c.Advisory.Model = ""
		}, errSub: "advisory.model"},
		{name: "temperature out of range", mutate: func(c *Config) { c.Advisory.Temperature = 3 }, errSub: "advisory.temperature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errSub == "" {
				if err != nil {
					t.Fatalf("Validate error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errSub) {
				t.Fatalf("expected error containing %q, got %v", tt.errSub, err)
			}
		})
	}
}

func TestValidate_FillsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Voice.ConfirmationTimeoutSeconds = 0
	cfg.History.MaxEntries = 0
	cfg.Evidence.QueueSize = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if cfg.Voice.ConfirmationTimeoutSeconds != 30 || cfg.History.MaxEntries != 50 || cfg.Evidence.QueueSize != 64 {
		t.Fatalf("expected zero values to be defaulted, got %+v %+v %+v", cfg.Voice, cfg.History, cfg.Evidence)
	}
}

func TestValidate_CapsHistoryEntries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.History.MaxEntries = 500

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if cfg.History.MaxEntries != 50 {
		t.Fatalf("expected max_entries capped at 50, got %d", cfg.History.MaxEntries)
	}
}
