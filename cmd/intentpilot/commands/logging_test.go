package commands

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/MEKXH/intentpilot/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		config, override string
		want             slog.Level
		ok               bool
	}{
		{"", "", slog.LevelInfo, true},
		{"debug", "", slog.LevelDebug, true},
		{"info", "warning", slog.LevelWarn, true},
		{"warn", "ERROR", slog.LevelError, true},
		{"loud", "", 0, false},
	}
	for _, tc := range cases {
		got, err := parseLogLevel(tc.config, tc.override)
		if tc.ok != (err == nil) {
			t.Fatalf("parseLogLevel(%q, %q) error = %v", tc.config, tc.override, err)
		}
		if tc.ok && got != tc.want {
			t.Fatalf("parseLogLevel(%q, %q) = %v, want %v", tc.config, tc.override, got, tc.want)
		}
	}
}

func TestConfigureLogger_InteractiveWritesWorkspaceLog(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Workspace = t.TempDir()
	t.Cleanup(func() {
		_ = configureLogger(config.DefaultConfig(), "", false)
	})

	if err := configureLogger(cfg, "debug", true); err != nil {
		t.Fatalf("configureLogger error: %v", err)
	}
	slog.Debug("hello from test")

	raw, err := os.ReadFile(filepath.Join(cfg.WorkspacePath(), "logs", "intentpilot.log"))
	if err != nil {
		t.Fatalf("expected log file: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("expected log output in file")
	}
}
