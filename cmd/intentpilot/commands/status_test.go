package commands

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/MEKXH/intentpilot/internal/config"
	"github.com/MEKXH/intentpilot/internal/metrics"
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func TestStatusCommand_PrintsConfig(t *testing.T) {
	setHome(t)

	output := captureOutput(t, func() {
		if err := runStatus(nil, nil); err != nil {
			t.Fatalf("runStatus error: %v", err)
		}
	})
	clean := stripANSI(output)

	for _, want := range []string{
		"IntentPilot Status",
		"Config:",
		"Decisions unlock on: selected or confirmed",
		"decision: http://localhost:7003/v1/execute",
		"Confirmation window: 30s",
		"Backend: file",
		"Advisory: disabled",
		"no runtime data yet",
	} {
		if !strings.Contains(clean, want) {
			t.Fatalf("expected %q in status output, got:\n%s", want, clean)
		}
	}
}

func TestStatusCommand_ShowsRuntimeMetrics(t *testing.T) {
	setHome(t)
	cfg := config.DefaultConfig()
	m := metrics.NewRuntimeMetrics(cfg.WorkspacePath())
	if _, err := m.RecordEngineCall("decision", 40*time.Millisecond, nil); err != nil {
		t.Fatalf("RecordEngineCall error: %v", err)
	}
	if _, err := m.RecordEngineCall("action", 10*time.Millisecond, errors.New("boom")); err != nil {
		t.Fatalf("RecordEngineCall error: %v", err)
	}

	output := stripANSI(captureOutput(t, func() {
		if err := runStatus(nil, nil); err != nil {
			t.Fatalf("runStatus error: %v", err)
		}
	}))
	if !strings.Contains(output, "Engines: 2 calls, err=50.0%") {
		t.Fatalf("expected engine metrics, got:\n%s", output)
	}
}
