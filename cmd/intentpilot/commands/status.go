package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/MEKXH/intentpilot/internal/command"
	"github.com/MEKXH/intentpilot/internal/config"
	"github.com/MEKXH/intentpilot/internal/engine"
	"github.com/MEKXH/intentpilot/internal/metrics"
	"github.com/spf13/cobra"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show IntentPilot configuration status",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	workspacePath := cfg.WorkspacePath()

	fmt.Println(headerStyle.Render("IntentPilot Status"))

	fmt.Printf("Config: %s\n", config.ConfigPath())
	if _, err := os.Stat(config.ConfigPath()); err == nil {
		fmt.Println("  Status: OK")
	} else {
		fmt.Println("  Status: Not found (run 'intentpilot init')")
	}

	fmt.Printf("\nWorkspace: %s\n", workspacePath)
	if _, err := os.Stat(workspacePath); err == nil {
		fmt.Println("  Status: OK")
	} else {
		fmt.Println("  Status: Not found")
	}

	fmt.Println("\nWorkflow:")
	fmt.Printf("  Actor: %s (tenant %s, industry %s)\n", cfg.Workflow.ActorID, cfg.Workflow.TenantID, orDash(cfg.Workflow.Industry))
	unlock := "selected or confirmed"
	if !cfg.Workflow.UnlockOnSelected {
		unlock = "confirmed only"
	}
	fmt.Printf("  Decisions unlock on: %s\n", unlock)

	fmt.Println("\nEngines:")
	routes := engine.RoutesFromConfig(cfg.Engines)
	if strings.TrimSpace(cfg.Engines.UnifiedURL) != "" {
		fmt.Printf("  Unified: %s\n", cfg.Engines.UnifiedURL)
	}
	for _, r := range []struct{ name, url string }{
		{"intent", routes.Intent},
		{"compliance", routes.Compliance},
		{"decision", routes.Decisions},
		{"action", routes.Actions},
		{"risk", routes.Risk},
		{"explainability", routes.Explain},
		{"evidence", routes.Evidence},
	} {
		fmt.Printf("  %s: %s\n", r.name, dimStyle.Render(r.url))
	}
	fmt.Printf("  Timeout: %s\n", cfg.EngineTimeout())

	fmt.Println("\nVoice:")
	fmt.Printf("  Confirmation window: %s\n", cfg.ConfirmationTimeout())
	fmt.Printf("  Continuous: %v\n", cfg.Voice.Continuous)
	fmt.Printf("  Speech service: %s\n", orDash(cfg.Voice.SpeechWSURL))
	transcriber := "not configured"
	if strings.TrimSpace(cfg.Voice.Transcriber.APIKey) != "" {
		transcriber = "configured"
	}
	fmt.Printf("  Clip transcription: %s\n", transcriber)

	fmt.Println("\nHistory:")
	fmt.Printf("  Backend: %s (%s)\n", cfg.History.Backend, cfg.HistoryPath())
	fmt.Printf("  Max entries: %d\n", cfg.History.MaxEntries)

	advisoryStatus := "disabled"
	if cfg.Advisory.Enabled {
		advisoryStatus = fmt.Sprintf("enabled (model=%s)", cfg.Advisory.Model)
	}
	fmt.Printf("\nAdvisory: %s\n", advisoryStatus)

	fmt.Println("\nRuntime Metrics:")
	snap, err := metrics.ReadRuntimeSnapshot(workspacePath)
	if err != nil {
		fmt.Printf("  unavailable (%v)\n", err)
		return nil
	}
	if !snap.HasData() {
		fmt.Println("  no runtime data yet")
		return nil
	}
	for _, line := range strings.Split(strings.TrimRight(command.FormatMetrics(snap), "\n"), "\n") {
		fmt.Printf("  %s\n", line)
	}
	return nil
}
