package command

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MEKXH/intentpilot/internal/config"
	"github.com/MEKXH/intentpilot/internal/metrics"
)

// StatusCommand implements /status: shows runtime status summary.
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Usage() string       { return "" }
func (c *StatusCommand) Description() string { return "Show runtime status" }

func (c *StatusCommand) Execute(_ context.Context, _ string, env Env) Result {
	var sb strings.Builder
	sb.WriteString("**IntentPilot Status**\n\n")

	if cfg := env.Config; cfg != nil {
		sb.WriteString(fmt.Sprintf("- **Workspace:** `%s`\n", cfg.WorkspacePath()))
		sb.WriteString(fmt.Sprintf("- **Actor:** `%s` (tenant `%s`)\n", cfg.Workflow.ActorID, cfg.Workflow.TenantID))
		policy := "selected or confirmed"
		if !cfg.Workflow.UnlockOnSelected {
			policy = "confirmed only"
		}
		sb.WriteString(fmt.Sprintf("- **Decisions unlock on:** %s\n", policy))
		if u := strings.TrimSpace(cfg.Engines.UnifiedURL); u != "" {
			sb.WriteString(fmt.Sprintf("- **Engines:** unified at `%s`\n", u))
		} else {
			sb.WriteString(fmt.Sprintf("- **Engines:** decision `%s`, action `%s`\n", cfg.Engines.Decision, cfg.Engines.Action))
		}
		sb.WriteString(fmt.Sprintf("- **Voice:** confirm within %s, continuous=%v\n", cfg.ConfirmationTimeout(), cfg.Voice.Continuous))
	}
	if env.Workflow != nil {
		sb.WriteString(fmt.Sprintf("- **Tracked intents:** %d\n", env.Workflow.Sessions().Len()))
	}

	sb.WriteString("\n**Metrics:**\n\n")
	if env.Metrics != nil {
		snap := env.Metrics.Snapshot()
		if !snap.HasData() && env.Config != nil {
			snap, _ = metrics.ReadRuntimeSnapshot(env.Config.WorkspacePath())
		}
		sb.WriteString(FormatMetrics(snap))
	} else {
		sb.WriteString("- Unavailable\n")
	}

	configStatus := ""
	if _, err := os.Stat(config.ConfigPath()); err != nil {
		configStatus = " (not found)"
	}
	sb.WriteString(fmt.Sprintf("\n- **Config:** `%s`%s\n", config.ConfigPath(), configStatus))
	return Result{Content: sb.String()}
}

// FormatMetrics renders a runtime snapshot as a markdown list.
func FormatMetrics(snap metrics.RuntimeSnapshot) string {
	if !snap.HasData() {
		return "- No data yet\n"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("- Updated: `%s`\n", snap.UpdatedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("- Engines: %d calls, err=%.1f%%, timeout=%.1f%%, avg=%.0fms, p95=%dms\n",
		snap.Engine.Total,
		snap.Engine.ErrorRatio()*100,
		snap.Engine.TimeoutRatio()*100,
		snap.Engine.AvgLatencyMs(),
		snap.Engine.P95ProxyLatencyMs,
	))
	v := snap.Voice
	sb.WriteString(fmt.Sprintf("- Voice: %d commands, %d executed, %d confirmed, %d cancelled, %d expired, %d rejected\n",
		v.Commands, v.Executed, v.Confirmed, v.Cancelled, v.Expired, v.Rejected))
	return sb.String()
}
