package command

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const evidenceTail = 20

// EvidenceCommand implements /evidence: shows the locally journaled
// evidence of the active intent.
type EvidenceCommand struct{}

func (c *EvidenceCommand) Name() string        { return "evidence" }
func (c *EvidenceCommand) Usage() string       { return "" }
func (c *EvidenceCommand) Description() string { return "Show recorded evidence for the active intent" }

func (c *EvidenceCommand) Execute(_ context.Context, _ string, env Env) Result {
	if env.Journal == nil {
		return Result{Content: "Evidence journal is disabled."}
	}
	s, err := activeSession(env)
	if err != nil {
		return failure(err)
	}
	events, err := env.Journal.ReadAll(s.Intent.ID)
	if err != nil {
		return failure(err)
	}
	if len(events) == 0 {
		return Result{Content: "No evidence recorded for this intent."}
	}
	if len(events) > evidenceTail {
		events = events[len(events)-evidenceTail:]
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**Evidence for `%s`:**\n\n", s.Intent.ID))
	for _, ev := range events {
		line := fmt.Sprintf("- `%s` %s", ev.Time.Format(time.RFC3339), ev.EventType)
		if ev.Reason != "" {
			line += ": " + ev.Reason
		}
		sb.WriteString(line + "\n")
	}
	return Result{Content: sb.String()}
}
