package command

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// HistoryCommand implements /history: lists or clears archived intents.
type HistoryCommand struct{}

func (c *HistoryCommand) Name() string        { return "history" }
func (c *HistoryCommand) Usage() string       { return "[clear]" }
func (c *HistoryCommand) Description() string { return "Show archived intents of this actor" }

func (c *HistoryCommand) Execute(ctx context.Context, args string, env Env) Result {
	if env.History == nil {
		return Result{Content: "History is unavailable."}
	}
	actor := env.Workflow.ActorID()
	switch strings.ToLower(strings.TrimSpace(args)) {
	case "":
	case "clear":
		if err := env.History.Clear(ctx, actor); err != nil {
			return failure(err)
		}
		return Result{Content: "History cleared."}
	default:
		return usage(c)
	}

	entries, err := env.History.List(ctx, actor)
	if err != nil {
		return failure(err)
	}
	if len(entries) == 0 {
		return Result{Content: "No archived intents."}
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**History of %s:**\n\n", actor))
	for i, e := range entries {
		sb.WriteString(fmt.Sprintf("%d. %s `%s` [%s] archived %s\n",
			i+1, orDash(e.Intent.Type), e.Intent.ID, e.Lifecycle, e.ArchivedAt.Format(time.RFC3339)))
	}
	return Result{Content: sb.String()}
}
