package command

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// SessionsCommand implements /sessions: lists tracked intents.
type SessionsCommand struct{}

func (c *SessionsCommand) Name() string        { return "sessions" }
func (c *SessionsCommand) Usage() string       { return "" }
func (c *SessionsCommand) Description() string { return "List tracked intents" }

func (c *SessionsCommand) Execute(_ context.Context, _ string, env Env) Result {
	mgr := env.Workflow.Sessions()
	list := mgr.List()
	if len(list) == 0 {
		return Result{Content: "No intents tracked yet."}
	}
	active := mgr.ActiveID()
	var sb strings.Builder
	sb.WriteString("**Intents:**\n\n")
	for i, s := range list {
		marker := " "
		if s.ID == active {
			marker = "*"
		}
		sb.WriteString(fmt.Sprintf("%s %d. %s `%s` [%s] %d decisions, %d actions\n",
			marker, i+1, orDash(s.Intent.Type), s.Intent.ID, s.Lifecycle, len(s.Decisions), len(s.Actions)))
	}
	return Result{Content: sb.String()}
}

// SwitchCommand implements /switch: changes the active intent.
type SwitchCommand struct{}

func (c *SwitchCommand) Name() string        { return "switch" }
func (c *SwitchCommand) Usage() string       { return "<n>" }
func (c *SwitchCommand) Description() string { return "Make intent n active" }

func (c *SwitchCommand) Execute(_ context.Context, args string, env Env) Result {
	n, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		return usage(c)
	}
	s, err := env.Workflow.Sessions().SwitchIndex(n - 1)
	if err != nil {
		return failure(err)
	}
	slog.Info("active session switched", "session_id", s.ID, "intent_id", s.Intent.ID)
	return Result{Content: FormatSession(s, env.Workflow.Sessions().Policy())}
}

// ShowCommand implements /show: prints the active intent.
type ShowCommand struct{}

func (c *ShowCommand) Name() string        { return "show" }
func (c *ShowCommand) Usage() string       { return "" }
func (c *ShowCommand) Description() string { return "Show the active intent" }

func (c *ShowCommand) Execute(_ context.Context, _ string, env Env) Result {
	s, err := activeSession(env)
	if err != nil {
		return failure(err)
	}
	return Result{Content: FormatSession(s, env.Workflow.Sessions().Policy())}
}

// ResumeCommand implements /resume: continues an open intent from the engines.
type ResumeCommand struct{}

func (c *ResumeCommand) Name() string        { return "resume" }
func (c *ResumeCommand) Usage() string       { return "" }
func (c *ResumeCommand) Description() string { return "Resume the open intent of this actor" }

func (c *ResumeCommand) Execute(ctx context.Context, _ string, env Env) Result {
	s, ok, err := env.Workflow.Resume(ctx)
	if err != nil {
		return failure(err)
	}
	if !ok {
		return Result{Content: "No open intent to resume."}
	}
	return Result{Content: "Resumed.\n\n" + FormatSession(s, env.Workflow.Sessions().Policy())}
}

// RetryCommand implements /retry: re-runs the stages the active intent has
// not passed, such as a compliance check that was unreachable.
type RetryCommand struct{}

func (c *RetryCommand) Name() string        { return "retry" }
func (c *RetryCommand) Usage() string       { return "" }
func (c *RetryCommand) Description() string { return "Retry pending stages of the active intent" }

func (c *RetryCommand) Execute(ctx context.Context, _ string, env Env) Result {
	s, err := activeSession(env)
	if err != nil {
		return failure(err)
	}
	s, err = env.Workflow.Progress(ctx, s.ID)
	if err != nil {
		return failure(err)
	}
	return Result{Content: FormatSession(s, env.Workflow.Sessions().Policy())}
}
