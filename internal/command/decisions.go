package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/MEKXH/intentpilot/internal/orchestrator"
)

// SelectCommand implements /select: picks an option of a decision.
type SelectCommand struct{}

func (c *SelectCommand) Name() string        { return "select" }
func (c *SelectCommand) Usage() string       { return "<decision> <option> [confirm]" }
func (c *SelectCommand) Description() string { return "Select an option, optionally confirming it" }

func (c *SelectCommand) Execute(ctx context.Context, args string, env Env) Result {
	fields := strings.Fields(args)
	if len(fields) < 2 || len(fields) > 3 {
		return usage(c)
	}
	confirm := len(fields) == 3 && strings.EqualFold(fields[2], "confirm")
	if len(fields) == 3 && !confirm {
		return usage(c)
	}

	s, err := activeSession(env)
	if err != nil {
		return failure(err)
	}
	d, err := decisionRef(s, fields[0])
	if err != nil {
		return failure(err)
	}
	opt, err := optionRef(d, fields[1])
	if err != nil {
		return failure(err)
	}
	s, err = env.Workflow.SelectOption(ctx, s.ID, d.DecisionID, opt.ID, confirm)
	if err != nil {
		return failure(err)
	}
	return Result{Content: FormatSession(s, env.Workflow.Sessions().Policy())}
}

// ConfirmAllCommand implements /confirm-all: confirms every open decision.
type ConfirmAllCommand struct{}

func (c *ConfirmAllCommand) Name() string        { return "confirm-all" }
func (c *ConfirmAllCommand) Usage() string       { return "" }
func (c *ConfirmAllCommand) Description() string { return "Confirm all decisions with their selected or recommended option" }

func (c *ConfirmAllCommand) Execute(ctx context.Context, _ string, env Env) Result {
	s, err := activeSession(env)
	if err != nil {
		return failure(err)
	}
	s, confirmed, err := env.Workflow.ConfirmAll(ctx, s.ID, nil)
	summary := fmt.Sprintf("Confirmed %d decision(s).", len(confirmed))
	if err != nil {
		return Result{Content: summary + "\nError: " + err.Error()}
	}
	return Result{Content: summary + "\n\n" + FormatSession(s, env.Workflow.Sessions().Policy())}
}

// ChangeCommand implements /change: replaces a selected or confirmed option.
type ChangeCommand struct{}

func (c *ChangeCommand) Name() string        { return "change" }
func (c *ChangeCommand) Usage() string       { return "<decision> <option> <reason...>" }
func (c *ChangeCommand) Description() string { return "Change a selected or confirmed decision" }

func (c *ChangeCommand) Execute(ctx context.Context, args string, env Env) Result {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return usage(c)
	}
	reason := strings.Join(fields[2:], " ")

	s, err := activeSession(env)
	if err != nil {
		return failure(err)
	}
	d, err := decisionRef(s, fields[0])
	if err != nil {
		return failure(err)
	}
	optionID := fields[1]
	if opt, err := optionRef(d, fields[1]); err == nil {
		optionID = opt.ID
	}
	s, err = env.Workflow.ChangeConfirmed(orchestrator.WithDecisionMethod(ctx, "cli"), s.ID, d.DecisionID, optionID, reason)
	if err != nil {
		return failure(err)
	}
	return Result{Content: FormatSession(s, env.Workflow.Sessions().Policy())}
}
