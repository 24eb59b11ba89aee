package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MEKXH/intentpilot/internal/workflow"
)

// OutcomeCommand implements /outcome: records the outcome of an action.
type OutcomeCommand struct {
	now func() time.Time
}

func (c *OutcomeCommand) Name() string { return "outcome" }
func (c *OutcomeCommand) Usage() string {
	return "<action> <COMPLETED|CONFIRMED|FAILED|BLOCKED|RESCHEDULED|SKIPPED> [date] [reason...]"
}
func (c *OutcomeCommand) Description() string { return "Record an action outcome" }

func (c *OutcomeCommand) Execute(ctx context.Context, args string, env Env) Result {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return usage(c)
	}
	outcome, ok := workflow.ParseOutcome(fields[1])
	if !ok {
		return failure(workflow.Validationf("outcome", "unknown outcome %q", fields[1]))
	}
	rest := fields[2:]

	in := workflow.OutcomeInput{Outcome: outcome}
	if outcome == workflow.OutcomeRescheduled && len(rest) > 0 {
		at, err := parseSchedule(rest[0], c.clock())
		if err != nil {
			return failure(err)
		}
		in.ScheduledFor = &at
		rest = rest[1:]
	}
	in.Reason = strings.Join(rest, " ")

	s, err := activeSession(env)
	if err != nil {
		return failure(err)
	}
	a, err := actionRef(s, fields[0])
	if err != nil {
		return failure(err)
	}
	in.ActionID = a.ActionID

	s, err = env.Workflow.SetOutcome(ctx, s.ID, in)
	if err != nil {
		if workflow.IsKind(err, workflow.KindNotFound) {
			return Result{Content: "Error: " + err.Error() + "\nReload the intent with /resume and try again."}
		}
		return failure(err)
	}
	content := fmt.Sprintf("Action %s marked %s.", a.ActionID, outcome)
	if s.Lifecycle == workflow.StateCompleted {
		content += " All actions are done; the intent is complete."
	}
	return Result{Content: content + "\n\n" + FormatSession(s, env.Workflow.Sessions().Policy())}
}

func (c *OutcomeCommand) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// parseSchedule accepts a date, an RFC 3339 timestamp or "+Nd"/"+Nh".
func parseSchedule(raw string, now time.Time) (time.Time, error) {
	if strings.HasPrefix(raw, "+") && len(raw) > 2 {
		unit := raw[len(raw)-1]
		var n int
		if _, err := fmt.Sscanf(raw[1:len(raw)-1], "%d", &n); err == nil && n > 0 {
			switch unit {
			case 'd':
				return now.Add(time.Duration(n) * 24 * time.Hour).UTC(), nil
			case 'h':
				return now.Add(time.Duration(n) * time.Hour).UTC(), nil
			}
		}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, workflow.Validationf("outcome", "invalid schedule %q; use YYYY-MM-DD, RFC 3339 or +Nd", raw)
}
