package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MEKXH/intentpilot/internal/workflow"
)

// FormatSession renders a session as markdown.
func FormatSession(s workflow.Session, policy workflow.UnlockPolicy) string {
	var sb strings.Builder
	kind := s.Intent.Type
	if kind == "" {
		kind = "INTENT"
	}
	sb.WriteString(fmt.Sprintf("**%s** `%s` [%s]\n", kind, s.Intent.ID, s.Lifecycle))
	if s.Intent.Text != "" {
		sb.WriteString(fmt.Sprintf("> %s\n", s.Intent.Text))
	}

	if c := s.Compliance; c != nil {
		sb.WriteString(fmt.Sprintf("\n**Compliance:** %s", c.Decision))
		if c.Reason != "" {
			sb.WriteString(" (" + c.Reason + ")")
		}
		sb.WriteString("\n")
	}

	if len(s.Decisions) > 0 {
		sb.WriteString("\n**Decisions:**\n\n")
		for i, d := range s.Decisions {
			sb.WriteString(fmt.Sprintf("%d. %s `%s` [%s]\n", i+1, orDash(d.Type), d.DecisionID, d.EvolutionState))
			for j, opt := range d.Options {
				marker := " "
				if opt.ID == d.SelectedOptionID {
					marker = "x"
				}
				line := fmt.Sprintf("   - [%s] %d) %s `%s`", marker, j+1, orDash(opt.Label), opt.ID)
				if opt.Recommended || opt.ID == d.RecommendedOptionID {
					line += " (recommended)"
				}
				sb.WriteString(line + "\n")
			}
		}
	}

	if len(s.Actions) > 0 {
		sb.WriteString("\n**Actions:**\n\n")
		sorted := workflow.SortActions(s.Actions)
		for i, a := range sorted {
			status := string(a.Outcome)
			if status == "" {
				status = "OPEN"
				if workflow.IsLocked(sorted, i) {
					status = "LOCKED"
				}
			}
			line := fmt.Sprintf("%d. %s `%s` [%s]", i+1, orDash(a.Description), a.ActionID, status)
			if a.Reason != "" {
				line += ": " + a.Reason
			}
			if a.ScheduledFor != nil {
				line += " (scheduled " + a.ScheduledFor.Format("2006-01-02") + ")"
			}
			sb.WriteString(line + "\n")
		}
	}

	if r := s.Risk; r != nil {
		sb.WriteString(fmt.Sprintf("\n**Risk:** %s", orDash(r.Level())))
		if r.RiskScore > 0 {
			sb.WriteString(" score " + strconv.FormatFloat(r.RiskScore, 'f', 2, 64))
		}
		sb.WriteString("\n")
	}
	if adv := s.Advisory; adv != nil && adv.Summary != "" {
		sb.WriteString(fmt.Sprintf("\n**Advisory (%s, confidence %.2f):** %s\n", adv.Country, adv.Confidence, adv.Summary))
	}

	if policy == workflow.UnlockOnConfirmed && s.Lifecycle == workflow.StateAwaitingDecisions {
		sb.WriteString("\nSelected decisions unlock the next stage only once confirmed.\n")
	}
	return sb.String()
}

// decisionRef resolves a decision by id or 1-based position.
func decisionRef(s workflow.Session, ref string) (workflow.Decision, error) {
	if d, ok := s.Decision(ref); ok {
		return d, nil
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(s.Decisions) {
		return s.Decisions[n-1], nil
	}
	return workflow.Decision{}, workflow.Validationf("resolve decision", "decision %s not found", ref)
}

// optionRef resolves an option by id, 1-based position or label.
func optionRef(d workflow.Decision, ref string) (workflow.Option, error) {
	if opt, ok := d.Option(ref); ok {
		return opt, nil
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(d.Options) {
		return d.Options[n-1], nil
	}
	for _, opt := range d.Options {
		if strings.EqualFold(opt.Label, ref) {
			return opt, nil
		}
	}
	return workflow.Option{}, workflow.Validationf("resolve option", "option %s not found in decision %s", ref, d.DecisionID)
}

// actionRef resolves an action by id or 1-based position in action order.
func actionRef(s workflow.Session, ref string) (workflow.Action, error) {
	if a, ok := s.Action(ref); ok {
		return a, nil
	}
	sorted := workflow.SortActions(s.Actions)
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(sorted) {
		return sorted[n-1], nil
	}
	return workflow.Action{}, workflow.Validationf("resolve action", "action %s not found", ref)
}

func activeSession(env Env) (workflow.Session, error) {
	s, ok := env.Workflow.Sessions().Active()
	if !ok {
		return workflow.Session{}, workflow.Statef("active session", "no active intent; describe one first")
	}
	return s, nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
