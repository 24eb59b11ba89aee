package workflow

import (
	"strings"
	"time"
)

// ValidateSelection checks that optionID belongs to the decision and that the
// decision can still take a plain selection.
func ValidateSelection(d Decision, optionID string) error {
	const op = "select option"
	if strings.TrimSpace(optionID) == "" {
		return Validationf(op, "option id is required")
	}
	if _, ok := d.Option(optionID); !ok {
		return Validationf(op, "option %s is not an option of decision %s", optionID, d.DecisionID)
	}
	return nil
}

// ValidateChange checks a change of an already resolved decision.
func ValidateChange(d Decision, newOptionID, reason string) error {
	const op = "change decision"
	if d.EvolutionState != EvolutionConfirmed && d.EvolutionState != EvolutionSelected {
		return Statef(op, "decision %s is %s; select an option instead", d.DecisionID, d.EvolutionState)
	}
	if strings.TrimSpace(reason) == "" {
		return Validationf(op, "reason is required to change decision %s", d.DecisionID)
	}
	if _, ok := d.Option(newOptionID); !ok {
		return Validationf(op, "option %s is not an option of decision %s", newOptionID, d.DecisionID)
	}
	return nil
}

// OutcomeInput is a requested outcome update of one action.
type OutcomeInput struct {
	ActionID     string
	Outcome      Outcome
	Reason       string
	ScheduledFor *time.Time
}

// ValidateOutcome checks the outcome fields before anything is sent.
func ValidateOutcome(in OutcomeInput) error {
	const op = "set outcome"
	if strings.TrimSpace(in.ActionID) == "" {
		return Validationf(op, "action id is required")
	}
	if _, ok := ParseOutcome(string(in.Outcome)); !ok {
		return Validationf(op, "unknown outcome %q", in.Outcome)
	}
	if in.Outcome.RequiresReason() && strings.TrimSpace(in.Reason) == "" {
		return Validationf(op, "reason is required for outcome %s", in.Outcome)
	}
	if in.Outcome == OutcomeRescheduled && (in.ScheduledFor == nil || in.ScheduledFor.IsZero()) {
		return Validationf(op, "scheduledFor is required for outcome %s", in.Outcome)
	}
	return nil
}
