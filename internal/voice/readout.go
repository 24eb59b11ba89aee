package voice

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/MEKXH/intentpilot/internal/workflow"
)

// Read returns the speakable text for target, or "" when there is nothing
// to read. pending is the prompt of the live confirmation, if any.
func Read(s workflow.Session, target Target, identifier, pending string) string {
	switch target {
	case TargetDecision:
		return DecisionContent(s.Decisions, identifier)
	case TargetAction:
		return ActionContent(s.Actions, identifier)
	case TargetExplanation:
		return ExplanationContent(s.Explanation)
	case TargetIntent:
		return IntentSummary(s)
	case TargetCompliance:
		return ComplianceContent(s.Compliance)
	case TargetRisk:
		return RiskContent(s.Risk)
	case TargetNextStep:
		return NextStepContent(s)
	case TargetCurrent:
		return CurrentContent(s, pending)
	default:
		return ""
	}
}

// DecisionContent describes the decision named by identifier (ordinal or
// keyword), or the most recent one.
func DecisionContent(decisions []workflow.Decision, identifier string) string {
	if len(decisions) == 0 {
		return ""
	}
	target := decisions[len(decisions)-1]
	if identifier != "" {
		if i, ok := index(identifier, len(decisions)); ok {
			target = decisions[i]
		} else if d, ok := decisionByKeyword(decisions, strings.ToLower(identifier)); ok {
			target = d
		}
	}

	kind := target.Type
	if kind == "" {
		kind = "Decision"
	}
	labels := make([]string, 0, len(target.Options))
	for i, opt := range target.Options {
		labels = append(labels, optionLabel(opt, i))
	}
	text := fmt.Sprintf("%s. Options: %s.", kind, strings.Join(labels, ", "))
	if target.SelectedOptionID != "" {
		selected := target.SelectedOptionID
		if opt, ok := target.SelectedOption(); ok {
			selected = optionLabel(opt, 0)
		}
		text += fmt.Sprintf(" Currently selected: %s.", selected)
	}
	if target.Recommendation != "" {
		text += fmt.Sprintf(" Recommended: %s.", target.Recommendation)
	} else if opt, ok := target.RecommendedOption(); ok {
		text += fmt.Sprintf(" Recommended: %s.", optionLabel(opt, 0))
	}
	return text
}

func decisionByKeyword(decisions []workflow.Decision, keyword string) (workflow.Decision, bool) {
	for _, d := range decisions {
		if strings.Contains(strings.ToLower(d.Type), keyword) {
			return d, true
		}
		for _, opt := range d.Options {
			if strings.Contains(strings.ToLower(opt.Label), keyword) || strings.Contains(strings.ToLower(opt.ID), keyword) {
				return d, true
			}
		}
	}
	return workflow.Decision{}, false
}

func optionLabel(opt workflow.Option, i int) string {
	switch {
	case opt.Label != "":
		return opt.Label
	case opt.ID != "":
		return opt.ID
	default:
		return "Option " + strconv.Itoa(i+1)
	}
}

// ActionContent describes the action named by identifier, or the last one.
func ActionContent(actions []workflow.Action, identifier string) string {
	if len(actions) == 0 {
		return ""
	}
	sorted := workflow.SortActions(actions)
	target := sorted[len(sorted)-1]
	if identifier != "" {
		if i, ok := index(identifier, len(sorted)); ok {
			target = sorted[i]
		} else {
			keyword := strings.ToLower(identifier)
			for _, a := range sorted {
				if strings.Contains(strings.ToLower(a.Description), keyword) || strings.Contains(strings.ToLower(a.ActionID), keyword) {
					target = a
					break
				}
			}
		}
	}
	return describeAction(target, "")
}

func describeAction(a workflow.Action, prefix string) string {
	desc := a.Description
	if desc == "" {
		desc = "Action"
	}
	status := a.Status
	if status == "" {
		status = "PENDING"
	}
	text := fmt.Sprintf("%s%s. Status: %s.", prefix, desc, strings.ToLower(status))
	if a.Guidance != "" {
		text += fmt.Sprintf(" %s.", strings.TrimRight(a.Guidance, "."))
	}
	if a.Outcome != "" {
		text += fmt.Sprintf(" Outcome: %s.", strings.ToLower(string(a.Outcome)))
	}
	return text
}

// ExplanationContent prefers the decision rationale over the compliance
// explanation.
func ExplanationContent(e *workflow.Explanation) string {
	if e == nil {
		return ""
	}
	why := e.DecisionRationale.WhyDecisionsNeeded
	basis := e.DecisionRationale.RecommendationBasis
	if why != "" || basis != "" {
		return strings.TrimSpace(fmt.Sprintf("This decision was recommended because: %s. %s", why, basis))
	}
	if reason := e.ComplianceExplanation.PrimaryReason; reason != "" {
		return fmt.Sprintf("This decision was made because: %s.", reason)
	}
	if e.Summary != "" {
		return e.Summary
	}
	return ""
}

// IntentSummary describes the intent type, state and up to three extracted
// fields.
func IntentSummary(s workflow.Session) string {
	if s.Intent.ID == "" && s.Intent.Type == "" {
		return ""
	}
	kind := s.Intent.Type
	if kind == "" {
		kind = "Intent"
	}
	state := s.Lifecycle
	if state == "" {
		state = workflow.StateCreated
	}
	text := fmt.Sprintf("Intent type: %s. Current status: %s.", kind, spokenState(state))

	keys := make([]string, 0, len(s.Intent.ExtractedInfo))
	for k := range s.Intent.ExtractedInfo {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > 3 {
		keys = keys[:3]
	}
	if len(keys) > 0 {
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s: %v", k, s.Intent.ExtractedInfo[k])
		}
		text += fmt.Sprintf(" Extracted information: %s.", strings.Join(parts, ", "))
	}
	return text
}

// ComplianceContent describes the compliance verdict.
func ComplianceContent(c *workflow.ComplianceResult) string {
	if c == nil {
		return ""
	}
	decision := string(c.Decision)
	if decision == "" {
		decision = "UNKNOWN"
	}
	text := fmt.Sprintf("Compliance decision: %s.", strings.ToLower(decision))
	if c.Reason != "" {
		text += fmt.Sprintf(" Reason: %s.", c.Reason)
	}
	if len(c.Violations) > 0 {
		text += fmt.Sprintf(" Violations: %s.", strings.Join(firstN(c.Violations, 3), ", "))
	}
	if len(c.Warnings) > 0 {
		text += fmt.Sprintf(" Warnings: %s.", strings.Join(firstN(c.Warnings, 3), ", "))
	}
	return text
}

// RiskContent describes the risk evaluation.
func RiskContent(r *workflow.RiskResult) string {
	if r == nil {
		return ""
	}
	overall := orUnknown(r.OverallRisk)
	level := orUnknown(r.RiskLevel)
	text := fmt.Sprintf("Overall risk: %s. Risk level: %s. Risk score: %s.",
		strings.ToLower(overall), strings.ToLower(level), strconv.FormatFloat(r.RiskScore, 'f', -1, 64))
	if len(r.RiskFactors) > 0 {
		text += fmt.Sprintf(" Risk factors: %s.", strings.Join(firstN(r.RiskFactors, 3), ", "))
	}
	if len(r.Recommendations) > 0 {
		text += fmt.Sprintf(" Recommendations: %s.", strings.Join(firstN(r.Recommendations, 2), ", "))
	}
	return text
}

// NextStepContent names the next open action, or the pending decisions when
// there are no actions yet.
func NextStepContent(s workflow.Session) string {
	if len(s.Actions) == 0 {
		pending := 0
		for _, d := range s.Decisions {
			if d.SelectedOptionID == "" {
				pending++
			}
		}
		if pending > 0 {
			return fmt.Sprintf("Next step: Make a decision. %d decision%s pending.", pending, plural(pending))
		}
		if s.Lifecycle != "" {
			return fmt.Sprintf("Next step: Current status is %s.", spokenState(s.Lifecycle))
		}
		return "No next steps available yet."
	}

	var open []workflow.Action
	for _, a := range workflow.SortActions(s.Actions) {
		if a.Outcome != workflow.OutcomeCompleted && a.Outcome != workflow.OutcomeFailed && a.Outcome != workflow.OutcomeSkipped {
			open = append(open, a)
		}
	}
	if len(open) == 0 {
		return "All actions are completed. No next steps."
	}
	text := describeAction(open[0], "Next step: ")
	if rest := len(open) - 1; rest > 0 {
		text += fmt.Sprintf(" There %s %d more pending action%s.", isAre(rest), rest, plural(rest))
	}
	return text
}

// CurrentContent reads the pending confirmation first, then the latest
// decision, the latest action and finally the intent summary.
func CurrentContent(s workflow.Session, pending string) string {
	switch {
	case pending != "":
		return fmt.Sprintf("Pending confirmation: %s.", strings.TrimRight(pending, ".?"))
	case len(s.Decisions) > 0:
		return DecisionContent(s.Decisions, "")
	case len(s.Actions) > 0:
		return ActionContent(s.Actions, "")
	default:
		return IntentSummary(s)
	}
}

func index(identifier string, n int) (int, bool) {
	i, ok := ordinal(strings.ToLower(identifier))
	if !ok || i > n {
		return 0, false
	}
	return i - 1, true
}

func spokenState(s workflow.LifecycleState) string {
	return strings.ReplaceAll(strings.ToLower(string(s)), "_", " ")
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func orUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func isAre(n int) string {
	if n == 1 {
		return "is"
	}
	return "are"
}
