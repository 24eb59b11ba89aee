package voice

import (
	"strconv"
	"strings"

	"github.com/MEKXH/intentpilot/internal/workflow"
)

// OptionMatch is a resolved decision option.
type OptionMatch struct {
	Decision workflow.Decision
	Option   workflow.Option
}

// Matcher resolves spoken references against what is on screen.
type Matcher interface {
	MatchOption(decisions []workflow.Decision, term, phrase string) (OptionMatch, bool)
	MatchAction(actions []workflow.Action, ref string) (workflow.Action, bool)
}

// ScoreMatcher matches by ordinal first, then by substring containment and
// finally by word overlap. Confirmed decisions and finished actions are never
// candidates.
type ScoreMatcher struct{}

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// MatchOption finds the option named by term (the bare word after "select")
// or phrase (everything after it).
func (ScoreMatcher) MatchOption(decisions []workflow.Decision, term, phrase string) (OptionMatch, bool) {
	term, phrase = clean(term), clean(phrase)
	if phrase == "" {
		phrase = term
	}
	var open []workflow.Decision
	for _, d := range decisions {
		if d.EvolutionState != workflow.EvolutionConfirmed && len(d.Options) > 0 {
			open = append(open, d)
		}
	}
	if len(open) == 0 || term == "" {
		return OptionMatch{}, false
	}

	if n, ok := ordinal(term); ok {
		if n <= len(open[0].Options) {
			return OptionMatch{Decision: open[0], Option: open[0].Options[n-1]}, true
		}
		return OptionMatch{}, false
	}

	best, bestScore := OptionMatch{}, 0
	for _, d := range open {
		for _, opt := range d.Options {
			if s := score(strings.ToLower(opt.Label), strings.ToLower(opt.ID), term, phrase); s > bestScore {
				best, bestScore = OptionMatch{Decision: d, Option: opt}, s
			}
		}
	}
	return best, bestScore > 0
}

// MatchAction finds the action named by ref among actions that can still
// take an outcome.
func (ScoreMatcher) MatchAction(actions []workflow.Action, ref string) (workflow.Action, bool) {
	ref = clean(ref)
	var open []workflow.Action
	for _, a := range workflow.SortActions(actions) {
		if !Terminal(a) {
			open = append(open, a)
		}
	}
	if len(open) == 0 || ref == "" {
		return workflow.Action{}, false
	}

	if n, ok := ordinal(ref); ok {
		if n <= len(open) {
			return open[n-1], true
		}
		return workflow.Action{}, false
	}

	var best workflow.Action
	bestScore := 0
	for _, a := range open {
		if s := score(strings.ToLower(a.Description), strings.ToLower(a.ActionID), ref, ref); s > bestScore {
			best, bestScore = a, s
		}
	}
	return best, bestScore > 0
}

// Terminal reports whether an action outcome is final.
func Terminal(a workflow.Action) bool {
	return a.Outcome.Done() || a.Outcome == workflow.OutcomeSkipped
}

func score(label, id, term, phrase string) int {
	switch {
	case label == phrase || label == term || id == term || id == phrase:
		return 100
	case len(phrase) > 1 && (strings.Contains(label, phrase) || strings.Contains(phrase, label)):
		return 80
	case hasToken(label, term) || hasToken(strings.ReplaceAll(id, "-", " "), term):
		return 60
	case len(term) >= 3 && (strings.Contains(label, term) || strings.Contains(id, term)):
		return 40
	}

	words := strings.Fields(phrase)
	labelWords := strings.Fields(label)
	matched := 0
	for _, w := range words {
		if len(w) < 2 {
			continue
		}
		for _, lw := range labelWords {
			if strings.Contains(lw, w) || strings.Contains(w, lw) {
				matched++
				break
			}
		}
	}
	need := 2
	if len(words) < need {
		need = len(words)
	}
	if matched > 0 && matched >= need {
		return 10 * matched
	}
	return 0
}

func ordinal(s string) (int, bool) {
	if n, ok := numberWords[s]; ok {
		return n, true
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n, true
	}
	return 0, false
}

func hasToken(text, token string) bool {
	for _, f := range strings.Fields(text) {
		if f == token {
			return true
		}
	}
	return false
}

func clean(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}
