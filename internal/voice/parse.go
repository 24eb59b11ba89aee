package voice

import (
	"regexp"
	"strings"

	"github.com/MEKXH/intentpilot/internal/workflow"
)

// Kind classifies a parsed utterance.
type Kind string

const (
	KindNavigation    Kind = "navigation"
	KindRead          Kind = "read"
	KindSelectOption  Kind = "select_decision"
	KindUpdateOutcome Kind = "update_action_outcome"
	KindConfirm       Kind = "confirm_decision"
	KindCancel        Kind = "cancel"
	KindUnknown       Kind = "unknown"
)

// Target names what a read command reads.
type Target string

const (
	TargetDecision    Target = "decision"
	TargetAction      Target = "action"
	TargetExplanation Target = "explanation"
	TargetIntent      Target = "intent"
	TargetCompliance  Target = "compliance"
	TargetRisk        Target = "risk"
	TargetNextStep    Target = "next_step"
	TargetCurrent     Target = "current"
)

// Scroll directions.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Command is the structured form of one utterance.
type Command struct {
	Kind       Kind             `json:"kind"`
	Raw        string           `json:"raw"`
	Normalized string           `json:"normalized"`
	Direction  string           `json:"direction,omitempty"`
	Target     Target           `json:"target,omitempty"`
	Identifier string           `json:"identifier,omitempty"`
	Option     string           `json:"option,omitempty"`
	Phrase     string           `json:"phrase,omitempty"`
	ActionRef  string           `json:"actionRef,omitempty"`
	Outcome    workflow.Outcome `json:"outcome,omitempty"`
	Corrected  bool             `json:"corrected,omitempty"`
}

// Mutating reports whether the command changes workflow state and must be
// confirmed first.
func (c Command) Mutating() bool {
	return c.Kind == KindSelectOption || c.Kind == KindUpdateOutcome
}

// Context is what the parser may know about the screen.
type Context struct {
	DecisionsVisible bool
}

var (
	spaces = regexp.MustCompile(`\s+`)

	wordFixes = []struct {
		re   *regexp.Regexp
		with string
	}{
		{regexp.MustCompile(`\bwon\b`), "one"},
		{regexp.MustCompile(`\b(?:reed|red)\b`), "read"},
		{regexp.MustCompile(`\bdecisive\b`), "decision"},
		{regexp.MustCompile(`\bexplain\b`), "explanation"},
		{regexp.MustCompile(`\bcomply\b`), "compliance"},
		{regexp.MustCompile(`\brisky\b`), "risk"},
		{regexp.MustCompile(`\bsteps\b`), "step"},
	}
	// to/for/ate only stand for numbers right after a counted noun; elsewhere
	// they are ordinary words ("talk to agent").
	countedHomophone = regexp.MustCompile(`\b(decision|action|option|recent|number)\s+(to|too|for|ate)\b`)
	homophoneDigits  = map[string]string{"to": "two", "too": "two", "for": "four", "ate": "eight"}

	ordinalWords = map[string]string{
		"first": "one", "1st": "one",
		"second": "two", "2nd": "two",
		"third": "three", "3rd": "three",
		"fourth": "four", "4th": "four",
		"fifth": "five", "5th": "five",
	}

	readOrdinalDecision = regexp.MustCompile(`read\s+(?:the\s+)?(first|second|third|fourth|fifth|1st|2nd|3rd|4th|5th)\s+decision`)
	readDecisionIdent   = regexp.MustCompile(`read\s+decision\s+(one|two|three|four|five|1|2|3|4|5|first|second|third|agent|property|bank|loan)\b`)
	readKeywordDecision = regexp.MustCompile(`read\s+(agent|property|bank|loan)\s+decision`)
	readRecentNumber    = regexp.MustCompile(`read\s+recent\s+(one|two|three|four|five|1|2|3|4|5)\b`)
	readActionIdent     = regexp.MustCompile(`read\s+action\s+(one|two|three|four|five|1|2|3|4|5|[a-z\s]+?)(?:\s+action|$)`)

	goUp     = regexp.MustCompile(`^(?:go|move)\s+up$`)
	goDown   = regexp.MustCompile(`^(?:go|move)\s+down$`)
	scrollUp = regexp.MustCompile(`\bscroll\s+up(?:ward)?\b`)
	scrollDn = regexp.MustCompile(`\bscroll\s+down(?:ward)?\b`)

	selectNoun   = regexp.MustCompile(`(?:select|choose)\s+(?:the\s+)?((?:agent|property|option|bank|loan)\s*([a-z0-9]+))`)
	selectAny    = regexp.MustCompile(`(?:select|choose)\s+(?:the\s+)?([a-z0-9]+)`)
	selectPhrase = regexp.MustCompile(`(?:select|choose)\s+(?:the\s+)?(.+)$`)

	actionAfterVerb = regexp.MustCompile(`(?:mark|complete|skip|fail|block|reschedule)\s+action\s+([a-z0-9\s]+?)(?:\s+as|\s+completed|\s+failed|\s+skipped|\s+blocked|\s+rescheduled|$)`)
	actionAny       = regexp.MustCompile(`action\s+([a-z0-9\s]+?)(?:\s+as|\s+completed|\s+failed|\s+skipped|\s+blocked|\s+rescheduled|$)`)
)

// Normalize lowercases the utterance, collapses whitespace and repairs common
// mis-transcriptions.
func Normalize(raw string) string {
	s := strings.TrimSpace(spaces.ReplaceAllString(strings.ToLower(raw), " "))
	s = strings.TrimRight(s, ".!?, ")
	for _, fix := range wordFixes {
		s = fix.re.ReplaceAllString(s, fix.with)
	}
	return countedHomophone.ReplaceAllStringFunc(s, func(m string) string {
		parts := strings.Fields(m)
		return parts[0] + " " + homophoneDigits[parts[1]]
	})
}

// Parse turns an utterance into a command. With decisions visible a short
// "scroll down" is read as "read decision", its most frequent
// mis-transcription.
func Parse(raw string, pc Context) Command {
	norm := Normalize(raw)
	cmd := parseNormalized(norm)
	if pc.DecisionsVisible && cmd.Kind == KindNavigation && cmd.Direction == DirectionDown &&
		(norm == "scroll down" || len(norm) <= 12) {
		cmd = Command{Kind: KindRead, Target: TargetDecision, Corrected: true}
	}
	cmd.Raw = raw
	cmd.Normalized = norm
	return cmd
}

func parseNormalized(s string) Command {
	if s == "" {
		return Command{Kind: KindUnknown}
	}
	words := wordSet(s)

	if s == "cancel" || s == "abort" || s == "cancel that" || s == "cancel it" {
		return Command{Kind: KindCancel}
	}
	if cmd, ok := parseRead(s, words); ok {
		return cmd
	}
	if cmd, ok := parseNavigation(s, words); ok {
		return cmd
	}
	if cmd, ok := parseSelect(s, words); ok {
		return cmd
	}
	if words["confirm"] && (words["decision"] || words["selection"] || len(words) <= 2) {
		return Command{Kind: KindConfirm}
	}
	if cmd, ok := parseOutcome(s, words); ok {
		return cmd
	}
	return Command{Kind: KindUnknown}
}

func parseRead(s string, w map[string]bool) (Command, bool) {
	read := w["read"]
	ordinal := w["first"] || w["second"] || w["third"]

	switch {
	case read && (w["decision"] || (w["recent"] && hasNumber(w)) || (ordinal && !w["action"])):
		return Command{Kind: KindRead, Target: TargetDecision, Identifier: decisionIdentifier(s)}, true
	case read && w["action"]:
		var ident string
		if m := readActionIdent.FindStringSubmatch(s); m != nil {
			ident = canonicalIdentifier(strings.TrimSpace(m[1]))
		}
		return Command{Kind: KindRead, Target: TargetAction, Identifier: ident}, true
	case read && (w["explanation"] || w["why"]),
		strings.Contains(s, "why was this recommended"),
		s == "explanation this" || s == "explanation":
		return Command{Kind: KindRead, Target: TargetExplanation}, true
	case read && (w["intent"] || w["summary"]),
		strings.Contains(s, "what is my intent"):
		return Command{Kind: KindRead, Target: TargetIntent}, true
	case read && w["compliance"]:
		return Command{Kind: KindRead, Target: TargetCompliance}, true
	case read && w["risk"]:
		return Command{Kind: KindRead, Target: TargetRisk}, true
	case read && (w["next"] || w["step"]),
		strings.Contains(s, "what's next"), strings.Contains(s, "what is next"), strings.Contains(s, "what are the next step"):
		return Command{Kind: KindRead, Target: TargetNextStep}, true
	case read && (w["this"] || w["current"] || w["recent"] || w["it"]),
		strings.Contains(s, "what does this say"), strings.Contains(s, "what does it say"):
		return Command{Kind: KindRead, Target: TargetCurrent}, true
	}
	return Command{}, false
}

func decisionIdentifier(s string) string {
	for _, re := range []*regexp.Regexp{readOrdinalDecision, readDecisionIdent, readKeywordDecision, readRecentNumber} {
		if m := re.FindStringSubmatch(s); m != nil {
			return canonicalIdentifier(m[1])
		}
	}
	return ""
}

func canonicalIdentifier(id string) string {
	if n, ok := ordinalWords[id]; ok {
		return n
	}
	return id
}

func parseNavigation(s string, w map[string]bool) (Command, bool) {
	if (w["scroll"] && w["up"] && !w["down"]) || goUp.MatchString(s) || (scrollUp.MatchString(s) && !w["down"]) {
		return Command{Kind: KindNavigation, Direction: DirectionUp}, true
	}
	if (w["scroll"] && w["down"] && !w["up"]) || goDown.MatchString(s) || (scrollDn.MatchString(s) && !w["up"]) {
		return Command{Kind: KindNavigation, Direction: DirectionDown}, true
	}
	return Command{}, false
}

func parseSelect(s string, w map[string]bool) (Command, bool) {
	if !w["select"] && !w["choose"] {
		return Command{}, false
	}
	cmd := Command{Kind: KindSelectOption}
	if m := selectNoun.FindStringSubmatch(s); m != nil {
		cmd.Option = m[2]
	} else if m := selectAny.FindStringSubmatch(s); m != nil {
		cmd.Option = m[1]
	} else {
		return Command{}, false
	}
	if m := selectPhrase.FindStringSubmatch(s); m != nil {
		cmd.Phrase = strings.TrimSpace(m[1])
	}
	return cmd, true
}

func parseOutcome(s string, w map[string]bool) (Command, bool) {
	if !w["action"] {
		return Command{}, false
	}
	trigger := (w["mark"] && w["as"]) ||
		strings.Contains(s, "complete") || strings.Contains(s, "skip") || strings.Contains(s, "fail") ||
		strings.Contains(s, "block") || strings.Contains(s, "reschedule")
	if !trigger {
		return Command{}, false
	}

	var outcome workflow.Outcome
	switch {
	case strings.Contains(s, "complete"):
		outcome = workflow.OutcomeCompleted
	case strings.Contains(s, "fail"):
		outcome = workflow.OutcomeFailed
	case strings.Contains(s, "skip"):
		outcome = workflow.OutcomeSkipped
	case strings.Contains(s, "block"):
		outcome = workflow.OutcomeBlocked
	case strings.Contains(s, "reschedule"):
		outcome = workflow.OutcomeRescheduled
	case w["mark"] && w["confirmed"]:
		outcome = workflow.OutcomeConfirmed
	default:
		return Command{}, false
	}

	m := actionAfterVerb.FindStringSubmatch(s)
	if m == nil {
		m = actionAny.FindStringSubmatch(s)
	}
	if m == nil {
		return Command{}, false
	}
	ref := strings.TrimSpace(m[1])
	if ref == "" {
		return Command{}, false
	}
	return Command{Kind: KindUpdateOutcome, ActionRef: canonicalIdentifier(ref), Outcome: outcome}, true
}

func wordSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.Fields(s) {
		out[strings.Trim(f, ".,!?")] = true
	}
	return out
}

func hasNumber(w map[string]bool) bool {
	for _, n := range []string{"one", "two", "three", "four", "five", "1", "2", "3", "4", "5"} {
		if w[n] {
			return true
		}
	}
	return false
}
