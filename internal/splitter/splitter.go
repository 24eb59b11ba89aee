// Package splitter breaks free text into one descriptor per intent.
package splitter

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/MEKXH/intentpilot/internal/workflow"
)

// Descriptor is one classified intent line.
type Descriptor struct {
	Index    int    `json:"index"`
	Text     string `json:"text"`
	Type     string `json:"type"`
	Location string `json:"location,omitempty"`
	Budget   int64  `json:"budget,omitempty"`
}

var cities = []string{
	"new delhi", "port blair", "mumbai", "bombay", "delhi", "bangalore", "bengaluru", "chennai", "madras",
	"hyderabad", "pune", "kolkata", "calcutta", "ahmedabad", "surat", "jaipur",
	"lucknow", "kanpur", "nagpur", "indore", "thane", "bhopal", "visakhapatnam",
	"vizag", "patna", "vadodara", "ghaziabad", "ludhiana", "agra", "nashik",
	"vijayawada", "guntur", "warangal", "raipur", "jabalpur", "coimbatore", "kochi",
	"kozhikode", "mysore", "mangalore", "hubli", "belgaum", "gulbarga",
	"bhubaneswar", "cuttack", "ranchi", "jamshedpur", "dhanbad", "guwahati", "shillong",
	"imphal", "aizawl", "kohima", "itanagar", "gangtok", "panaji",
	"pondicherry", "kavaratti", "daman", "diu", "chandigarh", "srinagar", "leh",
}

var (
	cityPatterns = func() []*regexp.Regexp {
		out := make([]*regexp.Regexp, len(cities))
		for i, c := range cities {
			out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(c) + `\b`)
		}
		return out
	}()

	sellPattern = regexp.MustCompile(`(?i)\b(sell|selling|sale|list|listing|put on market)\b`)
	rentPattern = regexp.MustCompile(`(?i)\b(rent|renting|lease|leasing|rental)\b`)

	locationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:in|at|near|around)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`),
		regexp.MustCompile(`\b([A-Z][a-z]{3,}(?:\s+[A-Z][a-z]+)*)\b`),
	}
	nonLocations = []string{
		"home", "house", "property", "buy", "purchase", "crore", "lakh", "rupees", "dollars", "budget",
		"apartment", "flat", "under", "over", "for", "with", "want", "looking", "need", "find", "show",
		"sell", "rent", "lease", "please",
	}

	croreWord  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*crores?`)
	lakhWord   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*lakhs?`)
	rupeeLakh  = regexp.MustCompile(`(?i)₹\s*(\d+(?:\.\d+)?)\s*L\b`)
	rupeeCrore = regexp.MustCompile(`(?i)₹\s*(\d+(?:\.\d+)?)\s*Cr\b`)

	lineBreaks     = regexp.MustCompile(`\n+`)
	numberedPrefix = regexp.MustCompile(`^\d+[.)]\s*`)
)

// Split breaks input into descriptors, one per non-empty line. Input without
// line breaks is split on semicolons instead.
func Split(input string) []Descriptor {
	lines := Lines(input)
	out := make([]Descriptor, 0, len(lines))
	for i, line := range lines {
		out = append(out, Classify(line, i))
	}
	return out
}

// Lines returns the trimmed intent lines with list numbering removed.
func Lines(input string) []string {
	lines := nonEmpty(lineBreaks.Split(input, -1))
	if len(lines) == 1 {
		lines = nonEmpty(strings.Split(input, ";"))
	}
	for i, line := range lines {
		lines[i] = strings.TrimSpace(numberedPrefix.ReplaceAllString(line, ""))
	}
	return nonEmpty(lines)
}

func nonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Classify builds the descriptor of one line.
func Classify(line string, index int) Descriptor {
	line = strings.TrimSpace(line)
	return Descriptor{
		Index:    index,
		Text:     line,
		Type:     DetectType(line),
		Location: ExtractLocation(line),
		Budget:   ExtractBudget(line),
	}
}

// DetectType classifies a line. Buying is the default for real-estate text.
func DetectType(text string) string {
	switch {
	case sellPattern.MatchString(text):
		return workflow.IntentSellProperty
	case rentPattern.MatchString(text):
		return workflow.IntentRentProperty
	default:
		return workflow.IntentBuyProperty
	}
}

// ExtractLocation returns a known city, or a capitalized place name, or "".
func ExtractLocation(text string) string {
	for i, re := range cityPatterns {
		if re.MatchString(text) {
			return titleCase(cities[i])
		}
	}
	for _, re := range locationPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			candidate := strings.TrimSpace(m[1])
			if len(candidate) <= 3 || len(candidate) >= 30 || looksLikeNonLocation(candidate) {
				continue
			}
			return candidate
		}
	}
	return ""
}

func looksLikeNonLocation(candidate string) bool {
	lower := strings.ToLower(candidate)
	for _, w := range nonLocations {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// ExtractBudget returns the budget in rupees, or 0 when none is stated.
func ExtractBudget(text string) int64 {
	for _, rule := range []struct {
		re         *regexp.Regexp
		multiplier float64
	}{
		{croreWord, 1e7},
		{lakhWord, 1e5},
		{rupeeLakh, 1e5},
		{rupeeCrore, 1e7},
	} {
		m := rule.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		amount, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		v := math.Round(amount * rule.multiplier)
		if v >= math.MaxInt64 {
			return 0
		}
		return int64(v)
	}
	return 0
}
