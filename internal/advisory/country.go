package advisory

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/MEKXH/intentpilot/internal/workflow"
)

var indiaKeywords = []string{
	"vizag", "visakhapatnam", "mumbai", "bombay", "delhi", "new delhi",
	"bangalore", "bengaluru", "chennai", "madras", "hyderabad", "pune",
	"kolkata", "calcutta", "ahmedabad", "surat", "jaipur", "lucknow",
	"kanpur", "nagpur", "indore", "thane", "bhopal", "patna", "vadodara",
	"ghaziabad", "ludhiana", "agra", "nashik", "noida", "gurgaon", "gurugram",
	"andhra pradesh", "maharashtra", "karnataka", "tamil nadu", "gujarat",
	"rajasthan", "uttar pradesh", "west bengal", "bihar", "madhya pradesh",
	"punjab", "haryana", "odisha", "kerala", "assam", "jharkhand",
	"india", "indian", "bharat", "hindustan",
	"lakh", "lakhs", "crore", "crores", "rupee", "rupees", "inr",
}

var usKeywords = []string{
	"austin", "new york", "nyc", "los angeles", "chicago", "houston",
	"phoenix", "philadelphia", "san antonio", "san diego", "dallas",
	"san jose", "seattle", "denver", "boston", "miami",
	"atlanta", "detroit", "minneapolis", "portland", "las vegas",
	"nashville", "orlando", "charlotte", "san francisco", "columbus",
	"texas", "california", "florida", "pennsylvania", "illinois",
	"ohio", "georgia", "north carolina", "michigan", "new jersey", "virginia",
	"washington", "arizona", "massachusetts", "tennessee", "indiana",
	"missouri", "maryland", "wisconsin", "colorado", "minnesota",
	"usa", "us", "united states", "america", "american",
	"dollar", "dollars", "usd",
}

// DetermineCountry guesses the market of an intent from its location and
// text. India wins ties and is the default.
func DetermineCountry(intent workflow.Intent) string {
	location := intent.Payload.Location
	for _, key := range []string{"location", "city", "state", "country"} {
		if location != "" {
			break
		}
		if v, ok := intent.ExtractedInfo[key]; ok {
			location = fmt.Sprint(v)
		}
	}
	text := intent.Text
	if text == "" {
		text = intent.Payload.OriginalText
	}
	raw := location + " " + text

	if strings.Contains(raw, "₹") {
		return "IN"
	}
	words := " " + normalizeWords(raw) + " "
	if containsAny(words, indiaKeywords) {
		return "IN"
	}
	if strings.Contains(raw, "$") || containsAny(words, usKeywords) {
		return "US"
	}
	return "IN"
}

func containsAny(words string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(words, " "+k+" ") {
			return true
		}
	}
	return false
}

func normalizeWords(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}
