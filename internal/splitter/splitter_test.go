package splitter

import (
	"testing"

	"github.com/MEKXH/intentpilot/internal/workflow"
)

func TestSplit_SingleIntent(t *testing.T) {
	got := Split("I want a house in Delhi for 80 lakhs")
	if len(got) != 1 {
		t.Fatalf("expected 1 descriptor, got %d", len(got))
	}
	d := got[0]
	if d.Type != workflow.IntentBuyProperty || d.Location != "Delhi" || d.Budget != 8000000 {
		t.Fatalf("unexpected descriptor: %+v", d)
	}
}

func TestSplit_NumberedLines(t *testing.T) {
	got := Split("1. Sell my flat in Mumbai\n2) Rent an apartment in Pune under 30 lakh")
	if len(got) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(got))
	}
	if got[0].Text != "Sell my flat in Mumbai" || got[0].Type != workflow.IntentSellProperty || got[0].Location != "Mumbai" {
		t.Fatalf("unexpected first descriptor: %+v", got[0])
	}
	if got[1].Type != workflow.IntentRentProperty || got[1].Location != "Pune" || got[1].Budget != 3000000 {
		t.Fatalf("unexpected second descriptor: %+v", got[1])
	}
	if got[0].Index != 0 || got[1].Index != 1 {
		t.Fatalf("expected input order indexes, got %d and %d", got[0].Index, got[1].Index)
	}
}

func TestSplit_SemicolonFallback(t *testing.T) {
	got := Split("buy a villa in Chennai for 2 crore; lease an office in Bengaluru")
	if len(got) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(got))
	}
	if got[0].Budget != 20000000 || got[0].Location != "Chennai" {
		t.Fatalf("unexpected first descriptor: %+v", got[0])
	}
	if got[1].Type != workflow.IntentRentProperty || got[1].Location != "Bengaluru" {
		t.Fatalf("unexpected second descriptor: %+v", got[1])
	}
}

func TestSplit_NewlinesWinOverSemicolons(t *testing.T) {
	got := Split("buy in Delhi; with parking\nsell in Agra")
	if len(got) != 2 {
		t.Fatalf("expected newline split to take precedence, got %d descriptors", len(got))
	}
	if got[0].Text != "buy in Delhi; with parking" {
		t.Fatalf("unexpected first line: %q", got[0].Text)
	}
}

func TestSplit_Empty(t *testing.T) {
	if got := Split("  \n ; \n"); len(got) != 0 {
		t.Fatalf("expected no descriptors, got %+v", got)
	}
}

func TestExtractLocation(t *testing.T) {
	tests := map[string]string{
		"flat in new delhi":                    "New Delhi",
		"a plot near Springfield":              "Springfield",
		"Looking for a home with a big garden": "",
		"house around port blair":              "Port Blair",
	}
	for in, want := range tests {
		if got := ExtractLocation(in); got != want {
			t.Errorf("ExtractLocation(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractBudget(t *testing.T) {
	tests := map[string]int64{
		"1.5 crore":            15000000,
		"under 60 lakh":        6000000,
		"budget ₹45L":          4500000,
		"around ₹1.2Cr max":    12000000,
		"no budget stated":     0,
		"99999999999999 crore": 0,
	}
	for in, want := range tests {
		if got := ExtractBudget(in); got != want {
			t.Errorf("ExtractBudget(%q) = %d, want %d", in, got, want)
		}
	}
}
