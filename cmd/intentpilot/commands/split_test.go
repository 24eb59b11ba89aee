package commands

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/MEKXH/intentpilot/internal/splitter"
)

func TestSplitCommand_Table(t *testing.T) {
	output := stripANSI(captureOutput(t, func() {
		if err := runSplit(nil, []string{"buy a flat in Pune\nsell my house in Delhi"}); err != nil {
			t.Fatalf("runSplit error: %v", err)
		}
	}))
	for _, want := range []string{"Intents", "TYPE", "Pune", "Delhi"} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in split output, got:\n%s", want, output)
		}
	}
}

func TestSplitCommand_JSON(t *testing.T) {
	cmd := NewSplitCmd()
	if err := cmd.Flags().Set("json", "true"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	output := captureOutput(t, func() {
		if err := runSplit(cmd, []string{"buy a flat in Pune"}); err != nil {
			t.Fatalf("runSplit error: %v", err)
		}
	})
	var got []splitter.Descriptor
	if err := json.Unmarshal([]byte(output), &got); err != nil {
		t.Fatalf("decode output %q: %v", output, err)
	}
	if len(got) != 1 || got[0].Location != "Pune" {
		t.Fatalf("unexpected descriptors %+v", got)
	}
}

func TestParseCommand_MutatingNotice(t *testing.T) {
	output := captureOutput(t, func() {
		if err := runParse(nil, []string{"select", "agent", "a"}); err != nil {
			t.Fatalf("runParse error: %v", err)
		}
	})
	if !strings.Contains(output, `"kind": "select_decision"`) {
		t.Fatalf("expected select kind, got:\n%s", output)
	}
	if !strings.Contains(output, "asks for confirmation") {
		t.Fatalf("expected confirmation notice, got:\n%s", output)
	}

	output = captureOutput(t, func() {
		if err := runParse(nil, []string{"read", "risk"}); err != nil {
			t.Fatalf("runParse error: %v", err)
		}
	})
	if strings.Contains(output, "asks for confirmation") {
		t.Fatalf("read must not ask for confirmation:\n%s", output)
	}
}
