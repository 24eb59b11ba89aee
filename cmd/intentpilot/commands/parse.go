package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/MEKXH/intentpilot/internal/voice"
	"github.com/spf13/cobra"
)

func NewParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <utterance>",
		Short: "Show how an utterance is understood as a voice command",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runParse,
	}
	cmd.Flags().Bool("decisions-visible", false, "Parse as if decisions were on screen")
	return cmd
}

func runParse(cmd *cobra.Command, args []string) error {
	visible := false
	if cmd != nil {
		visible, _ = cmd.Flags().GetBool("decisions-visible")
	}
	parsed := voice.Parse(strings.Join(args, " "), voice.Context{DecisionsVisible: visible})
	data, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(data))
	if parsed.Mutating() {
		fmt.Fprintln(os.Stdout, "This command asks for confirmation before it runs.")
	}
	return nil
}
