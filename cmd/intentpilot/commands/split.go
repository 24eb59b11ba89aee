package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/MEKXH/intentpilot/internal/splitter"
	"github.com/spf13/cobra"
)

func NewSplitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split [text]",
		Short: "Show how input splits into intents, without calling any engine",
		RunE:  runSplit,
	}
	cmd.Flags().Bool("json", false, "Print descriptors as JSON")
	return cmd
}

func runSplit(cmd *cobra.Command, args []string) error {
	asJSON := false
	if cmd != nil {
		asJSON, _ = cmd.Flags().GetBool("json")
	}
	text := strings.Join(args, " ")
	if len(args) == 0 {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		text = string(raw)
	}

	descriptors := splitter.Split(text)
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(descriptors)
	}
	if len(descriptors) == 0 {
		fmt.Println("No intents found.")
		return nil
	}

	cols := []column{
		{title: "#", width: 3},
		{title: "TYPE", width: 18},
		{title: "LOCATION", width: 14},
		{title: "BUDGET", width: 12},
		{title: "TEXT", width: 40},
	}
	rows := make([][]string, 0, len(descriptors))
	for _, d := range descriptors {
		budget := "-"
		if d.Budget > 0 {
			budget = strconv.FormatInt(d.Budget, 10)
		}
		rows = append(rows, []string{strconv.Itoa(d.Index + 1), d.Type, orDash(d.Location), budget, d.Text})
	}
	fmt.Print(table("Intents", cols, rows, nil))
	return nil
}
