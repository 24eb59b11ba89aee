package command

import (
	"context"
	"fmt"
	"strings"
)

// HelpCommand implements /help: lists all available slash commands.
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Usage() string       { return "" }
func (c *HelpCommand) Description() string { return "List available slash commands" }

func (c *HelpCommand) Execute(_ context.Context, _ string, env Env) Result {
	var sb strings.Builder
	sb.WriteString("**Available commands:**\n\n")
	for _, cmd := range env.ListCommands() {
		synopsis := "/" + cmd.Name()
		if u := cmd.Usage(); u != "" {
			synopsis += " " + u
		}
		sb.WriteString(fmt.Sprintf("- `%s`: %s\n", synopsis, cmd.Description()))
	}
	sb.WriteString("\nAnything else is sent as a voice command when it parses as one, otherwise as a new intent.\n")
	return Result{Content: sb.String()}
}
