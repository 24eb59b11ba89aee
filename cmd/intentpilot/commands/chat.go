package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MEKXH/intentpilot/internal/config"
	"github.com/MEKXH/intentpilot/internal/engine"
	"github.com/spf13/cobra"
)

func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [intent text]",
		Short: "Describe intents and drive them with commands",
		RunE:  runChat,
	}
	cmd.Flags().Bool("resume", false, "Resume the open intent of the configured actor first")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	resume := false
	if cmd != nil {
		resume, _ = cmd.Flags().GetBool("resume")
	}
	return chat(ctx, cfg, nil, os.Stdin, os.Stdout, args, resume)
}

// chat runs the REPL over in. With args it handles that one input and returns.
func chat(ctx context.Context, cfg *config.Config, collaborators *engine.Collaborators, in io.Reader, out io.Writer, args []string, resume bool) error {
	a, err := newApp(ctx, cfg, collaborators, out)
	if err != nil {
		return err
	}
	defer a.close()

	if resume {
		a.handle(ctx, "/resume")
	}

	if len(args) > 0 {
		a.handle(ctx, strings.Join(args, " "))
		return nil
	}

	fmt.Fprintln(out, "IntentPilot ready. Describe an intent, or type /help. Type 'exit' to quit.")
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(out, "\n> ")
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			return nil
		}

		input := strings.TrimSpace(line)
		if input == "exit" || input == "quit" {
			return nil
		}
		if input == "" {
			continue
		}
		a.handle(ctx, input)
	}
}
