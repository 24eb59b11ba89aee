package commands

import (
	"github.com/MEKXH/intentpilot/internal/config"
	"github.com/spf13/cobra"
)

var logLevelOverride string

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "intentpilot",
		Short: "IntentPilot - intent progression orchestrator",
		Long: `IntentPilot drives user intents through compliance, decisions and actions
against the intent platform engines, by typed commands or by voice.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "init" {
				return configureLogger(config.DefaultConfig(), logLevelOverride, false)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return configureLogger(cfg, logLevelOverride, cmd.Name() == "chat" || cmd.Name() == "voice")
		},
	}

	cmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Override log level (debug|info|warn|error)")

	cmd.AddCommand(
		NewInitCmd(),
		NewChatCmd(),
		NewVoiceCmd(),
		NewSplitCmd(),
		NewParseCmd(),
		NewHistoryCmd(),
		NewStatusCmd(),
		NewVersionCmd(),
	)

	return cmd
}
