package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vibepod/vibepod/internal"
)

// Single-letter shortcuts for `vp run <agent>`.
var agentShortcuts = map[string]string{
	"c": "claude",
	"g": "gemini",
	"o": "opencode",
	"d": "devstral",
	"a": "auggie",
	"p": "copilot",
	"x": "codex",
}

func newRunAlias(use, agent string) *cobra.Command {
	return &cobra.Command{
		Use:    use,
		Short:  fmt.Sprintf("Alias for `vp run %s`", agent),
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(agent)
		},
	}
}

func init() {
	for shortcut, agent := range agentShortcuts {
		rootCmd.AddCommand(newRunAlias(shortcut, agent))
	}
	for _, agent := range internal.SupportedAgents {
		rootCmd.AddCommand(newRunAlias(agent, agent))
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:    "ui",
		Short:  "Alias for `vp logs ui`",
		Hidden: true,
		RunE:   logsUICmd.RunE,
	})
}
