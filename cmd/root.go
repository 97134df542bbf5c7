package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vibepod/vibepod/internal"
)

var (
	verbose bool
	version string = "0.2.0"
	commit  string = "unknown"
	date    string = "unknown"
)

// Exit codes, stable for scripting.
const (
	exitError            = 1
	exitDockerNotRunning = 3
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vp",
	Short: "One CLI for all AI coding agents",
	Long: `VibePod launches AI coding agents in isolated Docker containers.

Each agent runs with your workspace mounted, its own config directory,
and an interactive terminal attached. User-submitted prompts are
transparently recorded to a local SQLite database for later review.

Quick Start:
  vp run claude               # Start Claude in the current directory
  vp list                     # Show agents and running containers
  vp logs list                # Browse recorded sessions
  vp logs ui                  # Open the Datasette log viewer

Supported agents: claude, gemini, opencode, devstral, auggie, copilot, codex.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if internal.IsDockerUnavailable(err) {
			os.Exit(exitDockerNotRunning)
		}
		os.Exit(exitError)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
