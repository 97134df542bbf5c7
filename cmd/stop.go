package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vibepod/vibepod/internal"
)

var (
	stopAll   bool
	stopForce bool
)

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop [agent]",
	Short: "Stop one agent container, or all managed containers",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !stopAll && len(args) == 0 {
			return fmt.Errorf("provide an AGENT or use --all")
		}

		console := internal.NewConsole()
		manager, err := internal.NewDockerManager()
		if err != nil {
			return err
		}
		defer manager.Close()

		ctx := context.Background()
		if stopAll {
			stopped, err := manager.StopAll(ctx, stopForce)
			if err != nil {
				return err
			}
			console.Success("Stopped %d container(s)", stopped)
			return nil
		}

		agent := args[0]
		stopped, err := manager.StopAgent(ctx, agent, stopForce)
		if err != nil {
			return err
		}
		console.Success("Stopped %d container(s) for %s", stopped, agent)
		return nil
	},
}

func init() {
	stopCmd.Flags().BoolVarP(&stopAll, "all", "a", false, "Stop all VibePod managed containers")
	stopCmd.Flags().BoolVarP(&stopForce, "force", "f", false, "Force stop")
	rootCmd.AddCommand(stopCmd)
}
