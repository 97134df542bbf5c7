package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/vibepod/vibepod/internal"
)

var versionJSON bool

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and runtime information",
	RunE: func(cmd *cobra.Command, args []string) error {
		dockerVersion := "unavailable"
		if manager, err := internal.NewDockerManager(); err == nil {
			defer manager.Close()
			if v, err := manager.ServerVersion(context.Background()); err == nil {
				dockerVersion = v
			}
		}

		if versionJSON {
			out, err := json.MarshalIndent(map[string]string{
				"vibepod": version,
				"go":      runtime.Version(),
				"docker":  dockerVersion,
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		fmt.Printf("VibePod CLI: %s\n", version)
		fmt.Printf("Go:          %s\n", runtime.Version())
		fmt.Printf("Docker:      %s\n", dockerVersion)
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(versionCmd)
}
