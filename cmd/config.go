package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/vibepod/vibepod/internal"
	"gopkg.in/yaml.v3"
)

var (
	configShowJSON    bool
	configPathGlobal  bool
	configPathProject bool
)

// configCmd represents the config command group
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective merged config",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := internal.LoadConfig()
		if err != nil {
			return err
		}

		if configShowJSON {
			out, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config and logs paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPathGlobal && configPathProject {
			return fmt.Errorf("use only one of --global or --project")
		}

		if configPathGlobal {
			fmt.Println(internal.GlobalConfigPath())
			return nil
		}
		if configPathProject {
			fmt.Println(internal.ProjectConfigPath())
			return nil
		}

		cfg, err := internal.LoadConfig()
		if err != nil {
			return err
		}
		logsPath := internal.ExpandPath(internal.ConfigString(cfg, "logging.db_path",
			filepath.Join(internal.ConfigRoot(), "logs.db")))

		fmt.Printf("Global:  %s\n", internal.GlobalConfigPath())
		fmt.Printf("Project: %s\n", internal.ProjectConfigPath())
		fmt.Printf("Logs:    %s\n", logsPath)
		return nil
	},
}

func init() {
	configShowCmd.Flags().BoolVar(&configShowJSON, "json", false, "Output JSON")
	configPathCmd.Flags().BoolVar(&configPathGlobal, "global", false, "Show global config path only")
	configPathCmd.Flags().BoolVar(&configPathProject, "project", false, "Show project config path only")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}
