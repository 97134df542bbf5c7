package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/vibepod/vibepod/internal"
)

var (
	listRunning bool
	listJSON    bool
)

var (
	listHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	listAgentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	listRunningStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("42")).
				Bold(true)

	listStoppedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243"))
)

type agentRow struct {
	Agent     string `json:"agent"`
	Image     string `json:"image"`
	Status    string `json:"status"`
	Workspace string `json:"workspace"`
}

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available agents and running containers",
	RunE: func(cmd *cobra.Command, args []string) error {
		var running map[string]internal.ManagedContainer

		manager, err := internal.NewDockerManager()
		if err != nil {
			// Without Docker the agent catalog is still useful, unless
			// the caller asked specifically for running containers.
			if listRunning {
				return err
			}
			internal.LogDebug("Docker unavailable, listing agents only: %v", err)
		} else {
			defer manager.Close()
			containers, err := manager.ListManaged(context.Background(), true)
			if err != nil {
				return err
			}
			running = map[string]internal.ManagedContainer{}
			for _, c := range containers {
				if c.Agent == "" {
					continue
				}
				if _, seen := running[c.Agent]; !seen {
					running[c.Agent] = c
				}
			}
		}

		var rows []agentRow
		for _, agent := range internal.SupportedAgents {
			row := agentRow{
				Agent:     agent,
				Image:     internal.DefaultAgentImage(agent),
				Status:    "stopped",
				Workspace: "-",
			}
			if c, ok := running[agent]; ok {
				row.Status = c.Status
				if c.Workspace != "" {
					row.Workspace = c.Workspace
				}
			}
			if listRunning && row.Status != "running" {
				continue
			}
			rows = append(rows, row)
		}

		if listJSON {
			out, err := json.MarshalIndent(rows, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, listHeaderStyle.Render("AGENT")+"\t"+
			listHeaderStyle.Render("IMAGE")+"\t"+
			listHeaderStyle.Render("STATUS")+"\t"+
			listHeaderStyle.Render("WORKSPACE"))
		for _, row := range rows {
			status := listStoppedStyle.Render(row.Status)
			if row.Status == "running" {
				status = listRunningStyle.Render(row.Status)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				listAgentStyle.Render(row.Agent), row.Image, status, row.Workspace)
		}
		return w.Flush()
	},
}

func init() {
	listCmd.Flags().BoolVarP(&listRunning, "running", "r", false, "Show only running agents")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output JSON")
	rootCmd.AddCommand(listCmd)
}
