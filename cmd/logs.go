package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/vibepod/vibepod/internal"
)

var (
	logsListLimit int
	logsUIPort    int
	logsUINoOpen  bool
)

var (
	logsHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	logsIDStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	logsAgentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	logsDateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	logsCountStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	logsMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("212"))
)

// logsCmd represents the logs command group
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Browse recorded sessions and the logging UI",
}

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := logsDBPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			fmt.Println("No sessions recorded yet.")
			return nil
		}

		db, err := internal.OpenLogsDB(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		sessions, err := internal.ListSessions(db, logsListLimit)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions recorded yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, logsHeaderStyle.Render("ID")+"\t"+
			logsHeaderStyle.Render("AGENT")+"\t"+
			logsHeaderStyle.Render("STARTED")+"\t"+
			logsHeaderStyle.Render("MESSAGES")+"\t"+
			logsHeaderStyle.Render("EXIT"))
		for _, s := range sessions {
			exit := "-"
			if s.ExitReason.Valid {
				exit = s.ExitReason.String
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				logsIDStyle.Render(shortSessionID(s.ID)),
				logsAgentStyle.Render(s.Agent),
				logsDateStyle.Render(s.StartedAt),
				logsCountStyle.Render(fmt.Sprintf("%d", s.MessageCount)),
				exit)
		}
		return w.Flush()
	},
}

var logsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show the messages of one session (full id or unique prefix)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := logsDBPath()
		if err != nil {
			return err
		}

		db, err := internal.OpenLogsDB(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		session, err := internal.FindSession(db, args[0])
		if err != nil {
			return err
		}
		if session == nil {
			return fmt.Errorf("session not found: %s", args[0])
		}

		fmt.Printf("%s %s\n", logsHeaderStyle.Render("Session:"), session.ID)
		fmt.Printf("%s %s (%s)\n", logsHeaderStyle.Render("Agent:"),
			logsAgentStyle.Render(session.Agent), session.Image)
		fmt.Printf("%s %s\n", logsHeaderStyle.Render("Workspace:"), session.Workspace)
		fmt.Printf("%s %s\n", logsHeaderStyle.Render("Started:"), session.StartedAt)
		if session.EndedAt.Valid {
			fmt.Printf("%s %s (%s)\n", logsHeaderStyle.Render("Ended:"),
				session.EndedAt.String, session.ExitReason.String)
		}
		fmt.Println()

		messages, err := internal.SessionMessages(db, session.ID)
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			fmt.Println("No messages recorded for this session.")
			return nil
		}
		for _, m := range messages {
			fmt.Printf("%s %s\n", logsDateStyle.Render(m.Timestamp), logsMessageStyle.Render(m.Content))
		}
		return nil
	},
}

var logsUICmd = &cobra.Command{
	Use:   "ui",
	Short: "Start or reuse the Datasette log viewer",
	RunE: func(cmd *cobra.Command, args []string) error {
		console := internal.NewConsole()
		cfg, err := internal.LoadConfig()
		if err != nil {
			return err
		}

		port := logsUIPort
		if port == 0 {
			port = internal.ConfigInt(cfg, "logging.ui_port", 8001)
		}
		dbPath := internal.ExpandPath(internal.ConfigString(cfg, "logging.db_path",
			filepath.Join(internal.ConfigRoot(), "logs.db")))
		image := internal.ConfigString(cfg, "logging.image", internal.DefaultDatasetteImage())

		manager, err := internal.NewDockerManager()
		if err != nil {
			return err
		}
		defer manager.Close()

		url := fmt.Sprintf("http://localhost:%d", port)
		console.Info("Starting Datasette on %s", url)
		if err := manager.EnsureDatasette(context.Background(), image, dbPath, port); err != nil {
			return err
		}
		console.Success("Datasette is ready")

		if !logsUINoOpen {
			openBrowser(url)
		}
		return nil
	},
}

func logsDBPath() (string, error) {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return "", err
	}
	return internal.ExpandPath(internal.ConfigString(cfg, "logging.db_path",
		filepath.Join(internal.ConfigRoot(), "logs.db"))), nil
}

func shortSessionID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// openBrowser opens url in the default browser, best effort.
func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		internal.LogDebug("Failed to open browser: %v", err)
	}
}

func init() {
	logsListCmd.Flags().IntVar(&logsListLimit, "limit", 20, "Maximum sessions to show (0 for all)")
	logsUICmd.Flags().IntVar(&logsUIPort, "port", 0, "Datasette host port")
	logsUICmd.Flags().BoolVar(&logsUINoOpen, "no-open", false, "Do not open browser")

	logsCmd.AddCommand(logsListCmd)
	logsCmd.AddCommand(logsShowCmd)
	logsCmd.AddCommand(logsUICmd)
	rootCmd.AddCommand(logsCmd)
}
