package cmd

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/vibepod/vibepod/internal"
)

var (
	proxyStartPort int
	proxyStopForce bool
)

// proxyCmd represents the proxy command group
var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Manage the HTTP(S) proxy",
}

var proxyStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the proxy container",
	RunE: func(cmd *cobra.Command, args []string) error {
		console := internal.NewConsole()
		cfg, err := internal.LoadConfig()
		if err != nil {
			return err
		}

		port := proxyStartPort
		if port == 0 {
			port = internal.ConfigInt(cfg, "proxy.port", 8080)
		}
		dbPath := internal.ExpandPath(internal.ConfigString(cfg, "proxy.db_path",
			filepath.Join(internal.ConfigRoot(), "proxy", "proxy.db")))
		caDir := internal.ExpandPath(internal.ConfigString(cfg, "proxy.ca_dir",
			filepath.Join(internal.ConfigRoot(), "proxy", "mitmproxy")))
		image := internal.ConfigString(cfg, "proxy.image", internal.DefaultProxyImage())
		networkName := internal.ConfigString(cfg, "network", "vibepod-network")

		manager, err := internal.NewDockerManager()
		if err != nil {
			return err
		}
		defer manager.Close()

		ctx := context.Background()
		if err := manager.EnsureNetwork(ctx, networkName); err != nil {
			return err
		}

		console.Info("Starting proxy on port %d", port)
		if err := manager.EnsureProxy(ctx, image, dbPath, caDir, port, networkName); err != nil {
			return err
		}
		console.Success("Proxy is running")
		return nil
	},
}

var proxyStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the proxy container",
	RunE: func(cmd *cobra.Command, args []string) error {
		console := internal.NewConsole()
		manager, err := internal.NewDockerManager()
		if err != nil {
			return err
		}
		defer manager.Close()

		ctx := context.Background()
		existing, err := manager.FindRole(ctx, "proxy")
		if err != nil {
			return err
		}
		if existing == nil {
			console.Warning("Proxy is not running")
			return nil
		}

		if err := manager.StopContainer(ctx, existing.ID, proxyStopForce); err != nil {
			return err
		}
		console.Success("Proxy stopped")
		return nil
	},
}

var proxyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show proxy container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		console := internal.NewConsole()
		manager, err := internal.NewDockerManager()
		if err != nil {
			return err
		}
		defer manager.Close()

		existing, err := manager.FindRole(context.Background(), "proxy")
		if err != nil {
			return err
		}
		if existing == nil {
			console.Info("Proxy is not running")
			return nil
		}
		console.Info("Proxy container: %s (%s)", existing.Name, existing.Status)
		return nil
	},
}

func init() {
	proxyStartCmd.Flags().IntVar(&proxyStartPort, "port", 0, "Proxy host port")
	proxyStopCmd.Flags().BoolVarP(&proxyStopForce, "force", "f", false, "Force stop")

	proxyCmd.AddCommand(proxyStartCmd)
	proxyCmd.AddCommand(proxyStopCmd)
	proxyCmd.AddCommand(proxyStatusCmd)
	rootCmd.AddCommand(proxyCmd)
}
