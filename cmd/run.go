package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vibepod/vibepod/internal"
)

var (
	runWorkspace string
	runPull      bool
	runDetach    bool
	runEnv       []string
	runName      string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [agent]",
	Short: "Start an agent container",
	Long: `Start an AI coding agent in a Docker container and attach to it.

The workspace directory is mounted at /workspace inside the container
and the agent's config directory is mounted at its expected location.
While attached, everything you submit (each line terminated by Enter)
is recorded to the session log database.

Detach is not supported; the session ends when the agent exits or you
press Ctrl+C (which stops the container).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent := ""
		if len(args) > 0 {
			agent = args[0]
		}
		return runAgent(agent)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runWorkspace, "workspace", "w", ".", "Workspace directory")
	runCmd.Flags().BoolVar(&runPull, "pull", false, "Pull latest image before run")
	runCmd.Flags().BoolVarP(&runDetach, "detach", "d", false, "Run container in background")
	runCmd.Flags().StringArrayVarP(&runEnv, "env", "e", nil, "Environment variable KEY=VALUE")
	runCmd.Flags().StringVar(&runName, "name", "", "Custom container name")
	rootCmd.AddCommand(runCmd)
}

func parseEnvPairs(values []string) (map[string]string, error) {
	parsed := map[string]string{}
	for _, entry := range values {
		key, value, found := strings.Cut(entry, "=")
		if !found {
			return nil, fmt.Errorf("invalid --env value %q, expected KEY=VALUE", entry)
		}
		if key == "" {
			return nil, fmt.Errorf("environment variable key cannot be empty")
		}
		parsed[key] = value
	}
	return parsed, nil
}

// setEnvDefault sets key only when the caller has not already set it.
func setEnvDefault(env map[string]string, key, value string) {
	if _, ok := env[key]; !ok {
		env[key] = value
	}
}

func runAgent(agent string) error {
	console := internal.NewConsole()
	ctx := context.Background()

	cfg, err := internal.LoadConfig()
	if err != nil {
		return err
	}

	selected := agent
	if selected == "" {
		selected = internal.ConfigString(cfg, "default_agent", "claude")
	}
	if !internal.IsSupportedAgent(selected) {
		return fmt.Errorf("unknown agent %q. Supported: %s",
			selected, strings.Join(internal.SupportedAgents, ", "))
	}

	workspacePath := internal.ExpandPath(runWorkspace)
	info, err := os.Stat(workspacePath)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("workspace not found: %s", workspacePath)
	}

	spec, err := internal.GetAgentSpec(selected)
	if err != nil {
		return err
	}

	envPairs, err := parseEnvPairs(runEnv)
	if err != nil {
		return err
	}

	mergedEnv := map[string]string{
		"USER_UID": strconv.Itoa(os.Getuid()),
		"USER_GID": strconv.Itoa(os.Getgid()),
	}
	for k, v := range spec.ExtraEnv {
		mergedEnv[k] = v
	}
	if agentEnv, ok := internal.ConfigValue(cfg, "agents."+selected+".env"); ok {
		if envMap, ok := agentEnv.(map[string]any); ok {
			for k, v := range envMap {
				mergedEnv[k] = fmt.Sprintf("%v", v)
			}
		}
	}
	for k, v := range envPairs {
		mergedEnv[k] = v
	}

	image := internal.EffectiveAgentImage(selected, cfg)

	manager, err := internal.NewDockerManager()
	if err != nil {
		return err
	}
	defer manager.Close()

	networkName := internal.ConfigString(cfg, "network", "vibepod-network")
	if err := manager.EnsureNetwork(ctx, networkName); err != nil {
		return err
	}

	if runPull || internal.ConfigBool(cfg, "auto_pull", false) {
		console.Info("Pulling image: %s", image)
		if err := manager.PullImage(ctx, image); err != nil {
			return err
		}
	}

	configDir, err := internal.AgentConfigDir(selected)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create agent config dir: %w", err)
	}

	var extraBinds []string
	var proxyDBPath string
	if internal.ConfigBool(cfg, "proxy.enabled", true) {
		proxyDBPath = internal.ExpandPath(internal.ConfigString(cfg, "proxy.db_path", ""))
		proxyCADir := internal.ExpandPath(internal.ConfigString(cfg, "proxy.ca_dir", filepath.Join(filepath.Dir(proxyDBPath), "mitmproxy")))
		proxyCAPath := internal.ConfigString(cfg, "proxy.ca_path", "")
		proxyPort := internal.ConfigInt(cfg, "proxy.port", 8080)

		err := manager.EnsureProxy(ctx, internal.ConfigString(cfg, "proxy.image", internal.DefaultProxyImage()),
			proxyDBPath, proxyCADir, proxyPort, networkName)
		if err != nil {
			return err
		}

		if proxyCAPath != "" {
			proxyCAPath = internal.ExpandPath(proxyCAPath)
			if !waitForFile(proxyCAPath, 10*time.Second) {
				console.Warning("Proxy CA not found yet at %s", proxyCAPath)
			}
		}

		proxyURL := fmt.Sprintf("http://vibepod-proxy:%d", proxyPort)
		setEnvDefault(mergedEnv, "HTTP_PROXY", proxyURL)
		setEnvDefault(mergedEnv, "HTTPS_PROXY", proxyURL)
		setEnvDefault(mergedEnv, "NO_PROXY", "localhost,127.0.0.1,::1")
		const containerCA = "/etc/vibepod-proxy-ca/mitmproxy-ca-cert.pem"
		setEnvDefault(mergedEnv, "NODE_EXTRA_CA_CERTS", containerCA)
		setEnvDefault(mergedEnv, "REQUESTS_CA_BUNDLE", containerCA)
		setEnvDefault(mergedEnv, "SSL_CERT_FILE", containerCA)
		setEnvDefault(mergedEnv, "CURL_CA_BUNDLE", containerCA)

		extraBinds = append(extraBinds, proxyCADir+":/etc/vibepod-proxy-ca:ro")
	}

	console.Info("Starting %s with image %s", selected, image)
	containerID, containerName, err := manager.RunAgent(ctx, internal.RunAgentOptions{
		Agent:           selected,
		Image:           image,
		Workspace:       workspacePath,
		ConfigDir:       configDir,
		ConfigMountPath: spec.ConfigMountPath,
		Env:             mergedEnv,
		Command:         spec.Command,
		AutoRemove:      internal.ConfigBool(cfg, "auto_remove", true),
		Name:            runName,
		Version:         version,
		Network:         networkName,
		ExtraBinds:      extraBinds,
	})
	if err != nil {
		return err
	}

	state, err := manager.ContainerState(ctx, containerID)
	if err != nil {
		return err
	}
	if state != "running" {
		console.Error("Container exited immediately after start.")
		if recent, err := manager.ContainerLogsTail(ctx, containerID, 50); err == nil && strings.TrimSpace(recent) != "" {
			fmt.Print(recent)
		}
		return fmt.Errorf("container %s is %s", containerName, state)
	}

	if proxyDBPath != "" {
		if ip := manager.ContainerIP(ctx, containerID, networkName); ip != "" {
			mappingPath := filepath.Join(filepath.Dir(proxyDBPath), "containers.json")
			err := internal.UpdateContainerMapping(mappingPath, ip, internal.ContainerMapping{
				ContainerID:   containerID,
				ContainerName: containerName,
				Agent:         selected,
			})
			if err != nil {
				console.Warning("Could not write proxy container mapping at %s. "+
					"Fix proxy directory permissions to restore container attribution.", mappingPath)
			}
		}
	}

	if runDetach {
		console.Success("Started %s", containerName)
		return nil
	}

	logDBPath := internal.ExpandPath(internal.ConfigString(cfg, "logging.db_path",
		filepath.Join(internal.ConfigRoot(), "logs.db")))
	sessionLogger := internal.NewSessionLogger(logDBPath, internal.ConfigBool(cfg, "logging.enabled", true))
	if _, err := sessionLogger.OpenSession(internal.SessionMeta{
		Agent:         selected,
		Image:         image,
		Workspace:     workspacePath,
		ContainerID:   containerID,
		ContainerName: containerName,
		Version:       version,
	}); err != nil {
		return err
	}

	exitReason := "normal"
	defer func() {
		sessionLogger.CloseSession(exitReason)
	}()

	stream, err := manager.Attach(ctx, containerID)
	if err != nil {
		exitReason = "error"
		return err
	}

	console.Warning("Attached to container. Use Ctrl+C to stop.")

	// In raw mode Ctrl+C goes to the container, but a SIGINT from
	// outside the terminal (or before raw mode engages) must still run
	// the cleanup path: closing the stream ends the relay loop.
	var interrupted atomic.Bool
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigCh; ok {
			interrupted.Store(true)
			stream.Close()
		}
	}()

	attachErr := internal.AttachInteractive(stream, sessionLogger)
	signal.Stop(sigCh)
	close(sigCh)

	switch {
	case interrupted.Load():
		exitReason = "keyboard_interrupt"
		console.Info("Stopping container...")
		if err := manager.StopContainer(ctx, containerID, false); err != nil {
			console.Warning("Failed to stop container: %v", err)
		} else {
			console.Success("Stopped")
		}
	case attachErr != nil:
		exitReason = "error"
		return attachErr
	}
	return nil
}

// waitForFile polls for path to exist, returning false on timeout.
func waitForFile(path string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return true
		}
		time.Sleep(250 * time.Millisecond)
	}
	return false
}
