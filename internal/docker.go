package internal

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
)

const (
	// LabelManaged marks every container vp owns.
	LabelManaged = "vibepod.managed"

	labelAgent     = "vibepod.agent"
	labelWorkspace = "vibepod.workspace"
	labelVersion   = "vibepod.version"
	labelRole      = "vibepod.role"
)

// DockerManager wraps the Docker API client for all container
// operations vp performs.
type DockerManager struct {
	cli *client.Client
}

// NewDockerManager connects to the Docker daemon and verifies it is
// reachable. An unreachable daemon yields a DockerError with
// Unavailable set, so callers can tell "start Docker" apart from a
// failed operation.
func NewDockerManager() (*DockerManager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, &DockerError{Op: "connect", Unavailable: true, Err: err}
	}
	if _, err := cli.Ping(context.Background()); err != nil {
		cli.Close()
		return nil, &DockerError{Op: "ping", Unavailable: true, Err: err}
	}
	return &DockerManager{cli: cli}, nil
}

// Close releases the client connection.
func (m *DockerManager) Close() error {
	return m.cli.Close()
}

// ServerVersion returns the Docker daemon version string.
func (m *DockerManager) ServerVersion(ctx context.Context) (string, error) {
	version, err := m.cli.ServerVersion(ctx)
	if err != nil {
		return "", &DockerError{Op: "version", Err: err}
	}
	return version.Version, nil
}

// EnsureNetwork creates the named bridge network if it does not exist.
func (m *DockerManager) EnsureNetwork(ctx context.Context, name string) error {
	_, err := m.cli.NetworkInspect(ctx, name, network.InspectOptions{})
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return &DockerError{Op: "network inspect", Err: err}
	}
	if _, err := m.cli.NetworkCreate(ctx, name, network.CreateOptions{}); err != nil {
		return &DockerError{Op: "network create", Err: err}
	}
	return nil
}

// PullImage pulls an image and waits for the pull to finish.
func (m *DockerManager) PullImage(ctx context.Context, ref string) error {
	reader, err := m.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return &DockerError{Op: fmt.Sprintf("pull %s", ref), Err: err}
	}
	defer reader.Close()
	// The pull runs while the progress stream is consumed.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return &DockerError{Op: fmt.Sprintf("pull %s", ref), Err: err}
	}
	return nil
}

// RunAgentOptions describes an agent container to start.
type RunAgentOptions struct {
	Agent           string
	Image           string
	Workspace       string
	ConfigDir       string
	ConfigMountPath string
	Env             map[string]string
	Command         []string
	AutoRemove      bool
	Name            string
	Version         string
	Network         string
	ExtraBinds      []string
}

// RunAgent creates and starts an agent container with a TTY and open
// stdin, ready for interactive attachment. Returns the container id
// and name.
func (m *DockerManager) RunAgent(ctx context.Context, opts RunAgentOptions) (string, string, error) {
	name := opts.Name
	if name == "" {
		name = fmt.Sprintf("vibepod-%s-%s", opts.Agent, shortID())
	}

	env := make([]string, 0, len(opts.Env))
	for k, v := range opts.Env {
		env = append(env, k+"="+v)
	}

	binds := []string{
		opts.Workspace + ":/workspace:rw",
		opts.ConfigDir + ":" + opts.ConfigMountPath + ":rw",
	}
	binds = append(binds, opts.ExtraBinds...)

	config := &container.Config{
		Image:      opts.Image,
		Cmd:        opts.Command,
		Env:        env,
		WorkingDir: "/workspace",
		Tty:        true,
		OpenStdin:  true,
		Labels: map[string]string{
			LabelManaged:   "true",
			labelAgent:     opts.Agent,
			labelWorkspace: opts.Workspace,
			labelVersion:   opts.Version,
		},
	}
	hostConfig := &container.HostConfig{
		Binds:      binds,
		AutoRemove: opts.AutoRemove,
	}
	networkConfig := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			opts.Network: {},
		},
	}

	created, err := m.cli.ContainerCreate(ctx, config, hostConfig, networkConfig, nil, name)
	if err != nil {
		return "", "", &DockerError{Op: "create container", Err: err}
	}
	if err := m.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return "", "", &DockerError{Op: "start container", Err: err}
	}
	return created.ID, name, nil
}

// ContainerState returns the current status string ("running", ...) of
// a container.
func (m *DockerManager) ContainerState(ctx context.Context, containerID string) (string, error) {
	info, err := m.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return "", &DockerError{Op: "inspect container", Err: err}
	}
	return info.State.Status, nil
}

// ContainerIP returns the container's IP address on the given network,
// or an empty string when it has none.
func (m *DockerManager) ContainerIP(ctx context.Context, containerID, networkName string) string {
	info, err := m.cli.ContainerInspect(ctx, containerID)
	if err != nil || info.NetworkSettings == nil {
		return ""
	}
	endpoint, ok := info.NetworkSettings.Networks[networkName]
	if !ok {
		return ""
	}
	return endpoint.IPAddress
}

// ContainerLogsTail returns the last lines of a container's output,
// used to diagnose containers that exit immediately after start.
func (m *DockerManager) ContainerLogsTail(ctx context.Context, containerID string, lines int) (string, error) {
	reader, err := m.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       strconv.Itoa(lines),
	})
	if err != nil {
		return "", &DockerError{Op: "container logs", Err: err}
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", &DockerError{Op: "container logs", Err: err}
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}

// StopContainer stops a container, immediately when force is set.
func (m *DockerManager) StopContainer(ctx context.Context, containerID string, force bool) error {
	timeout := 10
	if force {
		timeout = 0
	}
	if err := m.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		return &DockerError{Op: "stop container", Err: err}
	}
	return nil
}

// ManagedContainer is vp's view of one managed container.
type ManagedContainer struct {
	ID        string
	Name      string
	Agent     string
	Workspace string
	Status    string
}

// ListManaged returns all containers carrying the managed label.
// Stopped containers are included when all is set.
func (m *DockerManager) ListManaged(ctx context.Context, all bool) ([]ManagedContainer, error) {
	summaries, err := m.cli.ContainerList(ctx, container.ListOptions{
		All:     all,
		Filters: filters.NewArgs(filters.Arg("label", LabelManaged+"=true")),
	})
	if err != nil {
		return nil, &DockerError{Op: "list containers", Err: err}
	}

	managed := make([]ManagedContainer, 0, len(summaries))
	for _, summary := range summaries {
		name := ""
		if len(summary.Names) > 0 {
			name = strings.TrimPrefix(summary.Names[0], "/")
		}
		managed = append(managed, ManagedContainer{
			ID:        summary.ID,
			Name:      name,
			Agent:     summary.Labels[labelAgent],
			Workspace: summary.Labels[labelWorkspace],
			Status:    summary.State,
		})
	}
	return managed, nil
}

// StopAgent stops all managed containers for one agent. Returns the
// number of containers stopped.
func (m *DockerManager) StopAgent(ctx context.Context, agent string, force bool) (int, error) {
	containers, err := m.ListManaged(ctx, true)
	if err != nil {
		return 0, err
	}
	stopped := 0
	for _, c := range containers {
		if c.Agent != agent {
			continue
		}
		if err := m.StopContainer(ctx, c.ID, force); err != nil {
			return stopped, err
		}
		stopped++
	}
	return stopped, nil
}

// StopAll stops every managed container. Returns the number stopped.
func (m *DockerManager) StopAll(ctx context.Context, force bool) (int, error) {
	containers, err := m.ListManaged(ctx, true)
	if err != nil {
		return 0, err
	}
	stopped := 0
	for _, c := range containers {
		if err := m.StopContainer(ctx, c.ID, force); err != nil {
			return stopped, err
		}
		stopped++
	}
	return stopped, nil
}

// attachedContainer adapts a hijacked attach connection to the
// RemoteStream interface the terminal bridge consumes.
type attachedContainer struct {
	resp        types.HijackedResponse
	cli         *client.Client
	containerID string
}

func (a *attachedContainer) Read(p []byte) (int, error) {
	return a.resp.Reader.Read(p)
}

func (a *attachedContainer) Write(p []byte) (int, error) {
	return a.resp.Conn.Write(p)
}

func (a *attachedContainer) Close() error {
	a.resp.Close()
	return nil
}

func (a *attachedContainer) Resize(height, width uint) error {
	return a.cli.ContainerResize(context.Background(), a.containerID, container.ResizeOptions{
		Height: height,
		Width:  width,
	})
}

// Attach opens the interactive byte stream to a running container's
// TTY. The returned stream is ready for AttachInteractive; the caller
// owns closing it.
func (m *DockerManager) Attach(ctx context.Context, containerID string) (RemoteStream, error) {
	resp, err := m.cli.ContainerAttach(ctx, containerID, container.AttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
		Logs:   true,
	})
	if err != nil {
		return nil, &DockerError{Op: "attach container", Err: err}
	}
	return &attachedContainer{resp: resp, cli: m.cli, containerID: containerID}, nil
}

// FindRole returns the managed container with the given role label
// (e.g. "datasette", "proxy"), or nil when none exists.
func (m *DockerManager) FindRole(ctx context.Context, role string) (*ManagedContainer, error) {
	summaries, err := m.cli.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", LabelManaged+"=true"),
			filters.Arg("label", labelRole+"="+role),
		),
	})
	if err != nil {
		return nil, &DockerError{Op: "list containers", Err: err}
	}
	if len(summaries) == 0 {
		return nil, nil
	}
	summary := summaries[0]
	name := ""
	if len(summary.Names) > 0 {
		name = strings.TrimPrefix(summary.Names[0], "/")
	}
	return &ManagedContainer{
		ID:     summary.ID,
		Name:   name,
		Status: summary.State,
	}, nil
}

// EnsureDatasette starts (or reuses) the Datasette container serving
// the session log database on the given host port.
func (m *DockerManager) EnsureDatasette(ctx context.Context, imageRef, dbPath string, port int) error {
	existing, err := m.FindRole(ctx, "datasette")
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Status != "running" {
			if err := m.cli.ContainerStart(ctx, existing.ID, container.StartOptions{}); err != nil {
				return &DockerError{Op: "start datasette", Err: err}
			}
		}
		return nil
	}

	if err := touchFile(dbPath); err != nil {
		return err
	}

	config := &container.Config{
		Image: imageRef,
		Cmd: []string{
			"datasette", "/data/logs.db",
			"--host", "0.0.0.0",
			"--port", "8001",
			"--setting", "sql_time_limit_ms", "10000",
		},
		ExposedPorts: nat.PortSet{"8001/tcp": struct{}{}},
		Labels: map[string]string{
			LabelManaged: "true",
			labelRole:    "datasette",
		},
	}
	hostConfig := &container.HostConfig{
		Binds: []string{parentDir(dbPath) + ":/data:rw"},
		PortBindings: nat.PortMap{
			"8001/tcp": []nat.PortBinding{{HostPort: strconv.Itoa(port)}},
		},
	}

	created, err := m.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, "vibepod-datasette")
	if err != nil {
		return &DockerError{Op: "create datasette", Err: err}
	}
	if err := m.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return &DockerError{Op: "start datasette", Err: err}
	}
	return nil
}

// EnsureProxy starts (or reuses) the HTTP(S) proxy container on the
// managed network, reachable by agents as "vibepod-proxy".
func (m *DockerManager) EnsureProxy(ctx context.Context, imageRef, dbPath, caDir string, port int, networkName string) error {
	existing, err := m.FindRole(ctx, "proxy")
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Status != "running" {
			if err := m.cli.ContainerStart(ctx, existing.ID, container.StartOptions{}); err != nil {
				return &DockerError{Op: "start proxy", Err: err}
			}
		}
		return nil
	}

	if err := touchFile(dbPath); err != nil {
		return err
	}
	if err := ensureDir(caDir); err != nil {
		return err
	}

	portKey := nat.Port(strconv.Itoa(port) + "/tcp")
	config := &container.Config{
		Image:        imageRef,
		ExposedPorts: nat.PortSet{portKey: struct{}{}},
		Labels: map[string]string{
			LabelManaged: "true",
			labelRole:    "proxy",
		},
	}
	hostConfig := &container.HostConfig{
		Binds: []string{
			parentDir(dbPath) + ":/data:rw",
			caDir + ":/home/mitmproxy/.mitmproxy:rw",
		},
		PortBindings: nat.PortMap{
			portKey: []nat.PortBinding{{HostPort: strconv.Itoa(port)}},
		},
	}
	networkConfig := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			networkName: {Aliases: []string{"vibepod-proxy"}},
		},
	}

	created, err := m.cli.ContainerCreate(ctx, config, hostConfig, networkConfig, nil, "vibepod-proxy")
	if err != nil {
		return &DockerError{Op: "create proxy", Err: err}
	}
	if err := m.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return &DockerError{Op: "start proxy", Err: err}
	}
	return nil
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
