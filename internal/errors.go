package internal

import (
	"errors"
	"fmt"
)

// DockerError represents a failed container runtime operation.
// Unavailable distinguishes "the daemon cannot be reached at all"
// (user-actionable: start Docker) from an operation that failed
// against a reachable daemon.
type DockerError struct {
	Op          string
	Unavailable bool
	Err         error
}

func (e *DockerError) Error() string {
	if e.Unavailable {
		return fmt.Sprintf("docker is not available: %v", e.Err)
	}
	return fmt.Sprintf("docker error: %s: %v", e.Op, e.Err)
}

func (e *DockerError) Unwrap() error {
	return e.Err
}

// IsDockerUnavailable reports whether err means the Docker daemon
// cannot be reached.
func IsDockerUnavailable(err error) bool {
	var dockerErr *DockerError
	return errors.As(err, &dockerErr) && dockerErr.Unavailable
}

// StorageError represents errors accessing the session log store.
type StorageError struct {
	Path string
	Op   string // "open", "mkdir", "pragma", "schema", "insert"
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ConfigError represents errors loading or parsing configuration files.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
