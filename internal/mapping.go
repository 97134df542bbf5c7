package internal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// ContainerMapping is one IP→container entry in the proxy's mapping
// file, used to attribute proxied traffic to a container.
type ContainerMapping struct {
	ContainerID   string `json:"container_id"`
	ContainerName string `json:"container_name"`
	Agent         string `json:"agent"`
	StartedAt     string `json:"started_at"`
}

// UpdateContainerMapping merges an entry for ip into the mapping file
// at path. The update is atomic: the new content is written to a
// temporary file in the same directory and renamed over the original,
// so the proxy never observes a partial write. A missing or corrupt
// existing file is treated as empty.
func UpdateContainerMapping(path, ip string, entry ContainerMapping) error {
	mapping := map[string]ContainerMapping{}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &mapping); err != nil {
			mapping = map[string]ContainerMapping{}
		}
	}

	if entry.StartedAt == "" {
		entry.StartedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	mapping[ip] = entry

	data, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".containers-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// ReadContainerMapping loads the mapping file; a missing file yields
// an empty map.
func ReadContainerMapping(path string) (map[string]ContainerMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]ContainerMapping{}, nil
		}
		return nil, err
	}
	mapping := map[string]ContainerMapping{}
	if err := json.Unmarshal(data, &mapping); err != nil {
		return nil, err
	}
	return mapping, nil
}

// ensureDir creates a directory (and parents) if needed.
func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// parentDir returns the directory containing path.
func parentDir(path string) string {
	return filepath.Dir(path)
}

// touchFile creates an empty file (and its directory) if it does not
// exist yet.
func touchFile(path string) error {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
