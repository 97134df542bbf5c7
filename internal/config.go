package internal

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const projectConfigDir = ".vibepod"

// ConfigRoot returns the effective config directory, honoring
// VP_CONFIG_DIR. Defaults to <user config dir>/vibepod.
func ConfigRoot() string {
	if custom := os.Getenv("VP_CONFIG_DIR"); custom != "" {
		if abs, err := filepath.Abs(custom); err == nil {
			return abs
		}
		return custom
	}
	base, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "vibepod")
}

// GlobalConfigPath returns the path of the global config file.
func GlobalConfigPath() string {
	return filepath.Join(ConfigRoot(), "config.yaml")
}

// ProjectConfigPath returns the path of the per-project config file
// relative to the current working directory.
func ProjectConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return filepath.Join(cwd, projectConfigDir, "config.yaml")
}

// DefaultConfig returns the built-in configuration tree.
func DefaultConfig() map[string]any {
	root := ConfigRoot()

	agents := map[string]any{}
	for _, agent := range SupportedAgents {
		agents[agent] = map[string]any{
			"enabled": true,
			"image":   DefaultAgentImage(agent),
			"env":     map[string]any{},
			"volumes": []any{},
		}
	}

	return map[string]any{
		"version":       1,
		"default_agent": "claude",
		"auto_pull":     false,
		"auto_remove":   true,
		"network":       "vibepod-network",
		"log_level":     "info",
		"no_color":      false,
		"agents":        agents,
		"logging": map[string]any{
			"enabled": true,
			"image":   DefaultDatasetteImage(),
			"db_path": filepath.Join(root, "logs.db"),
			"ui_port": 8001,
		},
		"proxy": map[string]any{
			"enabled": true,
			"image":   DefaultProxyImage(),
			"db_path": filepath.Join(root, "proxy", "proxy.db"),
			"ca_dir":  filepath.Join(root, "proxy", "mitmproxy"),
			"ca_path": filepath.Join(root, "proxy", "mitmproxy", "mitmproxy-ca-cert.pem"),
			"port":    8080,
		},
	}
}

// LoadConfig returns the merged effective config: defaults, then the
// global file, then the project file, then environment overrides.
func LoadConfig() (map[string]any, error) {
	if err := ensureConfigDirs(); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	global, err := loadYAML(GlobalConfigPath())
	if err != nil {
		return nil, err
	}
	cfg = DeepMerge(cfg, global)

	project, err := loadYAML(ProjectConfigPath())
	if err != nil {
		return nil, err
	}
	cfg = DeepMerge(cfg, project)

	applyEnvOverrides(cfg)
	return cfg, nil
}

func ensureConfigDirs() error {
	root := ConfigRoot()
	if err := os.MkdirAll(filepath.Join(root, "agents"), 0o755); err != nil {
		return &ConfigError{Path: root, Err: err}
	}
	return nil
}

// loadYAML reads a YAML mapping file; a missing or empty file yields
// an empty map.
func loadYAML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, &ConfigError{Path: path, Err: err}
	}
	if strings.TrimSpace(string(data)) == "" {
		return map[string]any{}, nil
	}

	var loaded map[string]any
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	if loaded == nil {
		loaded = map[string]any{}
	}
	return loaded, nil
}

// DeepMerge merges override into base, recursing into nested maps, and
// returns a new map. Non-map values in override replace base values.
func DeepMerge(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		if overrideMap, ok := v.(map[string]any); ok {
			if baseMap, ok := merged[k].(map[string]any); ok {
				merged[k] = DeepMerge(baseMap, overrideMap)
				continue
			}
		}
		merged[k] = v
	}
	return merged
}

// applyEnvOverrides applies VP_* environment variables onto the merged
// config, each mapped to a dotted config path.
func applyEnvOverrides(cfg map[string]any) {
	type mapping struct {
		env     string
		path    string
		convert func(string) any
	}
	asString := func(s string) any { return s }
	asBool := func(s string) any { return strings.EqualFold(s, "true") }
	asInt := func(s string) any {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil
		}
		return n
	}

	for _, m := range []mapping{
		{"VP_DEFAULT_AGENT", "default_agent", asString},
		{"VP_AUTO_PULL", "auto_pull", asBool},
		{"VP_LOG_LEVEL", "log_level", asString},
		{"VP_NO_COLOR", "no_color", asBool},
		{"VP_DATASETTE_PORT", "logging.ui_port", asInt},
		{"VP_PROXY_ENABLED", "proxy.enabled", asBool},
	} {
		raw, ok := os.LookupEnv(m.env)
		if !ok {
			continue
		}
		value := m.convert(raw)
		if value == nil {
			continue
		}
		setConfigValue(cfg, m.path, value)
	}
}

func setConfigValue(cfg map[string]any, path string, value any) {
	keys := strings.Split(path, ".")
	target := cfg
	for _, key := range keys[:len(keys)-1] {
		next, ok := target[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			target[key] = next
		}
		target = next
	}
	target[keys[len(keys)-1]] = value
}

// ConfigValue reads a value by dotted path, e.g. "logging.db_path".
func ConfigValue(cfg map[string]any, path string) (any, bool) {
	var current any = cfg
	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// ConfigString reads a string value by dotted path, falling back to def.
func ConfigString(cfg map[string]any, path, def string) string {
	if v, ok := ConfigValue(cfg, path); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// ConfigBool reads a boolean value by dotted path, falling back to def.
func ConfigBool(cfg map[string]any, path string, def bool) bool {
	if v, ok := ConfigValue(cfg, path); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// ConfigInt reads an integer value by dotted path, falling back to def.
func ConfigInt(cfg map[string]any, path string, def int) int {
	if v, ok := ConfigValue(cfg, path); ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return def
}

// ExpandPath expands a leading ~ and resolves the path to absolute.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
