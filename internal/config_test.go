package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDeepMerge_NestedMaps(t *testing.T) {
	base := map[string]any{
		"log_level": "info",
		"logging": map[string]any{
			"enabled": true,
			"ui_port": 8001,
		},
	}
	override := map[string]any{
		"log_level": "debug",
		"logging": map[string]any{
			"ui_port": 9000,
		},
	}

	merged := DeepMerge(base, override)

	if merged["log_level"] != "debug" {
		t.Errorf("log_level = %v, want debug", merged["log_level"])
	}
	logging, ok := merged["logging"].(map[string]any)
	if !ok {
		t.Fatalf("logging is %T, want map", merged["logging"])
	}
	if logging["enabled"] != true {
		t.Errorf("logging.enabled = %v, want true (kept from base)", logging["enabled"])
	}
	if logging["ui_port"] != 9000 {
		t.Errorf("logging.ui_port = %v, want 9000", logging["ui_port"])
	}

	// Base must not be mutated.
	if base["log_level"] != "info" {
		t.Errorf("DeepMerge mutated base: log_level = %v", base["log_level"])
	}
}

func TestDeepMerge_NonMapReplacesMap(t *testing.T) {
	base := map[string]any{"proxy": map[string]any{"enabled": true}}
	override := map[string]any{"proxy": "off"}

	merged := DeepMerge(base, override)
	if merged["proxy"] != "off" {
		t.Errorf("proxy = %v, want scalar override to replace map", merged["proxy"])
	}
}

func TestLoadConfig_GlobalThenProjectThenEnv(t *testing.T) {
	configDir := t.TempDir()
	t.Setenv("VP_CONFIG_DIR", configDir)

	globalYAML := "default_agent: gemini\nlogging:\n  ui_port: 9001\n"
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(globalYAML), 0o644); err != nil {
		t.Fatalf("write global config: %v", err)
	}

	projectRoot := t.TempDir()
	if err := os.MkdirAll(filepath.Join(projectRoot, ".vibepod"), 0o755); err != nil {
		t.Fatalf("mkdir project config: %v", err)
	}
	projectYAML := "default_agent: codex\n"
	if err := os.WriteFile(filepath.Join(projectRoot, ".vibepod", "config.yaml"), []byte(projectYAML), 0o644); err != nil {
		t.Fatalf("write project config: %v", err)
	}

	origWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(projectRoot); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(origWD) })

	t.Setenv("VP_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if got := ConfigString(cfg, "default_agent", ""); got != "codex" {
		t.Errorf("default_agent = %q, want codex (project wins over global)", got)
	}
	if got := ConfigInt(cfg, "logging.ui_port", 0); got != 9001 {
		t.Errorf("logging.ui_port = %d, want 9001 (from global)", got)
	}
	if got := ConfigString(cfg, "log_level", ""); got != "debug" {
		t.Errorf("log_level = %q, want debug (env wins)", got)
	}
	// Untouched defaults survive the merge.
	if got := ConfigString(cfg, "network", ""); got != "vibepod-network" {
		t.Errorf("network = %q, want built-in default", got)
	}
}

func TestLoadConfig_MissingFilesUseDefaults(t *testing.T) {
	t.Setenv("VP_CONFIG_DIR", t.TempDir())

	emptyDir := t.TempDir()
	origWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(emptyDir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(origWD) })

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if got := ConfigString(cfg, "default_agent", ""); got != "claude" {
		t.Errorf("default_agent = %q, want claude", got)
	}
	if !ConfigBool(cfg, "logging.enabled", false) {
		t.Error("logging.enabled = false, want default true")
	}
}

func TestApplyEnvOverrides_Conversions(t *testing.T) {
	t.Setenv("VP_AUTO_PULL", "TRUE")
	t.Setenv("VP_DATASETTE_PORT", "9090")
	t.Setenv("VP_PROXY_ENABLED", "false")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	if !ConfigBool(cfg, "auto_pull", false) {
		t.Error("auto_pull = false, want true from VP_AUTO_PULL=TRUE")
	}
	if got := ConfigInt(cfg, "logging.ui_port", 0); got != 9090 {
		t.Errorf("logging.ui_port = %d, want 9090", got)
	}
	if ConfigBool(cfg, "proxy.enabled", true) {
		t.Error("proxy.enabled = true, want false from VP_PROXY_ENABLED=false")
	}
}

func TestApplyEnvOverrides_BadIntIgnored(t *testing.T) {
	t.Setenv("VP_DATASETTE_PORT", "not-a-port")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	if got := ConfigInt(cfg, "logging.ui_port", 0); got != 8001 {
		t.Errorf("logging.ui_port = %d, want default 8001 when override unparsable", got)
	}
}

func TestConfigValueAccessors(t *testing.T) {
	cfg := map[string]any{
		"a": map[string]any{
			"b": "text",
			"n": 42,
			"f": true,
		},
	}

	if v, ok := ConfigValue(cfg, "a.b"); !ok || v != "text" {
		t.Errorf("ConfigValue(a.b) = %v, %v", v, ok)
	}
	if _, ok := ConfigValue(cfg, "a.missing"); ok {
		t.Error("ConfigValue(a.missing) reported ok")
	}
	if _, ok := ConfigValue(cfg, "a.b.deeper"); ok {
		t.Error("ConfigValue through a scalar reported ok")
	}
	if got := ConfigString(cfg, "a.n", "def"); got != "def" {
		t.Errorf("ConfigString on int = %q, want fallback", got)
	}
	if got := ConfigInt(cfg, "a.n", 0); got != 42 {
		t.Errorf("ConfigInt(a.n) = %d, want 42", got)
	}
	if !ConfigBool(cfg, "a.f", false) {
		t.Error("ConfigBool(a.f) = false, want true")
	}
}

func TestConfigRoot_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("VP_CONFIG_DIR", dir)

	if got := ConfigRoot(); got != dir {
		t.Errorf("ConfigRoot() = %q, want %q", got, dir)
	}
	if got := GlobalConfigPath(); got != filepath.Join(dir, "config.yaml") {
		t.Errorf("GlobalConfigPath() = %q", got)
	}
}

func TestLoadYAML_EmptyAndMissing(t *testing.T) {
	dir := t.TempDir()

	cfg, err := loadYAML(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("loadYAML(missing) error = %v", err)
	}
	if len(cfg) != 0 {
		t.Errorf("loadYAML(missing) = %v, want empty map", cfg)
	}

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("\n  \n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err = loadYAML(empty)
	if err != nil {
		t.Fatalf("loadYAML(empty) error = %v", err)
	}
	if len(cfg) != 0 {
		t.Errorf("loadYAML(empty) = %v, want empty map", cfg)
	}
}

func TestLoadYAML_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte(":\n  - ["), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := loadYAML(path)
	if err == nil {
		t.Fatal("loadYAML(malformed) error = nil, want ConfigError")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error %q does not name the file", err)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}

	if got := ExpandPath("~/work"); got != filepath.Join(home, "work") {
		t.Errorf("ExpandPath(~/work) = %q", got)
	}
	if got := ExpandPath("~"); got != home {
		t.Errorf("ExpandPath(~) = %q, want %q", got, home)
	}
	if got := ExpandPath("/absolute/path"); got != "/absolute/path" {
		t.Errorf("ExpandPath(/absolute/path) = %q", got)
	}
	if got := ExpandPath("relative"); !filepath.IsAbs(got) {
		t.Errorf("ExpandPath(relative) = %q, want absolute", got)
	}
}
