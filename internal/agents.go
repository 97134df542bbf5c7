package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SupportedAgents lists the agent ids vp can launch, in display order.
var SupportedAgents = []string{"claude", "gemini", "opencode", "devstral", "auggie", "copilot", "codex"}

// AgentSpec is the static description of one agent kind: which image
// runs it, how its config is mounted, and the extra environment it
// needs inside the container.
type AgentSpec struct {
	ID              string
	Provider        string
	ConfigSubdir    string
	Command         []string
	ConfigMountPath string
	ExtraEnv        map[string]string
}

var agentSpecs = map[string]AgentSpec{
	"claude": {
		ID: "claude", Provider: "anthropic", ConfigSubdir: "claude",
		Command: []string{"claude"}, ConfigMountPath: "/claude",
		ExtraEnv: map[string]string{"CLAUDE_CONFIG_DIR": "/claude"},
	},
	"gemini": {
		ID: "gemini", Provider: "google", ConfigSubdir: "gemini",
		Command: []string{"gemini"}, ConfigMountPath: "/config",
		ExtraEnv: map[string]string{"HOME": "/config"},
	},
	"opencode": {
		ID: "opencode", Provider: "openai", ConfigSubdir: "opencode",
		Command: []string{"opencode"}, ConfigMountPath: "/config",
		ExtraEnv: map[string]string{"HOME": "/config", "OPENCODE_CONFIG_DIR": "/config"},
	},
	"devstral": {
		ID: "devstral", Provider: "mistral", ConfigSubdir: "devstral",
		Command: []string{"devstral"}, ConfigMountPath: "/config",
		ExtraEnv: map[string]string{"HOME": "/config"},
	},
	"auggie": {
		ID: "auggie", Provider: "augment", ConfigSubdir: "auggie",
		Command: []string{"auggie"}, ConfigMountPath: "/config",
		ExtraEnv: map[string]string{"HOME": "/config"},
	},
	"copilot": {
		ID: "copilot", Provider: "github", ConfigSubdir: "copilot",
		Command: []string{"copilot"}, ConfigMountPath: "/config",
		ExtraEnv: map[string]string{"HOME": "/config"},
	},
	"codex": {
		ID: "codex", Provider: "openai", ConfigSubdir: "codex",
		Command: []string{"codex"}, ConfigMountPath: "/config",
		ExtraEnv: map[string]string{"HOME": "/config"},
	},
}

// image name suffixes per agent in the default namespace
var agentImageNames = map[string]string{
	"claude":   "claude-container",
	"gemini":   "gemini-container",
	"opencode": "opencode-cli",
	"devstral": "devstral-cli",
	"auggie":   "auggie-cli",
	"copilot":  "copilot-cli",
	"codex":    "codex-cli",
}

// IsSupportedAgent reports whether agent is a known agent id.
func IsSupportedAgent(agent string) bool {
	_, ok := agentSpecs[agent]
	return ok
}

// GetAgentSpec returns the spec for a supported agent.
func GetAgentSpec(agent string) (AgentSpec, error) {
	spec, ok := agentSpecs[agent]
	if !ok {
		return AgentSpec{}, fmt.Errorf("unsupported agent: %s", agent)
	}
	return spec, nil
}

// DefaultAgentImage returns the built-in image reference for an agent,
// honoring the VP_IMAGE_<AGENT> and VP_IMAGE_NAMESPACE overrides.
func DefaultAgentImage(agent string) string {
	if override := os.Getenv("VP_IMAGE_" + strings.ToUpper(agent)); override != "" {
		return override
	}
	namespace := os.Getenv("VP_IMAGE_NAMESPACE")
	if namespace == "" {
		namespace = "nezhar"
	}
	return fmt.Sprintf("%s/%s:latest", namespace, agentImageNames[agent])
}

// DefaultDatasetteImage returns the image for the log-viewing UI container.
func DefaultDatasetteImage() string {
	if override := os.Getenv("VP_DATASETTE_IMAGE"); override != "" {
		return override
	}
	return "vibepod/datasette:latest"
}

// DefaultProxyImage returns the image for the HTTP(S) proxy container.
func DefaultProxyImage() string {
	if override := os.Getenv("VP_PROXY_IMAGE"); override != "" {
		return override
	}
	return "vibepod/proxy:latest"
}

// EffectiveAgentImage resolves the image for an agent: the per-agent
// config override when set, otherwise the built-in default.
func EffectiveAgentImage(agent string, cfg map[string]any) string {
	if image, ok := ConfigValue(cfg, "agents."+agent+".image"); ok {
		if s, ok := image.(string); ok && s != "" {
			return s
		}
	}
	return DefaultAgentImage(agent)
}

// AgentConfigDir returns the host directory mounted as the agent's
// config inside the container.
func AgentConfigDir(agent string) (string, error) {
	spec, err := GetAgentSpec(agent)
	if err != nil {
		return "", err
	}
	return filepath.Join(ConfigRoot(), "agents", spec.ConfigSubdir), nil
}
