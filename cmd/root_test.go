package cmd

import (
	"testing"
)

func findCommand(name string) bool {
	for _, c := range rootCmd.Commands() {
		if c.Name() == name {
			return true
		}
	}
	return false
}

func TestRootCommand_SubcommandsRegistered(t *testing.T) {
	for _, name := range []string{"run", "stop", "list", "logs", "proxy", "config", "version"} {
		if !findCommand(name) {
			t.Errorf("Subcommand %q not registered", name)
		}
	}
}

func TestRootCommand_AgentAliasesRegistered(t *testing.T) {
	aliases := []string{"c", "g", "o", "d", "a", "p", "x",
		"claude", "gemini", "opencode", "devstral", "auggie", "copilot", "codex", "ui"}
	for _, name := range aliases {
		if !findCommand(name) {
			t.Errorf("Alias %q not registered", name)
		}
	}
}

func TestRootCommand_AliasesHidden(t *testing.T) {
	for _, c := range rootCmd.Commands() {
		if _, ok := agentShortcuts[c.Name()]; ok && !c.Hidden {
			t.Errorf("Shortcut %q should be hidden", c.Name())
		}
	}
}

func TestParseEnvPairs(t *testing.T) {
	env, err := parseEnvPairs([]string{"FOO=bar", "EMPTY=", "EQ=a=b"})
	if err != nil {
		t.Fatalf("parseEnvPairs() error = %v", err)
	}
	if env["FOO"] != "bar" {
		t.Errorf("FOO = %q, want bar", env["FOO"])
	}
	if v, ok := env["EMPTY"]; !ok || v != "" {
		t.Errorf("EMPTY = %q, %v, want empty string present", v, ok)
	}
	if env["EQ"] != "a=b" {
		t.Errorf("EQ = %q, want a=b (split on first = only)", env["EQ"])
	}

	if _, err := parseEnvPairs([]string{"NOVALUE"}); err == nil {
		t.Error("parseEnvPairs(NOVALUE) error = nil, want error")
	}
	if _, err := parseEnvPairs([]string{"=value"}); err == nil {
		t.Error("parseEnvPairs(=value) error = nil, want error for empty key")
	}
}

func TestSetEnvDefault(t *testing.T) {
	env := map[string]string{"HTTP_PROXY": "http://user-set:3128"}

	setEnvDefault(env, "HTTP_PROXY", "http://vibepod-proxy:8080")
	setEnvDefault(env, "NO_PROXY", "localhost")

	if env["HTTP_PROXY"] != "http://user-set:3128" {
		t.Errorf("HTTP_PROXY = %q, user value must win", env["HTTP_PROXY"])
	}
	if env["NO_PROXY"] != "localhost" {
		t.Errorf("NO_PROXY = %q, want default applied", env["NO_PROXY"])
	}
}
