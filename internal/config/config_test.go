package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	berrors "github.com/BerkeliumLabs/berkelium/internal/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ProviderGemini, cfg.Provider)
	assert.Equal(t, 20, cfg.Agent.MaxTurns)
	assert.Equal(t, ModeAsk, cfg.Permissions.Mode)
	assert.Equal(t, 60*time.Second, cfg.Permissions.Timeout)
	assert.Equal(t, ScopeProcess, cfg.Permissions.GrantScope)
	assert.Equal(t, BackendMemory, cfg.Memory.Backend)
	assert.Equal(t, 30*time.Second, cfg.Memory.CompressTimeout)
	assert.Equal(t, DefaultInstructionsFile, cfg.InstructionsFile)
	assert.NoError(t, cfg.Validate())
}

// chdir switches to a temp dir so the search path sees only files the test writes.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })
	t.Setenv("HOME", dir)
	return dir
}

func clearKeys(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
}

func TestLoadYAML(t *testing.T) {
	dir := chdir(t)
	clearKeys(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	content := `provider: anthropic
max_tokens: 1024
agent:
  max_turns: 5
  parallel_read_tools: true
permissions:
  mode: strict
  timeout: 10s
  grant_scope: thread
memory:
  backend: sqlite
  path: /tmp/x.db
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "berkelium.yaml"), []byte(content), 0o644))

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, "berkelium.yaml", cfg.ConfigPath())
	assert.Equal(t, ProviderAnthropic, cfg.Provider)
	assert.Equal(t, DefaultAnthropicModel, cfg.Model)
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, 1024, cfg.MaxTokens)
	assert.Equal(t, 5, cfg.Agent.MaxTurns)
	assert.True(t, cfg.Agent.ParallelReadTools)
	assert.Equal(t, ModeStrict, cfg.Permissions.Mode)
	assert.Equal(t, 10*time.Second, cfg.Permissions.Timeout)
	assert.Equal(t, ScopeThread, cfg.Permissions.GrantScope)
	assert.Equal(t, BackendSQLite, cfg.Memory.Backend)
	// unset keys keep their defaults
	assert.Equal(t, 30*time.Second, cfg.Memory.CompressTimeout)
}

func TestLoadTOML(t *testing.T) {
	dir := chdir(t)
	clearKeys(t)
	t.Setenv("GOOGLE_API_KEY", "g-key")

	content := `provider = "gemini"
model = "gemini-2.5-pro"

[agent]
max_turns = 3

[permissions]
mode = "auto"
timeout = "5s"
`
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".berkelium"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".berkelium", "config.toml"), []byte(content), 0o644))

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-pro", cfg.Model)
	assert.Equal(t, "g-key", cfg.APIKey)
	assert.Equal(t, 3, cfg.Agent.MaxTurns)
	assert.Equal(t, ModeAuto, cfg.Permissions.Mode)
	assert.Equal(t, 5*time.Second, cfg.Permissions.Timeout)
}

func TestLoadOverrides(t *testing.T) {
	chdir(t)
	clearKeys(t)
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg, err := Load(LoadOptions{Token: "flag-key", Provider: "Anthropic", Model: "claude-x"})
	require.NoError(t, err)

	assert.Equal(t, ProviderAnthropic, cfg.Provider)
	assert.Equal(t, "claude-x", cfg.Model)
	assert.Equal(t, "flag-key", cfg.APIKey)
	assert.Empty(t, cfg.ConfigPath())
}

func TestLoadExplicitPathMissing(t *testing.T) {
	chdir(t)
	_, err := Load(LoadOptions{Path: "nope.yaml"})
	require.Error(t, err)
	assert.True(t, berrors.HasCode(err, berrors.CodeConfigLoadFailed))
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"provider", "provider: openai\n"},
		{"mode", "permissions:\n  mode: sometimes\n"},
		{"scope", "permissions:\n  grant_scope: forever\n"},
		{"backend", "memory:\n  backend: redis\n"},
		{"max turns", "agent:\n  max_turns: 0\n"},
		{"malformed", "agent: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := chdir(t)
			path := filepath.Join(dir, "custom.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := Load(LoadOptions{Path: path})
			assert.Error(t, err)
		})
	}
}

func TestRequireAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.RequireAPIKey()
	require.Error(t, err)
	assert.Contains(t, berrors.UserMessage(err), "GEMINI_API_KEY")

	cfg.APIKey = "x"
	assert.NoError(t, cfg.RequireAPIKey())
}
