package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// missingConfig points LoadWithFile at a path that does not exist so
// only defaults and the test's own environment apply.
func missingConfig(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.yaml")
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadWithFile_Defaults(t *testing.T) {
	cfg, err := LoadWithFile(missingConfig(t))
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.RegistryPath)
	assert.NotEmpty(t, cfg.AuditPath)
	assert.Equal(t, 0.85, cfg.Validate.Confident)
	assert.Equal(t, 0.5, cfg.Validate.Minimum)
	assert.Equal(t, 0.05, cfg.Validate.AmbiguityEpsilon)
	assert.Equal(t, 0.95, cfg.Detect.Remote)
	assert.Equal(t, 0.3, cfg.Detect.Marker)
	assert.Equal(t, 0.6, cfg.Detect.Name)
	assert.NotEmpty(t, cfg.Guard.Rules)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 30*time.Second, cfg.Prompt.Timeout)
}

func TestLoadWithFile_YAMLOverrides(t *testing.T) {
	path := writeConfig(t, `
registry_path: /tmp/projguard-test/registry.json
audit_path: /tmp/projguard-test/audit.jsonl
validate:
  confident: 0.9
  minimum: 0.6
logging:
  level: debug
  format: json
prompt:
  timeout: 5s
guard:
  rules:
    - pattern: "^deploy"
      capability: deploy
`)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/projguard-test/registry.json", cfg.RegistryPath)
	assert.Equal(t, "/tmp/projguard-test/audit.jsonl", cfg.AuditPath)
	assert.Equal(t, 0.9, cfg.Validate.Confident)
	assert.Equal(t, 0.6, cfg.Validate.Minimum)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 5*time.Second, cfg.Prompt.Timeout)
	require.Len(t, cfg.Guard.Rules, 1)
	assert.Equal(t, "deploy", cfg.Guard.Rules[0].Capability)
}

func TestLoadWithFile_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "registry_path: /from/file/registry.json\n")

	t.Setenv("PROJGUARD_REGISTRY_PATH", "/from/env/registry.json")
	t.Setenv("PROJGUARD_AUDIT_PATH", "/from/env/audit.jsonl")
	t.Setenv("PROJGUARD_LOGGING_LEVEL", "warn")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/from/env/registry.json", cfg.RegistryPath)
	assert.Equal(t, "/from/env/audit.jsonl", cfg.AuditPath)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadWithFile_RejectsWorldReadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0644))

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permissions")
}

func TestLoadWithFile_InvalidRulePattern(t *testing.T) {
	path := writeConfig(t, `
guard:
  rules:
    - pattern: "(["
      capability: broken
`)
	_, err := LoadWithFile(path)
	require.Error(t, err)
}

func TestLoadWithFile_InvalidThresholds(t *testing.T) {
	path := writeConfig(t, `
validate:
  confident: 0.4
  minimum: 0.6
`)
	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confident")
}

func TestTransformEnvKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PROJGUARD_REGISTRY_PATH", "registry_path"},
		{"PROJGUARD_AUDIT_PATH", "audit_path"},
		{"PROJGUARD_LOGGING_LEVEL", "logging.level"},
		{"PROJGUARD_VALIDATE_AMBIGUITY_EPSILON", "validate.ambiguity_epsilon"},
		{"PROJGUARD_PROMPT_TIMEOUT", "prompt.timeout"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, transformEnvKey(tt.in), tt.in)
	}
}
