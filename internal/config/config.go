// Package config provides configuration loading for projguard.
//
// Precedence (highest to lowest): environment variables
// (PROJGUARD_*), YAML config file (~/.config/projguard/config.yaml),
// hardcoded defaults. The registry and audit paths are independently
// overridable (PROJGUARD_REGISTRY_PATH, PROJGUARD_AUDIT_PATH) so tests
// and sandboxes isolate their state without a config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fyrsmithlabs/projguard/internal/detect"
	"github.com/fyrsmithlabs/projguard/internal/guard"
	"github.com/fyrsmithlabs/projguard/internal/logging"
	"github.com/fyrsmithlabs/projguard/internal/validate"
)

// Config is the root configuration.
type Config struct {
	// RegistryPath is where the project registry file lives.
	RegistryPath string `koanf:"registry_path"`

	// AuditPath is where the append-only audit log lives.
	AuditPath string `koanf:"audit_path"`

	// Detect holds the detection signal weights.
	Detect detect.Weights `koanf:"detect"`

	// Validate holds the classification thresholds.
	Validate validate.Thresholds `koanf:"validate"`

	// Guard holds the declarative operation-guarding rules. An empty
	// list guards every operation.
	Guard GuardConfig `koanf:"guard"`

	// Logging configures the zap logger.
	Logging logging.Config `koanf:"logging"`

	// Prompt configures interactive prompting.
	Prompt PromptConfig `koanf:"prompt"`
}

// GuardConfig configures the safeguard gate.
type GuardConfig struct {
	Rules []guard.Rule `koanf:"rules"`
}

// PromptConfig configures the terminal prompter.
type PromptConfig struct {
	// Timeout bounds how long a prompt waits before resolving to the
	// fail-safe "no". Zero waits until cancellation.
	Timeout time.Duration `koanf:"timeout"`
}

// DefaultConfigPath returns ~/.config/projguard/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "projguard", "config.yaml"), nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) error {
	if cfg.RegistryPath == "" || cfg.AuditPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		if cfg.RegistryPath == "" {
			cfg.RegistryPath = filepath.Join(home, ".config", "projguard", "registry.json")
		}
		if cfg.AuditPath == "" {
			cfg.AuditPath = filepath.Join(home, ".config", "projguard", "audit.jsonl")
		}
	}

	def := detect.DefaultWeights()
	if cfg.Detect.Remote == 0 {
		cfg.Detect.Remote = def.Remote
	}
	if cfg.Detect.Marker == 0 {
		cfg.Detect.Marker = def.Marker
	}
	if cfg.Detect.Name == 0 {
		cfg.Detect.Name = def.Name
	}

	th := validate.DefaultThresholds()
	if cfg.Validate.Confident == 0 {
		cfg.Validate.Confident = th.Confident
	}
	if cfg.Validate.Minimum == 0 {
		cfg.Validate.Minimum = th.Minimum
	}
	if cfg.Validate.AmbiguityEpsilon == 0 {
		cfg.Validate.AmbiguityEpsilon = th.AmbiguityEpsilon
	}

	if len(cfg.Guard.Rules) == 0 {
		cfg.Guard.Rules = guard.DefaultRules()
	}

	if cfg.Logging.Level == "" || cfg.Logging.Format == "" {
		defLog := logging.NewDefaultConfig()
		if cfg.Logging.Level == "" {
			cfg.Logging.Level = defLog.Level
		}
		if cfg.Logging.Format == "" {
			cfg.Logging.Format = defLog.Format
		}
	}

	if cfg.Prompt.Timeout == 0 {
		cfg.Prompt.Timeout = 30 * time.Second
	}
	return nil
}

// Check validates the configuration for internal consistency.
func (c *Config) Check() error {
	if c.Validate.Minimum < 0 || c.Validate.Minimum > 1 {
		return fmt.Errorf("validate.minimum must be in [0,1], got %v", c.Validate.Minimum)
	}
	if c.Validate.Confident < c.Validate.Minimum || c.Validate.Confident > 1 {
		return fmt.Errorf("validate.confident must be in [minimum,1], got %v", c.Validate.Confident)
	}
	if c.Validate.AmbiguityEpsilon < 0 || c.Validate.AmbiguityEpsilon > 1 {
		return fmt.Errorf("validate.ambiguity_epsilon must be in [0,1], got %v", c.Validate.AmbiguityEpsilon)
	}

	for _, w := range []struct {
		name  string
		value float64
	}{
		{"detect.remote", c.Detect.Remote},
		{"detect.marker", c.Detect.Marker},
		{"detect.name", c.Detect.Name},
	} {
		if w.value < 0 || w.value > 1 {
			return fmt.Errorf("%s weight must be in [0,1], got %v", w.name, w.value)
		}
	}

	// Rules must compile; an invalid pattern is a config error.
	if _, err := guard.CompileRules(c.Guard.Rules); err != nil {
		return err
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config invalid: %w", err)
	}

	if c.Prompt.Timeout < 0 {
		return fmt.Errorf("prompt.timeout must not be negative, got %v", c.Prompt.Timeout)
	}
	return nil
}
