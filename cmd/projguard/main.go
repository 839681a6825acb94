// Package main implements the projguard CLI: a project registry,
// identity detector, and safeguard gate for project-scoped commands.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/projguard/internal/audit"
	"github.com/fyrsmithlabs/projguard/internal/config"
	"github.com/fyrsmithlabs/projguard/internal/detect"
	"github.com/fyrsmithlabs/projguard/internal/guard"
	"github.com/fyrsmithlabs/projguard/internal/logging"
	"github.com/fyrsmithlabs/projguard/internal/registry"
	"github.com/fyrsmithlabs/projguard/internal/workflow"
)

var (
	// configPath overrides the default config file location
	configPath string
	// version information
	version = "dev"
)

const (
	exitOK      = 0
	exitError   = 1
	exitRefused = 2
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, guard.ErrRefused) {
			os.Exit(exitRefused)
		}
		os.Exit(exitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "projguard",
	Short: "Project identity registry and context safeguard",
	Long: `projguard keeps a registry of known projects, detects which project a
command is running in, and refuses project-scoped operations whose
asserted identity conflicts with what it detects.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/projguard/config.yaml)")
}

// app bundles the wired components every command needs.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	store    *registry.Store
	log      *audit.Log
	detector *detect.Detector
	gate     *guard.Gate
	flow     *workflow.Workflow
	prompter workflow.Prompter
}

// newApp loads configuration and wires the components. The prompter
// is only attached when stdin is a terminal; non-interactive runs get
// fail-safe defaults.
func newApp() (*app, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	rules, err := guard.CompileRules(cfg.Guard.Rules)
	if err != nil {
		return nil, err
	}

	store := registry.NewStore(cfg.RegistryPath)
	log := audit.NewLog(cfg.AuditPath)
	detector := detect.New(cfg.Detect)
	gate := guard.New(store, detector, cfg.Validate, rules, log, logger)

	var prompter workflow.Prompter
	if stdinIsTerminal() {
		prompter = workflow.NewTerminalPrompter(os.Stdin, os.Stderr, cfg.Prompt.Timeout)
	}
	flow := workflow.New(store, log, prompter, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		log:      log,
		detector: detector,
		gate:     gate,
		flow:     flow,
		prompter: prompter,
	}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func stdinIsTerminal() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// detectionContext builds the detection context for dir (or the
// process cwd), picking up the git remote and any declared name from
// a .projguard.toml manifest on the way.
func detectionContext(dir string) (detect.Context, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return detect.Context{}, fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}

	dctx, err := detect.FromEnvironment(dir)
	if err != nil {
		return detect.Context{}, err
	}

	if m, _, err := manifestFor(dctx.WorkingDir); err == nil && m != nil {
		dctx.DeclaredName = m.Name
	}
	return dctx, nil
}
