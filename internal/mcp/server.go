// Package mcp exposes projguard over the Model Context Protocol so
// tool-invocation gateways can validate project identity before
// dispatching project-scoped tool calls. The server calls internal
// packages directly; there is no transport between it and the
// registry.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/projguard/internal/audit"
	"github.com/fyrsmithlabs/projguard/internal/detect"
	"github.com/fyrsmithlabs/projguard/internal/guard"
	"github.com/fyrsmithlabs/projguard/internal/logging"
	"github.com/fyrsmithlabs/projguard/internal/registry"
	"github.com/fyrsmithlabs/projguard/internal/validate"
	"github.com/fyrsmithlabs/projguard/internal/workflow"
)

// Server exposes detection, validation, guarding, and switching as
// MCP tools on the stdio transport.
type Server struct {
	mcp        *mcp.Server
	store      *registry.Store
	detector   *detect.Detector
	thresholds validate.Thresholds
	gate       *guard.Gate
	flow       *workflow.Workflow
	log        *audit.Log
	logger     *logging.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "projguard").
	Name string

	// Version is the server version.
	Version string

	// Logger for structured logging.
	Logger *logging.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "projguard",
		Version: "1.0.0",
		Logger:  logging.NewNop(),
	}
}

// NewServer creates an MCP server over the given components.
func NewServer(
	cfg *Config,
	store *registry.Store,
	detector *detect.Detector,
	thresholds validate.Thresholds,
	gate *guard.Gate,
	flow *workflow.Workflow,
	log *audit.Log,
) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if store == nil {
		return nil, fmt.Errorf("registry store is required")
	}
	if detector == nil {
		return nil, fmt.Errorf("detector is required")
	}
	if gate == nil {
		return nil, fmt.Errorf("guard gate is required")
	}
	if flow == nil {
		return nil, fmt.Errorf("workflow is required")
	}
	if log == nil {
		return nil, fmt.Errorf("audit log is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:        mcpServer,
		store:      store,
		detector:   detector,
		thresholds: thresholds,
		gate:       gate,
		flow:       flow,
		log:        log,
		logger:     cfg.Logger,
	}
	s.registerTools()
	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info(ctx, "starting MCP server on stdio transport")
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
