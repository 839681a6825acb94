package mcp

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/projguard/internal/detect"
	"github.com/fyrsmithlabs/projguard/internal/guard"
	"github.com/fyrsmithlabs/projguard/internal/marker"
	"github.com/fyrsmithlabs/projguard/internal/validate"
)

// candidateView is the wire shape of one detection candidate.
type candidateView struct {
	Name       string  `json:"name" jsonschema:"Canonical project name"`
	Confidence float64 `json:"confidence" jsonschema:"Confidence score in [0,1]"`
}

func toCandidateViews(candidates []detect.Candidate) []candidateView {
	views := make([]candidateView, 0, len(candidates))
	for _, c := range candidates {
		views = append(views, candidateView{Name: c.Name, Confidence: c.Confidence})
	}
	return views
}

// buildContext fills in a detection context from tool arguments,
// defaulting the working directory to the process cwd, discovering the
// git remote when none was supplied, and picking up a declared name
// from the nearest .projguard.toml manifest when the caller gave none.
func buildContext(workingDir, remote, declaredName string) (detect.Context, error) {
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return detect.Context{}, err
		}
		workingDir = wd
	}

	dctx, err := detect.FromEnvironment(workingDir)
	if err != nil {
		return detect.Context{}, err
	}
	if remote != "" {
		dctx.RemoteIdentifier = remote
	}
	if declaredName == "" {
		if m, _, merr := marker.Find(dctx.WorkingDir); merr == nil && m != nil {
			declaredName = m.Name
		}
	}
	dctx.DeclaredName = declaredName
	return dctx, nil
}

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	s.registerDetectTools()
	s.registerGuardTools()
	s.registerRegistryTools()
}

// ===== DETECTION TOOLS =====

type projectDetectInput struct {
	WorkingDir   string `json:"working_dir,omitempty" jsonschema:"Directory to detect from (default: server cwd)"`
	Remote       string `json:"remote,omitempty" jsonschema:"Version-control remote identifier, if known"`
	DeclaredName string `json:"declared_name,omitempty" jsonschema:"Name the caller believes this project has"`
}

type projectDetectOutput struct {
	Candidates     []candidateView `json:"candidates" jsonschema:"Ranked detection candidates"`
	Classification string          `json:"classification" jsonschema:"Classification with no asserted identity"`
}

type projectValidateInput struct {
	AssertedProject string `json:"asserted_project" jsonschema:"required,Identity the caller asserts"`
	WorkingDir      string `json:"working_dir,omitempty" jsonschema:"Directory to detect from (default: server cwd)"`
	Remote          string `json:"remote,omitempty" jsonschema:"Version-control remote identifier, if known"`
	DeclaredName    string `json:"declared_name,omitempty" jsonschema:"Name the caller believes this project has"`
}

type projectValidateOutput struct {
	Classification string          `json:"classification" jsonschema:"MATCH, MISMATCH, AMBIGUOUS, LOW_CONFIDENCE, or UNKNOWN"`
	Candidates     []candidateView `json:"candidates" jsonschema:"Ranked detection candidates"`
}

func (s *Server) registerDetectTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "project_detect",
		Description: "Detect which registered project the given context belongs to",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args projectDetectInput) (*mcp.CallToolResult, projectDetectOutput, error) {
		dctx, err := buildContext(args.WorkingDir, args.Remote, args.DeclaredName)
		if err != nil {
			return nil, projectDetectOutput{}, err
		}

		snap, err := s.store.Load()
		if err != nil {
			return nil, projectDetectOutput{}, err
		}

		candidates := s.detector.Detect(snap, dctx)
		return nil, projectDetectOutput{
			Candidates:     toCandidateViews(candidates),
			Classification: string(validate.Classify("", candidates, s.thresholds)),
		}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "project_validate",
		Description: "Validate an asserted project identity against the detected context",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args projectValidateInput) (*mcp.CallToolResult, projectValidateOutput, error) {
		dctx, err := buildContext(args.WorkingDir, args.Remote, args.DeclaredName)
		if err != nil {
			return nil, projectValidateOutput{}, err
		}

		snap, err := s.store.Load()
		if err != nil {
			return nil, projectValidateOutput{}, err
		}

		candidates := s.detector.Detect(snap, dctx)
		classification := validate.ClassifyAgainst(args.AssertedProject, candidates, s.thresholds, snap)
		return nil, projectValidateOutput{
			Classification: string(classification),
			Candidates:     toCandidateViews(candidates),
		}, nil
	})
}

// ===== GUARD TOOLS =====

type projectGuardInput struct {
	Operation       string `json:"operation" jsonschema:"required,Name of the operation about to run"`
	AssertedProject string `json:"asserted_project,omitempty" jsonschema:"Identity the caller asserts"`
	WorkingDir      string `json:"working_dir,omitempty" jsonschema:"Directory the operation targets (default: server cwd)"`
	Remote          string `json:"remote,omitempty" jsonschema:"Version-control remote identifier, if known"`
	Override        bool   `json:"override,omitempty" jsonschema:"Proceed despite mismatch or ambiguity; the override is audited"`
}

type projectGuardOutput struct {
	Decision       string          `json:"decision" jsonschema:"proceed, proceed_with_warning, refuse, override, or unguarded"`
	Classification string          `json:"classification" jsonschema:"Identity classification for the context"`
	Candidates     []candidateView `json:"candidates" jsonschema:"Ranked detection candidates"`
	Refused        bool            `json:"refused" jsonschema:"True when the operation must not proceed"`
	Reason         string          `json:"reason,omitempty" jsonschema:"Human-readable refusal explanation"`
}

func (s *Server) registerGuardTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "project_guard",
		Description: "Run the identity safeguard for a project-scoped operation before dispatching it",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args projectGuardInput) (*mcp.CallToolResult, projectGuardOutput, error) {
		dctx, err := buildContext(args.WorkingDir, args.Remote, "")
		if err != nil {
			return nil, projectGuardOutput{}, err
		}

		var opts []guard.Option
		if args.Override {
			opts = append(opts, guard.WithOverride())
		}

		res, err := s.gate.Run(ctx, args.Operation, args.AssertedProject, dctx, nil, opts...)
		out := projectGuardOutput{
			Decision:       string(res.Decision),
			Classification: string(res.Classification),
			Candidates:     toCandidateViews(res.Candidates),
		}
		if err != nil {
			// Refusals are results the gateway acts on, not transport
			// failures.
			if errors.Is(err, guard.ErrRefused) {
				out.Refused = true
				out.Reason = err.Error()
				return nil, out, nil
			}
			return nil, projectGuardOutput{}, err
		}
		return nil, out, nil
	})
}

// ===== REGISTRY TOOLS =====

type projectSwitchInput struct {
	Name string `json:"name" jsonschema:"required,Canonical name or alias of the project to activate"`
}

type projectSwitchOutput struct {
	CanonicalName string `json:"canonical_name" jsonschema:"Canonical name of the now-active project"`
	RootPath      string `json:"root_path" jsonschema:"Root path of the now-active project"`
}

type projectListInput struct{}

type projectListItem struct {
	CanonicalName string    `json:"canonical_name" jsonschema:"Canonical project name"`
	RootPath      string    `json:"root_path" jsonschema:"Absolute project root"`
	Aliases       []string  `json:"aliases,omitempty" jsonschema:"Alternative names"`
	Active        bool      `json:"active" jsonschema:"True for the active project"`
	LastActiveAt  time.Time `json:"last_active_at" jsonschema:"When this project was last matched or switched to"`
}

type projectListOutput struct {
	Projects []projectListItem `json:"projects" jsonschema:"Registered projects in name order"`
	Active   string            `json:"active,omitempty" jsonschema:"Canonical name of the active project, if any"`
}

func (s *Server) registerRegistryTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "project_switch",
		Description: "Make a registered project the active one",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args projectSwitchInput) (*mcp.CallToolResult, projectSwitchOutput, error) {
		rec, err := s.flow.SwitchProject(ctx, args.Name)
		if err != nil {
			return nil, projectSwitchOutput{}, err
		}
		return nil, projectSwitchOutput{
			CanonicalName: rec.CanonicalName,
			RootPath:      rec.RootPath,
		}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "project_list",
		Description: "List registered projects and which one is active",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args projectListInput) (*mcp.CallToolResult, projectListOutput, error) {
		snap, err := s.store.Load()
		if err != nil {
			return nil, projectListOutput{}, err
		}

		out := projectListOutput{Active: snap.ActiveProject()}
		for _, rec := range snap.List() {
			out.Projects = append(out.Projects, projectListItem{
				CanonicalName: rec.CanonicalName,
				RootPath:      rec.RootPath,
				Aliases:       rec.Aliases,
				Active:        strings.EqualFold(rec.CanonicalName, snap.ActiveProject()),
				LastActiveAt:  rec.LastActiveAt,
			})
		}
		return nil, out, nil
	})
}
