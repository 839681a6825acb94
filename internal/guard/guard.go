// Package guard wraps operations with project-identity validation.
//
// The gate runs detection and classification before an operation and
// either proceeds, proceeds with a warning, or refuses. Refusals name
// the conflicting identities and how to override; every invocation is
// audited regardless of outcome.
package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projguard/internal/audit"
	"github.com/fyrsmithlabs/projguard/internal/detect"
	"github.com/fyrsmithlabs/projguard/internal/logging"
	"github.com/fyrsmithlabs/projguard/internal/registry"
	"github.com/fyrsmithlabs/projguard/internal/validate"
)

// ErrRefused marks refusals so callers can map them to their own
// surface (exit code 2, MCP error payloads).
var ErrRefused = errors.New("operation refused")

// Decision is the gate's verdict on one invocation.
type Decision string

const (
	DecisionProceed   Decision = "proceed"
	DecisionWarn      Decision = "proceed_with_warning"
	DecisionRefuse    Decision = "refuse"
	DecisionOverride  Decision = "override"
	DecisionUnguarded Decision = "unguarded"
)

// Result reports what the gate decided and why.
type Result struct {
	Operation      string
	Capability     string
	Classification validate.Classification
	Candidates     []detect.Candidate
	Decision       Decision
	OverrideUsed   bool
}

// RefusalError explains which identities conflicted. It unwraps to
// ErrRefused.
type RefusalError struct {
	Operation      string
	Asserted       string
	Classification validate.Classification
	Candidates     []detect.Candidate
}

func (e *RefusalError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "refusing %q: ", e.Operation)

	switch e.Classification {
	case validate.Mismatch:
		fmt.Fprintf(&b, "asserted project %q but detected %q (confidence %.2f)",
			e.Asserted, e.Candidates[0].Name, e.Candidates[0].Confidence)
	case validate.Ambiguous:
		names := make([]string, 0, len(e.Candidates))
		for _, c := range e.Candidates {
			names = append(names, fmt.Sprintf("%s (%.2f)", c.Name, c.Confidence))
		}
		fmt.Fprintf(&b, "cannot distinguish between %s", strings.Join(names, ", "))
	case validate.Unknown:
		fmt.Fprintf(&b, "asserted project %q but no project could be detected here", e.Asserted)
	default:
		fmt.Fprintf(&b, "classification %s", e.Classification)
	}

	b.WriteString("; pass an explicit override to proceed anyway")
	return b.String()
}

func (e *RefusalError) Unwrap() error { return ErrRefused }

// Option configures one gate invocation.
type Option func(*options)

type options struct {
	override bool
}

// WithOverride lets the caller proceed despite a mismatch or
// ambiguity. The override itself is audited.
func WithOverride() Option {
	return func(o *options) { o.override = true }
}

// Gate validates project identity before operations run.
type Gate struct {
	store      *registry.Store
	detector   *detect.Detector
	thresholds validate.Thresholds
	rules      *RuleSet
	log        *audit.Log
	logger     *logging.Logger
}

// New creates a gate. A nil logger is replaced with a nop logger.
func New(store *registry.Store, detector *detect.Detector, th validate.Thresholds, rules *RuleSet, log *audit.Log, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Gate{
		store:      store,
		detector:   detector,
		thresholds: th,
		rules:      rules,
		log:        log,
		logger:     logger,
	}
}

// Run validates identity for operation and, when permitted, invokes
// proceed. The proceed capability is opaque: its latency and
// concurrency are the caller's responsibility.
//
// Exactly one audit entry is appended per invocation, before proceed
// runs, so the record survives whatever proceed does.
func (g *Gate) Run(ctx context.Context, operation, asserted string, dctx detect.Context, proceed func(context.Context) error, opts ...Option) (*Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ctx = logging.WithOperation(ctx, operation)

	capability, guarded := g.rules.Match(operation)
	if !guarded {
		res := &Result{Operation: operation, Decision: DecisionUnguarded}
		g.appendAudit(ctx, asserted, res, "operation matches no guard rule")
		return res, g.invoke(ctx, proceed)
	}

	snap, err := g.store.Load()
	if err != nil {
		res := &Result{Operation: operation, Capability: capability, Decision: DecisionRefuse}
		g.appendAudit(ctx, asserted, res, "registry load failed: "+err.Error())
		return res, err
	}

	candidates := g.detector.Detect(snap, dctx)
	classification := validate.ClassifyAgainst(asserted, candidates, g.thresholds, snap)

	res := &Result{
		Operation:      operation,
		Capability:     capability,
		Classification: classification,
		Candidates:     candidates,
	}

	switch classification {
	case validate.Match:
		res.Decision = DecisionProceed
		g.touchTop(ctx, candidates)

	case validate.LowConfidence:
		res.Decision = DecisionWarn
		g.logger.Warn(ctx, "proceeding with low-confidence identity",
			zap.String("top_candidate", candidates[0].Name),
			zap.Float64("confidence", candidates[0].Confidence))

	case validate.Unknown:
		if asserted == "" {
			res.Decision = DecisionWarn
			g.logger.Warn(ctx, "no project detected for working directory",
				zap.String("working_dir", dctx.WorkingDir))
		} else if o.override {
			res.Decision = DecisionOverride
			res.OverrideUsed = true
			g.logOverride(ctx, asserted, res)
		} else {
			res.Decision = DecisionRefuse
		}

	case validate.Mismatch, validate.Ambiguous:
		if o.override {
			res.Decision = DecisionOverride
			res.OverrideUsed = true
			g.logOverride(ctx, asserted, res)
		} else {
			res.Decision = DecisionRefuse
		}
	}

	g.appendAudit(ctx, asserted, res, "")

	if res.Decision == DecisionRefuse {
		return res, &RefusalError{
			Operation:      operation,
			Asserted:       asserted,
			Classification: classification,
			Candidates:     candidates,
		}
	}
	return res, g.invoke(ctx, proceed)
}

func (g *Gate) invoke(ctx context.Context, proceed func(context.Context) error) error {
	if proceed == nil {
		return nil
	}
	return proceed(ctx)
}

func (g *Gate) logOverride(ctx context.Context, asserted string, res *Result) {
	g.logger.Warn(ctx, "override used to bypass identity safeguard",
		zap.String("asserted", asserted),
		zap.String("classification", string(res.Classification)))
}

// touchTop refreshes last_active_at on the matched project. Losing an
// optimistic-lock race here is harmless; the touch is best-effort.
func (g *Gate) touchTop(ctx context.Context, candidates []detect.Candidate) {
	if len(candidates) == 0 {
		return
	}
	name := candidates[0].Name
	if _, err := g.store.Mutate(func(snap *registry.Snapshot) error {
		return snap.Touch(name)
	}); err != nil {
		g.logger.Debug(ctx, "could not refresh last_active_at",
			zap.String("project", name), zap.Error(err))
	}
}

func (g *Gate) appendAudit(ctx context.Context, asserted string, res *Result, detail string) {
	entry := audit.Entry{
		Operation:       res.Operation,
		AssertedProject: asserted,
		Classification:  string(res.Classification),
		Decision:        string(res.Decision),
		OverrideUsed:    res.OverrideUsed,
		Detail:          detail,
	}
	for _, c := range res.Candidates {
		entry.Candidates = append(entry.Candidates, audit.Candidate{
			Name:       c.Name,
			Confidence: c.Confidence,
		})
	}
	if err := g.log.Append(entry); err != nil {
		// An unwritable audit log must not unblock or break the
		// decision itself, but it is loud.
		g.logger.Error(ctx, "failed to append audit entry", zap.Error(err))
	}
}
