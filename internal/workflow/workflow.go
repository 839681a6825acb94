// Package workflow is the interactive layer over detection and the
// registry: confirmation prompts, ambiguity resolution, and project
// switching. All interaction goes through the Prompter capability so
// non-interactive callers and tests substitute scripted answers.
package workflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projguard/internal/audit"
	"github.com/fyrsmithlabs/projguard/internal/detect"
	"github.com/fyrsmithlabs/projguard/internal/logging"
	"github.com/fyrsmithlabs/projguard/internal/registry"
)

// Workflow coordinates registry mutations that involve a human
// decision. A nil prompter means non-interactive execution.
type Workflow struct {
	store    *registry.Store
	log      *audit.Log
	prompter Prompter
	logger   *logging.Logger
}

func New(store *registry.Store, log *audit.Log, prompter Prompter, logger *logging.Logger) *Workflow {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Workflow{store: store, log: log, prompter: prompter, logger: logger}
}

// ResolveAmbiguous picks one candidate from an ambiguous detection
// result. Interactively it presents a menu ordered by confidence; a
// cancelled menu falls back to the top candidate, as does
// non-interactive execution, and the automatic selection is recorded
// as such.
func (w *Workflow) ResolveAmbiguous(ctx context.Context, candidates []detect.Candidate) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("no candidates to resolve")
	}

	automatic := true
	chosen := candidates[0].Name

	if w.prompter != nil {
		options := make([]string, 0, len(candidates))
		for _, c := range candidates {
			options = append(options, fmt.Sprintf("%s (confidence %.2f)", c.Name, c.Confidence))
		}
		if idx, ok := w.prompter.Select(ctx, "Multiple projects match this context:", options); ok {
			chosen = candidates[idx].Name
			automatic = false
		}
	}

	if automatic {
		w.logger.Info(ctx, "ambiguity resolved automatically",
			zap.String("chosen", chosen),
			zap.Int("candidates", len(candidates)))
	}

	w.appendAudit(ctx, audit.Entry{
		Operation:      "resolve_ambiguous",
		Classification: "AMBIGUOUS",
		Decision:       decisionLabel(automatic),
		Detail:         "selected " + chosen,
	}, candidates)

	return chosen, nil
}

func decisionLabel(automatic bool) string {
	if automatic {
		return "auto_selected"
	}
	return "user_selected"
}

// ResolveAndConfirm resolves an ambiguous candidate set and then asks
// whether to proceed with the given operation under the chosen
// identity. Proceeding requires an explicit yes: non-interactive
// execution and cancelled or timed-out prompts report the chosen name
// but do not proceed.
func (w *Workflow) ResolveAndConfirm(ctx context.Context, operation string, candidates []detect.Candidate) (string, bool, error) {
	chosen, err := w.ResolveAmbiguous(ctx, candidates)
	if err != nil {
		return "", false, err
	}
	if w.prompter == nil {
		return chosen, false, nil
	}
	q := fmt.Sprintf("Proceed with %q as project %q?", operation, chosen)
	return chosen, w.prompter.Confirm(ctx, q), nil
}

// ConfirmSwitch asks before switching when the target disagrees with
// what detection found. Non-interactive execution answers no.
func (w *Workflow) ConfirmSwitch(ctx context.Context, target, detected string) bool {
	if w.prompter == nil {
		return false
	}
	q := fmt.Sprintf("Detected project %q here, but you asked to switch to %q. Switch anyway?", detected, target)
	return w.prompter.Confirm(ctx, q)
}

// SwitchProject makes nameOrAlias the active project. The existence
// check, set-active, and last-active touch happen in one registry
// mutation so concurrent invocations see either the whole switch or
// none of it. The switch is audited after the save succeeds.
func (w *Workflow) SwitchProject(ctx context.Context, nameOrAlias string) (*registry.Record, error) {
	var rec *registry.Record
	_, err := w.store.Mutate(func(snap *registry.Snapshot) error {
		found := snap.FindByAlias(nameOrAlias)
		if found == nil {
			return fmt.Errorf("%w: %q", registry.ErrProjectNotFound, nameOrAlias)
		}
		if err := snap.SetActive(found.CanonicalName); err != nil {
			return err
		}
		if err := snap.Touch(found.CanonicalName); err != nil {
			return err
		}
		rec = found.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = logging.WithProject(ctx, rec.CanonicalName)
	w.logger.Info(ctx, "switched active project",
		zap.String("root_path", rec.RootPath))

	w.appendAudit(ctx, audit.Entry{
		Operation:       "switch",
		AssertedProject: nameOrAlias,
		Decision:        "proceed",
		Detail:          "active project set to " + rec.CanonicalName,
	}, nil)

	return rec, nil
}

func (w *Workflow) appendAudit(ctx context.Context, entry audit.Entry, candidates []detect.Candidate) {
	for _, c := range candidates {
		entry.Candidates = append(entry.Candidates, audit.Candidate{
			Name:       c.Name,
			Confidence: c.Confidence,
		})
	}
	if err := w.log.Append(entry); err != nil {
		w.logger.Error(ctx, "failed to append audit entry", zap.Error(err))
	}
}
