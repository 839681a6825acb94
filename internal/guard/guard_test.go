package guard

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/projguard/internal/audit"
	"github.com/fyrsmithlabs/projguard/internal/detect"
	"github.com/fyrsmithlabs/projguard/internal/logging"
	"github.com/fyrsmithlabs/projguard/internal/registry"
	"github.com/fyrsmithlabs/projguard/internal/validate"
)

type fixture struct {
	store  *registry.Store
	gate   *Gate
	log    *audit.Log
	logger *logging.TestLogger
}

func newFixture(t *testing.T, rules []Rule) *fixture {
	t.Helper()
	dir := t.TempDir()

	store := registry.NewStore(filepath.Join(dir, "registry.json"))
	log := audit.NewLog(filepath.Join(dir, "audit.jsonl"))
	logger := logging.NewTestLogger()

	rs, err := CompileRules(rules)
	require.NoError(t, err)

	gate := New(store, detect.New(detect.DefaultWeights()), validate.DefaultThresholds(), rs, log, logger.Logger)
	return &fixture{store: store, gate: gate, log: log, logger: logger}
}

func (f *fixture) register(t *testing.T, name, root string, mutate func(*registry.Record)) {
	t.Helper()
	_, err := f.store.Mutate(func(snap *registry.Snapshot) error {
		rec, err := registry.NewRecord(name, root)
		if err != nil {
			return err
		}
		if mutate != nil {
			mutate(rec)
		}
		return snap.Add(rec)
	})
	require.NoError(t, err)
}

func auditLen(t *testing.T, log *audit.Log) int {
	t.Helper()
	n, err := log.Len()
	require.NoError(t, err)
	return n
}

func TestGate_MatchProceeds(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "alpha", "/work/alpha", nil)

	ran := false
	res, err := f.gate.Run(context.Background(), "deploy", "alpha",
		detect.Context{WorkingDir: "/work/alpha/cmd"},
		func(context.Context) error { ran = true; return nil })

	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, DecisionProceed, res.Decision)
	assert.Equal(t, validate.Match, res.Classification)
	assert.Equal(t, 1, auditLen(t, f.log))
}

func TestGate_MatchTouchesLastActive(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "alpha", "/work/alpha", nil)

	snap, err := f.store.Load()
	require.NoError(t, err)
	before, err := snap.Get("alpha")
	require.NoError(t, err)

	_, err = f.gate.Run(context.Background(), "deploy", "",
		detect.Context{WorkingDir: "/work/alpha"}, nil)
	require.NoError(t, err)

	snap, err = f.store.Load()
	require.NoError(t, err)
	after, err := snap.Get("alpha")
	require.NoError(t, err)
	assert.False(t, after.LastActiveAt.Before(before.LastActiveAt))
}

func TestGate_MismatchRefuses(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "Alpha", "/work/alpha", nil)
	f.register(t, "Alpha2", "/work/alpha2", nil)

	// Working inside Alpha2's root while claiming to be Alpha.
	ran := false
	res, err := f.gate.Run(context.Background(), "deploy", "Alpha",
		detect.Context{WorkingDir: "/work/alpha2/src"},
		func(context.Context) error { ran = true; return nil })

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRefused)
	assert.False(t, ran)
	assert.Equal(t, DecisionRefuse, res.Decision)
	assert.Equal(t, validate.Mismatch, res.Classification)

	var refusal *RefusalError
	require.ErrorAs(t, err, &refusal)
	assert.Contains(t, refusal.Error(), "Alpha2")
	assert.Contains(t, refusal.Error(), "override")

	assert.Equal(t, 1, auditLen(t, f.log))
}

func TestGate_MismatchOverrideProceedsAndIsAudited(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "Alpha", "/work/alpha", nil)
	f.register(t, "Alpha2", "/work/alpha2", nil)

	ran := false
	res, err := f.gate.Run(context.Background(), "deploy", "Alpha",
		detect.Context{WorkingDir: "/work/alpha2/src"},
		func(context.Context) error { ran = true; return nil },
		WithOverride())

	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, DecisionOverride, res.Decision)
	assert.True(t, res.OverrideUsed)

	entries, err := f.log.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].OverrideUsed)
	assert.Equal(t, string(validate.Mismatch), entries[0].Classification)

	f.logger.AssertLogged(t, zapcore.WarnLevel, "override used")
}

func TestGate_LowConfidenceWarnsAndProceeds(t *testing.T) {
	f := newFixture(t, nil)
	// Name-only signal: 0.6 confidence, between minimum and confident.
	f.register(t, "alpha", "/registered/elsewhere", nil)

	ran := false
	res, err := f.gate.Run(context.Background(), "deploy", "",
		detect.Context{WorkingDir: "/tmp/alpha"},
		func(context.Context) error { ran = true; return nil })

	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, DecisionWarn, res.Decision)
	assert.Equal(t, validate.LowConfidence, res.Classification)
	f.logger.AssertLogged(t, zapcore.WarnLevel, "low-confidence")
}

func TestGate_UnknownWithoutAssertionProceedsWithWarning(t *testing.T) {
	f := newFixture(t, nil)

	ran := false
	res, err := f.gate.Run(context.Background(), "deploy", "",
		detect.Context{WorkingDir: "/tmp/nowhere"},
		func(context.Context) error { ran = true; return nil })

	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, DecisionWarn, res.Decision)
	assert.Equal(t, validate.Unknown, res.Classification)
}

func TestGate_UnknownWithAssertionRefuses(t *testing.T) {
	f := newFixture(t, nil)

	ran := false
	_, err := f.gate.Run(context.Background(), "deploy", "alpha",
		detect.Context{WorkingDir: "/tmp/nowhere"},
		func(context.Context) error { ran = true; return nil })

	require.ErrorIs(t, err, ErrRefused)
	assert.False(t, ran)
}

func TestGate_AmbiguousRefuses(t *testing.T) {
	f := newFixture(t, nil)
	remote := "git@github.com:acme/shared.git"
	f.register(t, "alpha", "/registered/a", func(r *registry.Record) { r.RemoteIdentifier = remote })
	f.register(t, "beta", "/registered/b", func(r *registry.Record) { r.RemoteIdentifier = remote })

	res, err := f.gate.Run(context.Background(), "deploy", "",
		detect.Context{WorkingDir: "/tmp/unrelated9", RemoteIdentifier: remote}, nil)

	require.ErrorIs(t, err, ErrRefused)
	assert.Equal(t, validate.Ambiguous, res.Classification)

	var refusal *RefusalError
	require.ErrorAs(t, err, &refusal)
	assert.Contains(t, refusal.Error(), "alpha")
	assert.Contains(t, refusal.Error(), "beta")
}

func TestGate_UnguardedOperationSkipsDetection(t *testing.T) {
	f := newFixture(t, DefaultRules())

	ran := false
	res, err := f.gate.Run(context.Background(), "status", "",
		detect.Context{WorkingDir: "/tmp/anywhere"},
		func(context.Context) error { ran = true; return nil })

	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, DecisionUnguarded, res.Decision)
	assert.Equal(t, 1, auditLen(t, f.log))
}

func TestGate_EveryInvocationAudited(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "alpha", "/work/alpha", nil)

	before := auditLen(t, f.log)

	const n = 5
	invocations := []struct {
		asserted string
		dctx     detect.Context
		override bool
	}{
		{asserted: "", dctx: detect.Context{WorkingDir: "/work/alpha"}},
		{asserted: "alpha", dctx: detect.Context{WorkingDir: "/work/alpha"}},
		{asserted: "ghost", dctx: detect.Context{WorkingDir: "/tmp/nowhere"}},
		{asserted: "", dctx: detect.Context{WorkingDir: "/tmp/nowhere"}},
		{asserted: "ghost", dctx: detect.Context{WorkingDir: "/work/alpha"}, override: true},
	}
	require.Len(t, invocations, n)

	for _, inv := range invocations {
		var opts []Option
		if inv.override {
			opts = append(opts, WithOverride())
		}
		_, _ = f.gate.Run(context.Background(), "deploy", inv.asserted, inv.dctx, nil, opts...)
	}

	assert.Equal(t, before+n, auditLen(t, f.log))
}

func TestGate_ProceedErrorPropagates(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "alpha", "/work/alpha", nil)

	sentinel := errors.New("deploy failed")
	res, err := f.gate.Run(context.Background(), "deploy", "",
		detect.Context{WorkingDir: "/work/alpha"},
		func(context.Context) error { return sentinel })

	require.ErrorIs(t, err, sentinel)
	// The gate's own decision was still to proceed, and it is audited.
	assert.Equal(t, DecisionProceed, res.Decision)
	assert.Equal(t, 1, auditLen(t, f.log))
}

func TestCompileRules(t *testing.T) {
	rs, err := CompileRules([]Rule{{Pattern: `^deploy`, Capability: "deploy"}})
	require.NoError(t, err)

	cap1, guarded := rs.Match("deploy-prod")
	assert.True(t, guarded)
	assert.Equal(t, "deploy", cap1)

	_, guarded = rs.Match("status")
	assert.False(t, guarded)

	_, err = CompileRules([]Rule{{Pattern: `([`, Capability: "broken"}})
	require.Error(t, err)
}

func TestRuleSet_EmptyGuardsEverything(t *testing.T) {
	rs, err := CompileRules(nil)
	require.NoError(t, err)

	_, guarded := rs.Match("anything-at-all")
	assert.True(t, guarded)
}

func TestDefaultRules(t *testing.T) {
	rs, err := CompileRules(DefaultRules())
	require.NoError(t, err)

	for _, op := range []string{"deploy", "Deploy-staging", "delete-branch", "scaffold", "migrate-db"} {
		_, guarded := rs.Match(op)
		assert.True(t, guarded, "operation %q should be guarded", op)
	}

	_, guarded := rs.Match("status")
	assert.False(t, guarded)
}
