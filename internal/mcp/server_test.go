package mcp

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/projguard/internal/audit"
	"github.com/fyrsmithlabs/projguard/internal/detect"
	"github.com/fyrsmithlabs/projguard/internal/guard"
	"github.com/fyrsmithlabs/projguard/internal/marker"
	"github.com/fyrsmithlabs/projguard/internal/registry"
	"github.com/fyrsmithlabs/projguard/internal/validate"
	"github.com/fyrsmithlabs/projguard/internal/workflow"
)

func testComponents(t *testing.T) (*registry.Store, *detect.Detector, *guard.Gate, *workflow.Workflow, *audit.Log) {
	t.Helper()
	dir := t.TempDir()
	store := registry.NewStore(filepath.Join(dir, "registry.json"))
	log := audit.NewLog(filepath.Join(dir, "audit.jsonl"))
	detector := detect.New(detect.DefaultWeights())

	rules, err := guard.CompileRules(nil)
	require.NoError(t, err)
	gate := guard.New(store, detector, validate.DefaultThresholds(), rules, log, nil)
	flow := workflow.New(store, log, nil, nil)
	return store, detector, gate, flow, log
}

func TestNewServer(t *testing.T) {
	store, detector, gate, flow, log := testComponents(t)

	s, err := NewServer(nil, store, detector, validate.DefaultThresholds(), gate, flow, log)
	require.NoError(t, err)
	assert.NotNil(t, s.mcp)
}

func TestNewServer_RequiresComponents(t *testing.T) {
	store, detector, gate, flow, log := testComponents(t)

	_, err := NewServer(nil, nil, detector, validate.DefaultThresholds(), gate, flow, log)
	assert.Error(t, err)

	_, err = NewServer(nil, store, nil, validate.DefaultThresholds(), gate, flow, log)
	assert.Error(t, err)

	_, err = NewServer(nil, store, detector, validate.DefaultThresholds(), nil, flow, log)
	assert.Error(t, err)

	_, err = NewServer(nil, store, detector, validate.DefaultThresholds(), gate, nil, log)
	assert.Error(t, err)

	_, err = NewServer(nil, store, detector, validate.DefaultThresholds(), gate, flow, nil)
	assert.Error(t, err)
}

func TestBuildContext(t *testing.T) {
	dir := t.TempDir()

	dctx, err := buildContext(dir, "", "alpha")
	require.NoError(t, err)
	assert.Equal(t, dir, dctx.WorkingDir)
	assert.Empty(t, dctx.RemoteIdentifier)
	assert.Equal(t, "alpha", dctx.DeclaredName)

	dctx, err = buildContext(dir, "git@github.com:acme/alpha.git", "")
	require.NoError(t, err)
	assert.Equal(t, "git@github.com:acme/alpha.git", dctx.RemoteIdentifier)
}

func TestBuildContext_ManifestSuppliesDeclaredName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, marker.Write(dir, &marker.Manifest{Name: "alpha"}))

	dctx, err := buildContext(dir, "", "")
	require.NoError(t, err)
	assert.Equal(t, "alpha", dctx.DeclaredName)

	// An explicit name from the caller wins over the manifest.
	dctx, err = buildContext(dir, "", "beta")
	require.NoError(t, err)
	assert.Equal(t, "beta", dctx.DeclaredName)
}

func TestBuildContext_DefaultsToCwd(t *testing.T) {
	dctx, err := buildContext("", "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, dctx.WorkingDir)
}
