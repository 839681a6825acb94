package validate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/projguard/internal/detect"
	"github.com/fyrsmithlabs/projguard/internal/registry"
)

func candidates(scores ...float64) []detect.Candidate {
	names := []string{"alpha", "beta", "gamma", "delta"}
	cs := make([]detect.Candidate, len(scores))
	for i, s := range scores {
		cs[i] = detect.Candidate{Name: names[i], Confidence: s}
	}
	return cs
}

func TestClassify(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name       string
		asserted   string
		candidates []detect.Candidate
		want       Classification
	}{
		{
			name:       "no candidates",
			candidates: nil,
			want:       Unknown,
		},
		{
			name:       "best below minimum",
			candidates: candidates(0.4),
			want:       Unknown,
		},
		{
			name:       "single confident candidate no assertion",
			candidates: candidates(0.95),
			want:       Match,
		},
		{
			name:       "asserted equals top",
			asserted:   "alpha",
			candidates: candidates(0.95),
			want:       Match,
		},
		{
			name:       "asserted equals top case insensitive",
			asserted:   "ALPHA",
			candidates: candidates(0.95),
			want:       Match,
		},
		{
			name:       "asserted differs from confident top",
			asserted:   "beta",
			candidates: candidates(0.95, 0.3),
			want:       Mismatch,
		},
		{
			name:       "top two indistinguishable",
			candidates: candidates(0.9, 0.88),
			want:       Ambiguous,
		},
		{
			name:       "indistinguishable even with assertion",
			asserted:   "alpha",
			candidates: candidates(0.9, 0.87),
			want:       Ambiguous,
		},
		{
			name:       "second below minimum is not ambiguous",
			candidates: candidates(0.52, 0.49),
			want:       LowConfidence,
		},
		{
			name:       "clear gap low confidence",
			candidates: candidates(0.6, 0.3),
			want:       LowConfidence,
		},
		{
			name:       "low confidence even when asserted matches",
			asserted:   "alpha",
			candidates: candidates(0.7),
			want:       LowConfidence,
		},
		{
			name:       "boundary exactly confident",
			candidates: candidates(0.85),
			want:       Match,
		},
		{
			name:       "boundary exactly minimum",
			candidates: candidates(0.5),
			want:       LowConfidence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.asserted, tt.candidates, th)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_SimilarNamesMismatch(t *testing.T) {
	// Asserting "Alpha" while "Alpha2" is confidently detected must
	// surface as a mismatch, not a fuzzy match.
	th := DefaultThresholds()
	cs := []detect.Candidate{{Name: "Alpha2", Confidence: 0.9}}

	got := Classify("Alpha", cs, th)
	assert.Equal(t, Mismatch, got)
}

func TestClassifyAgainst_AliasAware(t *testing.T) {
	store := registry.NewStore(filepath.Join(t.TempDir(), "registry.json"))
	snap, err := store.Load()
	require.NoError(t, err)

	rec, err := registry.NewRecord("internal-payments-v2", "/work/payments")
	require.NoError(t, err)
	rec.Aliases = []string{"payments"}
	require.NoError(t, snap.Add(rec))

	cs := []detect.Candidate{{Name: "internal-payments-v2", Confidence: 0.9}}
	th := DefaultThresholds()

	assert.Equal(t, Match, ClassifyAgainst("payments", cs, th, snap))
	assert.Equal(t, Mismatch, ClassifyAgainst("billing", cs, th, snap))
}

func TestStructure(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module x\n"), 0600))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0700))

	rec, err := registry.NewRecord("alpha", root)
	require.NoError(t, err)
	rec.ExpectedMarkers = []string{"go.mod", "docs", "README.md", "Makefile"}

	missing := Structure(rec)
	assert.Equal(t, []string{"README.md", "Makefile"}, missing)
}

func TestStructure_AllPresent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module x\n"), 0600))

	rec, err := registry.NewRecord("alpha", root)
	require.NoError(t, err)
	rec.ExpectedMarkers = []string{"go.mod"}

	assert.Empty(t, Structure(rec))
}
