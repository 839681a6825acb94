// Package validate classifies the relationship between an asserted
// project identity and detected candidates, and checks the structural
// health of registered projects.
//
// "No match" and "ambiguous" are first-class classification outcomes
// here, never errors: only structural and persistence failures
// elsewhere in the system surface as errors.
package validate

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/projguard/internal/detect"
	"github.com/fyrsmithlabs/projguard/internal/registry"
)

// Classification is the outcome of comparing asserted and detected
// identities.
type Classification string

const (
	// Match: the asserted identity (or the absence of one) agrees with
	// a confidently detected top candidate.
	Match Classification = "MATCH"

	// Mismatch: an identity was asserted but a different candidate was
	// confidently detected.
	Mismatch Classification = "MISMATCH"

	// Ambiguous: the top candidates are statistically
	// indistinguishable given current signals.
	Ambiguous Classification = "AMBIGUOUS"

	// LowConfidence: a single best candidate exists but the signals
	// are weak.
	LowConfidence Classification = "LOW_CONFIDENCE"

	// Unknown: no candidate cleared the minimum confidence.
	Unknown Classification = "UNKNOWN"
)

// Thresholds hold the confidence cutoffs. They are configuration, not
// constants: defaults are design values, not measured ones.
type Thresholds struct {
	// Confident is the score at or above which a top candidate is
	// treated as established (default 0.85).
	Confident float64 `koanf:"confident"`

	// Minimum is the score below which detection reports Unknown
	// (default 0.5).
	Minimum float64 `koanf:"minimum"`

	// AmbiguityEpsilon is the maximum gap between the top two
	// candidates for them to count as indistinguishable (default 0.05).
	AmbiguityEpsilon float64 `koanf:"ambiguity_epsilon"`
}

// DefaultThresholds returns the standard cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Confident:        0.85,
		Minimum:          0.5,
		AmbiguityEpsilon: 0.05,
	}
}

// Classify compares an optional asserted name against ranked
// candidates.
func Classify(asserted string, candidates []detect.Candidate, th Thresholds) Classification {
	if len(candidates) == 0 || candidates[0].Confidence < th.Minimum {
		return Unknown
	}

	top := candidates[0]

	if len(candidates) > 1 {
		second := candidates[1]
		if second.Confidence >= th.Minimum && top.Confidence-second.Confidence < th.AmbiguityEpsilon {
			return Ambiguous
		}
	}

	if top.Confidence < th.Confident {
		return LowConfidence
	}

	if asserted == "" || strings.EqualFold(asserted, top.Name) {
		return Match
	}
	return Mismatch
}

// ClassifyAgainst is Classify with alias awareness: an asserted name
// that is an alias of the top candidate's record counts as a match.
func ClassifyAgainst(asserted string, candidates []detect.Candidate, th Thresholds, snap *registry.Snapshot) Classification {
	c := Classify(asserted, candidates, th)
	if c != Mismatch || snap == nil {
		return c
	}

	rec, err := snap.Get(candidates[0].Name)
	if err == nil && rec.Matches(asserted) {
		return Match
	}
	return c
}

// Structure returns the expected markers missing under a record's root
// path. Missing markers are warnings, never errors; a fully healthy
// project returns an empty slice.
func Structure(rec *registry.Record) []string {
	var missing []string
	for _, m := range rec.ExpectedMarkers {
		if _, err := os.Stat(filepath.Join(rec.RootPath, m)); err != nil {
			missing = append(missing, m)
		}
	}
	return missing
}
