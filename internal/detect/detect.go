// Package detect infers the current project identity from filesystem
// and version-control signals against a registry snapshot.
//
// Detection is read-only: the detector never mutates the registry. The
// result is a ranked candidate list with per-signal breakdowns so the
// validator and the safeguard gate can explain their decisions.
package detect

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/projguard/internal/registry"
	"github.com/fyrsmithlabs/projguard/internal/similarity"
)

// Signal kinds.
const (
	SignalPathContainment = "path_containment"
	SignalRemoteMatch     = "remote_match"
	SignalMarkerCoverage  = "marker_coverage"
	SignalNameSimilarity  = "name_similarity"
)

// Context is the execution context detection runs against.
type Context struct {
	// WorkingDir is the absolute working directory.
	WorkingDir string

	// RemoteIdentifier is the version-control remote URL of the
	// working directory's repository, if any.
	RemoteIdentifier string

	// DeclaredName is an optional name the caller claims for the
	// working directory (e.g. from a project manifest). When empty,
	// the working directory basename is used for name similarity.
	DeclaredName string
}

// Signal is one scored detection signal for a candidate.
type Signal struct {
	Kind   string  `json:"kind"`
	Score  float64 `json:"score"`
	Detail string  `json:"detail,omitempty"`
}

// Candidate is a ranked project identity.
type Candidate struct {
	Name       string   `json:"name"`
	Confidence float64  `json:"confidence"`
	Signals    []Signal `json:"signals"`
}

// Weights scales the non-containment signals. Path containment is
// always absolute (1.0) and short-circuits.
type Weights struct {
	Remote float64 `koanf:"remote"`
	Marker float64 `koanf:"marker"`
	Name   float64 `koanf:"name"`
}

// DefaultWeights returns the standard signal weights.
func DefaultWeights() Weights {
	return Weights{
		Remote: 0.95,
		Marker: 0.3,
		Name:   0.6,
	}
}

// Detector scores registry projects against an execution context.
type Detector struct {
	weights Weights
}

// New creates a detector with the given weights.
func New(w Weights) *Detector {
	if w.Remote == 0 && w.Marker == 0 && w.Name == 0 {
		w = DefaultWeights()
	}
	return &Detector{weights: w}
}

// Detect returns candidates ordered by confidence descending, ties
// broken by last_active_at descending.
//
// A working directory equal to or under a registered root is
// conclusive: that candidate is returned alone with confidence 1.0 and
// no other signals are consulted. When several roots contain the
// working directory (nested projects), the deepest root wins.
func (d *Detector) Detect(snap *registry.Snapshot, ctx Context) []Candidate {
	records := snap.List()
	if len(records) == 0 {
		return nil
	}

	wd := ""
	if ctx.WorkingDir != "" {
		wd = filepath.Clean(ctx.WorkingDir)
	}

	if contained := d.containing(records, wd); contained != nil {
		return []Candidate{{
			Name:       contained.CanonicalName,
			Confidence: 1.0,
			Signals: []Signal{{
				Kind:   SignalPathContainment,
				Score:  1.0,
				Detail: "working directory is inside " + contained.RootPath,
			}},
		}}
	}

	lastActive := make(map[string]int64, len(records))
	candidates := make([]Candidate, 0, len(records))
	for _, rec := range records {
		c := d.score(rec, ctx, wd)
		if c.Confidence <= 0 {
			continue
		}
		lastActive[rec.CanonicalName] = rec.LastActiveAt.UnixNano()
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return lastActive[candidates[i].Name] > lastActive[candidates[j].Name]
	})
	return candidates
}

// containing returns the record whose root path contains wd, preferring
// the deepest root.
func (d *Detector) containing(records []*registry.Record, wd string) *registry.Record {
	if wd == "" {
		return nil
	}

	var best *registry.Record
	for _, rec := range records {
		if !pathContains(rec.RootPath, wd) {
			continue
		}
		if best == nil || len(rec.RootPath) > len(best.RootPath) {
			best = rec
		}
	}
	return best
}

// score computes the composite confidence for one record from the
// remote, marker, and name signals.
func (d *Detector) score(rec *registry.Record, ctx Context, wd string) Candidate {
	c := Candidate{Name: rec.CanonicalName}

	remote := 0.0
	if ctx.RemoteIdentifier != "" && rec.RemoteIdentifier != "" && ctx.RemoteIdentifier == rec.RemoteIdentifier {
		remote = d.weights.Remote
		c.Signals = append(c.Signals, Signal{
			Kind:   SignalRemoteMatch,
			Score:  remote,
			Detail: "remote " + rec.RemoteIdentifier,
		})
	}

	marker := 0.0
	if wd != "" && len(rec.ExpectedMarkers) > 0 {
		coverage, at := markerCoverage(wd, rec.ExpectedMarkers)
		if coverage > 0 {
			marker = d.weights.Marker * coverage
			c.Signals = append(c.Signals, Signal{
				Kind:   SignalMarkerCoverage,
				Score:  marker,
				Detail: "markers found under " + at,
			})
		}
	}

	name := 0.0
	subject := ctx.DeclaredName
	if subject == "" && wd != "" {
		subject = filepath.Base(wd)
	}
	if subject != "" {
		sim := similarity.Score(subject, rec.CanonicalName)
		matched := rec.CanonicalName
		for _, alias := range rec.Aliases {
			if s := similarity.Score(subject, alias); s > sim {
				sim = s
				matched = alias
			}
		}
		if sim > 0 {
			name = d.weights.Name * sim
			c.Signals = append(c.Signals, Signal{
				Kind:   SignalNameSimilarity,
				Score:  name,
				Detail: subject + " ~ " + matched,
			})
		}
	}

	weighted := marker + name
	if weighted > 1.0 {
		weighted = 1.0
	}

	c.Confidence = remote
	if weighted > c.Confidence {
		c.Confidence = weighted
	}
	return c
}

// markerCoverage returns the fraction of markers present under wd or
// under the nearest ancestor of wd that holds at least one marker,
// along with the directory the coverage was measured at.
func markerCoverage(wd string, markers []string) (float64, string) {
	dir := wd
	for {
		found := 0
		for _, m := range markers {
			if _, err := os.Stat(filepath.Join(dir, m)); err == nil {
				found++
			}
		}
		if found > 0 {
			return float64(found) / float64(len(markers)), dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return 0, ""
		}
		dir = parent
	}
}

// pathContains reports whether p equals root or is a descendant of it.
func pathContains(root, p string) bool {
	if root == p {
		return true
	}
	return strings.HasPrefix(p, root+string(filepath.Separator))
}
