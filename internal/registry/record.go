// Package registry persists the set of known projects and the active
// project pointer.
//
// The registry file is the single source of truth for "what projects
// exist". It is loaded and saved per command invocation, never held as
// long-lived state: concurrent invocations are serialized through an
// optimistic check on the file's updated_at stamp, and writes land
// atomically via a temp file and rename.
package registry

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Errors for registry operations.
var (
	ErrCorrupted              = errors.New("registry file corrupted")
	ErrProjectNotFound        = errors.New("project not found")
	ErrDuplicateProject       = errors.New("project already registered with a different root path")
	ErrConcurrentModification = errors.New("registry modified concurrently")
	ErrActiveNotRegistered    = errors.New("active project must reference a registered project")
	ErrEmptyName              = errors.New("project name cannot be empty")
	ErrEmptyRootPath          = errors.New("project root path cannot be empty")
	ErrRelativeRootPath       = errors.New("project root path must be absolute")
)

// SchemaVersion is the current registry file schema.
const SchemaVersion = 1

// Record describes one registered project.
type Record struct {
	// CanonicalName is the unique, stable identifier. Uniqueness is
	// enforced case-insensitively; the stored casing is preserved.
	CanonicalName string `json:"canonical_name"`

	// RootPath is the absolute, cleaned filesystem root of the project.
	RootPath string `json:"root_path"`

	// Aliases are alternate names the project answers to.
	Aliases []string `json:"aliases,omitempty"`

	// RemoteIdentifier is an opaque version-control remote URL,
	// compared exactly during detection.
	RemoteIdentifier string `json:"remote_identifier,omitempty"`

	// ExpectedMarkers are relative paths expected to exist under
	// RootPath (manifest files, directories). A missing marker is a
	// structural-health warning, never an error.
	ExpectedMarkers []string `json:"expected_markers,omitempty"`

	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`

	// Metadata holds caller-defined tags.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewRecord creates a record with normalized root path and creation
// timestamps set to now.
func NewRecord(name, rootPath string) (*Record, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}
	rootPath, err := NormalizeRootPath(rootPath)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Record{
		CanonicalName: name,
		RootPath:      rootPath,
		CreatedAt:     now,
		LastActiveAt:  now,
	}, nil
}

// NormalizeRootPath cleans a root path and rejects empty or relative
// paths. Cleaning removes ".." segments and trailing separators.
func NormalizeRootPath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", ErrEmptyRootPath
	}
	if !filepath.IsAbs(p) {
		return "", ErrRelativeRootPath
	}
	return filepath.Clean(p), nil
}

// Matches reports whether name equals the canonical name or any alias,
// compared case-insensitively.
func (r *Record) Matches(name string) bool {
	if strings.EqualFold(r.CanonicalName, name) {
		return true
	}
	return r.HasAlias(name)
}

// HasAlias reports whether name equals any alias, case-insensitively.
func (r *Record) HasAlias(name string) bool {
	for _, a := range r.Aliases {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}

// Touch sets LastActiveAt to now.
func (r *Record) Touch() {
	r.LastActiveAt = time.Now().UTC()
}

// Clone returns a deep copy so callers can modify records without
// aliasing snapshot state.
func (r *Record) Clone() *Record {
	c := *r
	c.Aliases = slices.Clone(r.Aliases)
	c.ExpectedMarkers = slices.Clone(r.ExpectedMarkers)
	if r.Metadata != nil {
		c.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
