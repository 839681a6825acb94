// Package marker reads and writes the optional .projguard.toml
// manifest a project can carry at its root. The manifest declares the
// project's identity for detection (name, aliases) and the structural
// markers the project expects to exist, so registration can be
// auto-filled and detection can use a declared name instead of the
// directory basename.
package marker

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Filename is the manifest's fixed name at a project root.
const Filename = ".projguard.toml"

// ErrInvalidManifest indicates a manifest that exists but cannot be
// parsed.
var ErrInvalidManifest = errors.New("invalid project manifest")

// Manifest is the parsed .projguard.toml content.
type Manifest struct {
	// Name is the project's declared canonical name.
	Name string `toml:"name"`

	// Aliases are alternative names detection should recognize.
	Aliases []string `toml:"aliases,omitempty"`

	// Markers are paths, relative to the project root, expected to
	// exist in a healthy checkout.
	Markers []string `toml:"markers,omitempty"`
}

// Load reads the manifest at dir. A missing manifest returns
// (nil, nil); an unparseable one returns ErrInvalidManifest.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, Filename)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, path, err)
	}
	return &m, nil
}

// Find walks from dir upward to the filesystem root and returns the
// first manifest found along with the directory containing it. No
// manifest anywhere returns (nil, "", nil).
func Find(dir string) (*Manifest, string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", err
	}
	for {
		m, err := Load(abs)
		if err != nil {
			return nil, "", err
		}
		if m != nil {
			return m, abs, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return nil, "", nil
		}
		abs = parent
	}
}

// Write creates or overwrites the manifest at dir.
func Write(dir string, m *Manifest) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	path := filepath.Join(dir, Filename)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
