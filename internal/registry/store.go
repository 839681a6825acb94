package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// mutateAttempts bounds optimistic-lock retries in Mutate.
	mutateAttempts = 3

	// mutateBackoff is the pause between retries.
	mutateBackoff = 50 * time.Millisecond
)

// Store reads and writes the registry file.
type Store struct {
	path string
}

// NewStore creates a store for the registry file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the registry file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the registry from disk. A missing file yields an empty
// snapshot; an unreadable or invalid file yields ErrCorrupted with no
// auto-repair.
func (s *Store) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return newSnapshot(File{SchemaVersion: SchemaVersion}, time.Time{}), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading registry %s: %w", s.path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupted, s.path, err)
	}

	snap := newSnapshot(f, f.UpdatedAt)
	if f.ActiveProject != "" && snap.key(f.ActiveProject) == "" {
		return nil, fmt.Errorf("%w: %s: active project %q is not registered", ErrCorrupted, s.path, f.ActiveProject)
	}
	return snap, nil
}

// Save persists a snapshot. It re-reads the on-disk updated_at stamp
// immediately before writing and fails with ErrConcurrentModification
// if it changed since the snapshot was loaded; it never merges. The
// write itself goes through a temp file and rename so a crashed save
// cannot leave a partial registry behind.
func (s *Store) Save(snap *Snapshot) error {
	if snap.file.ActiveProject != "" && snap.key(snap.file.ActiveProject) == "" {
		return fmt.Errorf("%w: %s", ErrActiveNotRegistered, snap.file.ActiveProject)
	}

	if err := s.checkUnchanged(snap.loadedAt); err != nil {
		return err
	}

	snap.file.SchemaVersion = SchemaVersion
	snap.file.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(&snap.file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming registry: %w", err)
	}

	// The saved stamp becomes the new baseline so a held snapshot can
	// be saved again without a spurious conflict.
	snap.loadedAt = snap.file.UpdatedAt
	return nil
}

// checkUnchanged compares the on-disk updated_at against the stamp
// observed at load time.
func (s *Store) checkUnchanged(loadedAt time.Time) error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		if loadedAt.IsZero() {
			return nil
		}
		// File existed at load time but is gone now: someone else wrote
		// (or removed) it underneath us.
		return fmt.Errorf("%w: registry file removed since load", ErrConcurrentModification)
	}
	if err != nil {
		return fmt.Errorf("re-reading registry %s: %w", s.path, err)
	}

	var onDisk File
	if err := json.Unmarshal(data, &onDisk); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupted, s.path, err)
	}
	if !onDisk.UpdatedAt.Equal(loadedAt) {
		return fmt.Errorf("%w: registry changed at %s (snapshot from %s)",
			ErrConcurrentModification, onDisk.UpdatedAt.Format(time.RFC3339Nano), loadedAt.Format(time.RFC3339Nano))
	}
	return nil
}

// Mutate runs a load-modify-save cycle, retrying a bounded number of
// times on ErrConcurrentModification before surfacing it. The returned
// snapshot is the one that was saved.
func (s *Store) Mutate(fn func(*Snapshot) error) (*Snapshot, error) {
	var lastErr error
	for attempt := 0; attempt < mutateAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(mutateBackoff)
		}

		snap, err := s.Load()
		if err != nil {
			return nil, err
		}
		if err := fn(snap); err != nil {
			return nil, err
		}
		if err := s.Save(snap); err != nil {
			if isConcurrentModification(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return snap, nil
	}
	return nil, lastErr
}

func isConcurrentModification(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
