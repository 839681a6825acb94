package registry

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// File is the persisted registry structure.
type File struct {
	SchemaVersion int                `json:"schema_version"`
	UpdatedAt     time.Time          `json:"updated_at"`
	ActiveProject string             `json:"active_project,omitempty"`
	Projects      map[string]*Record `json:"projects"`
}

// Snapshot is an in-memory view of the registry loaded at a point in
// time. Mutations apply to the snapshot only; Store.Save persists them
// if no concurrent write happened since the load.
type Snapshot struct {
	file File

	// loadedAt is the UpdatedAt stamp observed at load time, used for
	// the optimistic concurrency check on save.
	loadedAt time.Time

	// warnings collected during mutations (e.g. alias shadowing);
	// drained by the caller for logging.
	warnings []string
}

func newSnapshot(f File, loadedAt time.Time) *Snapshot {
	if f.Projects == nil {
		f.Projects = make(map[string]*Record)
	}
	if f.SchemaVersion == 0 {
		f.SchemaVersion = SchemaVersion
	}
	return &Snapshot{file: f, loadedAt: loadedAt}
}

// ActiveProject returns the canonical name of the active project, or
// empty if none is set.
func (s *Snapshot) ActiveProject() string {
	return s.file.ActiveProject
}

// Len returns the number of registered projects.
func (s *Snapshot) Len() int {
	return len(s.file.Projects)
}

// Warnings drains and returns non-fatal warnings collected during
// mutations on this snapshot.
func (s *Snapshot) Warnings() []string {
	w := s.warnings
	s.warnings = nil
	return w
}

// key returns the map key for name, or "" if no project matches the
// name case-insensitively.
func (s *Snapshot) key(name string) string {
	if _, ok := s.file.Projects[name]; ok {
		return name
	}
	for k := range s.file.Projects {
		if strings.EqualFold(k, name) {
			return k
		}
	}
	return ""
}

// Get returns the record for a canonical name. The lookup is
// case-insensitive; the caller receives a copy.
func (s *Snapshot) Get(name string) (*Record, error) {
	k := s.key(name)
	if k == "" {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}
	return s.file.Projects[k].Clone(), nil
}

// List returns all records ordered by canonical name.
func (s *Snapshot) List() []*Record {
	records := make([]*Record, 0, len(s.file.Projects))
	for _, r := range s.file.Projects {
		records = append(records, r.Clone())
	}
	sort.Slice(records, func(i, j int) bool {
		return strings.ToLower(records[i].CanonicalName) < strings.ToLower(records[j].CanonicalName)
	})
	return records
}

// FindByAlias returns the record whose canonical name or alias matches
// text, or nil if none does. Canonical names win over aliases so an
// alias cannot shadow a project's own name.
func (s *Snapshot) FindByAlias(text string) *Record {
	if k := s.key(text); k != "" {
		return s.file.Projects[k].Clone()
	}
	for _, r := range s.file.Projects {
		if r.HasAlias(text) {
			return r.Clone()
		}
	}
	return nil
}

// Add registers a record. Re-adding an existing project with the same
// root path is an idempotent no-op that refreshes last_active_at;
// the same canonical name with a different root path is rejected with
// ErrDuplicateProject. Aliases that collide with another project's
// canonical name record a warning rather than failing: ambiguity is
// resolved at detection time, not suppressed at write time.
func (s *Snapshot) Add(r *Record) error {
	if r == nil {
		return ErrEmptyName
	}
	rootPath, err := NormalizeRootPath(r.RootPath)
	if err != nil {
		return err
	}

	if k := s.key(r.CanonicalName); k != "" {
		existing := s.file.Projects[k]
		if existing.RootPath != rootPath {
			return fmt.Errorf("%w: %s is registered at %s", ErrDuplicateProject, k, existing.RootPath)
		}
		existing.Touch()
		s.file.UpdatedAt = time.Now().UTC()
		return nil
	}

	stored := r.Clone()
	stored.RootPath = rootPath
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	if stored.LastActiveAt.IsZero() {
		stored.LastActiveAt = stored.CreatedAt
	}

	s.checkAliasShadowing(stored)
	s.file.Projects[stored.CanonicalName] = stored
	s.file.UpdatedAt = time.Now().UTC()
	return nil
}

// Patch describes a partial update to a record. Nil fields are left
// unchanged; Metadata entries are merged in.
type Patch struct {
	Aliases          *[]string
	RemoteIdentifier *string
	ExpectedMarkers  *[]string
	Metadata         map[string]string
}

// Update applies a patch to an existing record.
func (s *Snapshot) Update(name string, p Patch) error {
	k := s.key(name)
	if k == "" {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}
	r := s.file.Projects[k]

	if p.Aliases != nil {
		r.Aliases = append([]string(nil), (*p.Aliases)...)
		s.checkAliasShadowing(r)
	}
	if p.RemoteIdentifier != nil {
		r.RemoteIdentifier = *p.RemoteIdentifier
	}
	if p.ExpectedMarkers != nil {
		r.ExpectedMarkers = append([]string(nil), (*p.ExpectedMarkers)...)
	}
	if len(p.Metadata) > 0 {
		if r.Metadata == nil {
			r.Metadata = make(map[string]string, len(p.Metadata))
		}
		for mk, mv := range p.Metadata {
			r.Metadata[mk] = mv
		}
	}

	s.file.UpdatedAt = time.Now().UTC()
	return nil
}

// Touch refreshes last_active_at on a record, e.g. after a successful
// detection match or switch.
func (s *Snapshot) Touch(name string) error {
	k := s.key(name)
	if k == "" {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}
	s.file.Projects[k].Touch()
	s.file.UpdatedAt = time.Now().UTC()
	return nil
}

// Remove deletes a record. Removing the active project clears the
// active pointer; clearedActive tells the caller to log the clearing.
func (s *Snapshot) Remove(name string) (clearedActive bool, err error) {
	k := s.key(name)
	if k == "" {
		return false, fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}

	delete(s.file.Projects, k)
	if strings.EqualFold(s.file.ActiveProject, k) {
		s.file.ActiveProject = ""
		clearedActive = true
	}
	s.file.UpdatedAt = time.Now().UTC()
	return clearedActive, nil
}

// SetActive points the active project at a registered name. A name
// that is not registered is rejected: the active pointer must always
// reference an existing project.
func (s *Snapshot) SetActive(name string) error {
	if name == "" {
		s.file.ActiveProject = ""
		s.file.UpdatedAt = time.Now().UTC()
		return nil
	}
	k := s.key(name)
	if k == "" {
		return fmt.Errorf("%w: %s", ErrActiveNotRegistered, name)
	}
	s.file.ActiveProject = k
	s.file.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Snapshot) checkAliasShadowing(r *Record) {
	for _, alias := range r.Aliases {
		for k, other := range s.file.Projects {
			if other == r {
				continue
			}
			if strings.EqualFold(k, alias) {
				s.warnings = append(s.warnings,
					fmt.Sprintf("alias %q on project %q shadows canonical name of project %q", alias, r.CanonicalName, k))
			}
		}
	}
}
