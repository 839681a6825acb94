// Package audit records every detection, validation, and switch
// decision in an append-only log.
//
// Each entry is one JSON object per line, written with a single
// O_APPEND write so concurrent invocations interleave whole records,
// never partial ones. Entries are never mutated or removed.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Entry is one audited decision.
type Entry struct {
	ID              string      `json:"id"`
	Timestamp       time.Time   `json:"timestamp"`
	Operation       string      `json:"operation"`
	AssertedProject string      `json:"asserted_project,omitempty"`
	Candidates      []Candidate `json:"detected_candidates,omitempty"`
	Classification  string      `json:"classification"`
	Decision        string      `json:"decision"`
	OverrideUsed    bool        `json:"override_used,omitempty"`
	Detail          string      `json:"detail,omitempty"`
}

// Candidate is the audited view of one detection candidate.
type Candidate struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Log appends entries to a JSONL file.
type Log struct {
	path string
}

// NewLog creates a log writing to path.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Path returns the log file location.
func (l *Log) Path() string {
	return l.path
}

// Append writes one entry. The entry's ID and Timestamp are filled in
// if unset. The record is marshaled first and written with a single
// write call so interleaved appends from concurrent processes stay
// individually intact.
func (l *Log) Append(e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("marshaling audit entry: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		return fmt.Errorf("creating audit directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

// List returns up to limit most recent entries, oldest first. A limit
// of 0 returns all entries. Unparseable lines are skipped so a torn
// line from a crashed writer does not hide the rest of the log.
func (l *Log) List(limit int) ([]Entry, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// Len returns the number of intact entries in the log.
func (l *Log) Len() (int, error) {
	entries, err := l.List(0)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}
