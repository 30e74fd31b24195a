// Package manifest persists per-phase execution state for an episode
// workspace. The manifest is a single JSON document rewritten atomically on
// every commit; phases never write to it directly.
package manifest

import (
	"errors"
	"io/fs"
	"time"

	"redub/internal/fileutil"
)

// SchemaVersion identifies the manifest document layout.
const SchemaVersion = "1.0"

// Phase status values recorded in the manifest.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Record is the persisted state of one phase.
type Record struct {
	Status             string            `json:"status"`
	Version            int               `json:"version"`
	ConfigFingerprint  string            `json:"config_fingerprint,omitempty"`
	InputFingerprints  map[string]string `json:"input_fingerprints,omitempty"`
	OutputFingerprints map[string]string `json:"output_fingerprints,omitempty"`
	StartedAt          string            `json:"started_at,omitempty"`
	FinishedAt         string            `json:"finished_at,omitempty"`
	Error              string            `json:"error,omitempty"`
}

// Job identifies the pipeline run target.
type Job struct {
	ID        string `json:"id"`
	Video     string `json:"video"`
	Workspace string `json:"workspace"`
	CreatedAt string `json:"created_at"`
}

// Manifest is the on-disk execution state for one episode workspace.
type Manifest struct {
	SchemaVersion string             `json:"schema_version"`
	Job           Job                `json:"job"`
	Phases        map[string]*Record `json:"phases"`

	path string
}

// Load reads the manifest at path, returning a fresh manifest when the file
// does not exist yet.
func Load(path string) (*Manifest, error) {
	m := &Manifest{
		SchemaVersion: SchemaVersion,
		Phases:        map[string]*Record{},
		path:          path,
	}
	err := fileutil.ReadJSON(path, m)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return m, nil
		}
		return nil, err
	}
	if m.Phases == nil {
		m.Phases = map[string]*Record{}
	}
	m.path = path
	return m, nil
}

// Save rewrites the manifest atomically.
func (m *Manifest) Save() error {
	return fileutil.WriteJSONAtomic(m.path, m)
}

// Phase returns the record for a phase name.
func (m *Manifest) Phase(name string) (*Record, bool) {
	rec, ok := m.Phases[name]
	return rec, ok
}

// Put replaces the record for a phase name.
func (m *Manifest) Put(name string, rec *Record) {
	m.Phases[name] = rec
}

// Now returns the manifest timestamp format for the current instant.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
