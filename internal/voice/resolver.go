// Package voice resolves speakers to synthesis voices through the
// show-level registries: speaker_to_role.json assigns episode speakers to
// named roles, role_cast.json assigns roles to provider voice ids, and
// default_roles supplies per-gender fallbacks for unassigned speakers.
package voice

import (
	"errors"
	"io/fs"
	"os"
	"sort"

	"redub/internal/fileutil"
	"redub/internal/services"
)

// Assignment source values recorded in the resolution snapshot.
const (
	SourceMapped         = "mapped"
	SourceGenderFallback = "gender_fallback"
	SourceDefault        = "default"
)

// Assignment records which voice a speaker resolved to and which branch
// the resolution took, so later runs can audit the decision.
type Assignment struct {
	RoleID  string `json:"role_id"`
	VoiceID string `json:"voice_id"`
	Source  string `json:"source"`
}

// Snapshot is the persisted voice resolution for one episode.
type Snapshot struct {
	Schema   string                `json:"schema"`
	Episode  string                `json:"episode"`
	Speakers map[string]Assignment `json:"speakers"`
	// Unresolved lists speakers no branch could assign; their utterances
	// fail per-item during synthesis.
	Unresolved []string `json:"unresolved,omitempty"`
}

// SnapshotSchema identifies the snapshot layout.
const SnapshotSchema = "voice_assignment.v1"

// Resolve maps every speaker to a voice id. Lookup order per speaker:
// episode role assignment, then default_roles by the speaker's gender
// (unknown gender uses the configured neutral role).
func Resolve(speakerToRolePath, roleCastPath, episode string, genders map[string]string) (*Snapshot, error) {
	raw, err := os.ReadFile(speakerToRolePath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrConfiguration, "synthesize", "load speaker registry", speakerToRolePath, err)
		}
		raw = []byte(`{}`)
	}
	roles := speakerRoles(raw, episode)
	defaults := defaultRoles(raw)
	cast, err := loadRoleCast(roleCastPath)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Schema:   SnapshotSchema,
		Episode:  episode,
		Speakers: map[string]Assignment{},
	}

	speakers := make([]string, 0, len(genders))
	for spk := range genders {
		speakers = append(speakers, spk)
	}
	for spk := range roles {
		if _, ok := genders[spk]; !ok {
			speakers = append(speakers, spk)
		}
	}
	sort.Strings(speakers)

	for _, spk := range speakers {
		assignment, ok := resolveOne(spk, roles, defaults, cast, genders)
		if !ok {
			snap.Unresolved = append(snap.Unresolved, spk)
			continue
		}
		snap.Speakers[spk] = assignment
	}
	return snap, nil
}

func resolveOne(spk string, roles, defaults, cast, genders map[string]string) (Assignment, bool) {
	if role := roles[spk]; role != "" {
		if voiceID := cast[role]; voiceID != "" {
			return Assignment{RoleID: role, VoiceID: voiceID, Source: SourceMapped}, true
		}
	}

	gender := genders[spk]
	switch gender {
	case "male", "female":
		if role := defaults[gender]; role != "" {
			if voiceID := cast[role]; voiceID != "" {
				return Assignment{RoleID: role, VoiceID: voiceID, Source: SourceGenderFallback}, true
			}
		}
	}
	if role := defaults["unknown"]; role != "" {
		if voiceID := cast[role]; voiceID != "" {
			return Assignment{RoleID: role, VoiceID: voiceID, Source: SourceDefault}, true
		}
	}
	return Assignment{}, false
}

// Save persists the snapshot atomically.
func (s *Snapshot) Save(path string) error {
	return fileutil.WriteJSONAtomic(path, s)
}

// LoadSnapshot reads a previously persisted snapshot.
func LoadSnapshot(path string) (*Snapshot, error) {
	var snap Snapshot
	if err := fileutil.ReadJSON(path, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
