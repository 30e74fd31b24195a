package voice

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"redub/internal/fileutil"
	"redub/internal/services"
)

// Registry schema identifiers.
const (
	SpeakerToRoleSchema = "speaker_to_role.v1.1"
	RoleCastSchema      = "role_cast.v1"
)

// UpdateSpeakerToRole ensures an entry exists for every speaker under the
// episode's key, preserving existing assignments and any fields other
// tools have added. Callers hold the workspace lock; the write itself is
// temp-then-rename.
func UpdateSpeakerToRole(path, episode string, speakers []string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrConfiguration, "subtitle", "update speaker registry", path, err)
		}
		raw = []byte(fmt.Sprintf(
			`{"schema":%q,"episodes":{},"default_roles":{"male":"","female":"","unknown":""}}`,
			SpeakerToRoleSchema,
		))
	}
	if !gjson.ValidBytes(raw) {
		return services.Wrap(services.ErrConfiguration, "subtitle", "update speaker registry",
			fmt.Sprintf("%s is not valid JSON", path), nil)
	}

	changed := false
	for _, spk := range speakers {
		key := "episodes." + escapeKey(episode) + "." + escapeKey(spk)
		if gjson.GetBytes(raw, key).Exists() {
			continue
		}
		raw, err = sjson.SetBytes(raw, key, "")
		if err != nil {
			return fmt.Errorf("update speaker registry: %w", err)
		}
		changed = true
	}
	if !changed {
		// Still create the file on first sight of an episode with no new
		// speakers, so humans have something to edit.
		if _, statErr := os.Stat(path); statErr == nil {
			return nil
		}
	}
	return fileutil.WriteAtomic(path, raw, 0o644)
}

// speakerRoles returns the episode's speaker -> role assignments.
func speakerRoles(raw []byte, episode string) map[string]string {
	out := map[string]string{}
	gjson.GetBytes(raw, "episodes."+escapeKey(episode)).ForEach(func(k, v gjson.Result) bool {
		out[k.String()] = strings.TrimSpace(v.String())
		return true
	})
	return out
}

// defaultRoles returns the gender fallback roles.
func defaultRoles(raw []byte) map[string]string {
	out := map[string]string{}
	gjson.GetBytes(raw, "default_roles").ForEach(func(k, v gjson.Result) bool {
		out[k.String()] = strings.TrimSpace(v.String())
		return true
	})
	return out
}

// loadRoleCast returns the role -> voice id mapping.
func loadRoleCast(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, services.Wrap(services.ErrConfiguration, "synthesize", "load role cast", path, err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, services.Wrap(services.ErrConfiguration, "synthesize", "load role cast",
			fmt.Sprintf("%s is not valid JSON", path), nil)
	}
	out := map[string]string{}
	gjson.GetBytes(raw, "roles").ForEach(func(k, v gjson.Result) bool {
		role := strings.TrimSpace(k.String())
		voiceID := strings.TrimSpace(v.String())
		if role != "" && voiceID != "" {
			out[role] = voiceID
		}
		return true
	})
	return out, nil
}

func escapeKey(key string) string {
	key = strings.ReplaceAll(key, `\`, `\\`)
	key = strings.ReplaceAll(key, ".", `\.`)
	return key
}
