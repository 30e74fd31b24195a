package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// Workspace is the per-episode working directory every phase reads from and
// writes to. Show-level registries (voice mappings, glossary) live one
// directory up so they are shared across episodes of the same show.
type Workspace struct {
	// Dir is the episode workspace directory.
	Dir string
	// ShowDir is the parent directory holding show-level registries.
	ShowDir string
	// Episode is the episode identifier (the video file stem).
	Episode string
	// Video is the absolute path of the source video.
	Video string

	lock *flock.Flock
}

// ForVideo derives the workspace for a video file. When root is empty the
// workspace lives next to the video under a "dub" directory, matching the
// layout a human editing authoritative files expects; otherwise it lives
// under root keyed by the video's parent directory name.
func ForVideo(video, root string) (*Workspace, error) {
	abs, err := filepath.Abs(video)
	if err != nil {
		return nil, fmt.Errorf("resolve video path: %w", err)
	}
	stem := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	if stem == "" {
		return nil, fmt.Errorf("video path %q has no file name", video)
	}

	var showDir string
	if strings.TrimSpace(root) == "" {
		showDir = filepath.Join(filepath.Dir(abs), "dub")
	} else {
		showDir = filepath.Join(root, filepath.Base(filepath.Dir(abs)))
	}
	dir := filepath.Join(showDir, stem)

	ws := &Workspace{
		Dir:     dir,
		ShowDir: showDir,
		Episode: stem,
		Video:   abs,
		lock:    flock.New(filepath.Join(dir, ".lock")),
	}
	return ws, nil
}

// EnsureLayout creates the workspace directory tree.
func (w *Workspace) EnsureLayout() error {
	for _, dir := range []string{
		w.Dir,
		filepath.Join(w.Dir, "source"),
		filepath.Join(w.Dir, "derive"),
		filepath.Join(w.Dir, "mt"),
		filepath.Join(w.Dir, "tts", "segments"),
		filepath.Join(w.Dir, "audio"),
		filepath.Join(w.Dir, "render"),
		filepath.Join(w.ShowDir, "voices"),
		filepath.Join(w.ShowDir, "dict"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Lock acquires exclusive access to the workspace. A second process
// acquiring the same workspace fails immediately rather than blocking.
func (w *Workspace) Lock() error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	ok, err := w.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire workspace lock: %w", err)
	}
	if !ok {
		return errors.New("workspace is locked by another redub process")
	}
	return nil
}

// Unlock releases the workspace lock. Safe to call when not held.
func (w *Workspace) Unlock() {
	_ = w.lock.Unlock()
}

// Path resolves a workspace-relative artifact path to an absolute path.
func (w *Workspace) Path(rel string) string {
	return filepath.Join(w.Dir, filepath.FromSlash(rel))
}

// ManifestPath returns the absolute path of the episode manifest.
func (w *Workspace) ManifestPath() string {
	return filepath.Join(w.Dir, "manifest.json")
}

// SpeakerToRolePath returns the show-level speaker-to-role registry path.
func (w *Workspace) SpeakerToRolePath() string {
	return filepath.Join(w.ShowDir, "voices", "speaker_to_role.json")
}

// RoleCastPath returns the show-level role-to-voice registry path.
func (w *Workspace) RoleCastPath() string {
	return filepath.Join(w.ShowDir, "voices", "role_cast.json")
}

// GlossaryPath returns the show-level glossary path.
func (w *Workspace) GlossaryPath() string {
	return filepath.Join(w.ShowDir, "dict", "glossary.json")
}

// HistoryDBPath returns the show-level run history database path.
func (w *Workspace) HistoryDBPath() string {
	return filepath.Join(w.ShowDir, "history.db")
}

// CacheDir returns the synthesis blob cache directory.
func (w *Workspace) CacheDir() string {
	return filepath.Join(w.Dir, ".cache", "tts")
}
