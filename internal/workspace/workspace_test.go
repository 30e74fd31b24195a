package workspace_test

import (
	"os"
	"path/filepath"
	"testing"

	"redub/internal/workspace"
)

func TestForVideoDefaultsNextToVideo(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "show", "ep01.mp4")
	if err := os.MkdirAll(filepath.Dir(video), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(video, []byte("mp4"), 0o644); err != nil {
		t.Fatal(err)
	}

	ws, err := workspace.ForVideo(video, "")
	if err != nil {
		t.Fatalf("ForVideo returned error: %v", err)
	}
	if ws.Episode != "ep01" {
		t.Fatalf("unexpected episode: %q", ws.Episode)
	}
	if ws.Dir != filepath.Join(dir, "show", "dub", "ep01") {
		t.Fatalf("unexpected workspace dir: %q", ws.Dir)
	}
	if ws.ShowDir != filepath.Join(dir, "show", "dub") {
		t.Fatalf("unexpected show dir: %q", ws.ShowDir)
	}
}

func TestEnsureLayoutCreatesTree(t *testing.T) {
	dir := t.TempDir()
	ws, err := workspace.ForVideo(filepath.Join(dir, "show", "ep02.mp4"), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.EnsureLayout(); err != nil {
		t.Fatalf("EnsureLayout returned error: %v", err)
	}

	for _, rel := range []string{"source", "derive", "mt", "tts/segments", "audio", "render"} {
		if _, err := os.Stat(ws.Path(rel)); err != nil {
			t.Fatalf("expected %s to exist: %v", rel, err)
		}
	}
	if _, err := os.Stat(filepath.Join(ws.ShowDir, "voices")); err != nil {
		t.Fatalf("expected show voices dir: %v", err)
	}
}

func TestLockExcludesSecondHolder(t *testing.T) {
	dir := t.TempDir()
	first, err := workspace.ForVideo(filepath.Join(dir, "ep.mp4"), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Lock(); err != nil {
		t.Fatalf("first lock failed: %v", err)
	}
	defer first.Unlock()

	second, err := workspace.ForVideo(filepath.Join(dir, "ep.mp4"), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := second.Lock(); err == nil {
		second.Unlock()
		t.Fatal("expected second lock to fail while first is held")
	}
}

func TestLockReleasedAllowsReacquire(t *testing.T) {
	dir := t.TempDir()
	ws, err := workspace.ForVideo(filepath.Join(dir, "ep.mp4"), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.Lock(); err != nil {
		t.Fatal(err)
	}
	ws.Unlock()
	if err := ws.Lock(); err != nil {
		t.Fatalf("re-acquire after release failed: %v", err)
	}
	ws.Unlock()
}
