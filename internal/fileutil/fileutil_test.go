package fileutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"redub/internal/fileutil"
)

func TestWriteAtomicCreatesParentDirs(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "deeper", "out.json")

	if err := fileutil.WriteAtomic(target, []byte("payload"), 0o644); err != nil {
		t.Fatalf("WriteAtomic returned error: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestWriteAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.bin")
	if err := fileutil.WriteAtomic(target, []byte{0x1, 0x2}, 0o644); err != nil {
		t.Fatalf("WriteAtomic returned error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "out.bin" {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}

func TestWriteJSONAtomicRoundTrip(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "doc.json")

	type doc struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	if err := fileutil.WriteJSONAtomic(target, doc{Name: "mix", Count: 3}); err != nil {
		t.Fatalf("WriteJSONAtomic returned error: %v", err)
	}

	var got doc
	if err := fileutil.ReadJSON(target, &got); err != nil {
		t.Fatalf("ReadJSON returned error: %v", err)
	}
	if got.Name != "mix" || got.Count != 3 {
		t.Fatalf("unexpected round trip: %+v", got)
	}
}

func TestCopyFilePreservesContent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.wav")
	dst := filepath.Join(dir, "sub", "dst.wav")
	if err := os.WriteFile(src, []byte("RIFFdata"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := fileutil.CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile returned error: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "RIFFdata" {
		t.Fatalf("unexpected copy content: %q", data)
	}
}
