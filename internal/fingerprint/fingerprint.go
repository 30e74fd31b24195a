// Package fingerprint computes the content digests the pipeline runner uses
// to decide whether a phase is out of date. Files hash to their byte
// content, directories hash to a canonical sorted listing of entry name and
// entry digest, and configuration hashes to a canonical JSON serialization.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File returns the hex SHA-256 digest of the file at path.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", filepath.Base(path), err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Directory returns the digest of a directory treated as a single artifact.
// The digest covers a canonical listing of "name\x00digest\n" lines sorted
// by the slash-separated relative name, so renames and content edits both
// change the fingerprint.
func Directory(root string) (string, error) {
	type entry struct {
		name   string
		digest string
	}
	var entries []entry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		digest, err := File(path)
		if err != nil {
			return err
		}
		entries = append(entries, entry{name: filepath.ToSlash(rel), digest: digest})
		return nil
	})
	if err != nil {
		return "", err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	h := sha256.New()
	for _, e := range entries {
		h.Write([]byte(e.name))
		h.Write([]byte{0})
		h.Write([]byte(e.digest))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Path hashes path as a directory when it is one and as a file otherwise.
func Path(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return Directory(path)
	}
	return File(path)
}

// Config returns the digest of a phase's effective configuration. The value
// is serialized through canonical JSON: map keys sorted, nulls and empty
// containers removed, compact whitespace. Two configurations with the same
// effective content always hash identically.
func Config(v any) (string, error) {
	canonical, err := canonicalJSON(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:]), nil
}

// String returns the digest of a raw string.
func String(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func canonicalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonicalize config: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("canonicalize config: %w", err)
	}
	var b strings.Builder
	if err := writeCanonical(&b, prune(decoded)); err != nil {
		return "", err
	}
	return b.String(), nil
}

// prune drops nulls and empty maps/slices so that adding an unset optional
// field does not change a fingerprint.
func prune(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			cleaned := prune(item)
			if cleaned == nil {
				continue
			}
			if m, ok := cleaned.(map[string]any); ok && len(m) == 0 {
				continue
			}
			if s, ok := cleaned.([]any); ok && len(s) == 0 {
				continue
			}
			out[k] = cleaned
		}
		return out
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			cleaned := prune(item)
			if cleaned == nil {
				continue
			}
			out = append(out, cleaned)
		}
		return out
	case nil:
		return nil
	default:
		return v
	}
}

func writeCanonical(b *strings.Builder, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			encoded, err := json.Marshal(k)
			if err != nil {
				return err
			}
			b.Write(encoded)
			b.WriteByte(':')
			if err := writeCanonical(b, val[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
		return nil
	case []any:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeCanonical(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
		return nil
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return err
		}
		b.Write(encoded)
		return nil
	}
}
