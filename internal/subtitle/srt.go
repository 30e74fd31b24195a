package subtitle

import (
	"fmt"
	"sort"
	"strings"

	"redub/internal/fileutil"
)

// SRTCue is one rendered subtitle entry.
type SRTCue struct {
	StartMs int
	EndMs   int
	Text    string
}

// RenderSRT writes cues as an SRT file, sorted by start time, skipping
// empty text. Output is deterministic for identical input.
func RenderSRT(path string, cues []SRTCue) error {
	sorted := make([]SRTCue, 0, len(cues))
	for _, c := range cues {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		sorted = append(sorted, c)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartMs < sorted[j].StartMs })

	var b strings.Builder
	for i, c := range sorted {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1, srtTimestamp(c.StartMs), srtTimestamp(c.EndMs), strings.TrimSpace(c.Text))
	}
	return fileutil.WriteAtomic(path, []byte(b.String()), 0o644)
}

// ModelCues flattens a subtitle model into SRT cues.
func ModelCues(m *Model) []SRTCue {
	var out []SRTCue
	for _, u := range m.Utterances {
		for _, c := range u.Cues {
			out = append(out, SRTCue{StartMs: c.StartMs, EndMs: c.EndMs, Text: c.Source.Text})
		}
	}
	return out
}

func srtTimestamp(ms int) string {
	if ms < 0 {
		ms = 0
	}
	hh := ms / 3_600_000
	mm := (ms % 3_600_000) / 60_000
	ss := (ms % 60_000) / 1_000
	rem := ms % 1_000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hh, mm, ss, rem)
}
