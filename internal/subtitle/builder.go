package subtitle

import (
	"sort"
	"strings"

	"redub/internal/asr"
)

// Build assembles the subtitle model from normalized utterances. Each
// utterance starts with a single cue covering its full span; alignment may
// later replace the cue layout. The transformation is pure: registry side
// effects belong to the subtitle phase, not the builder.
func Build(utterances []NormalizedUtterance, provider []asr.ProviderUtterance, lang string, durationMs int) *Model {
	model := &Model{
		Schema: Schema{Name: SchemaName, Version: SchemaVersion},
		Audio:  AudioInfo{Lang: lang, DurationMs: durationMs},
	}

	for _, u := range utterances {
		model.Utterances = append(model.Utterances, Utterance{
			UttID: u.UttID,
			Speaker: Speaker{
				ID:         u.SpeakerID,
				Gender:     u.Gender,
				SpeechRate: speechRate(u.Words),
				Emotion:    emotionFor(u, provider),
			},
			StartMs: u.StartMs,
			EndMs:   u.EndMs,
			Text:    u.Text,
			Cues: []Cue{{
				StartMs: u.StartMs,
				EndMs:   u.EndMs,
				Source:  CueText{Lang: lang, Text: u.Text},
			}},
		})
	}
	return model
}

// Speakers returns the distinct speaker IDs in model order.
func (m *Model) Speakers() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, u := range m.Utterances {
		if _, ok := seen[u.Speaker.ID]; ok {
			continue
		}
		seen[u.Speaker.ID] = struct{}{}
		out = append(out, u.Speaker.ID)
	}
	return out
}

// speechRate measures source tokens per second over the union of the word
// intervals, so overlapping or adjacent word timings are not double-counted.
func speechRate(words []asr.Word) float64 {
	type interval struct{ start, end int }
	var intervals []interval
	chars := 0
	for _, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" || w.StartMs < 0 || w.EndMs <= w.StartMs {
			continue
		}
		chars += len([]rune(stripPunctuation(text)))
		intervals = append(intervals, interval{w.StartMs, w.EndMs})
	}
	if chars == 0 || len(intervals) == 0 {
		return 0
	}

	sort.Slice(intervals, func(i, j int) bool {
		if intervals[i].start != intervals[j].start {
			return intervals[i].start < intervals[j].start
		}
		return intervals[i].end < intervals[j].end
	})
	totalMs := 0
	cur := intervals[0]
	for _, iv := range intervals[1:] {
		if iv.start <= cur.end {
			if iv.end > cur.end {
				cur.end = iv.end
			}
			continue
		}
		totalMs += cur.end - cur.start
		cur = iv
	}
	totalMs += cur.end - cur.start
	if totalMs <= 0 {
		return 0
	}
	return float64(chars) / (float64(totalMs) / 1000.0)
}

func stripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(punctuationChars, r) {
			return -1
		}
		return r
	}, s)
}

// emotionFor looks up the emotion of the provider utterance overlapping the
// normalized utterance most.
func emotionFor(u NormalizedUtterance, provider []asr.ProviderUtterance) string {
	best := 0
	emotion := ""
	for _, p := range provider {
		if o := overlap(u.StartMs, u.EndMs, p.StartMs, p.EndMs); o > best && p.Emotion != "" {
			best = o
			emotion = p.Emotion
		}
	}
	return emotion
}
