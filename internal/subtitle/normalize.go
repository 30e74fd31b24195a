package subtitle

import (
	"fmt"
	"sort"
	"strings"

	"redub/internal/asr"
)

// NormalizeConfig holds the boundary thresholds for utterance rebuilding.
type NormalizeConfig struct {
	// SilenceGapMs opens a new utterance when the inter-word silence
	// reaches this value.
	SilenceGapMs int
	// MaxUtteranceMs caps an utterance's span; a word that would push the
	// span past the cap starts a new utterance.
	MaxUtteranceMs int
}

// DefaultNormalizeConfig mirrors the pipeline defaults.
func DefaultNormalizeConfig() NormalizeConfig {
	return NormalizeConfig{SilenceGapMs: 450, MaxUtteranceMs: 8000}
}

// NormalizedUtterance is the transient result of boundary rebuilding:
// a contiguous single-speaker run of words with punctuation reattached.
type NormalizedUtterance struct {
	UttID     string
	SpeakerID string
	Gender    string
	StartMs   int
	EndMs     int
	Words     []asr.Word
	Text      string
}

// Normalize rebuilds utterance boundaries from the flat word stream.
// The provider's own utterance segmentation contributes only punctuation
// (word-level text carries none) and the speaker gender map.
//
// Boundary rules, in order of precedence:
//   - a speaker change between adjacent words always splits
//   - inter-word silence >= SilenceGapMs splits
//   - a word that would stretch the span past MaxUtteranceMs splits
func Normalize(words []asr.Word, provider []asr.ProviderUtterance, genders map[string]string, cfg NormalizeConfig) []NormalizedUtterance {
	if cfg.SilenceGapMs <= 0 {
		cfg.SilenceGapMs = 450
	}
	if cfg.MaxUtteranceMs <= 0 {
		cfg.MaxUtteranceMs = 8000
	}
	if len(words) == 0 {
		return nil
	}

	sorted := make([]asr.Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].StartMs != sorted[j].StartMs {
			return sorted[i].StartMs < sorted[j].StartMs
		}
		return sorted[i].EndMs < sorted[j].EndMs
	})

	chunks := groupWords(sorted, cfg)

	utterances := make([]NormalizedUtterance, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		chunk = reattachPunctuation(chunk, provider)

		var text strings.Builder
		for _, w := range chunk {
			text.WriteString(w.Text)
		}
		speaker := chunk[0].SpeakerID
		gender := genders[speaker]
		if gender == "" {
			gender = asr.GenderUnknown
		}
		utterances = append(utterances, NormalizedUtterance{
			UttID:     fmt.Sprintf("utt_%04d", len(utterances)+1),
			SpeakerID: speaker,
			Gender:    gender,
			StartMs:   chunk[0].StartMs,
			EndMs:     chunk[len(chunk)-1].EndMs,
			Words:     chunk,
			Text:      text.String(),
		})
	}
	return utterances
}

func groupWords(words []asr.Word, cfg NormalizeConfig) [][]asr.Word {
	var chunks [][]asr.Word
	current := []asr.Word{words[0]}
	spanStart := words[0].StartMs

	for _, w := range words[1:] {
		prev := current[len(current)-1]
		gap := w.StartMs - prev.EndMs
		speakerChanged := w.SpeakerID != "" && prev.SpeakerID != "" && w.SpeakerID != prev.SpeakerID
		tooLong := w.EndMs-spanStart > cfg.MaxUtteranceMs

		if speakerChanged || gap >= cfg.SilenceGapMs || tooLong {
			chunks = append(chunks, current)
			current = []asr.Word{w}
			spanStart = w.StartMs
			continue
		}
		current = append(current, w)
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// punctuation characters eligible for reattachment; matches the provider's
// mixed Chinese/Western output.
const punctuationChars = "，。！？、；：,.!?;:\"'（）()【】[]《》<>…—- "

// reattachPunctuation finds the provider utterance whose time range
// overlaps the chunk most and walks its text, appending trailing
// punctuation after each matching word token to that word. When no provider
// utterance overlaps, words keep no trailing punctuation.
func reattachPunctuation(chunk []asr.Word, provider []asr.ProviderUtterance) []asr.Word {
	src := bestOverlap(chunk, provider)
	if src == nil || src.Text == "" {
		return chunk
	}

	text := []rune(src.Text)
	out := make([]asr.Word, len(chunk))
	copy(out, chunk)

	pos := 0
	for i := range out {
		token := []rune(out[i].Text)
		if len(token) == 0 {
			continue
		}
		match := findToken(text, pos, token)
		if match < 0 {
			continue
		}
		pos = match + len(token)

		var trailing []rune
		for pos < len(text) && strings.ContainsRune(punctuationChars, text[pos]) {
			trailing = append(trailing, text[pos])
			pos++
		}
		if len(trailing) > 0 {
			out[i].Text += strings.TrimRight(string(trailing), " ")
		}
	}
	return out
}

func findToken(text []rune, from int, token []rune) int {
	for i := from; i+len(token) <= len(text); i++ {
		if text[i] != token[0] {
			continue
		}
		matched := true
		for j := 1; j < len(token); j++ {
			if text[i+j] != token[j] {
				matched = false
				break
			}
		}
		if matched {
			return i
		}
	}
	return -1
}

func bestOverlap(chunk []asr.Word, provider []asr.ProviderUtterance) *asr.ProviderUtterance {
	start := chunk[0].StartMs
	end := chunk[len(chunk)-1].EndMs

	best := -1
	bestOverlap := 0
	for i := range provider {
		o := overlap(start, end, provider[i].StartMs, provider[i].EndMs)
		if o > bestOverlap {
			bestOverlap = o
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	return &provider[best]
}

func overlap(aStart, aEnd, bStart, bEnd int) int {
	lo := max(aStart, bStart)
	hi := min(aEnd, bEnd)
	if hi <= lo {
		return 0
	}
	return hi - lo
}
