// Package align derives the dub model from the subtitle model and
// per-utterance translations: it assigns time budgets, extends utterance
// ends within a hard bound without ever creating overlap, and rebuilds the
// subtitle cues for the target language.
package align

import (
	"log/slog"
	"strings"

	"redub/internal/dub"
	"redub/internal/logging"
	"redub/internal/subtitle"
	"redub/internal/translate"
)

// Config holds the alignment thresholds.
type Config struct {
	// MaxExtendMs caps how far an utterance end may move; never above 200.
	MaxExtendMs int
	// SafetyGapMs is kept clear before the next utterance's start.
	SafetyGapMs int
	// CueChars is the per-cue character budget for rebuilt cues.
	CueChars int
	// MaxRate is the default synthesis compression bound.
	MaxRate float64
	// TargetCPS estimates spoken duration of the target text.
	TargetCPS float64
}

// DefaultConfig mirrors the pipeline defaults.
func DefaultConfig() Config {
	return Config{MaxExtendMs: 200, SafetyGapMs: 60, CueChars: 42, MaxRate: 1.3, TargetCPS: 14.0}
}

// Output bundles the two documents alignment produces.
type Output struct {
	// Dub is the dub model (SSOT #2).
	Dub *dub.Model
	// Aligned is the subtitle document rebuilt with target-language cues.
	Aligned *subtitle.Model
	// MissingTranslations lists utterance IDs with no translation; they are
	// excluded from the dub model.
	MissingTranslations []string
}

// Align produces the dub model. Utterance order follows the subtitle
// model; budgets satisfy budget_ms == end_ms - start_ms after any
// extension, and no extension crosses the next utterance's start.
func Align(model *subtitle.Model, translations map[string]translate.Result, cfg Config, logger *slog.Logger) *Output {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.MaxExtendMs <= 0 || cfg.MaxExtendMs > 200 {
		cfg.MaxExtendMs = 200
	}
	if cfg.CueChars <= 0 {
		cfg.CueChars = 42
	}
	if cfg.MaxRate < 1.0 || cfg.MaxRate > 1.5 {
		cfg.MaxRate = 1.3
	}
	if cfg.TargetCPS <= 0 {
		cfg.TargetCPS = 14.0
	}

	out := &Output{
		Dub: &dub.Model{AudioDurationMs: model.Audio.DurationMs},
		Aligned: &subtitle.Model{
			Schema: subtitle.Schema{Name: "subtitle.align", Version: "1.3"},
			Audio:  model.Audio,
		},
	}

	for i, u := range model.Utterances {
		tr, ok := translations[u.UttID]
		if !ok || strings.TrimSpace(tr.Target) == "" {
			logger.Warn("translation missing; utterance excluded from dub model",
				logging.String("utt_id", u.UttID))
			out.MissingTranslations = append(out.MissingTranslations, u.UttID)
			continue
		}

		var nextStart = -1
		if i+1 < len(model.Utterances) {
			nextStart = model.Utterances[i+1].StartMs
		}

		endMs := extendEnd(u.StartMs, u.EndMs, tr.EstMs, nextStart, cfg)
		budget := endMs - u.StartMs

		out.Dub.Utterances = append(out.Dub.Utterances, dub.Utterance{
			UttID:      u.UttID,
			StartMs:    u.StartMs,
			EndMs:      endMs,
			BudgetMs:   budget,
			TextSource: u.Text,
			TextTarget: tr.Target,
			SpeakerID:  u.Speaker.ID,
			Gender:     u.Speaker.Gender,
			Emotion:    u.Speaker.Emotion,
			TTSPolicy:  dub.TTSPolicy{MaxRate: cfg.MaxRate},
		})

		aligned := u
		aligned.EndMs = endMs
		aligned.Cues = rebuildCues(tr.Target, u.StartMs, endMs, cfg.CueChars)
		out.Aligned.Utterances = append(out.Aligned.Utterances, aligned)
	}

	return out
}

// extendEnd moves the utterance end right when the estimated spoken
// duration needs it, bounded by MaxExtendMs and by the next utterance's
// start minus the safety gap.
func extendEnd(startMs, endMs, estMs, nextStartMs int, cfg Config) int {
	budget := endMs - startMs
	if estMs <= budget {
		return endMs
	}
	extend := estMs - budget
	if extend > cfg.MaxExtendMs {
		extend = cfg.MaxExtendMs
	}
	if nextStartMs >= 0 {
		headroom := nextStartMs - cfg.SafetyGapMs - endMs
		if headroom < 0 {
			headroom = 0
		}
		if extend > headroom {
			extend = headroom
		}
	}
	return endMs + extend
}

// rebuildCues splits text into fragments of at most cueChars characters,
// preferring punctuation then whitespace boundaries, and distributes them
// time-proportionally within [startMs, endMs]. No cue crosses the
// utterance boundary.
func rebuildCues(text string, startMs, endMs, cueChars int) []subtitle.Cue {
	fragments := splitFragments(text, cueChars)
	if len(fragments) == 0 {
		return nil
	}

	total := 0
	for _, f := range fragments {
		total += len([]rune(f))
	}
	span := endMs - startMs

	cues := make([]subtitle.Cue, 0, len(fragments))
	cursor := startMs
	used := 0
	for i, f := range fragments {
		used += len([]rune(f))
		end := endMs
		if i < len(fragments)-1 {
			end = startMs + span*used/total
			if end <= cursor {
				end = cursor + 1
			}
			if end > endMs {
				end = endMs
			}
		}
		cues = append(cues, subtitle.Cue{
			StartMs: cursor,
			EndMs:   end,
			Source:  subtitle.CueText{Lang: "en", Text: f},
		})
		cursor = end
	}
	return cues
}

var splitPunctuation = ",.;:!?—"

// splitFragments breaks text into pieces of at most limit runes without
// splitting words. Within each window the cut lands on the last
// punctuation boundary if one exists, else the last space.
func splitFragments(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var fragments []string
	for len(runes) > 0 {
		if len(runes) <= limit {
			fragments = append(fragments, strings.TrimSpace(string(runes)))
			break
		}
		window := runes[:limit+1]
		cut := -1
		for i := len(window) - 1; i > 0; i-- {
			if strings.ContainsRune(splitPunctuation, window[i]) && i+1 < len(runes) && runes[i+1] == ' ' {
				cut = i + 1
				break
			}
		}
		if cut < 0 {
			for i := len(window) - 1; i > 0; i-- {
				if window[i] == ' ' {
					cut = i
					break
				}
			}
		}
		if cut <= 0 {
			cut = limit
		}
		fragments = append(fragments, strings.TrimSpace(string(runes[:cut])))
		runes = []rune(strings.TrimSpace(string(runes[cut:])))
	}
	return fragments
}
