package asr

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// Gender values normalized from provider additions.
const (
	GenderMale    = "male"
	GenderFemale  = "female"
	GenderUnknown = "unknown"
)

// Parse extracts words, provider utterances, and the speaker gender map
// from a raw recognition response. The parser is deliberately narrow: it
// validates only the fields downstream phases consume and ignores the rest
// of the provider's (preset-dependent) response shape.
func Parse(raw []byte) (*Result, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("recognition response is not valid JSON")
	}
	root := gjson.ParseBytes(raw)
	utterances := root.Get("result.utterances")
	if !utterances.Exists() {
		return nil, errors.New("recognition response has no result.utterances")
	}

	res := &Result{SpeakerGender: map[string]string{}}

	var parseErr error
	utterances.ForEach(func(_, utt gjson.Result) bool {
		pu := ProviderUtterance{
			StartMs:   int(utt.Get("start_time").Int()),
			EndMs:     int(utt.Get("end_time").Int()),
			Text:      utt.Get("text").String(),
			SpeakerID: speakerID(utt.Get("additions.speaker")),
			Gender:    normalizeGender(utt.Get("additions.gender").String()),
			Emotion:   strings.TrimSpace(utt.Get("additions.emotion").String()),
		}
		if pu.SpeakerID != "" && pu.Gender != "" {
			if _, seen := res.SpeakerGender[pu.SpeakerID]; !seen {
				res.SpeakerGender[pu.SpeakerID] = pu.Gender
			}
		}

		words := utt.Get("words")
		words.ForEach(func(_, w gjson.Result) bool {
			text := strings.TrimSpace(w.Get("text").String())
			if text == "" {
				return true
			}
			start := int(w.Get("start_time").Int())
			end := int(w.Get("end_time").Int())
			if end < start {
				parseErr = fmt.Errorf("word %q has end %d before start %d", text, end, start)
				return false
			}
			spk := speakerID(w.Get("additions.speaker"))
			if spk == "" {
				spk = pu.SpeakerID
			}
			word := Word{StartMs: start, EndMs: end, Text: text, SpeakerID: spk}
			pu.Words = append(pu.Words, word)
			res.Words = append(res.Words, word)
			return true
		})
		if parseErr != nil {
			return false
		}

		res.Utterances = append(res.Utterances, pu)
		if pu.EndMs > res.DurationMs {
			res.DurationMs = pu.EndMs
		}
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	if audioMs := root.Get("audio_info.duration"); audioMs.Exists() {
		if d := int(audioMs.Int()); d > res.DurationMs {
			res.DurationMs = d
		}
	}

	sort.SliceStable(res.Words, func(i, j int) bool {
		if res.Words[i].StartMs != res.Words[j].StartMs {
			return res.Words[i].StartMs < res.Words[j].StartMs
		}
		return res.Words[i].EndMs < res.Words[j].EndMs
	})

	return res, nil
}

// speakerID renders a provider speaker label (string or number) as a
// stable "spk_N" identifier.
func speakerID(v gjson.Result) string {
	if !v.Exists() {
		return ""
	}
	s := strings.TrimSpace(v.String())
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "spk_") {
		return s
	}
	return "spk_" + s
}

func normalizeGender(g string) string {
	switch strings.ToLower(strings.TrimSpace(g)) {
	case "male", "m":
		return GenderMale
	case "female", "f":
		return GenderFemale
	case "":
		return ""
	default:
		return GenderUnknown
	}
}
