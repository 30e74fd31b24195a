package subtitle_test

import (
	"testing"

	"redub/internal/asr"
	"redub/internal/subtitle"
)

func word(start, end int, text, speaker string) asr.Word {
	return asr.Word{StartMs: start, EndMs: end, Text: text, SpeakerID: speaker}
}

func TestSilenceGapSplits(t *testing.T) {
	words := []asr.Word{
		word(0, 400, "A", "spk_1"),
		word(420, 800, "B", "spk_1"),
		word(1300, 1600, "C", "spk_1"),
	}
	utts := subtitle.Normalize(words, nil, map[string]string{"spk_1": "male"}, subtitle.DefaultNormalizeConfig())

	if len(utts) != 2 {
		t.Fatalf("expected 2 utterances, got %d", len(utts))
	}
	if utts[0].StartMs != 0 || utts[0].EndMs != 800 || utts[0].Text != "AB" {
		t.Fatalf("unexpected first utterance: %+v", utts[0])
	}
	if utts[1].StartMs != 1300 || utts[1].EndMs != 1600 || utts[1].Text != "C" {
		t.Fatalf("unexpected second utterance: %+v", utts[1])
	}
	if utts[0].UttID != "utt_0001" || utts[1].UttID != "utt_0002" {
		t.Fatalf("unexpected ids: %s %s", utts[0].UttID, utts[1].UttID)
	}
}

func TestSpeakerChangeSplitsDespiteTinyGap(t *testing.T) {
	words := []asr.Word{
		word(0, 400, "A", "spk_1"),
		word(410, 700, "B", "spk_2"),
	}
	utts := subtitle.Normalize(words, nil, nil, subtitle.DefaultNormalizeConfig())

	if len(utts) != 2 {
		t.Fatalf("expected 2 utterances, got %d", len(utts))
	}
	if utts[0].SpeakerID != "spk_1" || utts[1].SpeakerID != "spk_2" {
		t.Fatalf("speaker boundary violated: %+v", utts)
	}
}

func TestAllWordsShareUtteranceSpeaker(t *testing.T) {
	words := []asr.Word{
		word(0, 300, "甲", "spk_1"),
		word(320, 600, "乙", "spk_1"),
		word(610, 900, "丙", "spk_2"),
		word(910, 1200, "丁", "spk_2"),
	}
	utts := subtitle.Normalize(words, nil, nil, subtitle.DefaultNormalizeConfig())
	for _, u := range utts {
		for _, w := range u.Words {
			if w.SpeakerID != u.SpeakerID {
				t.Fatalf("utterance %s has word with speaker %s", u.UttID, w.SpeakerID)
			}
		}
	}
}

func TestMaxDurationSplitsAtWordBoundary(t *testing.T) {
	// A contiguous 9000 ms run: 30 words of 300 ms with no silence.
	var words []asr.Word
	for i := 0; i < 30; i++ {
		words = append(words, word(i*300, (i+1)*300, "字", "spk_1"))
	}
	cfg := subtitle.DefaultNormalizeConfig()
	utts := subtitle.Normalize(words, nil, nil, cfg)

	if len(utts) != 2 {
		t.Fatalf("expected 2 utterances, got %d", len(utts))
	}
	if utts[0].EndMs > cfg.MaxUtteranceMs {
		t.Fatalf("first utterance exceeds cap: end=%d", utts[0].EndMs)
	}
	// Split falls on the last word boundary at or under 8000 ms.
	if utts[0].EndMs != 7800 && utts[0].EndMs != 8000 {
		t.Fatalf("split not at a word boundary near the cap: end=%d", utts[0].EndMs)
	}
	if utts[1].StartMs != utts[0].EndMs {
		t.Fatalf("second utterance must start at the split word: %d != %d", utts[1].StartMs, utts[0].EndMs)
	}
}

func TestPunctuationReattach(t *testing.T) {
	words := []asr.Word{
		word(0, 300, "你好", "spk_1"),
		word(310, 600, "世界", "spk_1"),
	}
	provider := []asr.ProviderUtterance{
		{StartMs: 0, EndMs: 600, Text: "你好，世界。", SpeakerID: "spk_1"},
	}
	utts := subtitle.Normalize(words, provider, nil, subtitle.DefaultNormalizeConfig())

	if len(utts) != 1 {
		t.Fatalf("expected 1 utterance, got %d", len(utts))
	}
	if utts[0].Words[0].Text != "你好，" {
		t.Fatalf("first word missing punctuation: %q", utts[0].Words[0].Text)
	}
	if utts[0].Words[1].Text != "世界。" {
		t.Fatalf("second word missing punctuation: %q", utts[0].Words[1].Text)
	}
	if utts[0].Text != "你好，世界。" {
		t.Fatalf("utterance text mismatch: %q", utts[0].Text)
	}
}

func TestNoOverlapMeansNoPunctuation(t *testing.T) {
	words := []asr.Word{word(5000, 5400, "好", "spk_1")}
	provider := []asr.ProviderUtterance{
		{StartMs: 0, EndMs: 600, Text: "你好。", SpeakerID: "spk_1"},
	}
	utts := subtitle.Normalize(words, provider, nil, subtitle.DefaultNormalizeConfig())
	if utts[0].Words[0].Text != "好" {
		t.Fatalf("word should keep no punctuation without overlap: %q", utts[0].Words[0].Text)
	}
}

func TestGenderFlowsFromMap(t *testing.T) {
	words := []asr.Word{
		word(0, 400, "A", "spk_1"),
		word(900, 1300, "B", "spk_2"),
	}
	genders := map[string]string{"spk_1": "male", "spk_2": "female"}
	utts := subtitle.Normalize(words, nil, genders, subtitle.DefaultNormalizeConfig())
	if utts[0].Gender != "male" || utts[1].Gender != "female" {
		t.Fatalf("gender not carried: %+v", utts)
	}
}

func TestUnknownSpeakerGenderDefaults(t *testing.T) {
	words := []asr.Word{word(0, 400, "A", "spk_9")}
	utts := subtitle.Normalize(words, nil, map[string]string{}, subtitle.DefaultNormalizeConfig())
	if utts[0].Gender != asr.GenderUnknown {
		t.Fatalf("expected unknown gender, got %q", utts[0].Gender)
	}
}

func TestEmptyInputYieldsNothing(t *testing.T) {
	if got := subtitle.Normalize(nil, nil, nil, subtitle.DefaultNormalizeConfig()); got != nil {
		t.Fatalf("expected nil for empty input, got %+v", got)
	}
}

func TestSingleWordCandidateKept(t *testing.T) {
	words := []asr.Word{word(100, 250, "嗯", "spk_1")}
	utts := subtitle.Normalize(words, nil, nil, subtitle.DefaultNormalizeConfig())
	if len(utts) != 1 || utts[0].Text != "嗯" {
		t.Fatalf("single-word candidate lost: %+v", utts)
	}
}

func TestInvariantStartBeforeEnd(t *testing.T) {
	words := []asr.Word{
		word(0, 400, "A", "spk_1"),
		word(500, 900, "B", "spk_2"),
		word(2000, 2400, "C", "spk_2"),
	}
	for _, u := range subtitle.Normalize(words, nil, nil, subtitle.DefaultNormalizeConfig()) {
		if u.StartMs >= u.EndMs {
			t.Fatalf("utterance %s violates start < end: %d >= %d", u.UttID, u.StartMs, u.EndMs)
		}
	}
}
