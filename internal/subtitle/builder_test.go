package subtitle_test

import (
	"os"
	"strings"
	"testing"

	"redub/internal/asr"
	"redub/internal/subtitle"
)

func TestBuildProducesOneCuePerUtterance(t *testing.T) {
	words := []asr.Word{
		word(0, 400, "你好，", "spk_1"),
		word(420, 800, "世界。", "spk_1"),
	}
	norm := []subtitle.NormalizedUtterance{{
		UttID: "utt_0001", SpeakerID: "spk_1", Gender: "male",
		StartMs: 0, EndMs: 800, Words: words, Text: "你好，世界。",
	}}

	model := subtitle.Build(norm, nil, "zh", 12000)
	if model.Schema.Name != subtitle.SchemaName {
		t.Fatalf("unexpected schema: %+v", model.Schema)
	}
	if model.Audio.DurationMs != 12000 || model.Audio.Lang != "zh" {
		t.Fatalf("unexpected audio block: %+v", model.Audio)
	}
	if len(model.Utterances) != 1 {
		t.Fatalf("expected 1 utterance, got %d", len(model.Utterances))
	}
	u := model.Utterances[0]
	if len(u.Cues) != 1 {
		t.Fatalf("expected single cue, got %d", len(u.Cues))
	}
	if u.Cues[0].StartMs != 0 || u.Cues[0].EndMs != 800 {
		t.Fatalf("cue does not cover span: %+v", u.Cues[0])
	}
	if u.Cues[0].Source.Text != "你好，世界。" {
		t.Fatalf("cue text mismatch: %q", u.Cues[0].Source.Text)
	}
	if u.Speaker.SpeechRate <= 0 {
		t.Fatalf("speech rate not measured: %v", u.Speaker.SpeechRate)
	}
}

func TestBuildCopiesEmotionFromOverlappingProviderUtterance(t *testing.T) {
	norm := []subtitle.NormalizedUtterance{{
		UttID: "utt_0001", SpeakerID: "spk_1", Gender: "female",
		StartMs: 0, EndMs: 900,
		Words: []asr.Word{word(0, 900, "好", "spk_1")},
		Text:  "好",
	}}
	provider := []asr.ProviderUtterance{
		{StartMs: 0, EndMs: 900, Text: "好", SpeakerID: "spk_1", Emotion: "angry"},
		{StartMs: 2000, EndMs: 3000, Text: "别", SpeakerID: "spk_1", Emotion: "sad"},
	}
	model := subtitle.Build(norm, provider, "zh", 3000)
	if model.Utterances[0].Speaker.Emotion != "angry" {
		t.Fatalf("emotion not copied: %+v", model.Utterances[0].Speaker)
	}
}

func TestSpeakersDeduplicatesInOrder(t *testing.T) {
	model := &subtitle.Model{Utterances: []subtitle.Utterance{
		{Speaker: subtitle.Speaker{ID: "spk_2"}},
		{Speaker: subtitle.Speaker{ID: "spk_1"}},
		{Speaker: subtitle.Speaker{ID: "spk_2"}},
	}}
	got := model.Speakers()
	if len(got) != 2 || got[0] != "spk_2" || got[1] != "spk_1" {
		t.Fatalf("unexpected speakers: %v", got)
	}
}

func TestOrderingInvariant(t *testing.T) {
	words := []asr.Word{
		word(0, 400, "一", "spk_1"),
		word(900, 1300, "二", "spk_1"),
		word(2000, 2400, "三", "spk_1"),
	}
	norm := subtitle.Normalize(words, nil, nil, subtitle.DefaultNormalizeConfig())
	model := subtitle.Build(norm, nil, "zh", 3000)
	for i := 1; i < len(model.Utterances); i++ {
		if model.Utterances[i].StartMs < model.Utterances[i-1].StartMs {
			t.Fatal("utterances not ordered by start_ms")
		}
	}
}

func TestSpeechRateUsesUnionOfIntervals(t *testing.T) {
	// Two 500 ms words overlapping by 250 ms: union is 750 ms, 2 chars.
	words := []asr.Word{
		word(0, 500, "一", "spk_1"),
		word(250, 750, "二", "spk_1"),
	}
	norm := []subtitle.NormalizedUtterance{{
		UttID: "utt_0001", SpeakerID: "spk_1", StartMs: 0, EndMs: 750,
		Words: words, Text: "一二",
	}}
	model := subtitle.Build(norm, nil, "zh", 750)
	rate := model.Utterances[0].Speaker.SpeechRate
	want := 2.0 / 0.75
	if rate < want-0.01 || rate > want+0.01 {
		t.Fatalf("speech rate %v, want about %v", rate, want)
	}
}

func TestRenderSRTFormatsTimestamps(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/zh.srt"
	cues := []subtitle.SRTCue{
		{StartMs: 61_234, EndMs: 63_456, Text: "第二句"},
		{StartMs: 0, EndMs: 1_000, Text: "第一句"},
		{StartMs: 2_000, EndMs: 3_000, Text: "   "},
	}
	if err := subtitle.RenderSRT(path, cues); err != nil {
		t.Fatalf("RenderSRT returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.Contains(text, "00:00:00,000 --> 00:00:01,000") {
		t.Fatalf("missing first timestamp:\n%s", text)
	}
	if !strings.Contains(text, "00:01:01,234 --> 00:01:03,456") {
		t.Fatalf("missing second timestamp:\n%s", text)
	}
	if strings.Index(text, "第一句") > strings.Index(text, "第二句") {
		t.Fatal("cues not sorted by start time")
	}
	if strings.Contains(text, "3\n") && strings.Contains(text, "00:00:02,000") {
		t.Fatal("blank cue should be skipped")
	}
}
