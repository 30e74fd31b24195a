package tts_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"redub/internal/dub"
	"redub/internal/tts"
	"redub/internal/voice"
)

// fakeClient returns deterministic audio bytes and counts service calls.
type fakeClient struct {
	calls atomic.Int32
	err   error
}

func (f *fakeClient) Synthesize(_ context.Context, req tts.Request) ([]byte, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("pcm:" + req.Text + ":" + req.VoiceID), nil
}

// fakeAudio emulates the media toolchain with file copies and a
// configurable raw duration per synthesized text.
type fakeAudio struct {
	rawMs int
}

func (f *fakeAudio) PCMToWav(_ context.Context, pcm, wav string, _ int) error {
	data, err := os.ReadFile(pcm)
	if err != nil {
		return err
	}
	return os.WriteFile(wav, append([]byte("wav:"), data...), 0o644)
}

func (f *fakeAudio) TrimSilence(_ context.Context, in, out string) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	return os.WriteFile(out, data, 0o644)
}

func (f *fakeAudio) PadTo(_ context.Context, in, out string, _ int) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	return os.WriteFile(out, data, 0o644)
}

func (f *fakeAudio) CompressTo(_ context.Context, in, out string, _ float64, _ int) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	return os.WriteFile(out, data, 0o644)
}

func (f *fakeAudio) Silence(_ context.Context, out string, _, _ int) error {
	return os.WriteFile(out, []byte("silence"), 0o644)
}

func (f *fakeAudio) DurationMs(_ context.Context, path string) (int, error) {
	return f.rawMs, nil
}

func snapshot() *voice.Snapshot {
	return &voice.Snapshot{
		Schema:  voice.SnapshotSchema,
		Episode: "ep01",
		Speakers: map[string]voice.Assignment{
			"spk_1": {RoleID: "Lead", VoiceID: "en_male_adam", Source: voice.SourceMapped},
		},
	}
}

func dubModel(utts ...dub.Utterance) *dub.Model {
	return &dub.Model{AudioDurationMs: 10000, Utterances: utts}
}

func uttFixture(id, text string, budget int) dub.Utterance {
	return dub.Utterance{
		UttID: id, StartMs: 0, EndMs: budget, BudgetMs: budget,
		TextTarget: text, SpeakerID: "spk_1", Gender: "male",
		TTSPolicy: dub.TTSPolicy{MaxRate: 1.3},
	}
}

func newEngine(t *testing.T, client tts.Client, audio tts.AudioProcessor) (*tts.Engine, string, string) {
	t.Helper()
	base := t.TempDir()
	cacheDir := filepath.Join(base, "cache")
	segmentsDir := filepath.Join(base, "segments")
	return tts.NewEngine(client, audio, cacheDir, 24000, "pcm", 2, nil), cacheDir, segmentsDir
}

func TestSynthesisWritesSegmentsAndIndex(t *testing.T) {
	client := &fakeClient{}
	engine, _, segmentsDir := newEngine(t, client, &fakeAudio{rawMs: 600})

	model := dubModel(uttFixture("utt_0001", "Hello.", 1000))
	index, report, err := engine.Run(context.Background(), model, snapshot(), segmentsDir)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	seg := index["utt_0001"]
	if seg.Status != tts.StatusSucceeded {
		t.Fatalf("unexpected status: %+v", seg)
	}
	if seg.VoiceID != "en_male_adam" {
		t.Fatalf("voice id missing: %+v", seg)
	}
	if seg.DurationMs != 1000 {
		t.Fatalf("padded duration should equal budget: %d", seg.DurationMs)
	}
	if seg.Rate != 1.0 {
		t.Fatalf("no compression expected: %v", seg.Rate)
	}
	if _, err := os.Stat(filepath.Join(segmentsDir, "utt_0001.wav")); err != nil {
		t.Fatalf("segment file missing: %v", err)
	}
	if report.Succeeded != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestCacheHitSkipsServiceCall(t *testing.T) {
	client := &fakeClient{}
	audio := &fakeAudio{rawMs: 600}
	engine, _, segmentsDir := newEngine(t, client, audio)

	model := dubModel(uttFixture("utt_0001", "Same line.", 1000))
	if _, _, err := engine.Run(context.Background(), model, snapshot(), segmentsDir); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(filepath.Join(segmentsDir, "utt_0001.wav"))
	if err != nil {
		t.Fatal(err)
	}

	// Second run with identical (text, voice, emotion) must not contact
	// the service and must produce byte-identical output.
	if _, _, err := engine.Run(context.Background(), model, snapshot(), segmentsDir); err != nil {
		t.Fatal(err)
	}
	if got := client.calls.Load(); got != 1 {
		t.Fatalf("expected exactly 1 service call, got %d", got)
	}
	second, err := os.ReadFile(filepath.Join(segmentsDir, "utt_0001.wav"))
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Fatal("cached synthesis produced different bytes")
	}
}

func TestContentHashChangesWithInputs(t *testing.T) {
	base := tts.ContentHash("Hello.", "voice_a", "")
	if tts.ContentHash("Hello.", "voice_b", "") == base {
		t.Fatal("voice change should change hash")
	}
	if tts.ContentHash("Hello!", "voice_a", "") == base {
		t.Fatal("text change should change hash")
	}
	if tts.ContentHash("Hello.", "voice_a", "angry") == base {
		t.Fatal("emotion change should change hash")
	}
}

func TestOverBudgetSegmentCompressed(t *testing.T) {
	// Raw 1200 ms against a 1000 ms budget: rate 1.2 <= 1.3, fits.
	engine, _, segmentsDir := newEngine(t, &fakeClient{}, &fakeAudio{rawMs: 1200})
	model := dubModel(uttFixture("utt_0001", "Long line.", 1000))

	index, _, err := engine.Run(context.Background(), model, snapshot(), segmentsDir)
	if err != nil {
		t.Fatal(err)
	}
	seg := index["utt_0001"]
	if seg.Rate < 1.19 || seg.Rate > 1.21 {
		t.Fatalf("expected rate about 1.2, got %v", seg.Rate)
	}
	if seg.DurationMs != 1000 {
		t.Fatalf("compressed segment should hit budget: %d", seg.DurationMs)
	}
}

func TestRateClampOverflowsBudget(t *testing.T) {
	// Raw 2000 ms against a 1000 ms budget needs rate 2.0; clamp to 1.3
	// and accept overflow (2000/1.3 = 1538 ms).
	engine, _, segmentsDir := newEngine(t, &fakeClient{}, &fakeAudio{rawMs: 2000})
	model := dubModel(uttFixture("utt_0001", "Very long line.", 1000))

	index, _, err := engine.Run(context.Background(), model, snapshot(), segmentsDir)
	if err != nil {
		t.Fatal(err)
	}
	seg := index["utt_0001"]
	if seg.Rate != 1.3 {
		t.Fatalf("expected clamped rate 1.3, got %v", seg.Rate)
	}
	if seg.DurationMs <= 1000 {
		t.Fatalf("expected overflow past budget, got %d", seg.DurationMs)
	}
	if seg.DurationMs != 1538 {
		t.Fatalf("expected 1538 ms, got %d", seg.DurationMs)
	}
}

func TestFailedSynthesisRecordsSilence(t *testing.T) {
	client := &fakeClient{err: context.DeadlineExceeded}
	engine, _, segmentsDir := newEngine(t, client, &fakeAudio{rawMs: 600})
	model := dubModel(uttFixture("utt_0001", "Doomed.", 1000))

	// The phase itself succeeds; the segment is failed with a silence blob.
	index, report, err := engine.Run(context.Background(), model, snapshot(), segmentsDir)
	if err != nil {
		t.Fatalf("per-item failure must not fail the run: %v", err)
	}
	seg := index["utt_0001"]
	if seg.Status != tts.StatusFailed {
		t.Fatalf("expected failed segment: %+v", seg)
	}
	if seg.DurationMs != 1000 {
		t.Fatalf("silence blob should cover the budget: %d", seg.DurationMs)
	}
	data, err := os.ReadFile(filepath.Join(segmentsDir, "utt_0001.wav"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "silence" {
		t.Fatalf("expected silence substitute, got %q", data)
	}
	if report.Failed != 1 {
		t.Fatalf("report should count the failure: %+v", report)
	}
}

func TestUnresolvedSpeakerFailsPerItem(t *testing.T) {
	engine, _, segmentsDir := newEngine(t, &fakeClient{}, &fakeAudio{rawMs: 600})
	utt := uttFixture("utt_0001", "Hi.", 800)
	utt.SpeakerID = "spk_unmapped"
	model := dubModel(utt)

	index, _, err := engine.Run(context.Background(), model, snapshot(), segmentsDir)
	if err != nil {
		t.Fatal(err)
	}
	if index["utt_0001"].Status != tts.StatusFailed {
		t.Fatalf("expected failed segment for unmapped speaker: %+v", index["utt_0001"])
	}
}

func TestConcurrentUtterancesAllComplete(t *testing.T) {
	client := &fakeClient{}
	engine, _, segmentsDir := newEngine(t, client, &fakeAudio{rawMs: 500})

	var utts []dub.Utterance
	for i := 0; i < 12; i++ {
		// Distinct text per utterance so each needs its own service call.
		utts = append(utts, uttFixture(
			fmt.Sprintf("utt_%04d", i+1), fmt.Sprintf("Line %d.", i+1), 900))
	}
	index, report, err := engine.Run(context.Background(), dubModel(utts...), snapshot(), segmentsDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(index) != 12 || report.Succeeded != 12 {
		t.Fatalf("expected 12 successful segments: %+v", report)
	}
	if client.calls.Load() != 12 {
		t.Fatalf("expected 12 service calls, got %d", client.calls.Load())
	}
}
