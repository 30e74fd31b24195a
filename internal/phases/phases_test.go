package phases_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"redub/internal/config"
	"redub/internal/dub"
	"redub/internal/fileutil"
	"redub/internal/logging"
	"redub/internal/manifest"
	"redub/internal/media"
	"redub/internal/phases"
	"redub/internal/pipeline"
	"redub/internal/subtitle"
	"redub/internal/testsupport"
	"redub/internal/tts"
	"redub/internal/workspace"
)

const recognitionResponse = `{
  "code": 20000000,
  "audio_info": {"duration": 10000},
  "result": {
    "utterances": [
      {
        "text": "你好，世界。",
        "start_time": 0,
        "end_time": 900,
        "additions": {"speaker": "1", "gender": "male"},
        "words": [
          {"text": "你好", "start_time": 0, "end_time": 400},
          {"text": "世界", "start_time": 420, "end_time": 900}
        ]
      },
      {
        "text": "再见。",
        "start_time": 1500,
        "end_time": 2000,
        "additions": {"speaker": "2", "gender": "female"},
        "words": [
          {"text": "再见", "start_time": 1500, "end_time": 2000, "additions": {"speaker": "2"}}
        ]
      }
    ]
  }
}`

type fakeRecognizer struct{ calls int }

func (f *fakeRecognizer) Recognize(ctx context.Context, audioURL string) ([]byte, error) {
	f.calls++
	return []byte(recognitionResponse), nil
}

type fakeUploader struct{}

func (fakeUploader) Upload(ctx context.Context, localPath string) (string, error) {
	return "https://store.example.com/" + filepath.Base(localPath), nil
}

type fakeCompleter struct{ calls int }

// Complete returns a deterministic translation derived from the source
// text, so edits to the subtitle model propagate downstream like real
// translations would.
func (f *fakeCompleter) Complete(_ context.Context, _, user string) (string, error) {
	f.calls++
	source := user
	if start := strings.Index(user, "\""); start >= 0 {
		if end := strings.LastIndex(user, "\""); end > start {
			source = user[start+1 : end]
		}
	}
	out := "Okay."
	if strings.Contains(source, "你好") {
		out = "Hello, world."
	}
	if strings.Contains(source, "再见") {
		out = "Goodbye."
	}
	if strings.Contains(source, "改过的台词") {
		out = out + " Edited."
	}
	return out, nil
}

type fakeTTS struct{ calls int }

func (f *fakeTTS) Synthesize(_ context.Context, req tts.Request) ([]byte, error) {
	f.calls++
	return []byte("pcm:" + req.Text), nil
}

// fakeTools emulates ffmpeg/ffprobe: ffmpeg writes a file at the last
// argument whose content is derived from the input files, so content
// changes propagate through the toolchain like real transcodes; ffprobe
// reports half a second for any file.
func fakeTools() *media.Toolchain {
	return media.NewToolchain("ffmpeg", "ffprobe").
		WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
			if name == "ffprobe" {
				return []byte("0.500\n"), nil
			}
			sum := sha256.New()
			for i, a := range args {
				if a == "-i" && i+1 < len(args) {
					if data, err := os.ReadFile(args[i+1]); err == nil {
						sum.Write(data)
					}
				}
			}
			out := args[len(args)-1]
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return nil, err
			}
			content := "media:" + hex.EncodeToString(sum.Sum(nil))
			return nil, os.WriteFile(out, []byte(content), 0o644)
		})
}

func fakeSeparator() *media.Separator {
	return media.NewSeparator("demucs", "htdemucs", "cpu").
		WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
			var outDir, input string
			for i, a := range args {
				if a == "-o" && i+1 < len(args) {
					outDir = args[i+1]
				}
			}
			input = args[len(args)-1]
			stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
			produced := filepath.Join(outDir, "htdemucs", stem)
			if err := os.MkdirAll(produced, 0o755); err != nil {
				return nil, err
			}
			if err := os.WriteFile(filepath.Join(produced, "vocals.wav"), []byte("vocals"), 0o644); err != nil {
				return nil, err
			}
			return nil, os.WriteFile(filepath.Join(produced, "no_vocals.wav"), []byte("accompaniment"), 0o644)
		})
}

type fixture struct {
	ws         *workspace.Workspace
	m          *manifest.Manifest
	cfg        *config.Config
	phases     []pipeline.Phase
	recognizer *fakeRecognizer
	completer  *fakeCompleter
	ttsClient  *fakeTTS
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	video := filepath.Join(dir, "show", "ep01.mp4")
	if err := os.MkdirAll(filepath.Dir(video), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(video, []byte("video-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	ws, err := workspace.ForVideo(video, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.EnsureLayout(); err != nil {
		t.Fatal(err)
	}

	// Show-level registries: a mapped role for spk_1, gender fallback for
	// everyone else.
	writeJSON(t, ws.SpeakerToRolePath(), map[string]any{
		"schema":        "speaker_to_role.v1.1",
		"episodes":      map[string]any{"ep01": map[string]any{"spk_1": "Lead"}},
		"default_roles": map[string]any{"male": "Generic_Male", "female": "Generic_Female", "unknown": "Narrator"},
	})
	writeJSON(t, ws.RoleCastPath(), map[string]any{
		"schema": "role_cast.v1",
		"roles": map[string]any{
			"Lead":           "en_male_adam",
			"Generic_Male":   "en_male_bruce",
			"Generic_Female": "en_female_jenny",
			"Narrator":       "en_neutral_sam",
		},
	})

	m, err := manifest.Load(ws.ManifestPath())
	if err != nil {
		t.Fatal(err)
	}

	cfg := testsupport.NewConfig(t)
	f := &fixture{
		ws: ws, m: m, cfg: cfg,
		recognizer: &fakeRecognizer{},
		completer:  &fakeCompleter{},
		ttsClient:  &fakeTTS{},
	}
	f.phases = phases.Build(cfg, fakeTools(), fakeSeparator())
	for _, p := range f.phases {
		switch ph := p.(type) {
		case *phases.Recognize:
			ph.Client = f.recognizer
			ph.Uploader = fakeUploader{}
		case *phases.Translate:
			ph.Completer = f.completer
		case *phases.Synthesize:
			ph.Client = f.ttsClient
		}
	}
	return f
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	if err := fileutil.WriteJSONAtomic(path, v); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) runner() *pipeline.Runner {
	return pipeline.NewRunner(f.ws, f.m, f.cfg, config.Credentials{}, logging.NewNop(), f.phases)
}

func (f *fixture) run(t *testing.T, opts pipeline.Options) *pipeline.Summary {
	t.Helper()
	summary, err := f.runner().Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("pipeline run failed: %v", err)
	}
	return summary
}

func TestFullPipelineProducesAllArtifacts(t *testing.T) {
	f := newFixture(t)
	summary := f.run(t, pipeline.Options{})

	if summary.Ran() != 9 {
		t.Fatalf("expected 9 phases to run: %+v", summary)
	}
	for _, rel := range []string{
		phases.PathSourceAudio,
		phases.PathVocals,
		phases.PathAccompaniment,
		phases.PathRecognitionRaw,
		phases.PathSubtitleModel,
		phases.PathZhSRT,
		phases.PathMTInput,
		phases.PathMTOutput,
		phases.PathDubModel,
		phases.PathSubtitleAlign,
		phases.PathEnSRT,
		phases.PathSegmentIndex,
		phases.PathTTSReport,
		phases.PathVoiceSnapshot,
		phases.PathMixAudio,
		phases.PathDubbedVideo,
	} {
		if _, err := os.Stat(f.ws.Path(rel)); err != nil {
			t.Errorf("artifact %s missing: %v", rel, err)
		}
	}

	// The raw response is stored verbatim.
	raw, err := os.ReadFile(f.ws.Path(phases.PathRecognitionRaw))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != recognitionResponse {
		t.Fatal("raw recognition response was modified")
	}
}

func TestSecondRunSkipsEverything(t *testing.T) {
	f := newFixture(t)
	f.run(t, pipeline.Options{})

	summary := f.run(t, pipeline.Options{})
	if summary.Skipped() != 9 {
		t.Fatalf("expected all phases skipped: %+v", summary.Phases)
	}
	if f.recognizer.calls != 1 {
		t.Fatalf("recognition called again: %d", f.recognizer.calls)
	}
	if f.ttsClient.calls > 2 {
		t.Fatalf("synthesis called again: %d", f.ttsClient.calls)
	}
}

func TestGenderFlowsFromRecognitionToDubModel(t *testing.T) {
	f := newFixture(t)
	f.run(t, pipeline.Options{})

	var model dub.Model
	if err := fileutil.ReadJSON(f.ws.Path(phases.PathDubModel), &model); err != nil {
		t.Fatal(err)
	}
	genders := map[string]string{}
	for _, u := range model.Utterances {
		genders[u.SpeakerID] = u.Gender
	}
	if genders["spk_1"] != "male" || genders["spk_2"] != "female" {
		t.Fatalf("gender did not flow from recognition: %v", genders)
	}

	for i := 1; i < len(model.Utterances); i++ {
		if model.Utterances[i-1].EndMs > model.Utterances[i].StartMs {
			t.Fatal("dub model utterances overlap")
		}
	}
	for _, u := range model.Utterances {
		if u.BudgetMs != u.EndMs-u.StartMs {
			t.Fatalf("budget invariant broken: %+v", u)
		}
		if u.TTSPolicy.MaxRate < 1.0 || u.TTSPolicy.MaxRate > 1.5 {
			t.Fatalf("max rate out of range: %+v", u)
		}
	}
}

func TestEditWithoutBlessRerunsSubtitlePhase(t *testing.T) {
	f := newFixture(t)
	f.run(t, pipeline.Options{})

	modelPath := f.ws.Path(phases.PathSubtitleModel)
	editModelText(t, modelPath, "HAND EDITED")

	summary := f.run(t, pipeline.Options{})
	outcomes := outcomeByName(summary)
	if outcomes["subtitle"] != pipeline.OutcomeRan {
		t.Fatalf("subtitle should rerun after edit: %v", outcomes)
	}

	var model subtitle.Model
	if err := fileutil.ReadJSON(modelPath, &model); err != nil {
		t.Fatal(err)
	}
	for _, u := range model.Utterances {
		if strings.Contains(u.Text, "HAND EDITED") {
			t.Fatal("rerun should overwrite the manual edit")
		}
	}
}

func TestBlessRoundtrip(t *testing.T) {
	f := newFixture(t)
	f.run(t, pipeline.Options{})

	modelPath := f.ws.Path(phases.PathSubtitleModel)
	editModelText(t, modelPath, "改过的台词")
	if err := f.runner().Bless("subtitle"); err != nil {
		t.Fatalf("Bless returned error: %v", err)
	}

	summary := f.run(t, pipeline.Options{})
	outcomes := outcomeByName(summary)

	if outcomes["subtitle"] != pipeline.OutcomeSkipped {
		t.Fatalf("blessed subtitle phase should skip: %v", outcomes)
	}
	for _, name := range []string{"translate", "align", "synthesize", "mix", "burn"} {
		if outcomes[name] != pipeline.OutcomeRan {
			t.Fatalf("%s should rerun after blessed edit: %v", name, outcomes)
		}
	}
	for _, name := range []string{"demux", "separate", "recognize"} {
		if outcomes[name] != pipeline.OutcomeSkipped {
			t.Fatalf("%s should stay skipped: %v", name, outcomes)
		}
	}

	// The manual edit survived and flowed downstream.
	var model subtitle.Model
	if err := fileutil.ReadJSON(modelPath, &model); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(model.Utterances[0].Text, "改过的台词") {
		t.Fatal("manual edit lost after bless")
	}
	var dm dub.Model
	if err := fileutil.ReadJSON(f.ws.Path(phases.PathDubModel), &dm); err != nil {
		t.Fatal(err)
	}
	if dm.Utterances[0].TextSource != model.Utterances[0].Text {
		t.Fatal("edited text did not reach the dub model")
	}
}

func TestRunToStopsEarly(t *testing.T) {
	f := newFixture(t)
	summary := f.run(t, pipeline.Options{To: "subtitle"})
	if len(summary.Phases) != 4 {
		t.Fatalf("expected 4 phases considered: %+v", summary.Phases)
	}
	if _, err := os.Stat(f.ws.Path(phases.PathMTOutput)); err == nil {
		t.Fatal("translate must not run with --to subtitle")
	}
}

func TestVoiceSnapshotAuditsBranches(t *testing.T) {
	f := newFixture(t)
	f.run(t, pipeline.Options{})

	var snap struct {
		Speakers map[string]struct {
			RoleID  string `json:"role_id"`
			VoiceID string `json:"voice_id"`
			Source  string `json:"source"`
		} `json:"speakers"`
	}
	if err := fileutil.ReadJSON(f.ws.Path(phases.PathVoiceSnapshot), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Speakers["spk_1"].Source != "mapped" || snap.Speakers["spk_1"].VoiceID != "en_male_adam" {
		t.Fatalf("spk_1 should map through its role: %+v", snap.Speakers["spk_1"])
	}
	if snap.Speakers["spk_2"].Source != "gender_fallback" || snap.Speakers["spk_2"].VoiceID != "en_female_jenny" {
		t.Fatalf("spk_2 should fall back by gender: %+v", snap.Speakers["spk_2"])
	}
}

func outcomeByName(summary *pipeline.Summary) map[string]pipeline.Outcome {
	out := map[string]pipeline.Outcome{}
	for _, p := range summary.Phases {
		out[p.Name] = p.Status
	}
	return out
}

// editModelText appends marker text to the first utterance of a subtitle
// model on disk, preserving everything else.
func editModelText(t *testing.T, path, marker string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var model subtitle.Model
	if err := json.Unmarshal(data, &model); err != nil {
		t.Fatal(err)
	}
	model.Utterances[0].Text = model.Utterances[0].Text + marker
	writeJSONFile(t, path, model)
}

func writeJSONFile(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}
