package asr_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"context"
	"time"

	"redub/internal/asr"
)

const sampleResponse = `{
  "code": 20000000,
  "audio_info": {"duration": 12500},
  "result": {
    "text": "你好，世界。",
    "utterances": [
      {
        "text": "你好，世界。",
        "start_time": 0,
        "end_time": 900,
        "additions": {"speaker": "1", "gender": "male", "emotion": "neutral", "confidence": 0.97},
        "words": [
          {"text": "你好", "start_time": 0, "end_time": 400, "additions": {"speaker": "1"}},
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

func TestParseExtractsWordsAndGenders(t *testing.T) {
	res, err := asr.Parse([]byte(sampleResponse))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if len(res.Words) != 3 {
		t.Fatalf("expected 3 words, got %d", len(res.Words))
	}
	if res.Words[0].SpeakerID != "spk_1" {
		t.Fatalf("unexpected speaker: %q", res.Words[0].SpeakerID)
	}
	// The second word has no per-word speaker; it inherits the utterance's.
	if res.Words[1].SpeakerID != "spk_1" {
		t.Fatalf("word should inherit utterance speaker, got %q", res.Words[1].SpeakerID)
	}
	if res.Words[2].SpeakerID != "spk_2" {
		t.Fatalf("unexpected third speaker: %q", res.Words[2].SpeakerID)
	}

	if res.SpeakerGender["spk_1"] != asr.GenderMale {
		t.Fatalf("speaker 1 gender: %q", res.SpeakerGender["spk_1"])
	}
	if res.SpeakerGender["spk_2"] != asr.GenderFemale {
		t.Fatalf("speaker 2 gender: %q", res.SpeakerGender["spk_2"])
	}

	if len(res.Utterances) != 2 {
		t.Fatalf("expected 2 provider utterances, got %d", len(res.Utterances))
	}
	if res.Utterances[0].Text != "你好，世界。" {
		t.Fatalf("provider text lost: %q", res.Utterances[0].Text)
	}
	if res.Utterances[0].Emotion != "neutral" {
		t.Fatalf("emotion lost: %q", res.Utterances[0].Emotion)
	}
	if res.DurationMs != 12500 {
		t.Fatalf("expected audio_info duration, got %d", res.DurationMs)
	}
}

func TestParseRejectsShapelessJSON(t *testing.T) {
	if _, err := asr.Parse([]byte(`{"result": {}}`)); err == nil {
		t.Fatal("expected error for response without utterances")
	}
	if _, err := asr.Parse([]byte(`not json`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseUnknownGenderNormalized(t *testing.T) {
	body := `{"result":{"utterances":[{"text":"x","start_time":0,"end_time":100,
		"additions":{"speaker":"3","gender":"robot"},
		"words":[{"text":"x","start_time":0,"end_time":100}]}]}}`
	res, err := asr.Parse([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	if res.SpeakerGender["spk_3"] != asr.GenderUnknown {
		t.Fatalf("expected unknown gender, got %q", res.SpeakerGender["spk_3"])
	}
}

func TestRecognizeSubmitsAndPolls(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/submit":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"code":20000001}`))
		case "/query":
			if polls.Add(1) < 3 {
				w.Write([]byte(`{"code":20000001,"message":"processing"}`))
				return
			}
			w.Write([]byte(sampleResponse))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := asr.NewClient(asr.Config{
		AppID:        "app",
		Token:        "token",
		BaseURL:      server.URL,
		Preset:       "asr_spk_semantic",
		Language:     "zh-CN",
		PollInterval: time.Millisecond,
		PollDeadline: time.Second,
	}, asr.WithSleeper(func(ctx context.Context, d time.Duration) error { return nil }))

	raw, err := client.Recognize(context.Background(), "https://example.com/audio.wav")
	if err != nil {
		t.Fatalf("Recognize returned error: %v", err)
	}
	if polls.Load() != 3 {
		t.Fatalf("expected 3 polls, got %d", polls.Load())
	}
	if _, err := asr.Parse(raw); err != nil {
		t.Fatalf("returned payload should parse: %v", err)
	}
}

func TestRecognizePermanentFailureStopsPolling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/submit":
			w.Write([]byte(`{"code":20000001}`))
		case "/query":
			w.Write([]byte(`{"code":45000001,"message":"audio fetch failed"}`))
		}
	}))
	defer server.Close()

	client := asr.NewClient(asr.Config{
		AppID:        "app",
		Token:        "token",
		BaseURL:      server.URL,
		PollInterval: time.Millisecond,
		PollDeadline: time.Second,
	}, asr.WithSleeper(func(ctx context.Context, d time.Duration) error { return nil }))

	if _, err := client.Recognize(context.Background(), "https://example.com/a.wav"); err == nil {
		t.Fatal("expected permanent provider failure")
	}
}
