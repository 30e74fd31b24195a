package tts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"redub/internal/dub"
	"redub/internal/fileutil"
	"redub/internal/fingerprint"
	"redub/internal/logging"
	"redub/internal/voice"
)

// Version participates in the content hash; bump it when synthesis
// post-processing changes in a way that invalidates cached blobs.
const Version = 1

// AudioProcessor is the slice of the media toolchain the engine needs.
type AudioProcessor interface {
	PCMToWav(ctx context.Context, pcm, wav string, sampleRate int) error
	TrimSilence(ctx context.Context, in, out string) error
	PadTo(ctx context.Context, in, out string, targetMs int) error
	CompressTo(ctx context.Context, in, out string, rate float64, targetMs int) error
	Silence(ctx context.Context, out string, durationMs, sampleRate int) error
	DurationMs(ctx context.Context, path string) (int, error)
}

// Engine synthesizes dub-model utterances into per-utterance WAV segments,
// each independently fit to its budget.
type Engine struct {
	client     Client
	audio      AudioProcessor
	cacheDir   string
	sampleRate int
	format     string
	workers    int
	logger     *slog.Logger
}

// NewEngine builds a synthesis engine.
func NewEngine(client Client, audio AudioProcessor, cacheDir string, sampleRate int, format string, workers int, logger *slog.Logger) *Engine {
	if workers < 1 {
		workers = 4
	}
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		client:     client,
		audio:      audio,
		cacheDir:   cacheDir,
		sampleRate: sampleRate,
		format:     format,
		workers:    workers,
		logger:     logger,
	}
}

// ContentHash derives the cache key for an utterance's synthesized audio.
func ContentHash(textTarget, voiceID, emotion string) string {
	return fingerprint.String(strings.Join([]string{
		textTarget, voiceID, emotion, fmt.Sprintf("v%d", Version),
	}, "\x00"))
}

// Run synthesizes every utterance of the dub model into segmentsDir.
// Utterances are independent; up to the configured number of workers run
// concurrently. A per-utterance failure records status "failed" and a
// silence blob; it does not fail the phase.
func (e *Engine) Run(ctx context.Context, model *dub.Model, voices *voice.Snapshot, segmentsDir string) (Index, *Report, error) {
	if err := os.MkdirAll(segmentsDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create segments dir: %w", err)
	}
	if err := os.MkdirAll(e.cacheDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create cache dir: %w", err)
	}

	type slot struct {
		utt    dub.Utterance
		seg    Segment
		report SegmentReport
	}
	slots := make([]slot, len(model.Utterances))

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.workers)
	for i := range model.Utterances {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			utt := model.Utterances[i]
			seg, rep := e.synthesizeOne(ctx, utt, voices, segmentsDir)
			slots[i] = slot{utt: utt, seg: seg, report: rep}
		}(i)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	index := Index{}
	report := &Report{AudioDurationMs: model.AudioDurationMs}
	for _, s := range slots {
		if s.utt.UttID == "" {
			continue
		}
		index[s.utt.UttID] = s.seg
		report.Segments = append(report.Segments, s.report)
		report.Total++
		switch s.seg.Status {
		case StatusSucceeded:
			report.Succeeded++
		default:
			report.Failed++
		}
		if s.report.CacheHit {
			report.CacheHits++
		}
	}
	sort.Slice(report.Segments, func(i, j int) bool {
		return report.Segments[i].UttID < report.Segments[j].UttID
	})
	return index, report, nil
}

func (e *Engine) synthesizeOne(ctx context.Context, utt dub.Utterance, voices *voice.Snapshot, segmentsDir string) (Segment, SegmentReport) {
	segPath := filepath.Join(segmentsDir, utt.UttID+".wav")
	rel := filepath.Join("tts", "segments", utt.UttID+".wav")
	rep := SegmentReport{UttID: utt.UttID, BudgetMs: utt.BudgetMs, Rate: 1.0}

	// All writes to the declared segment path go through a temp file and a
	// rename, so cancellation never leaves partial output in place.
	commit := func(tmp string) error { return os.Rename(tmp, segPath) }
	staging := segPath + ".out.tmp"
	defer os.Remove(staging)

	fail := func(err error) (Segment, SegmentReport) {
		e.logger.Warn("segment synthesis failed",
			logging.String("utt_id", utt.UttID),
			logging.Error(err))
		rep.Status = StatusFailed
		rep.Error = err.Error()
		if silErr := e.audio.Silence(ctx, staging, utt.BudgetMs, e.sampleRate); silErr != nil {
			e.logger.Error("failed to write silence substitute",
				logging.String("utt_id", utt.UttID),
				logging.Error(silErr))
		} else if commitErr := commit(staging); commitErr != nil {
			e.logger.Error("failed to place silence substitute", logging.Error(commitErr))
		}
		return Segment{WavPath: rel, DurationMs: utt.BudgetMs, Rate: 1.0, Status: StatusFailed}, rep
	}

	assignment, ok := voices.Speakers[utt.SpeakerID]
	if !ok {
		return fail(fmt.Errorf("no voice resolved for speaker %s", utt.SpeakerID))
	}

	hash := ContentHash(utt.TextTarget, assignment.VoiceID, utt.Emotion)
	cachePath := filepath.Join(e.cacheDir, hash+".wav")

	raw := segPath + ".raw.tmp"
	defer os.Remove(raw)

	if _, err := os.Stat(cachePath); err == nil {
		rep.CacheHit = true
		if err := fileutil.CopyFile(cachePath, raw); err != nil {
			return fail(fmt.Errorf("copy cached blob: %w", err))
		}
	} else {
		audioBytes, err := e.client.Synthesize(ctx, Request{
			Text:    utt.TextTarget,
			VoiceID: assignment.VoiceID,
			Emotion: utt.Emotion,
		})
		if err != nil {
			return fail(err)
		}
		if e.format == "pcm" {
			pcm := segPath + ".pcm.tmp"
			if err := os.WriteFile(pcm, audioBytes, 0o644); err != nil {
				return fail(err)
			}
			defer os.Remove(pcm)
			if err := e.audio.PCMToWav(ctx, pcm, raw, e.sampleRate); err != nil {
				return fail(err)
			}
		} else {
			if err := os.WriteFile(raw, audioBytes, 0o644); err != nil {
				return fail(err)
			}
		}
		// Two workers computing the same hash may both write; the blobs
		// are byte-identical, so last completion winning is harmless.
		if err := fileutil.CopyFileAtomic(raw, cachePath); err != nil {
			return fail(fmt.Errorf("populate cache: %w", err))
		}
	}

	rawMs, err := e.audio.DurationMs(ctx, raw)
	if err != nil {
		return fail(err)
	}
	rep.RawMs = rawMs

	trimmed := segPath + ".trim.tmp"
	defer os.Remove(trimmed)
	if err := e.audio.TrimSilence(ctx, raw, trimmed); err != nil {
		return fail(err)
	}
	trimmedMs, err := e.audio.DurationMs(ctx, trimmed)
	if err != nil {
		return fail(err)
	}
	rep.TrimmedMs = trimmedMs

	maxRate := utt.TTSPolicy.MaxRate
	if maxRate < 1.0 || maxRate > 1.5 {
		maxRate = 1.3
	}

	finalMs := utt.BudgetMs
	rate := 1.0
	switch {
	case trimmedMs <= utt.BudgetMs:
		if err := e.audio.PadTo(ctx, trimmed, staging, utt.BudgetMs); err != nil {
			return fail(err)
		}
	default:
		rate = float64(trimmedMs) / float64(utt.BudgetMs)
		if rate > maxRate {
			// Accept overflow past the budget; the mixer truncates at
			// budget plus the permitted extension.
			rate = maxRate
			finalMs = int(float64(trimmedMs) / rate)
		}
		if err := e.audio.CompressTo(ctx, trimmed, staging, rate, finalMs); err != nil {
			return fail(err)
		}
	}
	if err := commit(staging); err != nil {
		return fail(err)
	}

	rep.FinalMs = finalMs
	rep.Rate = rate
	rep.Status = StatusSucceeded
	return Segment{
		WavPath:     rel,
		VoiceID:     assignment.VoiceID,
		DurationMs:  finalMs,
		Rate:        rate,
		ContentHash: hash,
		Status:      StatusSucceeded,
	}, rep
}
