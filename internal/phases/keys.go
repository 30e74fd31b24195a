// Package phases implements the nine pipeline phases: demux, separate,
// recognize, subtitle, translate, align, synthesize, mix, burn. Each phase
// declares its artifact keys and workspace-relative paths; the runner owns
// everything else.
package phases

import "redub/internal/pipeline"

// Artifact keys, in "domain.object" form.
const (
	KeyVideo          = pipeline.KeySourceVideo
	KeySourceAudio    = "demux.audio"
	KeyVocals         = "separate.vocals"
	KeyAccompaniment  = "separate.accompaniment"
	KeyRecognitionRaw = "asr.raw"
	KeySubtitleModel  = "subtitle.model"
	KeyZhSRT          = "subtitle.zh_srt"
	KeyMTInput        = "mt.input"
	KeyMTOutput       = "mt.output"
	KeyDubModel       = "dub.model"
	KeySubtitleAlign  = "align.subtitle"
	KeyEnSRT          = "align.en_srt"
	KeySegmentsDir    = "tts.segments"
	KeySegmentIndex   = "tts.index"
	KeyTTSReport      = "tts.report"
	KeyVoiceSnapshot  = "tts.voices"
	KeyMixAudio       = "mix.audio"
	KeyDubbedVideo    = "burn.video"
)

// Workspace-relative artifact paths.
const (
	PathSourceAudio    = "audio/source.wav"
	PathVocals         = "audio/vocals.wav"
	PathAccompaniment  = "audio/accompaniment.wav"
	PathRecognitionRaw = "source/recognition_raw.json"
	PathSubtitleModel  = "source/subtitle_model.json"
	PathDubModel       = "source/dub_model.json"
	PathSubtitleAlign  = "derive/subtitle_align.json"
	PathVoiceSnapshot  = "derive/voice_assignment.json"
	PathMTInput        = "mt/input.jsonl"
	PathMTOutput       = "mt/output.jsonl"
	PathSegmentsDir    = "tts/segments"
	PathSegmentIndex   = "tts/segments.json"
	PathTTSReport      = "tts/report.json"
	PathZhSRT          = "render/zh.srt"
	PathEnSRT          = "render/en.srt"
	PathMixAudio       = "audio/mix.wav"
	PathDubbedVideo    = "render/dubbed.mp4"
)
