package tts

import (
	"redub/internal/fileutil"
)

// Segment status values in the segment index.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Segment is one entry of the segment index consumed by the mixer.
type Segment struct {
	WavPath     string  `json:"wav_path"`
	VoiceID     string  `json:"voice_id"`
	DurationMs  int     `json:"duration_ms"`
	Rate        float64 `json:"rate"`
	ContentHash string  `json:"content_hash"`
	Status      string  `json:"status"`
}

// Index maps utterance IDs to their synthesized segments.
type Index map[string]Segment

// SaveIndex persists the segment index atomically.
func SaveIndex(path string, idx Index) error {
	return fileutil.WriteJSONAtomic(path, idx)
}

// LoadIndex reads a segment index.
func LoadIndex(path string) (Index, error) {
	var idx Index
	if err := fileutil.ReadJSON(path, &idx); err != nil {
		return nil, err
	}
	return idx, nil
}

// SegmentReport records the per-segment fit decisions for the run report.
type SegmentReport struct {
	UttID     string  `json:"utt_id"`
	BudgetMs  int     `json:"budget_ms"`
	RawMs     int     `json:"raw_ms"`
	TrimmedMs int     `json:"trimmed_ms"`
	FinalMs   int     `json:"final_ms"`
	Rate      float64 `json:"rate"`
	Status    string  `json:"status"`
	CacheHit  bool    `json:"cache_hit"`
	Error     string  `json:"error,omitempty"`
}

// Report summarizes one synthesis run.
type Report struct {
	AudioDurationMs int             `json:"audio_duration_ms"`
	Total           int             `json:"total"`
	Succeeded       int             `json:"succeeded"`
	Failed          int             `json:"failed"`
	CacheHits       int             `json:"cache_hits"`
	Segments        []SegmentReport `json:"segments"`
}

// SaveReport persists the report atomically.
func SaveReport(path string, r *Report) error {
	return fileutil.WriteJSONAtomic(path, r)
}
