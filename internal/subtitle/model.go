package subtitle

// Schema identifies a persisted document layout.
type Schema struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// AudioInfo describes the source audio the model was built from.
type AudioInfo struct {
	Lang       string `json:"lang"`
	DurationMs int    `json:"duration_ms"`
}

// Speaker carries per-utterance speaker metadata. Gender originates from
// the recognition response and flows unchanged into the dub model.
type Speaker struct {
	ID         string  `json:"id"`
	Gender     string  `json:"gender"`
	SpeechRate float64 `json:"speech_rate,omitempty"`
	Emotion    string  `json:"emotion,omitempty"`
}

// CueText is the text payload of one cue.
type CueText struct {
	Lang string `json:"lang"`
	Text string `json:"text"`
}

// Cue is one display window within an utterance.
type Cue struct {
	StartMs int     `json:"start_ms"`
	EndMs   int     `json:"end_ms"`
	Source  CueText `json:"source"`
}

// Utterance is the atomic unit of the subtitle model: a contiguous
// single-speaker span of speech.
type Utterance struct {
	UttID   string  `json:"utt_id"`
	Speaker Speaker `json:"speaker"`
	StartMs int     `json:"start_ms"`
	EndMs   int     `json:"end_ms"`
	Text    string  `json:"text"`
	Cues    []Cue   `json:"cues"`
}

// Model is the subtitle document: the first single source of truth. It may
// be hand-edited between runs; downstream phases re-derive from it.
type Model struct {
	Schema     Schema      `json:"schema"`
	Audio      AudioInfo   `json:"audio"`
	Utterances []Utterance `json:"utterances"`
}

// SchemaName and SchemaVersion identify the subtitle model layout.
const (
	SchemaName    = "subtitle.model"
	SchemaVersion = "1.2"
)
