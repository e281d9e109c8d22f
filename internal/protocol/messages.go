package protocol

import "time"

// SynthesisRequest asks the daemon to synthesize one utterance.
type SynthesisRequest struct {
	RequestID string `json:"request_id"`
	Text      string `json:"text"`
	Language  string `json:"language,omitempty"`
	Target    string `json:"target,omitempty"`
}

// AudioChunk carries a slice of normalized PCM16 synthesis output.
type AudioChunk struct {
	RequestID  string `json:"request_id"`
	Target     string `json:"target,omitempty"`
	Sequence   int    `json:"sequence"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	PCM        []byte `json:"pcm"`
	Final      bool   `json:"final"`
}

// SynthesisStatus reports completion or failure of a request.
type SynthesisStatus struct {
	RequestID  string    `json:"request_id"`
	Target     string    `json:"target,omitempty"`
	Completed  bool      `json:"completed"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

const (
	SubjectSynthRequest = "synth.request"
	SubjectSynthAudio   = "synth.audio"
	SubjectSynthDone    = "synth.done"
)
