package synth

import (
	"context"
	"time"
)

// FormatPCM16 is the only sample format the adapter produces.
const FormatPCM16 = "pcm16"

// Request asks for one utterance to be synthesized.
type Request struct {
	Text     string
	Language string
	// OutputPath, when set, additionally persists the canonical WAVE
	// bytes at that path.
	OutputPath string
}

// Result is normalized synthesis output: PCM16 mono at the configured
// sample rate regardless of what the provider returned.
type Result struct {
	Duration   time.Duration
	SampleRate int
	Format     string
	// Samples holds normalized amplitudes in [-1, 1], one per frame.
	Samples []float64
}

// Synthesizer is the contract for producing aligned-ready audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (Result, error)
}
