package synth

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dopplio/aeneas/internal/wave"
)

type mockSynth struct {
	sampleRate int
}

// NewMock returns a Synthesizer that produces silence, one frame per
// text byte, for tests and dry-run deployments.
func NewMock(sampleRate int) Synthesizer {
	return &mockSynth{sampleRate: sampleRate}
}

func (m *mockSynth) Synthesize(ctx context.Context, req Request) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	frames := len(req.Text)
	if frames == 0 {
		frames = 1
	}
	samples := make([]float64, frames)

	if req.OutputPath != "" {
		data, err := wave.Encode(samples, m.sampleRate)
		if err != nil {
			return Result{}, fmt.Errorf("encode mock audio: %w", err)
		}
		if err := os.WriteFile(req.OutputPath, data, 0o644); err != nil {
			return Result{}, fmt.Errorf("%v: %w", err, ErrIO)
		}
	}

	return Result{
		Duration:   time.Duration(float64(frames) / float64(m.sampleRate) * float64(time.Second)),
		SampleRate: m.sampleRate,
		Format:     FormatPCM16,
		Samples:    samples,
	}, nil
}
