package synth

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dopplio/aeneas/internal/wave"
)

func TestMockSynthesize(t *testing.T) {
	m := NewMock(16000)
	res, err := m.Synthesize(context.Background(), Request{Text: "hello"})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if res.SampleRate != 16000 || res.Format != FormatPCM16 {
		t.Fatalf("unexpected result contract: %d %q", res.SampleRate, res.Format)
	}
	if len(res.Samples) != 5 {
		t.Fatalf("expected one frame per text byte, got %d", len(res.Samples))
	}
	if res.Duration <= 0 {
		t.Fatalf("duration = %v, want > 0", res.Duration)
	}
}

func TestMockWritesOutput(t *testing.T) {
	m := NewMock(16000)
	out := filepath.Join(t.TempDir(), "mock.wav")
	if _, err := m.Synthesize(context.Background(), Request{Text: "hi", OutputPath: out}); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	data, err := readWav(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if data.SampleRate != 16000 || data.Channels != 1 {
		t.Fatalf("output is %d Hz %d-channel, want 16000 Hz mono", data.SampleRate, data.Channels)
	}
}

func readWav(path string) (*wave.Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return wave.Decode(data)
}
