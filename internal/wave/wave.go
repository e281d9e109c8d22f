// Package wave handles PCM16 WAVE framing for synthesized speech:
// decoding provider output into normalized float samples and encoding
// sample buffers back into canonical mono WAVE files.
package wave

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Clip is a decoded PCM16 audio buffer. Samples are normalized
// amplitudes in [-1, 1], interleaved when Channels > 1.
type Clip struct {
	SampleRate int
	Channels   int
	Frames     int
	Samples    []float64
}

// Duration is derived from decoded frame count, never from byte or
// path lengths.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(c.Frames) / float64(c.SampleRate) * float64(time.Second))
}

// Decode parses WAVE bytes into a Clip, dividing each signed 16-bit
// sample by 32768.
func Decode(data []byte) (*Clip, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("decode wav: missing format header")
	}
	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}
	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float64(int16(v)) / 32768
	}
	return &Clip{
		SampleRate: buf.Format.SampleRate,
		Channels:   channels,
		Frames:     len(samples) / channels,
		Samples:    samples,
	}, nil
}

// Encode writes normalized samples as a mono 16-bit WAVE file.
func Encode(samples []float64, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("encode wav: invalid sample rate %d", sampleRate)
	}
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:   make([]int, len(samples)),
	}
	for i, s := range samples {
		buf.Data[i] = int(quantize(s))
	}

	var ws seekBuffer
	enc := wav.NewEncoder(&ws, sampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav encoder: %w", err)
	}
	return ws.data, nil
}

// PCM16Bytes packs normalized samples as raw little-endian 16-bit PCM.
func PCM16Bytes(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := quantize(s)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

func quantize(s float64) int16 {
	v := s * 32768
	if v > 32767 {
		v = 32767
	}
	if v < -32768 {
		v = -32768
	}
	return int16(v)
}

// seekBuffer is an in-memory io.WriteSeeker; the wav encoder seeks back
// to patch RIFF chunk sizes on Close.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.data) {
		grown := make([]byte, need)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(b.pos) + offset
	case io.SeekEnd:
		pos = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("seek: negative position")
	}
	b.pos = int(pos)
	return pos, nil
}
