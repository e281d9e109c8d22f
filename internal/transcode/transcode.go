// Package transcode normalizes provider audio into canonical PCM16
// mono WAVE by delegating to an external decoder process.
package transcode

import "context"

// Transcoder converts raw audio bytes into 16-bit mono PCM WAVE at the
// given sample rate.
type Transcoder interface {
	Transcode(ctx context.Context, raw []byte, sampleRate int) ([]byte, error)
}
