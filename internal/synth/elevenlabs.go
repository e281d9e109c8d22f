package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dopplio/aeneas/internal/config"
	"github.com/dopplio/aeneas/internal/transcode"
	"github.com/dopplio/aeneas/internal/voice"
	"github.com/dopplio/aeneas/internal/wave"
)

// voice_settings values are serialized as strings, matching what the
// provider API accepts.
type voiceSettings struct {
	Stability       string `json:"stability"`
	SimilarityBoost string `json:"similarity_boost"`
}

type synthesisBody struct {
	Text          string        `json:"text"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// ElevenLabs synthesizes speech through the ElevenLabs HTTP API and
// normalizes the response to PCM16 mono via an external transcoder.
type ElevenLabs struct {
	cfg    config.ProviderConfig
	client *http.Client
	trans  transcode.Transcoder
	sleep  func(time.Duration)
	log    *slog.Logger
}

// NewElevenLabs validates provider config and returns an adapter.
func NewElevenLabs(cfg config.ProviderConfig, trans transcode.Transcoder, log *slog.Logger) (*ElevenLabs, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider api_key missing: %w", ErrConfiguration)
	}
	if cfg.Attempts < 1 {
		return nil, fmt.Errorf("retry_attempts must be >= 1: %w", ErrConfiguration)
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample_rate must be positive: %w", ErrConfiguration)
	}
	if cfg.TimeoutMS <= 0 {
		return nil, fmt.Errorf("request_timeout_ms must be positive: %w", ErrConfiguration)
	}
	if trans == nil {
		return nil, fmt.Errorf("transcoder required: %w", ErrConfiguration)
	}
	return &ElevenLabs{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond},
		trans:  trans,
		sleep:  time.Sleep,
		log:    log.With(slog.String("component", "synthesizer")),
	}, nil
}

// Synthesize posts text to the provider with a bounded retry loop,
// normalizes the returned audio, and decodes it into float samples.
func (e *ElevenLabs) Synthesize(ctx context.Context, req Request) (Result, error) {
	voiceID, err := e.resolveVoice(req.Language)
	if err != nil {
		return Result{}, err
	}

	payload, err := json.Marshal(synthesisBody{
		Text: req.Text,
		VoiceSettings: voiceSettings{
			Stability:       strconv.FormatFloat(e.cfg.Stability, 'f', -1, 64),
			SimilarityBoost: strconv.FormatFloat(e.cfg.SimilarityBoost, 'f', -1, 64),
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal synthesis request: %w", err)
	}

	raw, err := e.post(ctx, voiceID, payload)
	if err != nil {
		return Result{}, err
	}

	wavBytes, err := e.trans.Transcode(ctx, raw, e.cfg.SampleRate)
	if err != nil {
		return Result{}, fmt.Errorf("%v: %w", err, ErrTranscode)
	}
	clip, err := wave.Decode(wavBytes)
	if err != nil {
		return Result{}, fmt.Errorf("%v: %w", err, ErrTranscode)
	}

	if req.OutputPath != "" {
		if err := os.WriteFile(req.OutputPath, wavBytes, 0o644); err != nil {
			return Result{}, fmt.Errorf("%v: %w", err, ErrIO)
		}
	}

	e.log.Debug("synthesis complete",
		slog.String("voice", voiceID),
		slog.Int("frames", clip.Frames),
		slog.Duration("duration", clip.Duration()))

	return Result{
		Duration:   clip.Duration(),
		SampleRate: clip.SampleRate,
		Format:     FormatPCM16,
		Samples:    clip.Samples,
	}, nil
}

// resolveVoice prefers the configured voice-id override, falling back
// to the language catalog.
func (e *ElevenLabs) resolveVoice(language string) (string, error) {
	if e.cfg.VoiceID != "" {
		return e.cfg.VoiceID, nil
	}
	if language == "" {
		language = voice.DefaultLanguage
	}
	name, err := voice.Resolve(language)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, ErrConfiguration)
	}
	return name, nil
}

// post runs the attempt loop: sleep the throttle delay, POST, break on
// 200. Non-success responses consume an attempt and are logged as
// warnings; transport failures abort the call.
func (e *ElevenLabs) post(ctx context.Context, voiceID string, payload []byte) ([]byte, error) {
	url := strings.TrimSuffix(e.cfg.BaseURL, "/") + "/v1/text-to-speech/" + voiceID
	delay := time.Duration(e.cfg.SleepDelay * float64(time.Second))

	for attempts := e.cfg.Attempts; attempts > 0; attempts-- {
		e.sleep(delay)

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build synthesis request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("xi-api-key", e.cfg.APIKey)
		httpReq.Header.Set("Accept", fmt.Sprintf("audio/x-wav;codec=pcm;bit=16;rate=%d", e.cfg.SampleRate))

		resp, err := e.client.Do(httpReq)
		if err != nil {
			e.log.Error("synthesis POST failed", slog.String("error", err.Error()))
			return nil, fmt.Errorf("%v: %w", err, ErrNetwork)
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			if readErr != nil {
				return nil, fmt.Errorf("read synthesis response: %v: %w", readErr, ErrNetwork)
			}
			return body, nil
		}
		e.log.Warn("provider returned non-success status",
			slog.Int("status", resp.StatusCode),
			slog.Int("attempts_left", attempts-1))
	}
	return nil, ErrSynthesis
}
