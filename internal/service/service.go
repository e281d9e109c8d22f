// Package service exposes the synthesis adapter over the message bus.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dopplio/aeneas/internal/bus"
	"github.com/dopplio/aeneas/internal/config"
	"github.com/dopplio/aeneas/internal/history"
	"github.com/dopplio/aeneas/internal/protocol"
	"github.com/dopplio/aeneas/internal/synth"
	"github.com/dopplio/aeneas/internal/voice"
	"github.com/dopplio/aeneas/internal/wave"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

type Service struct {
	cfg      config.ServiceConfig
	provider config.ProviderConfig
	bus      *bus.Client
	synth    synth.Synthesizer
	hist     *history.Store
	sub      *nats.Subscription
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   *slog.Logger
}

func New(parent context.Context, cfg config.ServiceConfig, provider config.ProviderConfig, busClient *bus.Client, synthesizer synth.Synthesizer, hist *history.Store, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:      cfg,
		provider: provider,
		bus:      busClient,
		synth:    synthesizer,
		hist:     hist,
		ctx:      ctx,
		cancel:   cancel,
		logger:   log.With(slog.String("component", "synth-service")),
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectSynthRequest, s.handleRequest)
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return !s.cfg.Enabled || s.sub != nil }

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.SynthesisRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode synthesis request", slogError(err))
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.Language == "" {
		req.Language = s.cfg.DefaultLanguage
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(s.ctx, 120*time.Second)
		defer cancel()

		res, err := s.synth.Synthesize(ctx, synth.Request{Text: req.Text, Language: req.Language})
		s.record(ctx, req, s.voiceFor(req.Language), res, err)
		if err != nil {
			s.logger.Warn("synthesis failed",
				slog.String("request_id", req.RequestID),
				slog.String("class", errorClass(err)),
				slogError(err))
			s.publishStatus(req, protocol.SynthesisStatus{
				RequestID: req.RequestID,
				Target:    req.Target,
				Error:     err.Error(),
				Timestamp: time.Now().UTC(),
			})
			return
		}

		s.publishAudio(req, res)
		s.publishStatus(req, protocol.SynthesisStatus{
			RequestID:  req.RequestID,
			Target:     req.Target,
			Completed:  true,
			DurationMS: res.Duration.Milliseconds(),
			Timestamp:  time.Now().UTC(),
		})
	}()
}

// publishAudio splits the sample buffer into fixed-duration PCM chunks.
func (s *Service) publishAudio(req protocol.SynthesisRequest, res synth.Result) {
	chunkFrames := res.SampleRate * s.cfg.ChunkDurationMS / 1000
	if chunkFrames <= 0 {
		chunkFrames = len(res.Samples)
	}
	if chunkFrames <= 0 {
		chunkFrames = 1
	}

	sequence := 0
	for start := 0; start < len(res.Samples) || sequence == 0; start += chunkFrames {
		end := start + chunkFrames
		if end > len(res.Samples) {
			end = len(res.Samples)
		}
		chunk := protocol.AudioChunk{
			RequestID:  req.RequestID,
			Target:     req.Target,
			Sequence:   sequence,
			SampleRate: res.SampleRate,
			Channels:   1,
			PCM:        wave.PCM16Bytes(res.Samples[start:end]),
			Final:      end >= len(res.Samples),
		}
		data, err := json.Marshal(chunk)
		if err != nil {
			s.logger.Warn("failed to marshal audio chunk", slogError(err))
			return
		}
		if err := s.bus.Conn().Publish(protocol.SubjectSynthAudio, data); err != nil {
			s.logger.Warn("failed to publish audio chunk", slogError(err))
			return
		}
		sequence++
	}
}

func (s *Service) publishStatus(req protocol.SynthesisRequest, status protocol.SynthesisStatus) {
	data, err := json.Marshal(status)
	if err != nil {
		s.logger.Warn("failed to marshal synthesis status", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectSynthDone, data); err != nil {
		s.logger.Warn("failed to publish synthesis status", slogError(err))
	}
}

// voiceFor mirrors the adapter's resolution order: configured override
// first, then the language catalog. Unknown languages leave the voice
// blank in the record; the synthesis error carries the cause.
func (s *Service) voiceFor(language string) string {
	if s.provider.VoiceID != "" {
		return s.provider.VoiceID
	}
	name, err := voice.Resolve(language)
	if err != nil {
		return ""
	}
	return name
}

func (s *Service) record(ctx context.Context, req protocol.SynthesisRequest, voiceID string, res synth.Result, synthErr error) {
	if s.hist == nil {
		return
	}
	rec := history.Record{
		RequestID: req.RequestID,
		Language:  req.Language,
		Voice:     voiceID,
		TextChars: len(req.Text),
		Status:    "ok",
	}
	if synthErr != nil {
		rec.Status = "error"
		rec.ErrorClass = errorClass(synthErr)
	} else {
		rec.DurationMS = res.Duration.Milliseconds()
	}
	if err := s.hist.Append(ctx, rec); err != nil {
		s.logger.Warn("failed to record synthesis call", slogError(err))
	}
}

func errorClass(err error) string {
	switch {
	case errors.Is(err, synth.ErrConfiguration):
		return "configuration"
	case errors.Is(err, synth.ErrNetwork):
		return "network"
	case errors.Is(err, synth.ErrSynthesis):
		return "synthesis"
	case errors.Is(err, synth.ErrTranscode):
		return "transcode"
	case errors.Is(err, synth.ErrIO):
		return "io"
	default:
		return "internal"
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
