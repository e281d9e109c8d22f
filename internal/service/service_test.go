package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dopplio/aeneas/internal/bus"
	"github.com/dopplio/aeneas/internal/config"
	"github.com/dopplio/aeneas/internal/history"
	"github.com/dopplio/aeneas/internal/natsserver"
	"github.com/dopplio/aeneas/internal/protocol"
	"github.com/dopplio/aeneas/internal/synth"
	"github.com/nats-io/nats.go"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startBus runs an embedded NATS server on a random port and connects
// a client to it.
func startBus(t *testing.T) *bus.Client {
	t.Helper()

	srv, err := natsserver.Start(config.BusConfig{Embedded: true, Port: -1}, testLogger())
	if err != nil {
		t.Fatalf("start embedded server: %v", err)
	}
	t.Cleanup(srv.Shutdown)

	client, err := bus.Connect(context.Background(), config.BusConfig{
		Servers:        []string{srv.ClientURL()},
		ConnectTimeout: 2000,
	}, testLogger())
	if err != nil {
		t.Fatalf("connect to embedded server: %v", err)
	}
	t.Cleanup(client.Close)

	return client
}

func openHistory(t *testing.T) *history.Store {
	t.Helper()

	hist, err := history.Open(context.Background(), config.HistoryConfig{
		Path:          filepath.Join(t.TempDir(), "history.db"),
		RetentionMode: "persistent",
		RetentionDays: 30,
		MaxRecords:    100,
	}, testLogger())
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { hist.Close() })

	return hist
}

func startService(t *testing.T, client *bus.Client, synthesizer synth.Synthesizer, hist *history.Store) *Service {
	t.Helper()

	cfg := config.ServiceConfig{
		Enabled:         true,
		Mode:            "mock",
		DefaultLanguage: "eng-USA",
		ChunkDurationMS: 1,
	}
	svc := New(context.Background(), cfg, config.ProviderConfig{}, client, synthesizer, hist, testLogger())
	if err := svc.Start(); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Close)

	return svc
}

func subscribe(t *testing.T, client *bus.Client, subject string) chan *nats.Msg {
	t.Helper()

	ch := make(chan *nats.Msg, 32)
	if _, err := client.Conn().ChanSubscribe(subject, ch); err != nil {
		t.Fatalf("subscribe %s: %v", subject, err)
	}
	return ch
}

func publishRequest(t *testing.T, client *bus.Client, req protocol.SynthesisRequest) {
	t.Helper()

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	if err := client.Conn().Publish(protocol.SubjectSynthRequest, data); err != nil {
		t.Fatalf("publish request: %v", err)
	}
	if err := client.Conn().Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func waitStatus(t *testing.T, ch chan *nats.Msg) protocol.SynthesisStatus {
	t.Helper()

	select {
	case msg := <-ch:
		var status protocol.SynthesisStatus
		if err := json.Unmarshal(msg.Data, &status); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		return status
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for synthesis status")
	}
	return protocol.SynthesisStatus{}
}

func TestServiceChunksAudioAndRecordsCall(t *testing.T) {
	client := startBus(t)
	hist := openHistory(t)

	svc := startService(t, client, synth.NewMock(16000), hist)
	defer svc.Close()

	audioCh := subscribe(t, client, protocol.SubjectSynthAudio)
	doneCh := subscribe(t, client, protocol.SubjectSynthDone)
	if err := client.Conn().Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	// 40 text bytes make 40 mock frames; at 16 kHz a 1 ms chunk holds
	// 16 frames, so the stream splits 16/16/8.
	publishRequest(t, client, protocol.SynthesisRequest{
		RequestID: "req-chunks",
		Text:      strings.Repeat("a", 40),
	})

	var chunks []protocol.AudioChunk
	for len(chunks) == 0 || !chunks[len(chunks)-1].Final {
		select {
		case msg := <-audioCh:
			var chunk protocol.AudioChunk
			if err := json.Unmarshal(msg.Data, &chunk); err != nil {
				t.Fatalf("decode chunk: %v", err)
			}
			chunks = append(chunks, chunk)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out after %d chunks", len(chunks))
		}
	}

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	wantFrames := []int{16, 16, 8}
	totalBytes := 0
	for i, chunk := range chunks {
		if chunk.RequestID != "req-chunks" {
			t.Fatalf("chunk %d request id = %q", i, chunk.RequestID)
		}
		if chunk.Sequence != i {
			t.Fatalf("chunk %d sequence = %d", i, chunk.Sequence)
		}
		if chunk.SampleRate != 16000 || chunk.Channels != 1 {
			t.Fatalf("chunk %d format = %d Hz %d ch", i, chunk.SampleRate, chunk.Channels)
		}
		if got := len(chunk.PCM) / 2; got != wantFrames[i] {
			t.Fatalf("chunk %d holds %d frames, want %d", i, got, wantFrames[i])
		}
		if chunk.Final != (i == len(chunks)-1) {
			t.Fatalf("chunk %d final = %v", i, chunk.Final)
		}
		totalBytes += len(chunk.PCM)
	}
	if totalBytes != 80 {
		t.Fatalf("total PCM bytes = %d, want 80", totalBytes)
	}

	status := waitStatus(t, doneCh)
	if !status.Completed {
		t.Fatalf("status not completed: %+v", status)
	}
	if status.RequestID != "req-chunks" {
		t.Fatalf("status request id = %q", status.RequestID)
	}
	if status.Error != "" {
		t.Fatalf("unexpected status error %q", status.Error)
	}

	records, err := hist.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d history records, want 1", len(records))
	}
	rec := records[0]
	if rec.RequestID != "req-chunks" {
		t.Fatalf("record request id = %q", rec.RequestID)
	}
	if rec.Language != "eng-USA" {
		t.Fatalf("record language = %q", rec.Language)
	}
	if rec.Voice != "Joanna" {
		t.Fatalf("record voice = %q, want Joanna", rec.Voice)
	}
	if rec.TextChars != 40 {
		t.Fatalf("record text chars = %d", rec.TextChars)
	}
	if rec.Status != "ok" || rec.ErrorClass != "" {
		t.Fatalf("record status = %q class = %q", rec.Status, rec.ErrorClass)
	}
}

type failingSynth struct{}

func (failingSynth) Synthesize(context.Context, synth.Request) (synth.Result, error) {
	return synth.Result{}, fmt.Errorf("no audio after retries: %w", synth.ErrSynthesis)
}

func TestServiceReportsSynthesisFailure(t *testing.T) {
	client := startBus(t)
	hist := openHistory(t)

	svc := startService(t, client, failingSynth{}, hist)
	defer svc.Close()

	audioCh := subscribe(t, client, protocol.SubjectSynthAudio)
	doneCh := subscribe(t, client, protocol.SubjectSynthDone)
	if err := client.Conn().Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	publishRequest(t, client, protocol.SynthesisRequest{
		RequestID: "req-fail",
		Text:      "hello",
		Language:  "spa-USA",
	})

	status := waitStatus(t, doneCh)
	if status.Completed {
		t.Fatalf("failed synthesis reported completed: %+v", status)
	}
	if status.RequestID != "req-fail" {
		t.Fatalf("status request id = %q", status.RequestID)
	}
	if status.Error == "" {
		t.Fatal("status carries no error")
	}

	select {
	case msg := <-audioCh:
		t.Fatalf("unexpected audio chunk after failure: %s", msg.Data)
	case <-time.After(200 * time.Millisecond):
	}

	records, err := hist.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d history records, want 1", len(records))
	}
	rec := records[0]
	if rec.Status != "error" || rec.ErrorClass != "synthesis" {
		t.Fatalf("record status = %q class = %q", rec.Status, rec.ErrorClass)
	}
	if rec.Voice != "Penelope" {
		t.Fatalf("record voice = %q, want Penelope", rec.Voice)
	}
}

func TestPublishAudioEmptyResult(t *testing.T) {
	client := startBus(t)

	svc := startService(t, client, synth.NewMock(16000), nil)
	defer svc.Close()

	audioCh := subscribe(t, client, protocol.SubjectSynthAudio)
	if err := client.Conn().Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	// An empty sample buffer still yields exactly one final chunk so
	// consumers always see end-of-stream.
	svc.publishAudio(protocol.SynthesisRequest{RequestID: "req-empty"}, synth.Result{
		SampleRate: 16000,
		Format:     synth.FormatPCM16,
	})
	if err := client.Conn().Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	select {
	case msg := <-audioCh:
		var chunk protocol.AudioChunk
		if err := json.Unmarshal(msg.Data, &chunk); err != nil {
			t.Fatalf("decode chunk: %v", err)
		}
		if chunk.Sequence != 0 || !chunk.Final || len(chunk.PCM) != 0 {
			t.Fatalf("empty result chunk = %+v", chunk)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the final chunk")
	}

	select {
	case msg := <-audioCh:
		t.Fatalf("unexpected extra chunk: %s", msg.Data)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestVoiceForOverride(t *testing.T) {
	svc := New(context.Background(), config.ServiceConfig{}, config.ProviderConfig{VoiceID: "custom"}, nil, nil, nil, testLogger())
	if got := svc.voiceFor("zzz-XXX"); got != "custom" {
		t.Fatalf("voiceFor with override = %q, want custom", got)
	}

	svc = New(context.Background(), config.ServiceConfig{}, config.ProviderConfig{}, nil, nil, nil, testLogger())
	if got := svc.voiceFor("eng-GBR"); got != "Emma" {
		t.Fatalf("voiceFor(eng-GBR) = %q, want Emma", got)
	}
	if got := svc.voiceFor("zzz-XXX"); got != "" {
		t.Fatalf("voiceFor(unknown) = %q, want empty", got)
	}
}

func TestErrorClass(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("resolve voice: %w", synth.ErrConfiguration), "configuration"},
		{fmt.Errorf("post: %w", synth.ErrNetwork), "network"},
		{synth.ErrSynthesis, "synthesis"},
		{fmt.Errorf("ffmpeg: %w", synth.ErrTranscode), "transcode"},
		{fmt.Errorf("write: %w", synth.ErrIO), "io"},
		{errors.New("something else"), "internal"},
	}
	for _, tc := range cases {
		if got := errorClass(tc.err); got != tc.want {
			t.Fatalf("errorClass(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
