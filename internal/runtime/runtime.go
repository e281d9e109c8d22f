package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dopplio/aeneas/internal/bus"
	"github.com/dopplio/aeneas/internal/config"
	"github.com/dopplio/aeneas/internal/history"
	"github.com/dopplio/aeneas/internal/natsserver"
	"github.com/dopplio/aeneas/internal/service"
	"github.com/dopplio/aeneas/internal/synth"
	"github.com/dopplio/aeneas/internal/transcode"
)

// Runtime wires the synthesis service, bus, history store, and
// telemetry into one daemon lifecycle.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	embedded    *natsserver.EmbeddedServer
	busClient   *bus.Client
	hist        *history.Store
	svc         *service.Service
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	if r.cfg.Service.Enabled {
		if err := r.startService(ctx); err != nil {
			return err
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	r.teardownService()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

// startService brings up the bus, history store, and synthesis
// service. Any failure tears down whatever already started.
func (r *Runtime) startService(ctx context.Context) error {
	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("start embedded bus: %w", err)
	}
	r.embedded = embedded

	busClient, err := bus.Connect(ctx, r.cfg.Bus, r.logger)
	if err != nil {
		r.teardownService()
		return fmt.Errorf("connect to bus: %w", err)
	}
	r.busClient = busClient

	hist, err := history.Open(ctx, r.cfg.History, r.logger)
	if err != nil {
		r.teardownService()
		return fmt.Errorf("open history store: %w", err)
	}
	r.hist = hist

	synthesizer, err := r.buildSynthesizer()
	if err != nil {
		r.teardownService()
		return err
	}

	r.svc = service.New(ctx, r.cfg.Service, r.cfg.Provider, busClient, synthesizer, hist, r.logger)
	if err := r.svc.Start(); err != nil {
		r.teardownService()
		return fmt.Errorf("start synthesis service: %w", err)
	}
	return nil
}

// teardownService stops service resources in reverse start order. Safe
// to call with any subset started.
func (r *Runtime) teardownService() {
	if r.svc != nil {
		r.svc.Close()
		r.svc = nil
	}
	r.busClient.Close()
	r.busClient = nil
	if r.hist != nil {
		if err := r.hist.Close(); err != nil {
			r.logger.Error("history close error", slog.String("error", err.Error()))
		}
		r.hist = nil
	}
	r.embedded.Shutdown()
	r.embedded = nil
}

func (r *Runtime) buildSynthesizer() (synth.Synthesizer, error) {
	switch r.cfg.Service.Mode {
	case "mock":
		return synth.NewMock(r.cfg.Provider.SampleRate), nil
	case "elevenlabs":
		trans, err := transcode.NewFFmpeg(r.cfg.Transcoder.Command, r.cfg.Transcoder.TempDir, r.logger)
		if err != nil {
			return nil, fmt.Errorf("build transcoder: %w", err)
		}
		adapter, err := synth.NewElevenLabs(r.cfg.Provider, trans, r.logger)
		if err != nil {
			return nil, fmt.Errorf("build synthesizer: %w", err)
		}
		return adapter, nil
	default:
		return nil, fmt.Errorf("unknown service mode %q", r.cfg.Service.Mode)
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	ready := r.ready.Load()
	if r.cfg.Service.Enabled {
		ready = ready && r.busClient.Healthy() && r.svc != nil && r.svc.Healthy()
	}
	if ready {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
