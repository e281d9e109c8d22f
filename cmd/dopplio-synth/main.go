// dopplio-synth synthesizes one utterance from the command line and
// writes it as a 16 kHz mono PCM16 WAVE file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/dopplio/aeneas/internal/config"
	"github.com/dopplio/aeneas/internal/synth"
	"github.com/dopplio/aeneas/internal/transcode"
	"github.com/dopplio/aeneas/internal/voice"
)

func main() {
	var (
		configPath string
		text       string
		language   string
		outPath    string
		listVoices bool
		useMock    bool
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file (optional; env vars apply either way)")
	flag.StringVar(&text, "text", "", "Text to synthesize")
	flag.StringVar(&language, "language", voice.DefaultLanguage, "Language code (see -voices)")
	flag.StringVar(&outPath, "out", "out.wav", "Output WAVE file path")
	flag.BoolVar(&listVoices, "voices", false, "List supported language codes and exit")
	flag.BoolVar(&useMock, "mock", false, "Use the mock synthesizer instead of the remote provider")
	flag.Parse()

	if listVoices {
		for _, code := range voice.Supported() {
			name, _ := voice.Resolve(code)
			fmt.Printf("%s\t%s\n", code, name)
		}
		return
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if text == "" {
		logger.Error("no text given; use -text")
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	synthesizer, err := buildSynthesizer(cfg, useMock, logger)
	if err != nil {
		logger.Error("failed to build synthesizer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	res, err := synthesizer.Synthesize(context.Background(), synth.Request{
		Text:       text,
		Language:   language,
		OutputPath: outPath,
	})
	if err != nil {
		logger.Error("synthesis failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("synthesis complete",
		slog.String("out", outPath),
		slog.Duration("duration", res.Duration),
		slog.Int("sample_rate", res.SampleRate),
		slog.Int("frames", len(res.Samples)))
}

func buildSynthesizer(cfg config.Config, useMock bool, logger *slog.Logger) (synth.Synthesizer, error) {
	if useMock {
		return synth.NewMock(cfg.Provider.SampleRate), nil
	}
	trans, err := transcode.NewFFmpeg(cfg.Transcoder.Command, cfg.Transcoder.TempDir, logger)
	if err != nil {
		return nil, err
	}
	return synth.NewElevenLabs(cfg.Provider, trans, logger)
}
