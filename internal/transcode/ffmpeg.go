package transcode

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/mattn/go-shellwords"
)

type ffmpegTranscoder struct {
	cmd []string
	dir string
	log *slog.Logger
}

// NewFFmpeg builds a Transcoder that shells out to an ffmpeg-compatible
// command. The command string may carry extra leading arguments
// (e.g. "ffmpeg -loglevel error"). dir is where per-call temp files
// live; empty means the system temp dir.
func NewFFmpeg(command, dir string, log *slog.Logger) (Transcoder, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse transcoder command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("transcoder command empty")
	}
	if dir == "" {
		dir = os.TempDir()
	}
	return &ffmpegTranscoder{cmd: args, dir: dir, log: log}, nil
}

func (f *ffmpegTranscoder) Transcode(ctx context.Context, raw []byte, sampleRate int) ([]byte, error) {
	// Unique per-call names so concurrent synthesis calls never collide.
	id := uuid.NewString()
	inPath := filepath.Join(f.dir, "dopplio_synth_"+id+"_in.wav")
	outPath := filepath.Join(f.dir, "dopplio_synth_"+id+"_out.wav")

	if err := os.WriteFile(inPath, raw, 0o600); err != nil {
		return nil, fmt.Errorf("write transcoder input: %w", err)
	}
	defer os.Remove(inPath)
	defer os.Remove(outPath)

	args := append([]string{}, f.cmd[1:]...)
	args = append(args,
		"-i", inPath,
		"-c:a", "pcm_s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		outPath,
	)

	cmd := exec.CommandContext(ctx, f.cmd[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("transcoder command failed: %w: %s", err, stderr.String())
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("transcoder produced no output: %w", err)
	}
	if f.log != nil {
		f.log.Debug("transcoded audio",
			slog.Int("in_bytes", len(raw)),
			slog.Int("out_bytes", len(data)),
			slog.Int("sample_rate", sampleRate))
	}
	return data, nil
}
