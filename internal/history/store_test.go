package history

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/dopplio/aeneas/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openStore(t *testing.T, cfg config.HistoryConfig) *Store {
	t.Helper()
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open history store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenEphemeral(t *testing.T) {
	s := openStore(t, config.HistoryConfig{RetentionMode: "ephemeral"})
	if err := s.Append(context.Background(), Record{RequestID: "r1", Status: "ok"}); err != nil {
		t.Fatalf("append to ephemeral store: %v", err)
	}
	records, err := s.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if records != nil {
		t.Fatalf("ephemeral store should keep nothing, got %d records", len(records))
	}
}

func TestAppendAndList(t *testing.T) {
	cfg := config.HistoryConfig{
		Path:          filepath.Join(t.TempDir(), "history.db"),
		RetentionMode: "persistent",
	}
	s := openStore(t, cfg)

	rec := Record{
		RequestID:  "req-abc",
		Language:   "eng-USA",
		Voice:      "Joanna",
		TextChars:  42,
		DurationMS: 1500,
		Status:     "ok",
	}
	if err := s.Append(context.Background(), rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(context.Background(), Record{RequestID: "req-def", Status: "error", ErrorClass: "synthesis"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	records, err := s.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].RequestID != "req-def" {
		t.Fatalf("expected newest first, got %q", records[0].RequestID)
	}
	if records[1].Voice != "Joanna" || records[1].DurationMS != 1500 {
		t.Fatalf("record fields lost: %+v", records[1])
	}
}

func TestPruneByAgeAndCap(t *testing.T) {
	cfg := config.HistoryConfig{
		Path:          filepath.Join(t.TempDir(), "history.db"),
		RetentionMode: "persistent",
		RetentionDays: 7,
		MaxRecords:    2,
	}
	s := openStore(t, cfg)

	old := time.Now().Add(-30 * 24 * time.Hour).UTC()
	if err := s.Append(context.Background(), Record{RequestID: "ancient", Status: "ok", CreatedAt: old}); err != nil {
		t.Fatalf("append: %v", err)
	}
	for _, id := range []string{"a", "b", "c"} {
		if err := s.Append(context.Background(), Record{RequestID: id, Status: "ok"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	if err := s.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}
	records, err := s.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records after prune, got %d", len(records))
	}
	for _, r := range records {
		if r.RequestID == "ancient" {
			t.Fatal("aged-out record survived prune")
		}
	}
}
