// Package history keeps a SQLite-backed record of synthesis calls:
// request metadata and outcomes, never audio payloads. It is an audit
// trail, not a result cache.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dopplio/aeneas/internal/config"
	_ "modernc.org/sqlite"
)

// Record is one synthesis call outcome.
type Record struct {
	ID         int64
	RequestID  string
	Language   string
	Voice      string
	TextChars  int
	DurationMS int64
	Status     string // "ok" or "error"
	ErrorClass string
	CreatedAt  time.Time
}

// Store wraps the synthesis call history database.
type Store struct {
	db    *sql.DB
	cfg   config.HistoryConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the history store according to config. Ephemeral
// mode returns a store that discards everything.
func Open(ctx context.Context, cfg config.HistoryConfig, log *slog.Logger) (*Store, error) {
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("history vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("history prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS synthesis_calls (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id TEXT NOT NULL,
    language TEXT,
    voice TEXT,
    text_chars INTEGER,
    duration_ms INTEGER,
    status TEXT NOT NULL,
    error_class TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_synthesis_calls_created ON synthesis_calls(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append writes one call record.
func (s *Store) Append(ctx context.Context, rec Record) error {
	if s.db == nil {
		return nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO synthesis_calls(request_id, language, voice, text_chars, duration_ms, status, error_class, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.Language, rec.Voice, rec.TextChars, rec.DurationMS, rec.Status, rec.ErrorClass, rec.CreatedAt)
	return err
}

// List retrieves the most recent records, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, language, voice, text_chars, duration_ms, status, error_class, created_at
		 FROM synthesis_calls ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var created string
		if err := rows.Scan(&r.ID, &r.RequestID, &r.Language, &r.Voice, &r.TextChars, &r.DurationMS, &r.Status, &r.ErrorClass, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			r.CreatedAt = ts
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Prune applies configured retention: an age cutoff and a row cap.
func (s *Store) Prune(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
		if _, err = tx.ExecContext(ctx, `DELETE FROM synthesis_calls WHERE created_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
	}
	if s.cfg.MaxRecords > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM synthesis_calls WHERE id IN (
			SELECT id FROM synthesis_calls ORDER BY created_at DESC, id DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxRecords)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}
