// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ManuGH/tvplay/internal/persistence/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS settings (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	payload    TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS session_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	at         INTEGER NOT NULL,
	payload    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events(session_id, id);
`

// SQLite stores settings and the journal in a single database file.
type SQLite struct {
	db        *sql.DB
	maxEvents int
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string, maxEvents int) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sqlite.Open(ctx, path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if issues, err := sqlite.VerifyIntegrity(ctx, db, false); err != nil || issues != nil {
		_ = db.Close()
		if err == nil {
			err = fmt.Errorf("integrity check failed: %v", issues)
		}
		return nil, err
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if maxEvents <= 0 {
		maxEvents = Config{}.withDefaults().MaxEvents
	}
	return &SQLite{db: db, maxEvents: maxEvents}, nil
}

func (s *SQLite) LoadSettings(ctx context.Context) (Settings, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM settings WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	var out Settings
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return out, nil
}

func (s *SQLite) SaveSettings(ctx context.Context, in Settings) error {
	in, err := in.Normalize()
	if err != nil {
		return err
	}
	buf, err := json.Marshal(in)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (id, payload, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		string(buf), in.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (s *SQLite) ResetSettings(ctx context.Context) (Settings, error) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE id = 1`); err != nil {
		return Settings{}, fmt.Errorf("reset settings: %w", err)
	}
	return DefaultSettings(), nil
}

func (s *SQLite) AppendEvent(ctx context.Context, e Entry) error {
	buf, err := json.Marshal(e)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO session_events (session_id, at, payload) VALUES (?, ?, ?)`,
		e.SessionID, e.At.UnixNano(), string(buf)); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM session_events WHERE session_id = ? AND id NOT IN (
			SELECT id FROM session_events WHERE session_id = ? ORDER BY id DESC LIMIT ?)`,
		e.SessionID, e.SessionID, s.maxEvents); err != nil {
		return fmt.Errorf("trim events: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) ListEvents(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM (
			SELECT id, payload FROM session_events WHERE session_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, sessionID, clampLimit(limit, s.maxEvents))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var e Entry
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() error { return s.db.Close() }
