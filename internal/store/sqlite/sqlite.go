package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"streamrec/internal/store"
)

// DB implements store.Store for SQLite (modernc.org/sqlite driver, CGO-free).
// DSN is a filesystem path to the SQLite database file. Use ":memory:" for in-memory.

type DB struct {
	db *sql.DB
}

// New opens a SQLite database at path.
func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS recording_session(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			source TEXT NOT NULL,
			output_dir TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			stopped_at TIMESTAMP NULL,
			running BOOLEAN NOT NULL,
			merged_path TEXT NULL,
			exit_err TEXT NULL,
			uniq TEXT NOT NULL UNIQUE,
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_recording_session_name ON recording_session(name);`,
		`CREATE INDEX IF NOT EXISTS idx_recording_session_running ON recording_session(running);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error { return s.db.Close() }

func (s *DB) RecordStart(ctx context.Context, rec store.Record) error {
	rec.Running = true
	rec.StoppedAt = sql.NullTime{}
	rec.ExitErr = sql.NullString{}
	rec.UpdatedAt = time.Now().UTC()
	uniq := rec.Key()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recording_session(name, source, output_dir, started_at, stopped_at, running, merged_path, exit_err, uniq, updated_at)
		VALUES(?, ?, ?, ?, NULL, 1, NULL, NULL, ?, ?)
		ON CONFLICT(uniq) DO UPDATE SET
			name=excluded.name,
			source=excluded.source,
			output_dir=excluded.output_dir,
			started_at=excluded.started_at,
			running=excluded.running,
			stopped_at=NULL,
			merged_path=NULL,
			exit_err=NULL,
			updated_at=excluded.updated_at;`,
		rec.Name, rec.Source, rec.OutputDir, rec.StartedAt.UTC(), uniq, rec.UpdatedAt)
	return err
}

func (s *DB) RecordStop(ctx context.Context, uniq string, stoppedAt time.Time, mergedPath string, exitErr error) error {
	var errStr sql.NullString
	if exitErr != nil {
		errStr = sql.NullString{String: exitErr.Error(), Valid: true}
	}
	var merged sql.NullString
	if mergedPath != "" {
		merged = sql.NullString{String: mergedPath, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE recording_session
		SET running=0, stopped_at=?, merged_path=?, exit_err=?, updated_at=?
		WHERE uniq=?;`,
		stoppedAt.UTC(), merged, errStr, time.Now().UTC(), uniq)
	return err
}

func (s *DB) GetByName(ctx context.Context, name string) ([]store.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, source, output_dir, started_at, stopped_at, running, merged_path, exit_err, uniq, updated_at
		FROM recording_session WHERE name=? ORDER BY started_at DESC;`, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []store.Record
	for rows.Next() {
		var r store.Record
		if err := rows.Scan(&r.Name, &r.Source, &r.OutputDir, &r.StartedAt, &r.StoppedAt, &r.Running, &r.MergedPath, &r.ExitErr, &r.Uniq, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
