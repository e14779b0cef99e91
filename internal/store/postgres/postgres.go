package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"streamrec/internal/store"
)

// DB implements store.Store for PostgreSQL via the pgx stdlib driver.

type DB struct {
	db *sql.DB
}

func New(dsn string) (*DB, error) {
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: d}, nil
}

func (p *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS recording_session(
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			source TEXT NOT NULL,
			output_dir TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			stopped_at TIMESTAMPTZ NULL,
			running BOOLEAN NOT NULL,
			merged_path TEXT NULL,
			exit_err TEXT NULL,
			uniq TEXT NOT NULL UNIQUE,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_recording_session_name ON recording_session(name);`,
		`CREATE INDEX IF NOT EXISTS idx_recording_session_running ON recording_session(running);`,
	}
	for _, q := range stmts {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (p *DB) Close() error { return p.db.Close() }

func (p *DB) RecordStart(ctx context.Context, rec store.Record) error {
	rec.Running = true
	rec.UpdatedAt = time.Now().UTC()
	uniq := rec.Key()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO recording_session(name, source, output_dir, started_at, stopped_at, running, merged_path, exit_err, uniq, updated_at)
		VALUES($1, $2, $3, $4, NULL, TRUE, NULL, NULL, $5, $6)
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

func (p *DB) RecordStop(ctx context.Context, uniq string, stoppedAt time.Time, mergedPath string, exitErr error) error {
	var errStr sql.NullString
	if exitErr != nil {
		errStr = sql.NullString{String: exitErr.Error(), Valid: true}
	}
	var merged sql.NullString
	if mergedPath != "" {
		merged = sql.NullString{String: mergedPath, Valid: true}
	}
	_, err := p.db.ExecContext(ctx, `
		UPDATE recording_session
		SET running=FALSE, stopped_at=$1, merged_path=$2, exit_err=$3, updated_at=$4
		WHERE uniq=$5;`,
		stoppedAt.UTC(), merged, errStr, time.Now().UTC(), uniq)
	return err
}

func (p *DB) GetByName(ctx context.Context, name string) ([]store.Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT name, source, output_dir, started_at, stopped_at, running, merged_path, exit_err, uniq, updated_at
		FROM recording_session WHERE name=$1 ORDER BY started_at DESC;`, name)
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
