package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Record is the persisted state of one recording session run.
// Uniq identifies a single run (name + start time) so repeated runs of the
// same stream keep separate rows. Times are stored in UTC.
type Record struct {
	Name       string
	Source     string
	OutputDir  string
	StartedAt  time.Time
	StoppedAt  sql.NullTime
	Running    bool
	MergedPath sql.NullString
	ExitErr    sql.NullString
	Uniq       string
	UpdatedAt  time.Time
}

// Key derives the per-run unique key.
func (r Record) Key() string {
	return fmt.Sprintf("%s@%d", r.Name, r.StartedAt.UTC().UnixNano())
}

// Store persists recording session lifecycle state.
type Store interface {
	EnsureSchema(ctx context.Context) error
	RecordStart(ctx context.Context, rec Record) error
	RecordStop(ctx context.Context, uniq string, stoppedAt time.Time, mergedPath string, exitErr error) error
	GetByName(ctx context.Context, name string) ([]Record, error)
	Close() error
}
