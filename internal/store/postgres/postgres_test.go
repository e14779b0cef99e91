package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"streamrec/internal/store"
)

// startPostgresContainer starts a PostgreSQL container for tests
// and returns a DSN suitable for pgx stdlib. It skips the test if Docker is unavailable.
func startPostgresContainer(t *testing.T) (dsn string, terminate func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
	)
	if err != nil {
		cancel()
		t.Skipf("Failed to start PostgreSQL container: %v", err)
		return "", nil
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		cancel()
		t.Skipf("Failed to get host info: %v", err)
		return "", nil
	}

	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		cancel()
		t.Skipf("Failed to get mapped port: %v", err)
		return "", nil
	}

	dsn = fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	terminate = func() {
		_ = container.Terminate(ctx)
		cancel()
	}

	return dsn, terminate
}

func waitForPostgres(t *testing.T, dsn string) {
	// Try to ping until timeout; the container can report ready before the
	// database accepts connections.
	deadline := time.Now().Add(45 * time.Second)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		db, err := sql.Open("pgx", dsn)
		if err == nil {
			if err = db.PingContext(ctx); err == nil {
				_ = db.Close()
				cancel()
				return
			}
			_ = db.Close()
		}
		cancel()
		if time.Now().After(deadline) {
			t.Fatalf("postgres not ready in time: %v", err)
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func TestPostgresLifecycle(t *testing.T) {
	dsn, terminate := startPostgresContainer(t)
	waitForPostgres(t, dsn)
	defer func() {
		if terminate != nil {
			terminate()
		}
	}()

	db, err := New(dsn)
	if err != nil {
		t.Fatalf("pg open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	started := time.Now().UTC().Truncate(time.Second)
	rec := store.Record{
		Name:      "front-door",
		Source:    "rtsp://cam.local/stream1",
		OutputDir: "/var/rec/front-door",
		StartedAt: started,
		Running:   true,
	}
	rec.Uniq = rec.Key()
	if err := db.RecordStart(ctx, rec); err != nil {
		t.Fatalf("record start: %v", err)
	}

	got, err := db.GetByName(ctx, "front-door")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if len(got) != 1 || !got[0].Running || got[0].StoppedAt.Valid {
		t.Fatalf("unexpected record after start: %+v", got)
	}

	stopped := started.Add(30 * time.Second)
	if err := db.RecordStop(ctx, rec.Key(), stopped, "/var/rec/front-door/final_recording.mp4", nil); err != nil {
		t.Fatalf("record stop: %v", err)
	}
	got, err = db.GetByName(ctx, "front-door")
	if err != nil {
		t.Fatalf("get by name after stop: %v", err)
	}
	r := got[0]
	if r.Running || !r.StoppedAt.Valid {
		t.Fatalf("stop not persisted: %+v", r)
	}
	if !r.MergedPath.Valid || r.MergedPath.String != "/var/rec/front-door/final_recording.mp4" {
		t.Fatalf("merged path not persisted: %+v", r.MergedPath)
	}
}
