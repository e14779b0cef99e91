package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"github.com/testcontainers/testcontainers-go/wait"

	"streamrec/internal/history"
	"streamrec/internal/store"
)

// setupClickHouseContainer starts a ClickHouse container for testing
func setupClickHouseContainer(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	clickHouseContainer, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:24.3.2.23",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword(""),
		clickhouse.WithDatabase("default"),
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/ping").
				WithPort("8123/tcp").
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start ClickHouse container: %v", err)
	}

	host, err := clickHouseContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := clickHouseContainer.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("Failed to get mapped port: %v", err)
	}

	return clickHouseContainer, host + ":" + port.Port()
}

// setupSinkWithTable creates a sink and sets up the test table
func setupSinkWithTable(ctx context.Context, t *testing.T, dsn string, tableName string) *Sink {
	t.Helper()

	sink, err := New(dsn, tableName)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}

	err = sink.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+tableName+` (
			type String,
			occurred_at DateTime64(6),
			record_name String,
			record_source String,
			record_output_dir String,
			record_started_at DateTime64(6),
			record_stopped_at Nullable(DateTime64(6)),
			record_running Bool,
			record_merged_path Nullable(String),
			record_exit_err Nullable(String),
			record_uniq String
		) ENGINE = MergeTree()
		ORDER BY (occurred_at, record_uniq)
	`)
	if err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	return sink
}

func TestClickHouseSink_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	clickHouseContainer, dsn := setupClickHouseContainer(ctx, t)
	defer func() {
		if err := clickHouseContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate ClickHouse container: %v", err)
		}
	}()

	sink := setupSinkWithTable(ctx, t, dsn, "recording_history")
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	testRecord := store.Record{
		Name:      "front-door",
		Source:    "rtsp://cam.local/stream1",
		OutputDir: "/var/rec/front-door",
		StartedAt: time.Now().Add(-time.Minute).UTC(),
		Running:   true,
		Uniq:      "front-door@1756200000000000000",
	}

	startEvent := history.Event{
		Type:       history.EventStart,
		OccurredAt: time.Now().UTC(),
		Record:     testRecord,
	}
	if err := sink.Send(ctx, startEvent); err != nil {
		t.Fatalf("Failed to send start event: %v", err)
	}

	stopTime := time.Now().UTC()
	testRecord.Running = false
	testRecord.StoppedAt.Time = stopTime
	testRecord.StoppedAt.Valid = true
	testRecord.MergedPath.String = "/var/rec/front-door/final_recording.mp4"
	testRecord.MergedPath.Valid = true

	stopEvent := history.Event{
		Type:       history.EventStop,
		OccurredAt: stopTime,
		Record:     testRecord,
	}
	if err := sink.Send(ctx, stopEvent); err != nil {
		t.Fatalf("Failed to send stop event: %v", err)
	}

	// Wait a moment for data to be written
	time.Sleep(100 * time.Millisecond)

	rows := sink.conn.QueryRow(ctx, "SELECT COUNT(*) FROM recording_history WHERE record_uniq = ?", testRecord.Uniq)
	var count uint64
	if err := rows.Scan(&count); err != nil {
		t.Fatalf("Failed to query count: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 events, got %d", count)
	}
}

func TestClickHouseSink_ConnectionError(t *testing.T) {
	_, err := New("invalid-host:9000", "test_table")
	if err == nil {
		t.Error("Expected error with invalid connection, got nil")
	}
}
