package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "streamrec.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const sampleConfig = `
listen = ":8080"
metrics_listen = ":9090"
log_level = "debug"
registry_url = "http://localhost:1984"
store = "sqlite:///var/lib/streamrec/state.db"
history = "localhost:9000"
history_table = "recording_history"

[defaults]
source_base = "rtsp://localhost:8554"
output_base = "/var/lib/streamrec/recordings"
segment_seconds = 300
max_retries = 10
retry_interval = "2s"
stop_grace = "15s"

[log]
dir = "/var/log/streamrec"
max_size_mb = 5

[[streams]]
name = "front-door"
source = "rtsp://cam.local/stream1"
username = "admin"
password = "secret"

[[streams]]
name = "garage"
segment_seconds = 60
stop_grace = "5s"

[streams.log]
dir = "/var/log/garage"
`

func TestLoad(t *testing.T) {
	fc, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fc.Listen != ":8080" || fc.MetricsListen != ":9090" {
		t.Fatalf("listen addresses: %+v", fc)
	}
	if fc.LogLevel != "debug" {
		t.Fatalf("log level: %q", fc.LogLevel)
	}
	if fc.RegistryURL != "http://localhost:1984" {
		t.Fatalf("registry url: %q", fc.RegistryURL)
	}
	if fc.StoreDSN != "sqlite:///var/lib/streamrec/state.db" {
		t.Fatalf("store dsn: %q", fc.StoreDSN)
	}
	if fc.HistoryAddr != "localhost:9000" || fc.HistoryTable != "recording_history" {
		t.Fatalf("history: %q %q", fc.HistoryAddr, fc.HistoryTable)
	}
	if len(fc.Streams) != 2 {
		t.Fatalf("expected 2 streams, got %d", len(fc.Streams))
	}
}

func TestRecorderDefaults(t *testing.T) {
	fc, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	d := fc.RecorderDefaults()
	if d.SourceBase != "rtsp://localhost:8554" {
		t.Fatalf("source base: %q", d.SourceBase)
	}
	if d.SegmentSeconds != 300 || d.MaxRetries != 10 {
		t.Fatalf("defaults: %+v", d)
	}
	if d.RetryInterval != 2*time.Second || d.StopGrace != 15*time.Second {
		t.Fatalf("durations: %+v", d)
	}
}

func TestSpecsApplyDefaults(t *testing.T) {
	fc, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	specs, err := fc.Specs()
	if err != nil {
		t.Fatalf("specs: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}

	front := specs[0]
	if front.Source != "rtsp://cam.local/stream1" || front.Username != "admin" || front.Password != "secret" {
		t.Fatalf("explicit stream fields lost: %+v", front)
	}
	if front.OutputDir != filepath.Join("/var/lib/streamrec/recordings", "front-door") {
		t.Fatalf("output dir not derived: %q", front.OutputDir)
	}
	if front.SegmentSeconds != 300 || front.RetryInterval != 2*time.Second {
		t.Fatalf("defaults not applied: %+v", front)
	}
	if front.Log.Dir != "/var/log/streamrec" || front.Log.MaxSizeMB != 5 {
		t.Fatalf("top-level log not inherited: %+v", front.Log)
	}

	garage := specs[1]
	if garage.Source != "rtsp://localhost:8554/garage" {
		t.Fatalf("source not synthesized from base: %q", garage.Source)
	}
	if garage.SegmentSeconds != 60 || garage.StopGrace != 5*time.Second {
		t.Fatalf("per-stream overrides lost: %+v", garage)
	}
	if garage.Log.Dir != "/var/log/garage" {
		t.Fatalf("per-stream log dir not applied: %+v", garage.Log)
	}
	if garage.Log.MaxSizeMB != 5 {
		t.Fatalf("top-level log rotation not inherited under override: %+v", garage.Log)
	}
}

func TestSpecsRequireName(t *testing.T) {
	fc, err := Load(writeConfig(t, "[[streams]]\nsource = \"rtsp://x\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := fc.Specs(); err == nil {
		t.Fatalf("expected error for unnamed stream")
	}
}

func TestSpecsRequireSourceOrBase(t *testing.T) {
	fc, err := Load(writeConfig(t, "[[streams]]\nname = \"cam\"\noutput_dir = \"/tmp/x\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := fc.Specs(); err == nil {
		t.Fatalf("expected error without source or defaults.source_base")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
