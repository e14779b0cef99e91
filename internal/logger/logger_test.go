package logger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriterDerivesPathFromDir(t *testing.T) {
	dir := t.TempDir()
	w := Config{Dir: dir}.Writer("cam1")
	if w == nil {
		t.Fatalf("expected a writer when dir is set")
	}
	if _, err := w.Write([]byte("gst diagnostics\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "cam1.capture.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if string(b) != "gst diagnostics\n" {
		t.Fatalf("unexpected log content %q", b)
	}
}

func TestWriterExplicitPathWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.log")
	w := Config{Dir: filepath.Join(dir, "ignored"), Path: path}.Writer("cam1")
	if w == nil {
		t.Fatalf("expected a writer")
	}
	if _, err := w.Write([]byte("x\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = w.Close()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("explicit path not used: %v", err)
	}
}

func TestWriterUnconfigured(t *testing.T) {
	if w := (Config{}).Writer("cam1"); w != nil {
		t.Fatalf("expected nil writer without dir or path")
	}
}

func TestNewLevels(t *testing.T) {
	for _, lv := range []string{"debug", "info", "warn", "warning", "error", "", "bogus"} {
		if log := New(lv); log == nil {
			t.Fatalf("nil logger for level %q", lv)
		}
	}
}
