package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"streamrec/internal/metrics"
)

// Defaults for the segment merger.
const (
	DefaultTool       = "ffmpeg"
	DefaultOutputName = "final_recording.mp4"
	ManifestName      = "file_list.txt"
	segmentPrefix     = "segment_"
	segmentExt        = ".mp4"
)

// ErrNoSegments reports that an invocation found zero segment files. The
// concatenation tool is not run in that case; it is a distinct condition,
// not a tool failure.
var ErrNoSegments = errors.New("no segment files to merge")

// ToolError carries the concatenation tool's diagnostic output when it exits
// non-zero. Segment files and the manifest are left in place for recovery.
type ToolError struct {
	Err    error
	Output string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("concat tool failed: %v", e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Merger concatenates finished segment files into a single artifact using an
// external tool in stream-copy mode, and removes the sources on success.
type Merger struct {
	Tool       string // concatenation binary, default ffmpeg
	OutputName string // merged file name, default final_recording.mp4
	Logger     *slog.Logger
}

func (m *Merger) tool() string {
	if m.Tool != "" {
		return m.Tool
	}
	return DefaultTool
}

func (m *Merger) outputName() string {
	if m.OutputName != "" {
		return m.OutputName
	}
	return DefaultOutputName
}

func (m *Merger) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// Merge enumerates segment files in outputDir, writes the manifest in sorted
// filename order (zero-padded indices make lexicographic order chronological),
// runs the concatenation tool in stream-copy mode, and on success deletes
// exactly the enumerated set. name is only used for logging and metrics.
func (m *Merger) Merge(ctx context.Context, name, outputDir string) (string, error) {
	segments, err := m.listSegments(outputDir)
	if err != nil {
		return "", err
	}
	if len(segments) == 0 {
		m.logger().Warn("no segments found, skipping merge", "name", name, "dir", outputDir)
		metrics.IncMerge(name, "empty")
		return "", ErrNoSegments
	}

	manifest := filepath.Join(outputDir, ManifestName)
	if err := writeManifest(manifest, segments); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}

	merged := filepath.Join(outputDir, m.outputName())
	m.logger().Info("merging segments", "name", name, "count", len(segments), "output", merged)

	start := time.Now()
	// #nosec G204 -- tool path comes from trusted configuration
	cmd := exec.CommandContext(ctx, m.tool(),
		"-f", "concat", "-safe", "0", "-i", manifest, "-c", "copy", "-y", merged)
	out, err := cmd.CombinedOutput()
	if err != nil {
		metrics.IncMerge(name, "fail")
		m.logger().Error("merge failed", "name", name, "err", err, "output", string(out))
		return "", &ToolError{Err: err, Output: string(out)}
	}
	metrics.IncMerge(name, "ok")
	metrics.ObserveMergeDuration(name, time.Since(start).Seconds())

	// Delete exactly the enumerated set, not a broader directory sweep.
	for _, s := range segments {
		if err := os.Remove(s); err != nil {
			m.logger().Warn("failed to remove segment", "path", s, "err", err)
		}
	}
	_ = os.Remove(manifest)
	m.logger().Info("merged recording saved", "name", name, "path", merged)
	return merged, nil
}

// listSegments returns the absolute paths of segment files in dir in
// ascending lexicographic order.
func (m *Merger) listSegments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}
	var segments []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if strings.HasPrefix(n, segmentPrefix) && strings.HasSuffix(n, segmentExt) {
			segments = append(segments, filepath.Join(dir, n))
		}
	}
	sort.Strings(segments)
	return segments, nil
}

// writeManifest writes one "file '<path>'" line per segment, the format the
// concat demuxer expects.
func writeManifest(path string, segments []string) error {
	var b strings.Builder
	for _, s := range segments {
		fmt.Fprintf(&b, "file '%s'\n", s)
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
