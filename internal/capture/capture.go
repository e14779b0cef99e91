package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"syscall"
	"time"

	"streamrec/internal/logger"
	"streamrec/internal/metrics"
)

// Defaults for the capture supervisor.
const (
	DefaultTool      = "gst-launch-1.0"
	DefaultStopGrace = 10 * time.Second
)

// ErrCaptureFailed reports an abnormal capture pipeline exit. It is terminal
// for the recording attempt; restart policy belongs to a higher level.
var ErrCaptureFailed = errors.New("capture pipeline failed")

// Supervisor launches and owns the external capture subprocess. It streams
// the pipeline's diagnostic output line-by-line while the process runs and
// handles cooperative stop with a graceful-then-forced escalation.
type Supervisor struct {
	Tool      string        // capture binary, default gst-launch-1.0
	StopGrace time.Duration // SIGTERM to SIGKILL window, default 10s
	Log       logger.Config // optional rotated file for pipeline diagnostics
	Logger    *slog.Logger
}

func (s *Supervisor) tool() string {
	if s.Tool != "" {
		return s.Tool
	}
	return DefaultTool
}

func (s *Supervisor) stopGrace() time.Duration {
	if s.StopGrace > 0 {
		return s.StopGrace
	}
	return DefaultStopGrace
}

func (s *Supervisor) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Run blocks until the capture subprocess exits or ctx is canceled. On
// cancellation the process group receives SIGTERM, then SIGKILL after the
// grace window. A non-zero exit while ctx is still live is returned as
// ErrCaptureFailed; an exit provoked by cancellation is not an error.
func (s *Supervisor) Run(ctx context.Context, name string, args []string) error {
	log := s.logger()

	// #nosec G204 -- tool path comes from trusted configuration
	cmd := exec.Command(s.tool(), args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	pid := cmd.Process.Pid
	log.Info("capture pipeline started", "name", name, "pid", pid)
	metrics.IncCaptureStart(name)

	// The drain must run concurrently with the process, not after exit,
	// so the child never blocks on a full pipe.
	fileW := s.Log.Writer(name)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		sc := bufio.NewScanner(stderr)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := sc.Text()
			log.Debug("capture", "name", name, "line", line)
			if fileW != nil {
				_, _ = fileW.Write(append([]byte(line), '\n'))
			}
		}
	}()

	waitCh := make(chan error, 1)
	go func() {
		<-drained
		waitCh <- cmd.Wait()
	}()

	select {
	case err := <-waitCh:
		s.closeWriter(fileW)
		if err != nil {
			log.Error("capture pipeline exited abnormally", "name", name, "err", err)
			metrics.IncCaptureStop(name, "fail")
			return fmt.Errorf("%w: %v", ErrCaptureFailed, err)
		}
		log.Info("capture pipeline exited", "name", name)
		metrics.IncCaptureStop(name, "ok")
		return nil
	case <-ctx.Done():
		log.Info("stopping capture pipeline", "name", name, "pid", pid)
		_ = syscall.Kill(-pid, syscall.SIGTERM)
		select {
		case <-waitCh:
			// exited within the grace window
		case <-time.After(s.stopGrace()):
			log.Warn("capture pipeline did not exit in time, killing", "name", name, "pid", pid)
			_ = syscall.Kill(-pid, syscall.SIGKILL)
			<-waitCh
		}
		s.closeWriter(fileW)
		metrics.IncCaptureStop(name, "stopped")
		log.Info("capture pipeline stopped", "name", name)
		return nil
	}
}

func (s *Supervisor) closeWriter(w io.WriteCloser) {
	if w != nil {
		_ = w.Close()
	}
}
