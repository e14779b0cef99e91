package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"streamrec/internal/capture"
	"streamrec/internal/merge"
	"streamrec/internal/metrics"
	"streamrec/internal/probe"
)

// Session ties probe, capture and merge into a start/stop lifecycle bound to
// a single named stream. State machine: Idle -> Probing -> Recording ->
// Stopping -> Idle. A session owns at most one live capture subprocess;
// Recording implies exactly one, Idle implies none.
//
// Start and Stop must not race each other from multiple callers; the
// session mutex serializes transitions but callers own the discipline of
// pairing them, which the Manager enforces.
type Session struct {
	spec      Spec
	sourceURL string // credentials embedded
	log       *slog.Logger

	prober *probe.Prober
	sup    *capture.Supervisor
	merger *merge.Merger

	mu         sync.Mutex
	state      State
	cancel     context.CancelFunc
	done       chan struct{}
	startedAt  time.Time
	stoppedAt  time.Time
	mergedPath string
	lastErr    error

	// lifecycle hooks, set by the Manager for persistence/history export
	onRecording func(*Session)
	onStopped   func(*Session, error)
}

// NewSession validates the spec, embeds credentials into the source URL and
// prepares the output directory.
func NewSession(spec Spec, log *slog.Logger) (*Session, error) {
	spec = spec.withDefaults()
	if spec.Name == "" {
		return nil, fmt.Errorf("session requires a name")
	}
	if spec.Source == "" {
		return nil, fmt.Errorf("session %s requires a source URL", spec.Name)
	}
	if spec.OutputDir == "" {
		return nil, fmt.Errorf("session %s requires an output dir", spec.Name)
	}
	src, err := capture.BuildSourceURL(spec.Source, spec.Username, spec.Password)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(spec.OutputDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		spec:      spec,
		sourceURL: src,
		log:       log,
		prober: &probe.Prober{
			Tool:          spec.ProbeTool,
			MaxRetries:    spec.MaxRetries,
			RetryInterval: spec.RetryInterval,
			Logger:        log,
		},
		sup: &capture.Supervisor{
			Tool:      spec.CaptureTool,
			StopGrace: spec.StopGrace,
			Log:       spec.Log,
			Logger:    log,
		},
		merger: &merge.Merger{Tool: spec.MergeTool, Logger: log},
		state:  StateIdle,
	}, nil
}

func (s *Session) Spec() Spec { return s.spec }

// SourceURL returns the source with credentials embedded.
func (s *Session) SourceURL() string { return s.sourceURL }

// Start transitions Idle -> Probing and launches the background worker. It
// never blocks on the probe or the capture pipeline. A non-Idle session
// returns ErrDuplicateStart and is otherwise untouched.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return ErrDuplicateStart
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.state = StateProbing
	s.cancel = cancel
	s.done = make(chan struct{})
	s.startedAt = time.Now()
	s.stoppedAt = time.Time{}
	s.mergedPath = ""
	s.lastErr = nil
	s.log.Info("waiting for source to become available", "name", s.spec.Name, "source", s.spec.Source)
	go s.run(ctx)
	return nil
}

// run is the per-session worker: probe, then capture until canceled.
func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	res := s.prober.Probe(ctx, s.spec.Name, s.sourceURL)
	if !res.Available {
		s.mu.Lock()
		// A canceled probe is finalized by Stop; only a genuinely
		// exhausted probe falls back to Idle here.
		if s.state == StateProbing {
			s.state = StateIdle
			s.lastErr = probe.ErrUnavailable
		}
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	if s.state != StateProbing {
		// Stop raced the successful probe; do not launch capture.
		s.mu.Unlock()
		return
	}
	s.state = StateRecording
	s.mu.Unlock()
	metrics.AddActiveRecordings(1)
	defer metrics.AddActiveRecordings(-1)
	if s.onRecording != nil {
		s.onRecording(s)
	}

	args := capture.Pipeline(s.sourceURL, s.spec.OutputDir, s.spec.SegmentSeconds)
	err := s.sup.Run(ctx, s.spec.Name, args)

	s.mu.Lock()
	if err != nil {
		// Terminal for this recording attempt; no automatic restart.
		s.lastErr = err
	}
	if s.state == StateRecording {
		// Pipeline ended on its own, the session is no longer recording.
		s.state = StateIdle
		s.stoppedAt = time.Now()
	}
	s.mu.Unlock()
}

// Stop signals the worker, joins it (the subprocess is guaranteed to have
// exited before the merge begins), merges segments and returns to Idle
// regardless of the merge outcome. Merge failures are reported to the caller;
// segments stay on disk for manual recovery. Stopping an Idle session is a
// no-op returning ErrNoActiveSession.
func (s *Session) Stop() (string, error) {
	s.mu.Lock()
	if s.state == StateIdle || s.state == StateStopped {
		s.mu.Unlock()
		return "", ErrNoActiveSession
	}
	s.state = StateStopping
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	s.log.Info("stopping recording", "name", s.spec.Name, "source", s.spec.Source)
	cancel()
	<-done

	merged, err := s.merger.Merge(context.Background(), s.spec.Name, s.spec.OutputDir)

	s.mu.Lock()
	s.state = StateIdle
	s.stoppedAt = time.Now()
	s.mergedPath = merged
	if err != nil {
		s.lastErr = err
	}
	s.mu.Unlock()

	if s.onStopped != nil {
		s.onStopped(s, err)
	}
	return merged, err
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Name:       s.spec.Name,
		State:      s.state,
		Source:     s.spec.Source,
		OutputDir:  s.spec.OutputDir,
		StartedAt:  s.startedAt,
		StoppedAt:  s.stoppedAt,
		MergedPath: s.mergedPath,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
