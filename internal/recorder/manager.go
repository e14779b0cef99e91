package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"streamrec/internal/history"
	"streamrec/internal/merge"
	"streamrec/internal/store"
)

// Defaults are applied to sessions synthesized for streams that were never
// explicitly registered (the registry announces a stream by name only).
type Defaults struct {
	SourceBase     string        `mapstructure:"source_base"` // e.g. rtsp://localhost:8554
	OutputBase     string        `mapstructure:"output_base"` // per-stream dirs are created below this
	SegmentSeconds int           `mapstructure:"segment_seconds"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryInterval  time.Duration `mapstructure:"retry_interval"`
	StopGrace      time.Duration `mapstructure:"stop_grace"`
	ProbeTool      string        `mapstructure:"probe_tool"`
	CaptureTool    string        `mapstructure:"capture_tool"`
	MergeTool      string        `mapstructure:"merge_tool"`
}

// Manager owns the stream-name to session registry. Duplicate starts and
// stops without an active session are guarded here with a logged warning,
// never an error, so registry add/delete events can be applied blindly.
type Manager struct {
	log      *slog.Logger
	defaults Defaults

	mu       sync.Mutex
	sessions map[string]*Session

	store store.Store // optional
	sink  history.Sink // optional
}

func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{log: log, sessions: make(map[string]*Session)}
}

// SetDefaults configures the template applied to synthesized sessions.
func (m *Manager) SetDefaults(d Defaults) { m.defaults = d }

// SetStore attaches a persistence backend for session lifecycle records.
func (m *Manager) SetStore(st store.Store) { m.store = st }

// SetHistorySink attaches an analytics export destination.
func (m *Manager) SetHistorySink(sink history.Sink) { m.sink = sink }

// Register creates a session from spec without starting it. Re-registering a
// name replaces an Idle session and rejects a live one.
func (m *Manager) Register(spec Spec) error {
	sess, err := NewSession(spec, m.log)
	if err != nil {
		return err
	}
	m.hook(sess)

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.sessions[spec.Name]; ok && old.State() != StateIdle {
		return fmt.Errorf("session %s is %s: %w", spec.Name, old.State(), ErrDuplicateStart)
	}
	m.sessions[spec.Name] = sess
	return nil
}

// StartRecording starts the named session, synthesizing one from defaults if
// the name was never registered. A session that is already live logs a
// duplicate-start warning and is left untouched.
func (m *Manager) StartRecording(name string) error {
	m.mu.Lock()
	sess, ok := m.sessions[name]
	m.mu.Unlock()

	if !ok {
		spec := Spec{
			Name:           name,
			Source:         fmt.Sprintf("%s/%s", m.defaults.SourceBase, name),
			OutputDir:      filepath.Join(m.defaults.OutputBase, name),
			SegmentSeconds: m.defaults.SegmentSeconds,
			MaxRetries:     m.defaults.MaxRetries,
			RetryInterval:  m.defaults.RetryInterval,
			StopGrace:      m.defaults.StopGrace,
			ProbeTool:      m.defaults.ProbeTool,
			CaptureTool:    m.defaults.CaptureTool,
			MergeTool:      m.defaults.MergeTool,
		}
		if err := m.Register(spec); err != nil {
			return err
		}
		m.mu.Lock()
		sess = m.sessions[name]
		m.mu.Unlock()
		m.log.Info("starting recording", "name", name, "source", spec.Source)
	}

	if err := sess.Start(); err != nil {
		if errors.Is(err, ErrDuplicateStart) {
			m.log.Warn("recording already running", "name", name)
			return nil
		}
		return err
	}
	return nil
}

// StopRecording stops the named session and merges its segments. A missing
// or idle session logs a warning and is a no-op.
func (m *Manager) StopRecording(name string) (string, error) {
	m.mu.Lock()
	sess, ok := m.sessions[name]
	m.mu.Unlock()
	if !ok {
		m.log.Warn("no recording found", "name", name)
		return "", nil
	}
	merged, err := sess.Stop()
	if err != nil {
		if errors.Is(err, ErrNoActiveSession) {
			m.log.Warn("nothing to stop", "name", name)
			return "", nil
		}
		if errors.Is(err, merge.ErrNoSegments) {
			// Not destructive: recording stopped, there was nothing to merge.
			return "", err
		}
	}
	return merged, err
}

// Status returns the snapshot for one session.
func (m *Manager) Status(name string) (Status, error) {
	m.mu.Lock()
	sess, ok := m.sessions[name]
	m.mu.Unlock()
	if !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrUnknownSession, name)
	}
	return sess.Status(), nil
}

// StatusAll returns snapshots for every registered session, sorted by name.
func (m *Manager) StatusAll() []Status {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	out := make([]Status, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// StopAll stops every live session. Used on daemon shutdown.
func (m *Manager) StopAll() {
	for _, st := range m.StatusAll() {
		if st.State != StateIdle {
			_, _ = m.StopRecording(st.Name)
		}
	}
}

// hook wires persistence and history export into the session lifecycle.
func (m *Manager) hook(sess *Session) {
	sess.onRecording = func(s *Session) {
		rec := m.record(s)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if m.store != nil {
			if err := m.store.RecordStart(ctx, rec); err != nil {
				m.log.Warn("failed to persist session start", "name", rec.Name, "err", err)
			}
		}
		if m.sink != nil {
			e := history.Event{Type: history.EventStart, OccurredAt: time.Now().UTC(), Record: rec}
			if err := m.sink.Send(ctx, e); err != nil {
				m.log.Warn("failed to export start event", "name", rec.Name, "err", err)
			}
		}
	}
	sess.onStopped = func(s *Session, mergeErr error) {
		rec := m.record(s)
		st := s.Status()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if m.store != nil {
			if err := m.store.RecordStop(ctx, rec.Key(), st.StoppedAt, st.MergedPath, mergeErr); err != nil {
				m.log.Warn("failed to persist session stop", "name", rec.Name, "err", err)
			}
		}
		if m.sink != nil {
			rec.Running = false
			e := history.Event{Type: history.EventStop, OccurredAt: time.Now().UTC(), Record: rec}
			if err := m.sink.Send(ctx, e); err != nil {
				m.log.Warn("failed to export stop event", "name", rec.Name, "err", err)
			}
		}
	}
}

func (m *Manager) record(s *Session) store.Record {
	st := s.Status()
	rec := store.Record{
		Name:      st.Name,
		Source:    st.Source,
		OutputDir: st.OutputDir,
		StartedAt: st.StartedAt,
		Running:   st.State == StateRecording,
	}
	rec.Uniq = rec.Key()
	return rec
}
