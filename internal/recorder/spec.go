package recorder

import (
	"errors"
	"time"

	"streamrec/internal/logger"
)

// State of a recording session's lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateProbing   State = "probing"
	StateRecording State = "recording"
	StateStopping  State = "stopping"
	StateStopped   State = "stopped"
)

var (
	// ErrDuplicateStart reports Start on a session that is not Idle. The
	// collaborator boundary logs it as a warning and does not propagate it.
	ErrDuplicateStart = errors.New("recording already running")
	// ErrNoActiveSession reports Stop on an Idle session.
	ErrNoActiveSession = errors.New("no active recording to stop")
	// ErrUnknownSession reports an operation against an unregistered name.
	ErrUnknownSession = errors.New("unknown session")
)

// Spec describes one stream recording session.
type Spec struct {
	Name           string        `json:"name" mapstructure:"name"`
	Source         string        `json:"source" mapstructure:"source"`                   // stream URL, credentials embedded on demand
	Username       string        `json:"username" mapstructure:"username"`               // optional source auth
	Password       string        `json:"password" mapstructure:"password"`               // optional source auth
	OutputDir      string        `json:"output_dir" mapstructure:"output_dir"`           // segment + merge destination
	SegmentSeconds int           `json:"segment_seconds" mapstructure:"segment_seconds"` // segment rotation period, default 600
	MaxRetries     int           `json:"max_retries" mapstructure:"max_retries"`         // probe attempts, default 30
	RetryInterval  time.Duration `json:"retry_interval" mapstructure:"retry_interval"`   // probe backoff, default 1s
	StopGrace      time.Duration `json:"stop_grace" mapstructure:"stop_grace"`           // SIGTERM to SIGKILL window
	ProbeTool      string        `json:"probe_tool" mapstructure:"probe_tool"`           // override for tests/deployments
	CaptureTool    string        `json:"capture_tool" mapstructure:"capture_tool"`
	MergeTool      string        `json:"merge_tool" mapstructure:"merge_tool"`
	Log            logger.Config `json:"log" mapstructure:"log"` // capture diagnostics destination
}

const DefaultSegmentSeconds = 600

func (s *Spec) withDefaults() Spec {
	out := *s
	if out.SegmentSeconds == 0 {
		out.SegmentSeconds = DefaultSegmentSeconds
	}
	return out
}

// Status is a point-in-time snapshot of a session.
type Status struct {
	Name       string    `json:"name"`
	State      State     `json:"state"`
	Source     string    `json:"source"`
	OutputDir  string    `json:"output_dir"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	StoppedAt  time.Time `json:"stopped_at,omitzero"`
	MergedPath string    `json:"merged_path,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
}
