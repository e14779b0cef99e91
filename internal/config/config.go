package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"streamrec/internal/logger"
	"streamrec/internal/recorder"
)

// FileConfig represents the top-level TOML structure.
//
//	listen = ":8080"
//	metrics_listen = ":9090"
//	log_level = "info"
//	registry_url = "http://localhost:1984"
//	store = "sqlite:///var/lib/streamrec/state.db"
//	history = "localhost:9000"
//
//	[defaults]
//	source_base = "rtsp://localhost:8554"
//	output_base = "/var/lib/streamrec/recordings"
//	segment_seconds = 600
//	retry_interval = "1s"
//	max_retries = 30
//	stop_grace = "10s"
//
//	[log]
//	dir = "/var/log/streamrec"
//
//	[[streams]]
//	name = "front-door"
//	source = "rtsp://cam.local/stream1"
//	username = "admin"
//	password = "secret"
type FileConfig struct {
	Listen        string          `toml:"listen" mapstructure:"listen"`
	MetricsListen string          `toml:"metrics_listen" mapstructure:"metrics_listen"`
	LogLevel      string          `toml:"log_level" mapstructure:"log_level"`
	RegistryURL   string          `toml:"registry_url" mapstructure:"registry_url"`
	StoreDSN      string          `toml:"store" mapstructure:"store"`
	HistoryAddr   string          `toml:"history" mapstructure:"history"`
	HistoryTable  string          `toml:"history_table" mapstructure:"history_table"`
	Defaults      DefaultsConfig  `toml:"defaults" mapstructure:"defaults"`
	Log           *logger.Config  `toml:"log" mapstructure:"log"`
	Streams       []StreamConfig  `toml:"streams" mapstructure:"streams"`
}

type DefaultsConfig struct {
	SourceBase     string        `toml:"source_base" mapstructure:"source_base"`
	OutputBase     string        `toml:"output_base" mapstructure:"output_base"`
	SegmentSeconds int           `toml:"segment_seconds" mapstructure:"segment_seconds"`
	MaxRetries     int           `toml:"max_retries" mapstructure:"max_retries"`
	RetryInterval  time.Duration `toml:"retry_interval" mapstructure:"retry_interval"`
	StopGrace      time.Duration `toml:"stop_grace" mapstructure:"stop_grace"`
	ProbeTool      string        `toml:"probe_tool" mapstructure:"probe_tool"`
	CaptureTool    string        `toml:"capture_tool" mapstructure:"capture_tool"`
	MergeTool      string        `toml:"merge_tool" mapstructure:"merge_tool"`
}

type StreamConfig struct {
	Name           string         `toml:"name" mapstructure:"name"`
	Source         string         `toml:"source" mapstructure:"source"`
	Username       string         `toml:"username" mapstructure:"username"`
	Password       string         `toml:"password" mapstructure:"password"`
	OutputDir      string         `toml:"output_dir" mapstructure:"output_dir"`
	SegmentSeconds int            `toml:"segment_seconds" mapstructure:"segment_seconds"`
	MaxRetries     int            `toml:"max_retries" mapstructure:"max_retries"`
	RetryInterval  time.Duration  `toml:"retry_interval" mapstructure:"retry_interval"`
	StopGrace      time.Duration  `toml:"stop_grace" mapstructure:"stop_grace"`
	ProbeTool      string         `toml:"probe_tool" mapstructure:"probe_tool"`
	CaptureTool    string         `toml:"capture_tool" mapstructure:"capture_tool"`
	MergeTool      string         `toml:"merge_tool" mapstructure:"merge_tool"`
	Log            *logger.Config `toml:"log" mapstructure:"log"`
}

// Load parses a TOML config file.
func Load(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

// RecorderDefaults converts the [defaults] section for the Manager.
func (fc *FileConfig) RecorderDefaults() recorder.Defaults {
	return recorder.Defaults{
		SourceBase:     fc.Defaults.SourceBase,
		OutputBase:     fc.Defaults.OutputBase,
		SegmentSeconds: fc.Defaults.SegmentSeconds,
		MaxRetries:     fc.Defaults.MaxRetries,
		RetryInterval:  fc.Defaults.RetryInterval,
		StopGrace:      fc.Defaults.StopGrace,
		ProbeTool:      fc.Defaults.ProbeTool,
		CaptureTool:    fc.Defaults.CaptureTool,
		MergeTool:      fc.Defaults.MergeTool,
	}
}

// Specs converts the [[streams]] sections into recorder specs, applying
// [defaults] and top-level [log] where a stream leaves fields unset.
func (fc *FileConfig) Specs() ([]recorder.Spec, error) {
	specs := make([]recorder.Spec, 0, len(fc.Streams))
	for _, sc := range fc.Streams {
		if sc.Name == "" {
			return nil, fmt.Errorf("stream requires a name")
		}
		if sc.Source == "" && fc.Defaults.SourceBase == "" {
			return nil, fmt.Errorf("stream %s requires a source (no defaults.source_base set)", sc.Name)
		}
		s := recorder.Spec{
			Name:           sc.Name,
			Source:         sc.Source,
			Username:       sc.Username,
			Password:       sc.Password,
			OutputDir:      sc.OutputDir,
			SegmentSeconds: sc.SegmentSeconds,
			MaxRetries:     sc.MaxRetries,
			RetryInterval:  sc.RetryInterval,
			StopGrace:      sc.StopGrace,
			ProbeTool:      sc.ProbeTool,
			CaptureTool:    sc.CaptureTool,
			MergeTool:      sc.MergeTool,
		}
		if s.Source == "" {
			s.Source = fmt.Sprintf("%s/%s", fc.Defaults.SourceBase, sc.Name)
		}
		if s.OutputDir == "" {
			if fc.Defaults.OutputBase == "" {
				return nil, fmt.Errorf("stream %s requires an output_dir (no defaults.output_base set)", sc.Name)
			}
			s.OutputDir = filepath.Join(fc.Defaults.OutputBase, sc.Name)
		}
		if s.SegmentSeconds == 0 {
			s.SegmentSeconds = fc.Defaults.SegmentSeconds
		}
		if s.MaxRetries == 0 {
			s.MaxRetries = fc.Defaults.MaxRetries
		}
		if s.RetryInterval == 0 {
			s.RetryInterval = fc.Defaults.RetryInterval
		}
		if s.StopGrace == 0 {
			s.StopGrace = fc.Defaults.StopGrace
		}
		if s.ProbeTool == "" {
			s.ProbeTool = fc.Defaults.ProbeTool
		}
		if s.CaptureTool == "" {
			s.CaptureTool = fc.Defaults.CaptureTool
		}
		if s.MergeTool == "" {
			s.MergeTool = fc.Defaults.MergeTool
		}
		// capture log config: top-level defaults overridden per stream
		var logCfg logger.Config
		if fc.Log != nil {
			logCfg = *fc.Log
		}
		if sc.Log != nil {
			if sc.Log.Dir != "" {
				logCfg.Dir = sc.Log.Dir
			}
			if sc.Log.Path != "" {
				logCfg.Path = sc.Log.Path
			}
			if sc.Log.MaxSizeMB != 0 {
				logCfg.MaxSizeMB = sc.Log.MaxSizeMB
			}
			if sc.Log.MaxBackups != 0 {
				logCfg.MaxBackups = sc.Log.MaxBackups
			}
			if sc.Log.MaxAgeDays != 0 {
				logCfg.MaxAgeDays = sc.Log.MaxAgeDays
			}
			if sc.Log.Compress {
				logCfg.Compress = true
			}
		}
		s.Log = logCfg
		specs = append(specs, s)
	}
	return specs, nil
}
