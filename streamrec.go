// Package streamrec records live network video streams into durable media
// files. It probes source availability with bounded retry, supervises an
// external capture pipeline per stream, and consolidates rotated segments
// into a single artifact when a recording stops.
package streamrec

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "streamrec/internal/config"
	"streamrec/internal/history"
	"streamrec/internal/logger"
	"streamrec/internal/metrics"
	"streamrec/internal/recorder"
	"streamrec/internal/registry"
	iapi "streamrec/internal/server"
	"streamrec/internal/store"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Spec = recorder.Spec

type Status = recorder.Status

type Defaults = recorder.Defaults

type Store = store.Store

type HistorySink = history.Sink

// Manager is a thin facade over internal/recorder.Manager.
// It provides a stable public API for embedding.

type Manager struct{ inner *recorder.Manager }

func New() *Manager {
	return &Manager{inner: recorder.NewManager(logger.New("info"))}
}

func NewWithLogLevel(level string) *Manager {
	return &Manager{inner: recorder.NewManager(logger.New(level))}
}

func (m *Manager) SetDefaults(d Defaults)            { m.inner.SetDefaults(d) }
func (m *Manager) SetStore(st Store)                 { m.inner.SetStore(st) }
func (m *Manager) SetHistorySink(sink HistorySink)   { m.inner.SetHistorySink(sink) }
func (m *Manager) Register(s Spec) error             { return m.inner.Register(s) }
func (m *Manager) StartRecording(name string) error  { return m.inner.StartRecording(name) }
func (m *Manager) StopRecording(name string) (string, error) {
	return m.inner.StopRecording(name)
}
func (m *Manager) Status(name string) (Status, error) { return m.inner.Status(name) }
func (m *Manager) StatusAll() []Status                { return m.inner.StatusAll() }
func (m *Manager) StopAll()                           { m.inner.StopAll() }

// NewRegistryClient builds a go2rtc registry client whose stream add/delete
// events drive this manager's recording lifecycle.
func (m *Manager) NewRegistryClient(baseURL string) *registry.Client {
	return registry.New(baseURL, m.inner, nil)
}

func LoadConfig(path string) (*cfg.FileConfig, error) {
	return cfg.Load(path)
}

// NewHTTPServer starts an HTTP server exposing the daemon API using the given manager.
func NewHTTPServer(addr, basePath string, m *Manager, reg *registry.Client) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, m.inner, reg)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the default registry.
// It returns any immediate listen error; otherwise it runs the server in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
