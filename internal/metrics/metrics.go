package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	probeAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamrec",
			Subsystem: "probe",
			Name:      "attempts_total",
			Help:      "Number of availability probe attempts by result.",
		}, []string{"name", "result"},
	)
	captureStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamrec",
			Subsystem: "capture",
			Name:      "starts_total",
			Help:      "Number of capture pipeline launches.",
		}, []string{"name"},
	)
	captureStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamrec",
			Subsystem: "capture",
			Name:      "stops_total",
			Help:      "Number of capture pipeline exits (clean or failed).",
		}, []string{"name", "result"},
	)
	activeRecordings = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "streamrec",
			Subsystem: "recorder",
			Name:      "active_sessions",
			Help:      "Current number of sessions in the Recording state.",
		},
	)
	merges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamrec",
			Subsystem: "merge",
			Name:      "runs_total",
			Help:      "Number of segment merge runs by result.",
		}, []string{"name", "result"},
	)
	mergeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "streamrec",
			Subsystem: "merge",
			Name:      "duration_seconds",
			Help:      "Wall time of segment merge runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"name"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{probeAttempts, captureStarts, captureStops, activeRecordings, merges, mergeDuration}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncProbeAttempt(name, result string) {
	if regOK.Load() {
		probeAttempts.WithLabelValues(name, result).Inc()
	}
}

func IncCaptureStart(name string) {
	if regOK.Load() {
		captureStarts.WithLabelValues(name).Inc()
	}
}

func IncCaptureStop(name, result string) {
	if regOK.Load() {
		captureStops.WithLabelValues(name, result).Inc()
	}
}

func AddActiveRecordings(delta float64) {
	if regOK.Load() {
		activeRecordings.Add(delta)
	}
}

func IncMerge(name, result string) {
	if regOK.Load() {
		merges.WithLabelValues(name, result).Inc()
	}
}

func ObserveMergeDuration(name string, seconds float64) {
	if regOK.Load() {
		mergeDuration.WithLabelValues(name).Observe(seconds)
	}
}
