package probe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"streamrec/internal/metrics"
)

// Defaults for the availability probe.
const (
	DefaultTool          = "gst-discoverer-1.0"
	DefaultTimeout       = 5 * time.Second
	DefaultMaxRetries    = 30
	DefaultRetryInterval = time.Second
)

// ErrUnavailable is returned when every probe attempt has been exhausted
// without observing a decodable video track.
var ErrUnavailable = errors.New("source did not become available")

// Result is the outcome of a single probe attempt. It is ephemeral and only
// surfaced for operator visibility.
type Result struct {
	Available   bool
	Attempt     int
	Diagnostics string
}

// Prober checks that a media source is reachable and carries a video track
// before a recording attempt is committed. It is a blocking, synchronous
// retry loop; cancellation is observed between attempts and during the
// retry sleep.
type Prober struct {
	Tool          string        // inspection binary, default gst-discoverer-1.0
	Timeout       time.Duration // per-attempt timeout, default 5s
	MaxRetries    int
	RetryInterval time.Duration
	Logger        *slog.Logger
}

func (p *Prober) tool() string {
	if p.Tool != "" {
		return p.Tool
	}
	return DefaultTool
}

func (p *Prober) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return DefaultTimeout
}

func (p *Prober) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Probe runs up to MaxRetries inspection attempts against sourceURL, sleeping
// RetryInterval between failed attempts. It returns the last attempt's result;
// on success it returns immediately without sleeping. A per-attempt timeout,
// a non-zero exit, a missing video indicator and an invocation error are all
// counted as failed attempts, never as hard errors.
func (p *Prober) Probe(ctx context.Context, name, sourceURL string) Result {
	retries := p.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}
	interval := p.RetryInterval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	log := p.logger()

	var last Result
	for attempt := 1; attempt <= retries; attempt++ {
		if ctx.Err() != nil {
			last.Attempt = attempt
			return last
		}
		log.Debug("probing source", "name", name, "url", sourceURL, "attempt", attempt, "max", retries)

		last = p.attempt(ctx, attempt, sourceURL)
		if last.Available {
			metrics.IncProbeAttempt(name, "ok")
			log.Info("source available", "name", name, "attempt", attempt)
			return last
		}
		metrics.IncProbeAttempt(name, "fail")
		log.Warn("probe attempt failed", "name", name, "attempt", attempt, "diagnostics", last.Diagnostics)

		if attempt == retries {
			break
		}
		t := time.NewTimer(interval)
		select {
		case <-t.C:
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return last
		}
	}
	log.Warn("source did not become available", "name", name, "attempts", retries)
	return last
}

// attempt runs one inspection tool invocation with the per-attempt timeout.
func (p *Prober) attempt(ctx context.Context, n int, sourceURL string) Result {
	cctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	var stdout, stderr bytes.Buffer
	// #nosec G204 -- tool path comes from trusted configuration
	cmd := exec.CommandContext(cctx, p.tool(), sourceURL)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	diag := strings.TrimSpace(stdout.String() + "\n" + stderr.String())
	res := Result{Attempt: n, Diagnostics: diag}
	switch {
	case err == nil && strings.Contains(strings.ToLower(stdout.String()), "video"):
		res.Available = true
	case errors.Is(cctx.Err(), context.DeadlineExceeded):
		p.logger().Debug("probe timed out", "attempt", n)
	case err != nil:
		// non-zero exit or invocation failure: counted as a failed attempt
		p.logger().Debug("probe tool error", "attempt", n, "err", err)
	}
	return res
}
