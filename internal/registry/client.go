// Package registry wraps the go2rtc stream registry API. It is a thin
// request/response client with no retry or state of its own; the recording
// lifecycle reacts to its add/delete events through the recorder Manager.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"streamrec/internal/recorder"
)

const defaultTimeout = 10 * time.Second

// Client talks to a go2rtc-compatible stream registry.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *slog.Logger

	// Manager receives start/stop calls on stream add/delete. Optional;
	// a nil Manager makes the client a pure registry wrapper.
	Manager *recorder.Manager
}

func New(baseURL string, mgr *recorder.Manager, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: defaultTimeout},
		Logger:  log,
		Manager: mgr,
	}
}

// request sends one API call with URL-encoded params and decodes the JSON
// body when present. Empty bodies are success.
func (c *Client) request(ctx context.Context, method, endpoint string, params url.Values, out any) error {
	u := c.BaseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("registry %s %s: %w", method, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("registry %s %s: read body: %w", method, endpoint, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("registry %s %s: status %d: %s", method, endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil || len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// ListStreams returns the registry's stream catalog.
func (c *Client) ListStreams(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	if err := c.request(ctx, http.MethodGet, "/api/streams", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddStream registers a stream and starts recording it continuously.
func (c *Client) AddStream(ctx context.Context, name, src string) error {
	params := url.Values{"name": {name}, "src": {src}}
	if err := c.request(ctx, http.MethodPut, "/api/streams", params, nil); err != nil {
		return err
	}
	if c.Manager != nil {
		if err := c.Manager.StartRecording(name); err != nil {
			return fmt.Errorf("stream %s added but recording failed to start: %w", name, err)
		}
	}
	return nil
}

// UpdateStream replaces an existing stream's source.
func (c *Client) UpdateStream(ctx context.Context, name, src string) error {
	params := url.Values{"name": {name}, "src": {src}}
	return c.request(ctx, http.MethodPut, "/api/streams", params, nil)
}

// DeleteStream removes a stream from the registry and stops its recording.
func (c *Client) DeleteStream(ctx context.Context, name string) error {
	params := url.Values{"src": {name}}
	if err := c.request(ctx, http.MethodDelete, "/api/streams", params, nil); err != nil {
		return err
	}
	if c.Manager != nil {
		if _, err := c.Manager.StopRecording(name); err != nil {
			c.Logger.Warn("stream deleted but merge reported an error", "name", name, "err", err)
		}
	}
	return nil
}

// FFmpegDevices lists FFmpeg-compatible USB devices known to the registry.
func (c *Client) FFmpegDevices(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	if err := c.request(ctx, http.MethodGet, "/api/ffmpeg/devices", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ONVIFCameras lists ONVIF cameras discovered on the network.
func (c *Client) ONVIFCameras(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	if err := c.request(ctx, http.MethodGet, "/api/onvif", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
