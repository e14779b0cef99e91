package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIClient talks to a running streamrec daemon over its HTTP API.
type APIClient struct {
	baseURL string
	http    *http.Client
}

func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// IsReachable checks the daemon health endpoint.
func (c *APIClient) IsReachable() bool {
	resp, err := c.http.Get(c.baseURL + "/healthz")
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

func (c *APIClient) do(method, endpoint string, params url.Values) (json.RawMessage, error) {
	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("daemon: %s", e.Error)
		}
		return nil, fmt.Errorf("daemon: status %d", resp.StatusCode)
	}
	return body, nil
}

func (c *APIClient) StartRecording(name string) error {
	_, err := c.do(http.MethodPost, "/record/start", url.Values{"name": {name}})
	return err
}

func (c *APIClient) StopRecording(name string) (json.RawMessage, error) {
	return c.do(http.MethodPost, "/record/stop", url.Values{"name": {name}})
}

func (c *APIClient) Status(name string) (json.RawMessage, error) {
	params := url.Values{}
	if name != "" {
		params.Set("name", name)
	}
	return c.do(http.MethodGet, "/status", params)
}

func (c *APIClient) ListStreams() (json.RawMessage, error) {
	return c.do(http.MethodGet, "/streams", nil)
}

func (c *APIClient) AddStream(name, src string) error {
	_, err := c.do(http.MethodPut, "/streams", url.Values{"name": {name}, "src": {src}})
	return err
}

func (c *APIClient) DeleteStream(name string) error {
	_, err := c.do(http.MethodDelete, "/streams", url.Values{"name": {name}})
	return err
}
