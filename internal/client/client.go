// internal/client/client.go

// Package client talks to a running georaft server over its control plane and event plane.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mwiater/georaft/internal/benchmark"
	"github.com/mwiater/georaft/internal/dashboard"
	"github.com/mwiater/georaft/internal/history"
	"github.com/mwiater/georaft/internal/logging"
)

// APIError is a non-2xx answer from the control plane.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Health is the answer of /api/health.
type Health struct {
	Status     string    `json:"status"`
	Version    string    `json:"version"`
	Uptime     string    `json:"uptime"`
	Monitoring bool      `json:"monitoring"`
	Timestamp  time.Time `json:"timestamp"`
}

// Started acknowledges a benchmark start.
type Started struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// MonitoringState acknowledges a monitoring toggle.
type MonitoringState struct {
	IsMonitoring bool `json:"isMonitoring"`
	Changed      bool `json:"changed"`
}

// Client is a thin JSON client for the control plane.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client for the server at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the server address the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// Health queries the liveness endpoint.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.do(ctx, http.MethodGet, "/api/health", nil, &out)
	return out, err
}

// Status returns the snapshot with monitoring and benchmark state.
func (c *Client) Status(ctx context.Context) (dashboard.Status, error) {
	var out dashboard.Status
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &out)
	return out, err
}

// StartBenchmark asks the server to start a run. A nil cfg uses the server defaults.
func (c *Client) StartBenchmark(ctx context.Context, cfg benchmark.Config) (Started, error) {
	var out Started
	var body any
	if len(cfg) > 0 {
		body = cfg
	}
	err := c.do(ctx, http.MethodPost, "/api/benchmarks", body, &out)
	return out, err
}

// StopBenchmark stops the active run with the given id.
func (c *Client) StopBenchmark(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/benchmarks/"+url.PathEscape(id)+"/stop", nil, nil)
}

// Details returns one run, active or retained.
func (c *Client) Details(ctx context.Context, id string) (benchmark.Run, error) {
	var out benchmark.Run
	err := c.do(ctx, http.MethodGet, "/api/benchmarks/"+url.PathEscape(id), nil, &out)
	return out, err
}

// ImportRun uploads a run produced by other tooling and returns the stored copy.
func (c *Client) ImportRun(ctx context.Context, run benchmark.Run) (benchmark.Run, error) {
	var out benchmark.Run
	err := c.do(ctx, http.MethodPost, "/api/benchmarks/import", run, &out)
	return out, err
}

// History returns the filtered history report.
func (c *Client) History(ctx context.Context, f history.Filter) (history.Report, error) {
	q := url.Values{}
	if f.Region != "" {
		q.Set("region", f.Region)
	}
	if f.Workload != "" {
		q.Set("workload", f.Workload)
	}
	if f.Window != "" {
		q.Set("time", f.Window)
	}
	path := "/api/benchmarks/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out history.Report
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// SetMonitoring starts or stops periodic collection.
func (c *Client) SetMonitoring(ctx context.Context, on bool) (MonitoringState, error) {
	path := "/api/monitoring/stop"
	if on {
		path = "/api/monitoring/start"
	}
	var out MonitoringState
	err := c.do(ctx, http.MethodPost, path, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	logging.LogRequest("out", c.baseURL, method+" "+path, body)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
