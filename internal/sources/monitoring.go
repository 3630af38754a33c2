// internal/sources/monitoring.go
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mwiater/georaft/internal/logging"
)

// MonitoringSourceName is the source name queries use to address the monitoring service.
const MonitoringSourceName = "monitoring"

const maxDocumentBytes = 4 << 20

// MonitoringService reads JSON documents from the companion monitoring service.
// A query expression is the request path, e.g. "/api/metrics".
type MonitoringService struct {
	baseURL string
	client  *http.Client
}

// NewMonitoringService returns a source for the service rooted at baseURL.
func NewMonitoringService(baseURL string, timeout time.Duration) *MonitoringService {
	return &MonitoringService{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{ForceAttemptHTTP2: false},
		},
	}
}

// Name implements Source.
func (m *MonitoringService) Name() string { return MonitoringSourceName }

// Query fetches the document at path. A bare JSON number also yields a single Point.
func (m *MonitoringService) Query(ctx context.Context, path string) (Payload, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	endpoint := m.baseURL + path
	logging.LogRequest("out", m.baseURL, path, nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Payload{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return Payload{}, fmt.Errorf("%w: read body: %w", ErrSourceUnavailable, err)
	}
	logging.LogRequest("in", m.baseURL, path, body)

	if resp.StatusCode >= 400 {
		return Payload{}, fmt.Errorf("%w: %s returned %s: %s", ErrSourceUnavailable, path, resp.Status, strings.TrimSpace(string(body)))
	}
	if !json.Valid(body) {
		return Payload{}, fmt.Errorf("%s did not return valid JSON", path)
	}

	payload := Payload{Document: json.RawMessage(body)}
	if f, err := strconv.ParseFloat(strings.TrimSpace(string(body)), 64); err == nil {
		payload.Points = []Point{{Value: f, Timestamp: time.Now().UTC()}}
	}
	return payload, nil
}
