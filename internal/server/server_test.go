package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mwiater/georaft/internal/appconfig"
	"github.com/mwiater/georaft/internal/benchmark"
	"github.com/mwiater/georaft/internal/dashboard"
	"github.com/mwiater/georaft/internal/history"
	"github.com/mwiater/georaft/internal/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quietSource struct{}

func (quietSource) Name() string { return "prometheus" }
func (quietSource) Query(context.Context, string) (sources.Payload, error) {
	return sources.Payload{Points: []sources.Point{{Value: 42, Timestamp: time.Now()}}}, nil
}

type heldProcess struct {
	out  chan benchmark.Chunk
	exit chan int
	once sync.Once
}

func (p *heldProcess) Output() <-chan benchmark.Chunk { return p.out }
func (p *heldProcess) Wait() (int, error) {
	if code := <-p.exit; code != 0 {
		return code, errors.New("killed")
	}
	return 0, nil
}
func (p *heldProcess) Kill() error { p.release(-1); return nil }
func (p *heldProcess) release(code int) {
	p.once.Do(func() {
		close(p.out)
		p.exit <- code
	})
}

type heldLauncher struct{ procs chan *heldProcess }

func (l heldLauncher) Launch(context.Context, benchmark.Spec) (benchmark.Process, error) {
	p := &heldProcess{out: make(chan benchmark.Chunk, 4), exit: make(chan int, 1)}
	l.procs <- p
	return p, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *dashboard.Service, heldLauncher) {
	t.Helper()
	cfg := appconfig.Default()
	cfg.AutoStartMonitoring = false
	cfg.CollectInterval = 20 * time.Millisecond
	cfg.Queries = []appconfig.Query{{Name: "fabric_transactions", Source: "prometheus", Expr: "tps", Series: "tps"}}
	cfg.RegionQueries = nil

	launcher := heldLauncher{procs: make(chan *heldProcess, 4)}
	svc, err := dashboard.New(cfg, dashboard.WithSources(quietSource{}), dashboard.WithLauncher(launcher))
	require.NoError(t, err)
	svc.Start(context.Background())

	ts := httptest.NewServer(New(svc, Options{Version: "test"}).Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return ts, svc, launcher
}

func doJSON(t *testing.T, method, url, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestBenchmarkEndpoints(t *testing.T) {
	ts, _, launcher := newTestServer(t)

	var started map[string]string
	code := doJSON(t, http.MethodPost, ts.URL+"/api/benchmarks", "", &started)
	require.Equal(t, http.StatusAccepted, code)
	id := started["id"]
	require.NotEmpty(t, id)

	var conflict map[string]string
	code = doJSON(t, http.MethodPost, ts.URL+"/api/benchmarks", `{"transactions":1000}`, &conflict)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, conflict["error"], "already running")

	<-launcher.procs

	var status dashboard.Status
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/status", "", &status))
	assert.True(t, status.Benchmark.Running)

	require.Equal(t, http.StatusAccepted, doJSON(t, http.MethodPost, ts.URL+"/api/benchmarks/"+id+"/stop", "", nil))

	require.Eventually(t, func() bool {
		var run benchmark.Run
		return doJSON(t, http.MethodGet, ts.URL+"/api/benchmarks/"+id, "", &run) == http.StatusOK && run.Status == benchmark.StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	var report struct {
		Summary struct {
			TotalRuns int `json:"totalRuns"`
		} `json:"summary"`
		History []benchmark.Run `json:"history"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/benchmarks/history?time=24h&region=europe", "", &report))
	assert.Equal(t, 1, report.Summary.TotalRuns)
	require.Len(t, report.History, 1)
	assert.Equal(t, id, report.History[0].ID)

	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, ts.URL+"/api/benchmarks/unknown", "", nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodPost, ts.URL+"/api/benchmarks/unknown/stop", "", nil))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, ts.URL+"/api/benchmarks/history?time=1y", "", nil))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, ts.URL+"/api/benchmarks", `{"workers":0}`, nil))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, ts.URL+"/api/benchmarks", `not json`, nil))
}

func TestImportEndpoint(t *testing.T) {
	ts, _, _ := newTestServer(t)

	body := `{"status":"completed","config":{"workload":"geo-mixed","regions":["europe"]},` +
		`"results":{"overall":{"transactions":9000,"avgTPS":455,"peakTPS":610,"avgLatency":380},` +
		`"byRegion":{"europe":{"transactions":9000,"avgTPS":455,"peakTPS":610,"avgLatency":380}}}}`
	var stored benchmark.Run
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, ts.URL+"/api/benchmarks/import", body, &stored))
	require.NotEmpty(t, stored.ID)
	assert.Equal(t, benchmark.StatusCompleted, stored.Status)

	var run benchmark.Run
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/benchmarks/"+stored.ID, "", &run))
	assert.Equal(t, "geo-mixed", run.Workload())

	var report history.Report
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/benchmarks/history?workload=geo-mixed", "", &report))
	assert.Equal(t, 1, report.Summary.TotalRuns)
	require.Len(t, report.Historical.DailyAverages, 1)
	assert.Equal(t, float64(455), report.Historical.DailyAverages[0].AvgTPS)

	var rejected map[string]string
	code := doJSON(t, http.MethodPost, ts.URL+"/api/benchmarks/import", `{"status":"running","results":{}}`, &rejected)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, rejected["error"], "not terminal")
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, ts.URL+"/api/benchmarks/import", "", nil))
}

func TestHealthMetricsAndRange(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var health map[string]any
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/health", "", &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "test", health["version"])

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, ts.URL+"/api/prometheus/query_range", "", nil))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, ts.URL+"/api/prometheus/query_range?query=up&step=-1", "", nil))
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(t, http.MethodGet, ts.URL+"/api/prometheus/query_range?query=up", "", nil),
		"stub source is not a Prometheus client")
}

func TestMonitoringEndpoints(t *testing.T) {
	ts, svc, _ := newTestServer(t)

	var out map[string]bool
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/api/monitoring/start", "", &out))
	assert.True(t, out["changed"])
	assert.True(t, svc.Monitoring())

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/api/monitoring/start", "", &out))
	assert.False(t, out["changed"])

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/api/monitoring/stop", "", &out))
	assert.True(t, out["changed"])
	assert.False(t, svc.Monitoring())
}

type frame struct {
	Type  string          `json:"type"`
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, conn *websocket.Conn, eventType string) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == eventType {
			return f
		}
	}
}

func TestWebSocketEventPlane(t *testing.T) {
	ts, svc, launcher := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	initial := readFrame(t, conn, dashboard.EventPerformanceUpdate)
	assert.Equal(t, "performance", initial.Topic)
	status := readFrame(t, conn, dashboard.EventMonitoringStatus)
	assert.JSONEq(t, `{"isMonitoring":false}`, string(status.Data))

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionSubscribe, Room: "benchmark"}))
	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionSubscribe, Room: "monitoring"}))
	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionStartMonitoring}))
	status = readFrame(t, conn, dashboard.EventMonitoringStatus)
	assert.JSONEq(t, `{"isMonitoring":true}`, string(status.Data))
	assert.True(t, svc.Monitoring())

	id, err := svc.StartBenchmark(nil)
	require.NoError(t, err)
	proc := <-launcher.procs
	started := readFrame(t, conn, benchmark.EventStarted)
	assert.Contains(t, string(started.Data), id)

	proc.out <- benchmark.Chunk{Stream: benchmark.StreamOutput, Data: "Round 1"}
	progress := readFrame(t, conn, benchmark.EventProgress)
	assert.Contains(t, string(progress.Data), `"round":1`)
	proc.release(0)

	done := readFrame(t, conn, benchmark.EventCompleted)
	assert.Contains(t, string(done.Data), `"status":"completed"`)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionSnapshot}))
	readFrame(t, conn, dashboard.EventPerformanceUpdate)
}
