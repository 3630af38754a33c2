// internal/tui/watch_test.go
package tui

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mwiater/georaft/internal/benchmark"
	"github.com/mwiater/georaft/internal/client"
	"github.com/mwiater/georaft/internal/dashboard"
	"github.com/mwiater/georaft/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	monitoring []bool
	started    int
	stopped    []string
	err        error
}

func (f *fakeController) SetMonitoring(_ context.Context, on bool) (client.MonitoringState, error) {
	f.monitoring = append(f.monitoring, on)
	return client.MonitoringState{IsMonitoring: on, Changed: true}, f.err
}

func (f *fakeController) StartBenchmark(context.Context, benchmark.Config) (client.Started, error) {
	f.started++
	return client.Started{ID: "run-1"}, f.err
}

func (f *fakeController) StopBenchmark(_ context.Context, id string) error {
	f.stopped = append(f.stopped, id)
	return f.err
}

func event(t *testing.T, typ string, data any) eventMsg {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return eventMsg(client.Event{Type: typ, Data: raw})
}

func update(t *testing.T, m *model, msg tea.Msg) (*model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(*model), cmd
}

func TestUpdateHandlesKeysAndResize(t *testing.T) {
	ctrl := &fakeController{}
	m := newModel(context.Background(), ctrl, make(chan client.Event), "http://localhost:8080")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, m.width)
	assert.Equal(t, 40, m.height)
	assert.Equal(t, 116, m.viewport.Width)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
	assert.Equal(t, []bool{true}, ctrl.monitoring)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, 1, ctrl.started)

	// nothing to stop yet
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.Nil(t, cmd)
}

func TestActionErrorsSurfaceInView(t *testing.T) {
	ctrl := &fakeController{err: errors.New("server returned 409: a benchmark is already running")}
	m := newModel(context.Background(), ctrl, make(chan client.Event), "srv")
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Contains(t, m.View(), "already running")
}

func TestEventsDriveBenchmarkLifecycle(t *testing.T) {
	events := make(chan client.Event, 1)
	ctrl := &fakeController{}
	m := newModel(context.Background(), ctrl, events, "srv")
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	m, cmd := update(t, m, event(t, benchmark.EventStarted, benchmark.StartedEvent{ID: "run-1"}))
	require.NotNil(t, cmd, "keeps listening for events")
	require.NotNil(t, m.run)
	assert.Contains(t, m.View(), "round 0")

	m, _ = update(t, m, event(t, benchmark.EventProgress, benchmark.ProgressEvent{ID: "run-1", Progress: 42.9, Round: 3}))
	assert.Equal(t, 3, m.run.round)
	assert.Contains(t, m.View(), "42.9%")

	m, _ = update(t, m, event(t, benchmark.EventProgress, benchmark.ProgressEvent{ID: "other", Progress: 99, Round: 7}))
	assert.Equal(t, 3, m.run.round, "progress for another run is ignored")

	m, _ = update(t, m, event(t, benchmark.EventOutput, benchmark.OutputEvent{ID: "run-1", Data: "Round 3 done\n512 tps\n", Type: benchmark.StreamOutput}))
	m, _ = update(t, m, event(t, benchmark.EventOutput, benchmark.OutputEvent{ID: "run-1", Data: "peer warning", Type: benchmark.StreamError}))
	assert.Equal(t, []string{"Round 3 done", "512 tps", "! peer warning"}, m.logLines)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []string{"run-1"}, ctrl.stopped)

	results := benchmark.Finalize(benchmark.DefaultConfig(), nil, benchmark.DefaultBaseline)
	m, _ = update(t, m, event(t, benchmark.EventCompleted, benchmark.CompletedEvent{ID: "run-1", Status: benchmark.StatusCompleted, Results: results}))
	assert.Nil(t, m.run)
	view := m.View()
	assert.Contains(t, view, "completed")
	assert.Contains(t, view, "(estimated)")
}

func TestEventsUpdateMetricsAndMonitoring(t *testing.T) {
	m := newModel(context.Background(), nil, make(chan client.Event), "srv")
	assert.Equal(t, "Connecting...", m.View())
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Contains(t, m.View(), "Waiting for metrics")

	snap := metrics.Snapshot{
		Realtime:   metrics.RealtimeStats{CurrentTPS: 512.4, AvgLatency: 410, ActiveNodes: 11, NetworkStatus: "healthy"},
		Geographic: map[string]metrics.RegionalStat{"europe": {Region: "europe", TPS: 180, Latency: 220}},
	}
	m, _ = update(t, m, event(t, dashboard.EventPerformanceUpdate, snap))
	m, _ = update(t, m, event(t, dashboard.EventMonitoringStatus, dashboard.MonitoringStatus{IsMonitoring: true}))

	view := m.View()
	assert.True(t, m.monitoring)
	assert.Contains(t, view, "Monitoring: on")
	assert.Contains(t, view, "512.4")
	assert.Contains(t, view, "europe")

	m, _ = update(t, m, event(t, dashboard.EventMonitoringError, dashboard.MonitoringError{Error: "no metric source answered"}))
	assert.Contains(t, m.View(), "no metric source answered")

	m, _ = update(t, m, streamClosedMsg{})
	assert.Contains(t, m.View(), "Disconnected")

	// no controller configured: key bindings are inert
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	assert.Nil(t, cmd)
}

func TestWaitForEventReportsClosedStream(t *testing.T) {
	events := make(chan client.Event, 1)
	events <- client.Event{Type: dashboard.EventMonitoringStatus}
	close(events)

	msg := waitForEvent(events)()
	_, ok := msg.(eventMsg)
	assert.True(t, ok)
	assert.Equal(t, streamClosedMsg{}, waitForEvent(events)())
}

func TestRenderHelpers(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "abc…", truncate("abcdef", 4))
	assert.True(t, strings.HasSuffix(renderBar(150, 10), "100.0%"))
	assert.True(t, strings.HasSuffix(renderBar(-5, 10), "  0.0%"))
	assert.Contains(t, renderChip("mystery"), "mystery")
}
