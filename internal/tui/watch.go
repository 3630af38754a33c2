// internal/tui/watch.go

// Package tui renders the live dashboard in the terminal from the server's event plane.
package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mwiater/georaft/internal/benchmark"
	"github.com/mwiater/georaft/internal/client"
	"github.com/mwiater/georaft/internal/dashboard"
	"github.com/mwiater/georaft/internal/metrics"
)

const (
	maxLogLines   = 200
	actionTimeout = 5 * time.Second
)

// Controller issues control-plane requests on behalf of key bindings.
type Controller interface {
	SetMonitoring(ctx context.Context, on bool) (client.MonitoringState, error)
	StartBenchmark(ctx context.Context, cfg benchmark.Config) (client.Started, error)
	StopBenchmark(ctx context.Context, id string) error
}

type (
	eventMsg        client.Event
	streamClosedMsg struct{}
	actionErrMsg    struct{ err error }
)

type activeRun struct {
	id       string
	progress float64
	round    int
}

type model struct {
	ctx    context.Context
	ctrl   Controller
	events <-chan client.Event
	server string

	spinner  spinner.Model
	viewport viewport.Model

	width, height int

	monitoring  bool
	snapshot    metrics.Snapshot
	hasSnapshot bool
	run         *activeRun
	last        *benchmark.CompletedEvent
	logLines    []string
	err         error
	closed      bool
}

func newModel(ctx context.Context, ctrl Controller, events <-chan client.Event, server string) *model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return &model{
		ctx:      ctx,
		ctrl:     ctrl,
		events:   events,
		server:   server,
		spinner:  s,
		viewport: viewport.New(80, 8),
	}
}

// Run drives the watch view until the user quits or ctx is cancelled.
func Run(ctx context.Context, ctrl Controller, events <-chan client.Event, server string) error {
	p := tea.NewProgram(newModel(ctx, ctrl, events, server), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init satisfies the tea.Model interface.
func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func waitForEvent(events <-chan client.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

// Update routes incoming messages to the appropriate handlers.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = max(msg.Width-4, 10)
		m.viewport.Height = max(msg.Height-18, 3)
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case eventMsg:
		m.apply(client.Event(msg))
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		m.closed = true
		return m, nil

	case actionErrMsg:
		m.err = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "ctrl+c":
		return tea.Quit
	case "m":
		on := !m.monitoring
		return m.action(func(ctx context.Context) error {
			_, err := m.ctrl.SetMonitoring(ctx, on)
			return err
		})
	case "s":
		if m.run != nil {
			return nil
		}
		return m.action(func(ctx context.Context) error {
			_, err := m.ctrl.StartBenchmark(ctx, nil)
			return err
		})
	case "x":
		if m.run == nil {
			return nil
		}
		id := m.run.id
		return m.action(func(ctx context.Context) error {
			return m.ctrl.StopBenchmark(ctx, id)
		})
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return cmd
}

// action runs fn off the update loop; state changes come back through the event plane.
func (m *model) action(fn func(ctx context.Context) error) tea.Cmd {
	if m.ctrl == nil {
		return nil
	}
	parent := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, actionTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			return actionErrMsg{err: err}
		}
		return nil
	}
}

func (m *model) apply(ev client.Event) {
	var err error
	switch ev.Type {
	case dashboard.EventPerformanceUpdate:
		var snap metrics.Snapshot
		if err = ev.Decode(&snap); err == nil {
			m.snapshot, m.hasSnapshot = snap, true
		}
	case dashboard.EventMonitoringStatus:
		var st dashboard.MonitoringStatus
		if err = ev.Decode(&st); err == nil {
			m.monitoring = st.IsMonitoring
		}
	case dashboard.EventMonitoringError:
		var me dashboard.MonitoringError
		if err = ev.Decode(&me); err == nil {
			m.err = errors.New(me.Error)
		}
	case benchmark.EventStarted:
		var se benchmark.StartedEvent
		if err = ev.Decode(&se); err == nil {
			m.run = &activeRun{id: se.ID}
			m.last = nil
			m.err = nil
			m.logLines = nil
			m.syncLog()
		}
	case benchmark.EventProgress:
		var pe benchmark.ProgressEvent
		if err = ev.Decode(&pe); err == nil && m.run != nil && m.run.id == pe.ID {
			m.run.progress, m.run.round = pe.Progress, pe.Round
		}
	case benchmark.EventOutput:
		var oe benchmark.OutputEvent
		if err = ev.Decode(&oe); err == nil {
			m.appendOutput(oe)
		}
	case benchmark.EventCompleted:
		var ce benchmark.CompletedEvent
		if err = ev.Decode(&ce); err == nil {
			m.last = &ce
			if m.run != nil && m.run.id == ce.ID {
				m.run = nil
			}
		}
	}
	if err != nil {
		m.err = fmt.Errorf("decode %s: %w", ev.Type, err)
	}
}

func (m *model) appendOutput(oe benchmark.OutputEvent) {
	prefix := ""
	if oe.Type == benchmark.StreamError {
		prefix = "! "
	}
	for _, line := range strings.Split(oe.Data, "\n") {
		line = strings.TrimRight(line, "\r ")
		if line == "" {
			continue
		}
		m.logLines = append(m.logLines, prefix+line)
	}
	if over := len(m.logLines) - maxLogLines; over > 0 {
		m.logLines = m.logLines[over:]
	}
	m.syncLog()
}

func (m *model) syncLog() {
	width := m.viewport.Width
	lines := make([]string, len(m.logLines))
	for i, l := range m.logLines {
		lines[i] = truncate(l, width)
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

// View renders the current state.
func (m *model) View() string {
	if m.width == 0 {
		return "Connecting..."
	}

	var b strings.Builder
	header := titleStyle.Render("georaft watch") + "  " + labelStyle.Render(m.server)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, header, "  ", renderMonitoringBadge(m.monitoring)))
	b.WriteString("\n\n")

	panels := []string{panelStyle.Render(m.realtimeView()), panelStyle.Render(m.regionsView())}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, panels...))
	b.WriteString("\n")
	b.WriteString(panelStyle.Render(m.benchmarkView()))
	b.WriteString("\n")
	b.WriteString(panelStyle.Render(m.viewport.View()))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n")
	}
	if m.closed {
		b.WriteString(errorStyle.Render("Disconnected from server") + "\n")
	}
	b.WriteString(helpStyle.Render("m toggle monitoring  s start benchmark  x stop benchmark  ↑/↓ scroll  q quit"))
	return lipgloss.NewStyle().Margin(0, 1).Render(b.String())
}

func (m *model) realtimeView() string {
	if !m.hasSnapshot {
		return labelStyle.Render("Waiting for metrics...")
	}
	rt, cs := m.snapshot.Realtime, m.snapshot.Consensus
	rows := []string{
		"Network  " + renderChip(rt.NetworkStatus),
		field("TPS", fmt.Sprintf("%.1f", rt.CurrentTPS)),
		field("Latency", fmt.Sprintf("%.0f ms", rt.AvgLatency)),
		field("Nodes", fmt.Sprintf("%d", rt.ActiveNodes)),
		field("Block height", fmt.Sprintf("%.0f", cs.BlockHeight)),
		field("Elections", fmt.Sprintf("%.0f", cs.LeaderElections)),
	}
	return strings.Join(rows, "\n")
}

func (m *model) regionsView() string {
	if len(m.snapshot.Geographic) == 0 {
		return labelStyle.Render("No regional data")
	}
	regions := make([]string, 0, len(m.snapshot.Geographic))
	for name := range m.snapshot.Geographic {
		regions = append(regions, name)
	}
	sort.Strings(regions)

	rows := []string{titleStyle.Render("Regions")}
	for _, name := range regions {
		st := m.snapshot.Geographic[name]
		rows = append(rows, fmt.Sprintf("%-12s %8.1f tps %6.0f ms", name, st.TPS, st.Latency))
	}
	return strings.Join(rows, "\n")
}

func (m *model) benchmarkView() string {
	barWidth := max(m.width-24, 10)
	switch {
	case m.run != nil:
		return fmt.Sprintf("%s Benchmark %s  round %d\n%s",
			m.spinner.View(), truncate(m.run.id, 12), m.run.round, renderBar(m.run.progress, barWidth))
	case m.last != nil:
		line := fmt.Sprintf("Benchmark %s  %s", truncate(m.last.ID, 12), renderChip(string(m.last.Status)))
		if r := m.last.Results; r != nil {
			line += fmt.Sprintf("\n%s  %s  %s",
				field("Avg TPS", fmt.Sprintf("%.1f", r.Overall.AvgTPS)),
				field("Peak", fmt.Sprintf("%.1f", r.Overall.PeakTPS)),
				field("Latency", fmt.Sprintf("%.0f ms", r.Overall.AvgLatency)))
			if r.Estimated {
				line += labelStyle.Render("  (estimated)")
			}
		}
		if m.last.Error != "" {
			line += "\n" + labelStyle.Render(m.last.Error)
		}
		return line
	default:
		return labelStyle.Render("No benchmark running")
	}
}

func field(label, value string) string {
	return labelStyle.Render(label+":") + " " + valueStyle.Render(value)
}
