// internal/dashboard/facade.go
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mwiater/georaft/internal/benchmark"
	"github.com/mwiater/georaft/internal/history"
	"github.com/mwiater/georaft/internal/metrics"
	"github.com/mwiater/georaft/internal/sources"
)

// BenchmarkStatus describes the active slot.
type BenchmarkStatus struct {
	Running bool           `json:"running"`
	Current *benchmark.Run `json:"current,omitempty"`
}

// Status is the answer to a status query.
type Status struct {
	Snapshot    metrics.Snapshot `json:"snapshot"`
	Monitoring  bool             `json:"isMonitoring"`
	Benchmark   BenchmarkStatus  `json:"benchmark"`
	HistorySize int              `json:"historySize"`
	Subscribers int              `json:"subscribers"`
	Uptime      string           `json:"uptime"`
}

// Snapshot returns the current Performance Store state.
func (s *Service) Snapshot() metrics.Snapshot { return s.store.Snapshot() }

// Status returns the snapshot together with monitoring and benchmark state.
func (s *Service) Status() Status {
	st := Status{
		Snapshot:    s.store.Snapshot(),
		Monitoring:  s.Monitoring(),
		HistorySize: s.history.Len(),
		Subscribers: s.hub.Count(),
		Uptime:      s.Uptime().Round(time.Second).String(),
	}
	if run, ok := s.orchestrator.Current(); ok {
		st.Benchmark = BenchmarkStatus{Running: true, Current: &run}
	}
	return st
}

// Uptime is the time since Start.
func (s *Service) Uptime() time.Duration {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started.IsZero() {
		return 0
	}
	return s.now().Sub(started)
}

// StartBenchmark starts a run with cfg, or the default config when cfg is empty.
func (s *Service) StartBenchmark(cfg benchmark.Config) (string, error) {
	id, err := s.orchestrator.Start(cfg)
	if err != nil {
		s.log.WithError(err).Warn("benchmark start rejected")
		return "", err
	}
	return id, nil
}

// StopBenchmark terminates the active run with the given id.
func (s *Service) StopBenchmark(id string) error {
	if err := s.orchestrator.Stop(id); err != nil {
		if errors.Is(err, benchmark.ErrRunNotFound) {
			return fmt.Errorf("benchmark %s is not running: %w", id, ErrNotFound)
		}
		return err
	}
	return nil
}

// History reports on the retained runs matching f.
func (s *Service) History(f history.Filter) (history.Report, error) {
	return s.history.Report(f, s.now())
}

// Details returns the run with the given id, active or finished.
func (s *Service) Details(id string) (benchmark.Run, error) {
	if run, err := s.orchestrator.Lookup(id); err == nil {
		return run, nil
	}
	if run, ok := s.history.Lookup(id); ok {
		return run, nil
	}
	return benchmark.Run{}, fmt.Errorf("benchmark %s: %w", id, ErrNotFound)
}

// QueryRange passes a range query through to Prometheus.
func (s *Service) QueryRange(ctx context.Context, expr string, start, end time.Time, step time.Duration) ([]sources.RangeSeries, error) {
	if s.prometheus == nil {
		return nil, ErrNoPrometheus
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeoutDuration())
	defer cancel()
	return s.prometheus.QueryRange(ctx, expr, start, end, step)
}

// ImportRun stores a run produced by other tooling so it counts toward history and trends.
func (s *Service) ImportRun(run benchmark.Run) (benchmark.Run, error) {
	stored, err := s.history.Import(run, s.now())
	if err != nil {
		return benchmark.Run{}, err
	}
	s.log.WithField("run", stored.ID).Info("benchmark run imported")
	return stored, nil
}
