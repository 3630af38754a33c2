// internal/dashboard/service.go

// Package dashboard wires the engine together. Service is the single owner of the performance
// store, the metric source adapter, the run history, the benchmark orchestrator and the
// broadcast hub, and answers the read-only queries the control plane exposes.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mwiater/georaft/internal/appconfig"
	"github.com/mwiater/georaft/internal/benchmark"
	"github.com/mwiater/georaft/internal/history"
	"github.com/mwiater/georaft/internal/hub"
	"github.com/mwiater/georaft/internal/logging"
	"github.com/mwiater/georaft/internal/metrics"
	"github.com/mwiater/georaft/internal/selfmetrics"
	"github.com/mwiater/georaft/internal/sources"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound is returned for run ids that are neither active nor in history.
	ErrNotFound = errors.New("not found")
	// ErrNoPrometheus is returned by range queries when no Prometheus source is configured.
	ErrNoPrometheus = errors.New("prometheus source not configured")
)

// Event names published by the service itself.
const (
	EventPerformanceUpdate = "performance-update"
	EventMonitoringStatus  = "monitoring-status"
	EventMonitoringError   = "monitoring-error"
)

// MonitoringStatus is the payload of monitoring-status events.
type MonitoringStatus struct {
	IsMonitoring bool `json:"isMonitoring"`
}

// MonitoringError is the payload of monitoring-error events.
type MonitoringError struct {
	Error string `json:"error"`
}

// Option customizes a Service.
type Option func(*options)

type options struct {
	launcher benchmark.Launcher
	sources  []sources.Source
	now      func() time.Time
}

// WithLauncher replaces the process launcher used for benchmarks.
func WithLauncher(l benchmark.Launcher) Option {
	return func(o *options) { o.launcher = l }
}

// WithSources replaces the metric sources built from the configuration.
func WithSources(srcs ...sources.Source) Option {
	return func(o *options) { o.sources = srcs }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Service owns all mutable engine state. Start and Shutdown bound its lifetime.
type Service struct {
	cfg          appconfig.Config
	store        *metrics.Store
	adapter      *sources.Adapter
	prometheus   *sources.Prometheus
	history      *history.Aggregator
	orchestrator *benchmark.Orchestrator
	hub          *hub.Hub
	log          *logrus.Entry
	now          func() time.Time
	started      time.Time

	mu         sync.Mutex
	baseCtx    context.Context
	monitoring bool
	closing    bool
	session    *collectSession
}

// collectSession is one Start/Stop cycle of the collectors.
type collectSession struct {
	cancel context.CancelFunc
	done   sync.WaitGroup
}

// New builds a Service from cfg. Nothing runs until Start.
func New(cfg appconfig.Config, opts ...Option) (*Service, error) {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Service{
		cfg:     cfg,
		store:   metrics.NewStore(cfg.SampleCapacity(), cfg.TrendCapacity()),
		history: history.New(history.Options{MaxRuns: cfg.RunCapacity(), MaxDays: cfg.DayCapacity(), MaxTrend: cfg.TrendCapacity()}),
		hub:     hub.New(cfg.SubscriberBufferSize()),
		log:     logging.WithComponent("dashboard"),
		now:     o.now,
		baseCtx: context.Background(),
	}

	srcs := o.sources
	if srcs == nil {
		built, err := BuildSources(cfg)
		if err != nil {
			return nil, err
		}
		srcs = built
	}
	for _, src := range srcs {
		if p, ok := src.(*sources.Prometheus); ok {
			s.prometheus = p
		}
	}
	s.adapter = sources.NewAdapter(cfg.FetchTimeoutDuration(), srcs...)

	s.orchestrator = benchmark.NewOrchestrator(benchmark.Options{
		Launcher: o.launcher,
		Spec: benchmark.Spec{
			Command: cfg.Benchmark.CommandPath(),
			Args:    cfg.Benchmark.CommandArgs(),
			Dir:     cfg.Benchmark.WorkDir,
		},
		TotalRounds: cfg.Benchmark.Rounds(),
		Timeout:     cfg.Benchmark.TimeoutDuration(),
		Baseline:    benchmark.DefaultBaseline,
		Sink:        s.history,
		Notify:      s.onBenchmarkEvent,
	})

	s.hub.OnSubscribe(s.onSubscribe)
	return s, nil
}

// BuildSources constructs the metric backends named by cfg. An empty URL disables that backend.
func BuildSources(cfg appconfig.Config) ([]sources.Source, error) {
	var srcs []sources.Source
	if cfg.PrometheusURL != "" {
		p, err := sources.NewPrometheus(cfg.PrometheusURL)
		if err != nil {
			return nil, fmt.Errorf("prometheus source: %w", err)
		}
		srcs = append(srcs, p)
	}
	if cfg.MonitoringServiceURL != "" {
		srcs = append(srcs, sources.NewMonitoringService(cfg.MonitoringServiceURL, cfg.FetchTimeoutDuration()))
	}
	return srcs, nil
}

// Start records the lifetime context. Monitoring begins on StartMonitoring or, with
// autoStartMonitoring, when the first subscriber joins.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.started = s.now()
	s.mu.Unlock()
	s.log.WithFields(logrus.Fields{
		"prometheus":  s.cfg.PrometheusURL,
		"monitoring":  s.cfg.MonitoringServiceURL,
		"autoMonitor": s.cfg.AutoStartMonitoring,
	}).Info("dashboard service started")
}

// Shutdown stops the collectors, terminates any running benchmark and disconnects subscribers.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.StopMonitoring()
	err := s.orchestrator.Shutdown(ctx)
	s.hub.Close()
	s.log.Info("dashboard service stopped")
	return err
}

// Hub exposes the broadcast hub to transports.
func (s *Service) Hub() *hub.Hub { return s.hub }

// Monitoring reports whether the collectors are running.
func (s *Service) Monitoring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.monitoring
}

// StartMonitoring launches both collectors. It returns false if they were already running
// or the service is shutting down.
func (s *Service) StartMonitoring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.monitoring || s.closing {
		return false
	}
	ctx, cancel := context.WithCancel(s.baseCtx)
	sess := &collectSession{cancel: cancel}
	sess.done.Add(2)
	s.monitoring = true
	s.session = sess

	go s.runCollector(ctx, sess, "local", s.cfg.CollectIntervalDuration(), s.collectLocal)
	go s.runCollector(ctx, sess, "regional", s.cfg.RegionIntervalDuration(), s.collectRegions)

	s.log.Info("performance monitoring started")
	s.publishMonitoringStatus(true)
	return true
}

// StopMonitoring cancels the collectors and waits for that session to exit. A StartMonitoring
// racing with it begins a new session and is not waited on. It returns false if nothing was running.
func (s *Service) StopMonitoring() bool {
	s.mu.Lock()
	if !s.monitoring {
		s.mu.Unlock()
		return false
	}
	sess := s.session
	s.monitoring = false
	s.session = nil
	s.publishMonitoringStatus(false)
	s.mu.Unlock()

	sess.cancel()
	sess.done.Wait()
	s.log.Info("performance monitoring stopped")
	return true
}

func (s *Service) publishMonitoringStatus(on bool) {
	s.hub.Publish(hub.Event{Type: EventMonitoringStatus, Topic: hub.TopicMonitoring, Data: MonitoringStatus{IsMonitoring: on}})
}

// onSubscribe hands a new subscriber the current snapshot and monitoring state.
func (s *Service) onSubscribe(sub *hub.Subscription) {
	sub.Send(hub.Event{Type: EventPerformanceUpdate, Topic: hub.TopicPerformance, Data: s.store.Snapshot()})
	sub.Send(hub.Event{Type: EventMonitoringStatus, Topic: hub.TopicMonitoring, Data: MonitoringStatus{IsMonitoring: s.Monitoring()}})
	if s.cfg.AutoStartMonitoring {
		s.StartMonitoring()
	}
}

func (s *Service) onBenchmarkEvent(event string, payload any) {
	switch event {
	case benchmark.EventStarted:
		selfmetrics.SetBenchmarkActive(true)
	case benchmark.EventCompleted:
		selfmetrics.SetBenchmarkActive(false)
		if done, ok := payload.(benchmark.CompletedEvent); ok {
			selfmetrics.RecordRun(string(done.Status))
		}
	}
	s.hub.Publish(hub.Event{Type: event, Topic: hub.TopicBenchmark, Data: payload})
}
