// internal/benchmark/orchestrator.go

// Package benchmark supervises the external load generator: one run at a time, its output
// scanned for progress and throughput markers, and its results finalized on exit.
package benchmark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mwiater/georaft/internal/logging"
	"github.com/mwiater/georaft/internal/metrics"
	"github.com/sirupsen/logrus"
)

var (
	// ErrAlreadyRunning rejects a start while another run is active.
	ErrAlreadyRunning = errors.New("benchmark already running")
	// ErrRunNotFound is returned for ids that do not name the active run.
	ErrRunNotFound = errors.New("benchmark run not found")
)

// Lifecycle event names.
const (
	EventStarted   = "benchmark-started"
	EventProgress  = "benchmark-progress"
	EventOutput    = "benchmark-output"
	EventCompleted = "benchmark-completed"
)

// StartedEvent is published once the process is running.
type StartedEvent struct {
	ID     string `json:"id"`
	Config Config `json:"config"`
}

// ProgressEvent is published whenever progress advances.
type ProgressEvent struct {
	ID       string  `json:"id"`
	Progress float64 `json:"progress"`
	Round    int     `json:"round"`
}

// OutputEvent relays one chunk of process output.
type OutputEvent struct {
	ID   string `json:"id"`
	Data string `json:"data"`
	Type Stream `json:"type"`
}

// CompletedEvent is published on the terminal transition.
type CompletedEvent struct {
	ID      string   `json:"id"`
	Status  Status   `json:"status"`
	Results *Results `json:"results,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Sink receives every terminal run exactly once.
type Sink interface {
	Ingest(run Run)
}

// Options configures an Orchestrator.
type Options struct {
	Launcher    Launcher
	Spec        Spec
	TotalRounds int
	Timeout     time.Duration
	MaxSamples  int
	Baseline    Baseline
	Sink        Sink
	// Notify receives lifecycle events; it must not block.
	Notify      func(event string, payload any)
}

// Orchestrator owns the single active run. All state changes happen under mu.
type Orchestrator struct {
	mu     sync.Mutex
	opts   Options
	active *activeRun
	wg     sync.WaitGroup
	log    *logrus.Entry
	newID  func() string
	now    func() time.Time
}

type activeRun struct {
	run     Run
	samples *metrics.Ring[Sample]
	proc    Process
	cancel  context.CancelFunc
	stopped bool
}

// NewOrchestrator applies defaults to opts and returns an idle orchestrator.
func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Launcher == nil {
		opts.Launcher = ExecLauncher{}
	}
	if opts.TotalRounds <= 0 {
		opts.TotalRounds = 7
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Hour
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 1000
	}
	if opts.Baseline == (Baseline{}) {
		opts.Baseline = DefaultBaseline
	}
	if opts.Notify == nil {
		opts.Notify = func(string, any) {}
	}
	return &Orchestrator{
		opts:  opts,
		log:   logging.WithComponent("benchmark"),
		newID: uuid.NewString,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Start validates cfg, reserves the active slot and launches the benchmark asynchronously.
// It returns the new run id, or ErrAlreadyRunning without changing any state.
func (o *Orchestrator) Start(cfg Config) (string, error) {
	if len(cfg) == 0 {
		cfg = DefaultConfig()
	}
	if err := ValidateConfig(cfg); err != nil {
		return "", err
	}

	o.mu.Lock()
	if o.active != nil {
		o.mu.Unlock()
		return "", ErrAlreadyRunning
	}
	id := o.newID()
	ctx, cancel := context.WithTimeout(context.Background(), o.opts.Timeout)
	o.active = &activeRun{
		run: Run{
			ID:        id,
			Status:    StatusPending,
			StartTime: o.now(),
			Config:    cfg.clone(),
		},
		samples: metrics.NewRing[Sample](o.opts.MaxSamples),
		cancel:  cancel,
	}
	spec := o.specFor(id, cfg)
	o.wg.Add(1)
	o.mu.Unlock()

	o.log.WithField("run", id).Info("benchmark requested")
	go o.execute(ctx, id, spec)
	return id, nil
}

// Stop kills the process of the active run. The run ends failed.
func (o *Orchestrator) Stop(id string) error {
	o.mu.Lock()
	a := o.active
	if a == nil || a.run.ID != id {
		o.mu.Unlock()
		return ErrRunNotFound
	}
	a.stopped = true
	proc := a.proc
	o.mu.Unlock()

	o.log.WithField("run", id).Info("benchmark stop requested")
	if proc != nil {
		if err := proc.Kill(); err != nil {
			return fmt.Errorf("kill benchmark: %w", err)
		}
	}
	a.cancel()
	return nil
}

// Current returns a copy of the active run.
func (o *Orchestrator) Current() (Run, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		return Run{}, false
	}
	return o.snapshot(o.active), true
}

// Lookup returns a copy of the active run if it has the given id.
func (o *Orchestrator) Lookup(id string) (Run, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil || o.active.run.ID != id {
		return Run{}, ErrRunNotFound
	}
	return o.snapshot(o.active), nil
}

// Running reports whether a run occupies the active slot.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active != nil
}

// Shutdown stops any active run and waits for its supervisor goroutine.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	if run, ok := o.Current(); ok {
		_ = o.Stop(run.ID)
	}
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) snapshot(a *activeRun) Run {
	run := a.run.Clone()
	run.Samples = a.samples.Items()
	return run
}

func (o *Orchestrator) execute(ctx context.Context, id string, spec Spec) {
	defer o.wg.Done()
	log := o.log.WithField("run", id)

	proc, err := o.opts.Launcher.Launch(ctx, spec)
	if err != nil {
		log.WithError(err).Error("benchmark spawn failed")
		o.finish(id, nil, fmt.Errorf("spawn %s: %w", spec.Command, err))
		return
	}

	o.mu.Lock()
	a := o.active
	a.proc = proc
	a.run.Status = StatusRunning
	stopped := a.stopped
	cfg := a.run.Config.clone()
	o.mu.Unlock()

	if stopped {
		_ = proc.Kill()
	}
	log.WithField("command", spec.Command).Info("benchmark running")
	o.opts.Notify(EventStarted, StartedEvent{ID: id, Config: cfg})

	for chunk := range proc.Output() {
		o.handleChunk(id, chunk)
	}

	code, waitErr := proc.Wait()
	o.finish(id, &code, waitErr)
}

func (o *Orchestrator) handleChunk(id string, chunk Chunk) {
	o.opts.Notify(EventOutput, OutputEvent{ID: id, Data: chunk.Data, Type: chunk.Stream})
	if chunk.Stream != StreamOutput {
		logging.LogRequest("in", "benchmark", "stderr", chunk.Data)
		return
	}

	sig := ParseChunk(chunk.Data)
	if sig.Empty() {
		return
	}

	var progress *ProgressEvent
	o.mu.Lock()
	a := o.active
	if sig.HasRound {
		p := ProgressFor(sig.Round, o.opts.TotalRounds)
		if p > a.run.Progress {
			a.run.Progress = p
			a.run.Round = sig.Round
			progress = &ProgressEvent{ID: id, Progress: p, Round: sig.Round}
		}
	}
	if sig.HasTPS {
		a.samples.Push(Sample{Timestamp: o.now(), TPS: sig.TPS})
	}
	if sig.HasLatency {
		// latency belongs to the most recent throughput sample; it is dropped when there is none
		a.samples.UpdateLast(func(s *Sample) { s.Latency = sig.Latency })
	}
	o.mu.Unlock()

	if progress != nil {
		o.opts.Notify(EventProgress, *progress)
	}
}

// finish performs the terminal transition, hands the run to the sink and frees the active slot.
// exitCode is nil when the process never started.
func (o *Orchestrator) finish(id string, exitCode *int, runErr error) {
	o.mu.Lock()
	a := o.active
	a.cancel()
	run := a.run
	end := o.now()
	run.EndTime = &end
	run.ExitCode = exitCode
	run.Samples = a.samples.Items()

	switch {
	case exitCode != nil && *exitCode == 0 && runErr == nil:
		run.Status = StatusCompleted
	default:
		run.Status = StatusFailed
		switch {
		case a.stopped:
			run.Error = "stopped by request"
		case runErr != nil:
			run.Error = runErr.Error()
		default:
			run.Error = fmt.Sprintf("benchmark exited with code %d", *exitCode)
		}
	}
	run.Results = Finalize(run.Config, run.Samples, o.opts.Baseline)

	if o.opts.Sink != nil {
		o.opts.Sink.Ingest(run.Clone())
	}
	o.active = nil
	o.mu.Unlock()

	o.log.WithFields(logrus.Fields{
		"run":       id,
		"status":    run.Status,
		"samples":   len(run.Samples),
		"estimated": run.Results.Estimated,
	}).Info("benchmark finished")
	o.opts.Notify(EventCompleted, CompletedEvent{ID: id, Status: run.Status, Results: run.Results, Error: run.Error})
}

// specFor adds the run identity and parameters to the configured command.
func (o *Orchestrator) specFor(id string, cfg Config) Spec {
	spec := o.opts.Spec
	spec.Args = append([]string(nil), spec.Args...)
	overrides := map[string]string{
		"--caliper-benchconfig":   cfg.String("benchConfig"),
		"--caliper-networkconfig": cfg.String("networkConfig"),
	}
	for i := 0; i+1 < len(spec.Args); i++ {
		if v := overrides[spec.Args[i]]; v != "" {
			spec.Args[i+1] = v
		}
	}

	raw, _ := json.Marshal(cfg)
	spec.Env = append(append([]string(nil), spec.Env...),
		"GEORAFT_RUN_ID="+id,
		"GEORAFT_BENCHMARK_CONFIG="+string(raw),
	)
	if regions := cfg.Regions(); len(regions) > 0 {
		spec.Env = append(spec.Env, "GEORAFT_REGIONS="+strings.Join(regions, ","))
	}
	return spec
}
