package benchmark

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *fakeLauncher, *recordingSink, *eventLog) {
	t.Helper()
	launcher := newFakeLauncher()
	sink := newRecordingSink()
	events := &eventLog{}
	o := NewOrchestrator(Options{
		Launcher:    launcher,
		Spec:        Spec{Command: "caliper", Args: []string{"launch", "--caliper-benchconfig", "bench.yaml"}},
		TotalRounds: 7,
		Sink:        sink,
		Notify:      events.notify,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = o.Shutdown(ctx)
	})
	return o, launcher, sink, events
}

func waitRun(t *testing.T, sink *recordingSink) Run {
	t.Helper()
	select {
	case run := <-sink.runs:
		return run
	case <-time.After(2 * time.Second):
		t.Fatal("run never reached a terminal state")
		return Run{}
	}
}

func waitProcess(t *testing.T, l *fakeLauncher) *fakeProcess {
	t.Helper()
	select {
	case p := <-l.launched:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("process never launched")
		return nil
	}
}

func TestStartCompletesWithEstimatedResults(t *testing.T) {
	o, launcher, sink, events := newTestOrchestrator(t)

	id, err := o.Start(Config{"transactions": float64(1000)})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	proc := waitProcess(t, launcher)
	require.Eventually(t, func() bool {
		run, err := o.Lookup(id)
		return err == nil && run.Status == StatusRunning
	}, time.Second, 5*time.Millisecond)

	proc.exitWith(0)
	run := waitRun(t, sink)

	assert.Equal(t, id, run.ID)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, float64(0), run.Progress)
	require.NotNil(t, run.EndTime)
	require.NotNil(t, run.ExitCode)
	assert.Equal(t, 0, *run.ExitCode)
	require.NotNil(t, run.Results)
	assert.True(t, run.Results.Estimated)
	assert.Equal(t, float64(1000), run.Results.Overall.Transactions)
	assert.Len(t, run.Results.ByRegion, 3)
	assert.Len(t, run.Results.ByTransactionType, 4)

	require.Eventually(t, func() bool { return !o.Running() }, time.Second, 5*time.Millisecond)
	_, err = o.Lookup(id)
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.Eventually(t, func() bool { return events.count(EventCompleted) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, events.count(EventStarted))
}

func TestConcurrentStartsAdmitExactlyOne(t *testing.T) {
	o, launcher, sink, _ := newTestOrchestrator(t)

	const callers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     []string
		refused int
	)
	gate := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			id, err := o.Start(nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, ErrAlreadyRunning)
				refused++
				return
			}
			ids = append(ids, id)
		}()
	}
	close(gate)
	wg.Wait()

	require.Len(t, ids, 1)
	assert.Equal(t, callers-1, refused)

	proc := waitProcess(t, launcher)
	proc.exitWith(0)
	waitRun(t, sink)

	require.Eventually(t, func() bool { return !o.Running() }, time.Second, 5*time.Millisecond)
	_, err := o.Start(nil)
	assert.NoError(t, err)
	waitProcess(t, launcher).exitWith(0)
	waitRun(t, sink)
}

func TestOutputDrivesProgressAndSamples(t *testing.T) {
	o, launcher, sink, events := newTestOrchestrator(t)

	id, err := o.Start(Config{"workload": "mixed"})
	require.NoError(t, err)
	proc := waitProcess(t, launcher)

	proc.emit(StreamOutput, "Round 1 started")
	proc.emit(StreamOutput, "Throughput 120.5 tps")
	proc.emit(StreamOutput, "avg latency 300 ms")
	proc.emit(StreamOutput, "Round 3 finished: 200 TPS, avg latency 250ms")
	proc.emit(StreamOutput, "Round 2 replayed")
	proc.emit(StreamError, "warning: peer slow")
	proc.exitWith(0)

	run := waitRun(t, sink)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.InDelta(t, 3.0/7.0*100, run.Progress, 1e-9)
	assert.Equal(t, 3, run.Round)

	require.Len(t, run.Samples, 2)
	assert.Equal(t, 120.5, run.Samples[0].TPS)
	assert.Equal(t, float64(300), run.Samples[0].Latency)
	assert.Equal(t, float64(200), run.Samples[1].TPS)
	assert.Equal(t, float64(250), run.Samples[1].Latency)

	require.NotNil(t, run.Results)
	assert.False(t, run.Results.Estimated)
	assert.InDelta(t, 160.25, run.Results.Overall.AvgTPS, 1e-9)
	assert.InDelta(t, 275, run.Results.Overall.AvgLatency, 1e-9)
	assert.Equal(t, float64(200), run.Results.Overall.PeakTPS)
	assert.Len(t, run.Results.TimeSeries, 2)

	assert.Equal(t, 2, events.count(EventProgress))
	assert.Equal(t, 6, events.count(EventOutput))
	var sawError bool
	for _, p := range events.payloads(EventOutput) {
		out := p.(OutputEvent)
		assert.Equal(t, id, out.ID)
		if out.Type == StreamError {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

func TestLatencyWithoutSampleIsDroppedAndNonZeroExitFails(t *testing.T) {
	o, launcher, sink, _ := newTestOrchestrator(t)

	_, err := o.Start(nil)
	require.NoError(t, err)
	proc := waitProcess(t, launcher)
	proc.emit(StreamOutput, "avg latency 90 ms")
	proc.exitWith(1)

	run := waitRun(t, sink)
	assert.Equal(t, StatusFailed, run.Status)
	require.NotNil(t, run.ExitCode)
	assert.Equal(t, 1, *run.ExitCode)
	assert.NotEmpty(t, run.Error)
	assert.Empty(t, run.Samples)
	assert.True(t, run.Results.Estimated)
}

func TestSpawnFailureFailsImmediately(t *testing.T) {
	o, launcher, sink, events := newTestOrchestrator(t)
	launcher.err = errors.New("executable file not found")

	_, err := o.Start(nil)
	require.NoError(t, err)

	run := waitRun(t, sink)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Nil(t, run.ExitCode)
	assert.Contains(t, run.Error, "executable file not found")
	assert.Equal(t, 0, events.count(EventStarted))

	require.Eventually(t, func() bool { return !o.Running() }, time.Second, 5*time.Millisecond)
	launcher.mu.Lock()
	launcher.err = nil
	launcher.mu.Unlock()
	_, err = o.Start(nil)
	require.NoError(t, err)
	waitProcess(t, launcher).exitWith(0)
	assert.Equal(t, StatusCompleted, waitRun(t, sink).Status)
}

func TestStopKillsActiveRun(t *testing.T) {
	o, launcher, sink, _ := newTestOrchestrator(t)

	assert.ErrorIs(t, o.Stop("missing"), ErrRunNotFound)

	id, err := o.Start(nil)
	require.NoError(t, err)
	waitProcess(t, launcher)
	require.Eventually(t, func() bool {
		run, ok := o.Current()
		return ok && run.Status == StatusRunning
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, o.Stop(id))
	run := waitRun(t, sink)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, "stopped by request", run.Error)
}

func TestStartRejectsInvalidConfig(t *testing.T) {
	o, _, _, _ := newTestOrchestrator(t)
	_, err := o.Start(Config{"transactions": "lots"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.False(t, o.Running())
}

func TestSpecCarriesRunParameters(t *testing.T) {
	o, launcher, sink, _ := newTestOrchestrator(t)
	id, err := o.Start(Config{"benchConfig": "geo.yaml", "regions": []any{"europe"}})
	require.NoError(t, err)
	waitProcess(t, launcher).exitWith(0)
	run := waitRun(t, sink)

	launcher.mu.Lock()
	spec := launcher.specs[0]
	launcher.mu.Unlock()
	assert.Equal(t, []string{"launch", "--caliper-benchconfig", "geo.yaml"}, spec.Args)
	assert.Contains(t, spec.Env, "GEORAFT_RUN_ID="+id)
	assert.Contains(t, spec.Env, "GEORAFT_REGIONS=europe")
	assert.Equal(t, []string{"europe"}, keys(run.Results.ByRegion))
}

func TestExecLauncherRunsRealProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	sink := newRecordingSink()
	o := NewOrchestrator(Options{
		Spec: Spec{Command: "sh", Args: []string{"-c", "echo 'Round 7 complete 250 tps'; echo oops 1>&2; exit 3"}},
		Sink: sink,
	})

	_, err := o.Start(nil)
	require.NoError(t, err)
	run := waitRun(t, sink)
	assert.Equal(t, StatusFailed, run.Status)
	require.NotNil(t, run.ExitCode)
	assert.Equal(t, 3, *run.ExitCode)
	assert.Equal(t, float64(100), run.Progress)
	require.Len(t, run.Samples, 1)
	assert.Equal(t, float64(250), run.Samples[0].TPS)
	assert.True(t, strings.Contains(run.Error, "exit status 3"))
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
