package benchmark

import (
	"context"
	"fmt"
	"sync"
)

type fakeProcess struct {
	out  chan Chunk
	exit chan int
	once sync.Once
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{out: make(chan Chunk, 32), exit: make(chan int, 1)}
}

func (p *fakeProcess) Output() <-chan Chunk { return p.out }

func (p *fakeProcess) Wait() (int, error) {
	code := <-p.exit
	if code != 0 {
		return code, fmt.Errorf("exit status %d", code)
	}
	return 0, nil
}

func (p *fakeProcess) Kill() error {
	p.exitWith(-1)
	return nil
}

func (p *fakeProcess) emit(stream Stream, data string) {
	p.out <- Chunk{Stream: stream, Data: data}
}

func (p *fakeProcess) exitWith(code int) {
	p.once.Do(func() {
		close(p.out)
		p.exit <- code
	})
}

type fakeLauncher struct {
	mu       sync.Mutex
	err      error
	specs    []Spec
	launched chan *fakeProcess
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{launched: make(chan *fakeProcess, 8)}
}

func (l *fakeLauncher) Launch(_ context.Context, spec Spec) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.specs = append(l.specs, spec)
	if l.err != nil {
		return nil, l.err
	}
	p := newFakeProcess()
	l.launched <- p
	return p, nil
}

type recordingSink struct {
	runs chan Run
}

func newRecordingSink() *recordingSink {
	return &recordingSink{runs: make(chan Run, 8)}
}

func (s *recordingSink) Ingest(run Run) { s.runs <- run }

type eventLog struct {
	mu     sync.Mutex
	events []string
	data   []any
}

func (e *eventLog) notify(event string, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	e.data = append(e.data, payload)
}

func (e *eventLog) count(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.events {
		if ev == event {
			n++
		}
	}
	return n
}

func (e *eventLog) payloads(event string) []any {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []any
	for i, ev := range e.events {
		if ev == event {
			out = append(out, e.data[i])
		}
	}
	return out
}
