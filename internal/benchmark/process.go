// internal/benchmark/process.go
package benchmark

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Stream names the pipe a Chunk was read from.
type Stream string

const (
	StreamOutput Stream = "output"
	StreamError  Stream = "error"
)

// Chunk is one read from the benchmark process.
type Chunk struct {
	Stream Stream
	Data   string
}

// Spec describes the process to launch.
type Spec struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
}

// Process is a launched benchmark. Output is closed once both pipes are drained;
// Wait must be called after Output is closed.
type Process interface {
	Output() <-chan Chunk
	Wait() (exitCode int, err error)
	Kill() error
}

// Launcher starts benchmark processes.
type Launcher interface {
	Launch(ctx context.Context, spec Spec) (Process, error)
}

// ExecLauncher runs the benchmark as an operating-system process.
type ExecLauncher struct{}

const chunkSize = 4096

// Launch starts spec and begins streaming its stdout and stderr.
func (ExecLauncher) Launch(ctx context.Context, spec Spec) (Process, error) {
	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.WaitDelay = 2 * time.Second

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &execProcess{cmd: cmd, out: make(chan Chunk, 64)}
	var wg sync.WaitGroup
	wg.Add(2)
	go p.pump(&wg, stdoutPipe, StreamOutput)
	go p.pump(&wg, stderrPipe, StreamError)
	go func() {
		wg.Wait()
		close(p.out)
	}()
	return p, nil
}

type execProcess struct {
	cmd *exec.Cmd
	out chan Chunk
}

func (p *execProcess) pump(wg *sync.WaitGroup, r io.Reader, stream Stream) {
	defer wg.Done()
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			p.out <- Chunk{Stream: stream, Data: string(buf[:n])}
		}
		if err != nil {
			return
		}
	}
}

func (p *execProcess) Output() <-chan Chunk { return p.out }

func (p *execProcess) Wait() (int, error) {
	if err := p.cmd.Wait(); err != nil {
		return exitStatus(err), err
	}
	return 0, nil
}

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func exitStatus(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return 1
}
