// Package alignhost runs the external aligner as an isolated child process.
package alignhost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rshade/alignblocks/internal/engine"
	"github.com/rshade/alignblocks/internal/logging"
)

const (
	processWaitDelay = 100 * time.Millisecond // Time to wait for I/O after killing the process
	stderrTailBytes  = 4 << 10                // Stderr kept for failure notices
)

// ErrTimeout is returned when an invocation exceeds ProcessExecutor.Timeout.
var ErrTimeout = errors.New("aligner invocation timed out")

// ProcessExecutor implements engine.Executor with os/exec.
//
// Standard output is captured in full. Standard error is streamed to Stderr as it
// arrives and its tail is kept in the Result for the failure notice.
type ProcessExecutor struct {
	// Timeout bounds one invocation. Zero waits indefinitely.
	Timeout time.Duration

	// Stderr receives the child's standard error. Defaults to os.Stderr.
	Stderr io.Writer

	// Dir is the child's working directory. Empty means the current directory.
	Dir string
}

// NewProcessExecutor creates an executor that forwards child stderr to os.Stderr.
func NewProcessExecutor(timeout time.Duration) *ProcessExecutor {
	return &ProcessExecutor{Timeout: timeout, Stderr: os.Stderr}
}

var _ engine.Executor = (*ProcessExecutor)(nil)

// Execute starts argv[0] with argv[1:] and waits for it to exit.
func (p *ProcessExecutor) Execute(ctx context.Context, argv []string) (engine.Result, error) {
	if len(argv) == 0 {
		return engine.Result{}, errors.New("empty argv")
	}
	log := logging.FromContext(ctx)

	runCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	//nolint:gosec // The aligner path is operator-supplied by design.
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = p.Dir
	// Set WaitDelay before Start to avoid race condition with watchCtx goroutine
	cmd.WaitDelay = processWaitDelay

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return engine.Result{}, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return engine.Result{}, fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		return engine.Result{}, fmt.Errorf("starting aligner: %w", err)
	}

	log.Debug().
		Ctx(ctx).
		Str("component", "alignhost").
		Str("program", argv[0]).
		Int("args", len(argv)-1).
		Int("pid", cmd.Process.Pid).
		Msg("aligner process started")

	var stdout bytes.Buffer
	tail := newTailBuffer(stderrTailBytes)
	stderrSink := io.Writer(tail)
	if p.Stderr != nil {
		stderrSink = io.MultiWriter(tail, bestEffortWriter{p.Stderr})
	}

	// Both pipes must be drained before Wait, or a chatty child blocks on a full pipe.
	var g errgroup.Group
	g.Go(func() error {
		_, copyErr := io.Copy(&stdout, stdoutPipe)
		return copyErr
	})
	g.Go(func() error {
		_, copyErr := io.Copy(stderrSink, stderrPipe)
		return copyErr
	})
	copyErr := g.Wait()
	waitErr := cmd.Wait()

	res := engine.Result{
		Stdout:   stdout.Bytes(),
		Stderr:   tail.Bytes(),
		ExitCode: cmd.ProcessState.ExitCode(),
	}

	if p.Timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return res, fmt.Errorf("%w after %s", ErrTimeout, p.Timeout)
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return res, fmt.Errorf("waiting for aligner: %w", waitErr)
	}
	if exitErr != nil && res.ExitCode < 0 {
		// Killed by a signal: there is no exit status to report.
		return res, fmt.Errorf("aligner terminated: %w", exitErr)
	}
	if copyErr != nil && waitErr == nil {
		return res, fmt.Errorf("capturing aligner output: %w", copyErr)
	}

	log.Debug().
		Ctx(ctx).
		Str("component", "alignhost").
		Int("pid", cmd.Process.Pid).
		Int("exit_code", res.ExitCode).
		Int("stdout_bytes", len(res.Stdout)).
		Msg("aligner process exited")

	return res, nil
}

// bestEffortWriter never fails, so a broken diagnostic stream cannot fail an invocation.
type bestEffortWriter struct{ w io.Writer }

func (b bestEffortWriter) Write(p []byte) (int, error) {
	_, _ = b.w.Write(p)
	return len(p), nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	buf   []byte
	limit int
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) Bytes() []byte {
	return t.buf
}
