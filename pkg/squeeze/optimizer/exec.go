package optimizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/jamesainslie/squeeze/pkg/squeeze/logging"
)

// ErrTimeout is wrapped by an InvocationError whose tool ran past its
// deadline.
var ErrTimeout = errors.New("optimizer invocation timed out")

// maxStderr bounds the captured stderr kept for error reports.
const maxStderr = 16 * 1024

// waitDelay bounds how long Exec waits for a killed tool's children to
// release its output pipes.
const waitDelay = 10 * time.Second

// InvocationError describes a failed external tool invocation.
type InvocationError struct {
	Tool     string
	Args     []string
	ExitCode int
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *InvocationError) Error() string {
	var b strings.Builder
	switch {
	case e.TimedOut:
		fmt.Fprintf(&b, "%s timed out", e.Tool)
	case e.ExitCode > 0:
		fmt.Fprintf(&b, "%s exited with status %d", e.Tool, e.ExitCode)
	default:
		fmt.Fprintf(&b, "%s failed: %v", e.Tool, e.Err)
	}
	if msg := lastLine(e.Stderr); msg != "" {
		fmt.Fprintf(&b, ": %s", msg)
	}
	return b.String()
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Exec runs external tools.
type Exec struct {
	// Timeout bounds each invocation. Zero disables the limit.
	Timeout time.Duration

	// Verbose receives a copy of the tool's stderr as it is written.
	Verbose io.Writer

	// Logger records invocations. Nil uses the "optimizer" component logger.
	Logger *logging.Logger
}

// Run invokes tool with args and waits for it to exit.
func (e *Exec) Run(ctx context.Context, tool string, args ...string) error {
	log := e.Logger
	if log == nil {
		log = logging.Get("optimizer")
	}

	runCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, tool, args...)
	cmd.WaitDelay = waitDelay

	stderr := &tailBuffer{limit: maxStderr}
	if e.Verbose != nil {
		cmd.Stderr = io.MultiWriter(stderr, e.Verbose)
	} else {
		cmd.Stderr = stderr
	}

	log.Debug("running optimizer", "tool", tool, "args", len(args))
	start := time.Now()
	err := cmd.Run()
	if err == nil {
		log.Debug("optimizer finished", "tool", tool, "elapsed", time.Since(start).Round(time.Millisecond))
		return nil
	}

	invErr := &InvocationError{
		Tool:     tool,
		Args:     args,
		ExitCode: -1,
		Stderr:   stderr.String(),
		Err:      err,
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		invErr.ExitCode = exitErr.ExitCode()
	}

	switch {
	case ctx.Err() != nil:
		invErr.Err = ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		invErr.TimedOut = true
		invErr.Err = fmt.Errorf("%w after %s", ErrTimeout, e.Timeout)
	}

	log.Error("optimizer failed", "tool", tool, "exit_code", invErr.ExitCode, "timed_out", invErr.TimedOut, "err", err)
	return invErr
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	}
	return strings.TrimSpace(s)
}
