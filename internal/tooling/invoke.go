package tooling

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PipeWaitDelay bounds how long Wait keeps reading output after the process
// exits or is cancelled. Grandchildren that inherited the pipes can otherwise
// hold them open indefinitely.
const PipeWaitDelay = 500 * time.Millisecond

// StreamKind tags an output line with the stream it was read from.
type StreamKind int

const (
	StdOut StreamKind = iota
	StdErr
)

func (k StreamKind) String() string {
	if k == StdErr {
		return "stderr"
	}
	return "stdout"
}

// Line is a single line of process output.
type Line struct {
	Stream StreamKind
	Text   string
}

// Completed describes a process that has exited.
type Completed struct {
	ExitCode int
	Output   []Line
	Duration time.Duration
}

// Stdout returns the standard output lines in emission order.
func (c *Completed) Stdout() []string {
	return c.lines(StdOut)
}

// Stderr returns the standard error lines in emission order.
func (c *Completed) Stderr() []string {
	return c.lines(StdErr)
}

func (c *Completed) lines(kind StreamKind) []string {
	var out []string
	for _, l := range c.Output {
		if l.Stream == kind {
			out = append(out, l.Text)
		}
	}
	return out
}

// Invoker runs fully composed options.
type Invoker interface {
	Invoke(ctx context.Context, o *Options) ([]string, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, o *Options) ([]string, error)

func (f InvokerFunc) Invoke(ctx context.Context, o *Options) ([]string, error) {
	return f(ctx, o)
}

// ProcessInvoker starts the configured executable as a child process.
type ProcessInvoker struct{}

func (ProcessInvoker) Invoke(ctx context.Context, o *Options) ([]string, error) {
	return Invoke(ctx, o)
}

// Invoke validates o, runs the process to completion and applies the exit
// handler. It returns the captured standard output lines.
func Invoke(ctx context.Context, o *Options) ([]string, error) {
	if o == nil {
		return nil, &ConfigurationError{Field: "options", Reason: "nil"}
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}

	logger := o.Logger.With().
		Str("invocation", uuid.NewString()).
		Str("tool", filepath.Base(o.ExecutablePath)).
		Logger()

	cmd := exec.CommandContext(ctx, o.ExecutablePath, o.CommandLine().Tokens()...)
	cmd.Dir = o.WorkingDirectory
	cmd.Env = o.environ()

	var (
		mu     sync.Mutex
		output []Line
	)
	collect := func(kind StreamKind, text string) {
		mu.Lock()
		output = append(output, Line{Stream: kind, Text: text})
		mu.Unlock()
		if !o.LogOutput {
			return
		}
		if kind == StdErr {
			logger.Warn().Msg(text)
		} else {
			logger.Debug().Msg(text)
		}
	}
	stdout := newLineWriter(StdOut, collect)
	stderr := newLineWriter(StdErr, collect)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = PipeWaitDelay

	logger.Info().Str("dir", o.WorkingDirectory).Msgf("> %s", o.String())
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", o.ExecutablePath, err)
	}

	waitErr := cmd.Wait()
	stdout.Flush()
	stderr.Flush()

	completed := &Completed{ExitCode: 0, Output: output, Duration: time.Since(start)}
	if waitErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", o.String(), ctxErr)
		}
		var exitErr *exec.ExitError
		switch {
		case errors.As(waitErr, &exitErr):
			completed.ExitCode = exitErr.ExitCode()
		case errors.Is(waitErr, exec.ErrWaitDelay):
			logger.Warn().Dur("delay", PipeWaitDelay).Msg("output still held open by a child process; stopped reading")
		default:
			return nil, fmt.Errorf("wait %s: %w", o.String(), waitErr)
		}
	}

	logger.Debug().
		Int("exit", completed.ExitCode).
		Dur("duration", completed.Duration).
		Msg("process exited")

	handler := o.ExitHandler
	if handler == nil {
		handler = DefaultExitHandler
	}
	if err := handler(o, completed); err != nil {
		return nil, err
	}
	return completed.Stdout(), nil
}

// DefaultExitHandler fails on any non-zero exit code. Windows Explorer reports
// exit code 1 even when it succeeds, so that combination is accepted.
func DefaultExitHandler(o *Options, c *Completed) error {
	if c.ExitCode == 0 {
		return nil
	}
	if c.ExitCode == 1 && alwaysExitsOne(o) {
		return nil
	}
	return &NonZeroExitError{
		Command: o.String(),
		Code:    c.ExitCode,
		Stderr:  strings.Join(c.Stderr(), "\n"),
	}
}

func alwaysExitsOne(o *Options) bool {
	if o.Platform != "windows" {
		return false
	}
	name := strings.ToLower(filepath.Base(strings.ReplaceAll(o.ExecutablePath, `\`, "/")))
	return name == "explorer" || name == "explorer.exe"
}

// lineWriter splits written bytes into lines and hands each complete line to
// emit. Line length is unbounded.
type lineWriter struct {
	mu      sync.Mutex
	kind    StreamKind
	emit    func(StreamKind, string)
	pending []byte
}

func newLineWriter(kind StreamKind, emit func(StreamKind, string)) *lineWriter {
	return &lineWriter{kind: kind, emit: emit}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := len(p)
	for {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			break
		}
		w.pending = append(w.pending, p[:i]...)
		w.emitPending()
		p = p[i+1:]
	}
	w.pending = append(w.pending, p...)
	return n, nil
}

// Flush emits a trailing line that was not terminated by a newline.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) > 0 {
		w.emitPending()
	}
}

func (w *lineWriter) emitPending() {
	w.emit(w.kind, strings.TrimRight(string(w.pending), "\r"))
	w.pending = w.pending[:0]
}
