package tooling

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultWatchTimeout bounds RunUntil when WatchSpec.Timeout is zero.
const DefaultWatchTimeout = time.Minute

// Predicate reports whether an output line is the one being waited for.
type Predicate func(kind StreamKind, line string) bool

// WatchSpec configures RunUntil.
type WatchSpec struct {
	Command   string
	Args      []string
	Dir       string
	Predicate Predicate
	Timeout   time.Duration
	Logger    zerolog.Logger
}

// Watched is a process started by RunUntil. It keeps running after RunUntil
// returns; the caller decides when to stop it.
type Watched struct {
	cmd      *exec.Cmd
	command  string
	done     chan struct{}
	exitCode int
	err      error
}

// RunUntil starts the command and returns once a line satisfies the
// predicate. Every line is logged, stderr lines as errors, whether or not it
// matched. On timeout a *TimeoutError is returned and the process is left
// running. A non-zero exit while waiting yields a *ProcessExitError, and a
// failure reading its output ends the wait with that error.
func RunUntil(ctx context.Context, spec WatchSpec) (*Watched, error) {
	if strings.TrimSpace(spec.Command) == "" {
		return nil, &ConfigurationError{Field: "command", Reason: "empty"}
	}
	if spec.Predicate == nil {
		return nil, &ConfigurationError{Field: "predicate", Reason: "nil"}
	}
	if spec.Dir != "" {
		if info, err := os.Stat(spec.Dir); err != nil || !info.IsDir() {
			return nil, &ConfigurationError{Field: "working directory", Value: spec.Dir, Reason: "does not exist"}
		}
	}
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = DefaultWatchTimeout
	}

	// Not bound to ctx: the process must outlive a timed out wait.
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = os.Environ()

	w := &Watched{
		cmd:      cmd,
		command:  NewArguments(append([]string{spec.Command}, spec.Args...)...).String(),
		done:     make(chan struct{}),
		exitCode: -1,
	}
	logger := spec.Logger.With().Str("command", spec.Command).Logger()

	lines := make(chan Line, 64)
	forward := func(kind StreamKind, text string) { lines <- Line{Stream: kind, Text: text} }
	stdout := newLineWriter(StdOut, forward)
	stderr := newLineWriter(StdErr, forward)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = PipeWaitDelay

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", spec.Command, err)
	}
	logger.Info().Int("pid", cmd.Process.Pid).Msgf("> %s", w.command)

	matched := make(chan struct{})
	var once sync.Once
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		found := false
		for l := range lines {
			if l.Stream == StdErr {
				logger.Error().Msg(l.Text)
			} else {
				logger.Info().Msg(l.Text)
			}
			if found || !spec.Predicate(l.Stream, l.Text) {
				continue
			}
			found = true
			once.Do(func() { close(matched) })
		}
	}()

	go func() {
		err := cmd.Wait()
		stdout.Flush()
		stderr.Flush()
		close(lines)
		<-consumed

		code := 0
		if err != nil {
			var exitErr *exec.ExitError
			switch {
			case errors.As(err, &exitErr):
				code = exitErr.ExitCode()
			case errors.Is(err, exec.ErrWaitDelay):
				logger.Warn().Dur("delay", PipeWaitDelay).Msg("output still held open by a child process; stopped reading")
			default:
				code = -1
				logger.Error().Err(err).Msg("read output")
				w.err = fmt.Errorf("read output of %s: %w", w.command, err)
			}
		}
		w.exitCode = code
		close(w.done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-matched:
		return w, w.exitFailure()
	case <-w.done:
		select {
		case <-matched:
			return w, w.exitFailure()
		default:
		}
		if err := w.exitFailure(); err != nil {
			return w, err
		}
		// exited cleanly without a match; nothing else can arrive
		select {
		case <-timer.C:
			return w, &TimeoutError{Command: w.command, Timeout: timeout}
		case <-ctx.Done():
			return w, ctx.Err()
		}
	case <-timer.C:
		return w, &TimeoutError{Command: w.command, Timeout: timeout}
	case <-ctx.Done():
		return w, ctx.Err()
	}
}

// exitFailure returns a *ProcessExitError if the process has already exited
// with a non-zero code, or the error that stopped its output from being read.
func (w *Watched) exitFailure() error {
	if !w.Exited() {
		return nil
	}
	if w.err != nil {
		return w.err
	}
	if w.exitCode == 0 {
		return nil
	}
	return &ProcessExitError{Command: w.command, Code: w.exitCode}
}

func (w *Watched) Pid() int {
	if w.cmd.Process == nil {
		return 0
	}
	return w.cmd.Process.Pid
}

// Exited reports whether the process has terminated and its output has been
// fully consumed.
func (w *Watched) Exited() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// ExitCode returns -1 while the process is running.
func (w *Watched) ExitCode() int {
	if !w.Exited() {
		return -1
	}
	return w.exitCode
}

// Kill terminates the process. It is a no-op once the process has exited.
func (w *Watched) Kill() error {
	if w.Exited() || w.cmd.Process == nil {
		return nil
	}
	if err := w.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// Wait blocks until the process exits or ctx is done.
func (w *Watched) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return w.exitFailure()
	case <-ctx.Done():
		return ctx.Err()
	}
}
