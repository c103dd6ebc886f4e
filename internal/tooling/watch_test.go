package tooling

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func shellWatch(t *testing.T, script string, pred Predicate, timeout time.Duration) WatchSpec {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	return WatchSpec{
		Command:   "/bin/sh",
		Args:      []string{"-c", script},
		Predicate: pred,
		Timeout:   timeout,
	}
}

func lineIs(want string) Predicate {
	return func(_ StreamKind, line string) bool { return line == want }
}

func killOnCleanup(t *testing.T, w *Watched) {
	t.Helper()
	if w == nil {
		return
	}
	t.Cleanup(func() {
		_ = w.Kill()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = w.Wait(ctx)
	})
}

func TestRunUntilMatchesSecondLine(t *testing.T) {
	logs := &syncBuffer{}
	spec := shellWatch(t, "echo starting; echo ready; echo after; exec sleep 10", lineIs("ready"), 5*time.Second)
	spec.Logger = zerolog.New(logs)

	start := time.Now()
	w, err := RunUntil(context.Background(), spec)
	killOnCleanup(t, w)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.False(t, w.Exited())
	assert.Positive(t, w.Pid())

	// lines after the match are still logged
	assert.Eventually(t, func() bool { return strings.Contains(logs.String(), "after") }, 2*time.Second, 10*time.Millisecond)
}

func TestRunUntilMatchAfterLongLine(t *testing.T) {
	spec := shellWatch(t, "head -c 2000000 /dev/zero | tr '\\0' x; echo; echo ready; exec sleep 5", lineIs("ready"), 5*time.Second)

	w, err := RunUntil(context.Background(), spec)
	killOnCleanup(t, w)
	require.NoError(t, err)
	assert.False(t, w.Exited())
}

func TestWatchedReportsOutputError(t *testing.T) {
	readErr := errors.New("read |0: input/output error")
	w := &Watched{done: make(chan struct{}), exitCode: 0, err: readErr}
	close(w.done)

	assert.ErrorIs(t, w.exitFailure(), readErr)
	assert.ErrorIs(t, w.Wait(context.Background()), readErr)
}

func TestRunUntilTimeout(t *testing.T) {
	spec := shellWatch(t, "echo waiting; exec sleep 10", lineIs("never"), 100*time.Millisecond)

	start := time.Now()
	w, err := RunUntil(context.Background(), spec)
	killOnCleanup(t, w)
	elapsed := time.Since(start)

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr), "want TimeoutError, got %v", err)
	assert.Equal(t, 100*time.Millisecond, timeoutErr.Timeout)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 3*time.Second)

	require.NotNil(t, w)
	assert.False(t, w.Exited(), "process must be left running")
	assert.Equal(t, -1, w.ExitCode())
}

func TestRunUntilProcessExitsNonZero(t *testing.T) {
	spec := shellWatch(t, "echo nope; exit 3", lineIs("ready"), 5*time.Second)

	w, err := RunUntil(context.Background(), spec)
	killOnCleanup(t, w)

	var exitErr *ProcessExitError
	require.True(t, errors.As(err, &exitErr), "want ProcessExitError, got %v", err)
	assert.Equal(t, 3, exitErr.Code)
	assert.True(t, w.Exited())
}

func TestRunUntilCleanExitWithoutMatchTimesOut(t *testing.T) {
	spec := shellWatch(t, "echo done", lineIs("ready"), 200*time.Millisecond)

	w, err := RunUntil(context.Background(), spec)
	killOnCleanup(t, w)

	var timeoutErr *TimeoutError
	assert.True(t, errors.As(err, &timeoutErr), "want TimeoutError, got %v", err)
}

func TestRunUntilStderrStream(t *testing.T) {
	logs := &syncBuffer{}
	spec := shellWatch(t, "echo listening >&2; exec sleep 10", func(kind StreamKind, line string) bool {
		return kind == StdErr && strings.Contains(line, "listening")
	}, 5*time.Second)
	spec.Logger = zerolog.New(logs)

	w, err := RunUntil(context.Background(), spec)
	killOnCleanup(t, w)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return strings.Contains(logs.String(), `"level":"error"`)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunUntilContextCancelled(t *testing.T) {
	spec := shellWatch(t, "exec sleep 10", lineIs("ready"), 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	w, err := RunUntil(ctx, spec)
	killOnCleanup(t, w)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunUntilValidation(t *testing.T) {
	_, err := RunUntil(context.Background(), WatchSpec{Command: "", Predicate: lineIs("x")})
	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))

	_, err = RunUntil(context.Background(), WatchSpec{Command: "sh"})
	assert.True(t, errors.As(err, &cfgErr))

	_, err = RunUntil(context.Background(), WatchSpec{Command: "sh", Predicate: lineIs("x"), Dir: "/definitely/not/here"})
	assert.True(t, errors.As(err, &cfgErr))
}

func TestWatchedKillAndWait(t *testing.T) {
	spec := shellWatch(t, "echo up; exec sleep 10", lineIs("up"), 5*time.Second)
	w, err := RunUntil(context.Background(), spec)
	require.NoError(t, err)

	require.NoError(t, w.Kill())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var exitErr *ProcessExitError
	assert.True(t, errors.As(w.Wait(ctx), &exitErr))
	assert.True(t, w.Exited())
	assert.NoError(t, w.Kill())
}
