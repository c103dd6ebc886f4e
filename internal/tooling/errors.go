package tooling

import (
	"fmt"
	"strings"
	"time"
)

// ConfigurationError reports invalid options. It is always returned before a
// process is started.
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("tooling: invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("tooling: invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// NonZeroExitError is returned by the default exit handler.
type NonZeroExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *NonZeroExitError) Error() string {
	msg := fmt.Sprintf("tooling: %s exited with code %d", e.Command, e.Code)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// TimeoutError is returned by RunUntil when the predicate did not match in
// time. The watched process is not terminated.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("tooling: %s did not produce the expected output within %s", e.Command, e.Timeout)
}

// ProcessExitError is returned by RunUntil when the process exited with a
// non-zero code while it was being watched.
type ProcessExitError struct {
	Command string
	Code    int
}

func (e *ProcessExitError) Error() string {
	return fmt.Sprintf("tooling: %s exited with code %d while being watched", e.Command, e.Code)
}
