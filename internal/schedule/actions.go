package schedule

import (
	"context"
	"fmt"
	"strings"
)

const (
	ActionToolsUpdate = "tools-update"
	toolActionPrefix  = "tool:"
)

// Actions maps job actions to the operations that carry them out.
type Actions struct {
	UpdateTools func(ctx context.Context) (string, error)
	RunTool     func(ctx context.Context, name string) (string, error)
}

// ValidateAction accepts "tools-update" and "tool:<name>".
func ValidateAction(action string) error {
	if action == ActionToolsUpdate {
		return nil
	}
	if name, ok := strings.CutPrefix(action, toolActionPrefix); ok && strings.TrimSpace(name) != "" {
		return nil
	}
	return fmt.Errorf("unknown action %q", action)
}

// Handler dispatches a job to the matching action.
func (a Actions) Handler() Handler {
	return func(ctx context.Context, job Job) (string, error) {
		if job.Action == ActionToolsUpdate {
			if a.UpdateTools == nil {
				return "", fmt.Errorf("action %s not available", job.Action)
			}
			return a.UpdateTools(ctx)
		}
		if name, ok := strings.CutPrefix(job.Action, toolActionPrefix); ok {
			if a.RunTool == nil {
				return "", fmt.Errorf("action %s not available", job.Action)
			}
			return a.RunTool(ctx, strings.TrimSpace(name))
		}
		return "", fmt.Errorf("unknown action %q", job.Action)
	}
}
