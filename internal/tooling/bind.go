package tooling

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Tool is a bound local tool. Each call builds fresh options, applies the
// configure callbacks in order and invokes the result.
type Tool func(ctx context.Context, configure ...Configure) ([]string, error)

// Runtime carries what every bound tool shares: the build root used as the
// default working directory and the resolved host tool runtime.
type Runtime struct {
	Root       string
	Executable string
	Invoker    Invoker
	Logger     zerolog.Logger
}

// Options returns fresh options for a direct call of the host runtime, with
// no local tool and no preset arguments.
func (r Runtime) Options() *Options {
	return NewOptions(r.Root).
		SetExecutablePath(r.Executable).
		SetLogger(r.Logger)
}

// Invoke runs o with the runtime's invoker.
func (r Runtime) Invoke(ctx context.Context, o *Options) ([]string, error) {
	invoker := r.Invoker
	if invoker == nil {
		invoker = ProcessInvoker{}
	}
	return invoker.Invoke(ctx, o)
}

// Bind returns a Tool that runs `<executable> <name> <preset...> <caller...>`.
// preConfigure is applied on every call before the caller's callbacks and
// cannot be skipped by them.
func (r Runtime) Bind(name string, preset []string, preConfigure Configure) Tool {
	bound := NewArguments(preset...)
	return func(ctx context.Context, configure ...Configure) ([]string, error) {
		if strings.TrimSpace(name) == "" {
			return nil, &ConfigurationError{Field: "local tool name", Reason: "empty"}
		}

		o := r.Options()
		o.LocalTool = name
		o.PresetArguments = bound
		o.Logger = r.Logger.With().Str("localtool", name).Logger()

		if preConfigure != nil {
			preConfigure(o)
		}
		for _, fn := range configure {
			if fn != nil {
				fn(o)
			}
		}

		if err := o.Validate(); err != nil {
			return nil, err
		}
		return r.Invoke(ctx, o)
	}
}
