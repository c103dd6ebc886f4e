package tooling

import (
	"os"
	"runtime"
	"sort"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
)

// ExitHandler inspects a finished process and decides whether the invocation
// failed.
type ExitHandler func(o *Options, c *Completed) error

// Configure customizes options before they are invoked.
type Configure func(o *Options)

// Options describes a single tool invocation. The final argv passed to
// ExecutablePath is LocalTool, then PresetArguments, then Arguments.
//
// Options are built for one invocation and must not be reused.
type Options struct {
	WorkingDirectory string
	ExecutablePath   string
	LocalTool        string
	PresetArguments  Arguments
	Arguments        Arguments
	Environment      map[string]string
	ExitHandler      ExitHandler
	LogOutput        bool
	Platform         string
	Logger           zerolog.Logger
}

// NewOptions returns options rooted at root with output logging enabled and
// the default exit handler.
func NewOptions(root string) *Options {
	return &Options{
		WorkingDirectory: root,
		LogOutput:        true,
		Platform:         runtime.GOOS,
		Logger:           zerolog.Nop(),
	}
}

func (o *Options) SetWorkingDirectory(path string) *Options {
	o.WorkingDirectory = path
	return o
}

func (o *Options) SetExecutablePath(path string) *Options {
	o.ExecutablePath = path
	return o
}

func (o *Options) SetLocalTool(name string) *Options {
	o.LocalTool = name
	return o
}

func (o *Options) SetPresetArguments(tokens ...string) *Options {
	o.PresetArguments = NewArguments(tokens...)
	return o
}

// ClearPresetArguments drops the arguments baked in when the tool was bound.
func (o *Options) ClearPresetArguments() *Options {
	o.PresetArguments = Arguments{}
	return o
}

// SetArguments replaces the caller arguments.
func (o *Options) SetArguments(tokens ...string) *Options {
	o.Arguments = NewArguments(tokens...)
	return o
}

// AddArguments appends to the caller arguments.
func (o *Options) AddArguments(tokens ...string) *Options {
	o.Arguments = o.Arguments.Add(tokens...)
	return o
}

func (o *Options) SetEnvironmentVariable(key, value string) *Options {
	if o.Environment == nil {
		o.Environment = make(map[string]string)
	}
	o.Environment[key] = value
	return o
}

func (o *Options) SetExitHandler(fn ExitHandler) *Options {
	o.ExitHandler = fn
	return o
}

func (o *Options) SetLogOutput(enabled bool) *Options {
	o.LogOutput = enabled
	return o
}

func (o *Options) SetLogger(logger zerolog.Logger) *Options {
	o.Logger = logger
	return o
}

// CommandLine returns the argv that follows the executable.
func (o *Options) CommandLine() Arguments {
	var head Arguments
	if o.LocalTool != "" {
		head = NewArguments(o.LocalTool)
	}
	return Concat(Concat(head, o.PresetArguments), o.Arguments)
}

// String renders the full command for logs and error messages.
func (o *Options) String() string {
	line := o.CommandLine().String()
	if line == "" {
		return QuoteIfNeeded(o.ExecutablePath)
	}
	return QuoteIfNeeded(o.ExecutablePath) + " " + line
}

// Validate reports the first configuration problem as a *ConfigurationError.
func (o *Options) Validate() error {
	if strings.TrimSpace(o.ExecutablePath) == "" {
		return &ConfigurationError{Field: "executable path", Reason: "not set"}
	}
	if o.LocalTool != "" && strings.IndexFunc(o.LocalTool, unicode.IsSpace) >= 0 {
		return &ConfigurationError{Field: "local tool name", Value: o.LocalTool, Reason: "must not contain whitespace"}
	}
	if strings.TrimSpace(o.WorkingDirectory) == "" {
		return &ConfigurationError{Field: "working directory", Reason: "not set"}
	}
	info, err := os.Stat(o.WorkingDirectory)
	if err != nil {
		return &ConfigurationError{Field: "working directory", Value: o.WorkingDirectory, Reason: "does not exist"}
	}
	if !info.IsDir() {
		return &ConfigurationError{Field: "working directory", Value: o.WorkingDirectory, Reason: "is not a directory"}
	}
	return nil
}

// environ inherits the current environment and applies overrides. Keys are
// case-insensitive on windows.
func (o *Options) environ() []string {
	env := os.Environ()
	if len(o.Environment) == 0 {
		return env
	}
	sameKey := func(a, b string) bool { return a == b }
	if o.Platform == "windows" {
		sameKey = strings.EqualFold
	}
	keys := make([]string, 0, len(o.Environment))
	for k := range o.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		entry := k + "=" + o.Environment[k]
		replaced := false
		for i, e := range env {
			name, _, ok := strings.Cut(e, "=")
			if ok && sameKey(name, k) {
				env[i] = entry
				replaced = true
				break
			}
		}
		if !replaced {
			env = append(env, entry)
		}
	}
	return env
}
