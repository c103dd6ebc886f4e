package localtools

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/stellarlinkco/buildplus/internal/presets"
	"github.com/stellarlinkco/buildplus/internal/tooling"
)

// Entry is a named, bound tool.
type Entry struct {
	Name        string
	LocalTool   string
	Preset      []string
	Description string
	Source      string
	Tool        tooling.Tool
}

// Registry resolves tool names for the CLI and the scheduler.
type Registry struct {
	rt tooling.Runtime

	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry returns a registry holding the built-in tools.
func NewRegistry(rt tooling.Runtime) *Registry {
	r := &Registry{rt: rt, entries: make(map[string]Entry)}
	b := NewBuiltins(rt)
	r.entries[DocFXName] = Entry{Name: DocFXName, LocalTool: "docfx", Description: "build the documentation site", Source: "builtin", Tool: b.DocFXBuild}
	r.entries[DocFXServeName] = Entry{Name: DocFXServeName, LocalTool: "docfx", Preset: []string{"--serve", "--open-browser"}, Description: "serve the documentation site", Source: "builtin", Tool: b.DocFXServe}
	r.entries[ReportGeneratorName] = Entry{Name: ReportGeneratorName, LocalTool: "reportgenerator", Description: "render coverage reports", Source: "builtin", Tool: b.ReportGenerator}
	return r
}

// Register binds a preset definition. Names must be unique, including
// against the built-ins.
func (r *Registry) Register(def presets.Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[def.Name]; exists {
		return fmt.Errorf("tool %q already registered", def.Name)
	}

	var pre tooling.Configure
	if def.WorkingDirectory != "" || len(def.Environment) > 0 {
		dir := def.WorkingDirectory
		if dir != "" && !filepath.IsAbs(dir) {
			dir = filepath.Join(r.rt.Root, filepath.FromSlash(dir))
		}
		env := make(map[string]string, len(def.Environment))
		for k, v := range def.Environment {
			env[k] = v
		}
		pre = func(o *tooling.Options) {
			if dir != "" {
				o.SetWorkingDirectory(dir)
			}
			for k, v := range env {
				o.SetEnvironmentVariable(k, v)
			}
		}
	}

	r.entries[def.Name] = Entry{
		Name:        def.Name,
		LocalTool:   def.LocalTool(),
		Preset:      append([]string(nil), def.Args...),
		Description: def.Description,
		Source:      def.Path,
		Tool:        r.rt.Bind(def.LocalTool(), def.Args, pre),
	}
	return nil
}

// RegisterAll registers defs in order and stops at the first conflict.
func (r *Registry) RegisterAll(defs []presets.Definition) error {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Entries returns all entries sorted by name.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Run invokes the named tool with args appended after its presets.
func (r *Registry) Run(ctx context.Context, name string, args ...string) ([]string, error) {
	e, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	return e.Tool(ctx, func(o *tooling.Options) { o.AddArguments(args...) })
}
