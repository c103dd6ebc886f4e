package tooling

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvoker struct {
	calls []*Options
	lines []string
}

func (r *recordingInvoker) Invoke(_ context.Context, o *Options) ([]string, error) {
	r.calls = append(r.calls, o)
	return r.lines, nil
}

func newTestRuntime(t *testing.T) (Runtime, *recordingInvoker) {
	t.Helper()
	rec := &recordingInvoker{lines: []string{"ok"}}
	return Runtime{Root: t.TempDir(), Executable: "/usr/bin/dotnet", Invoker: rec}, rec
}

func TestBindComposesCommandLine(t *testing.T) {
	rt, rec := newTestRuntime(t)
	serve := rt.Bind("docfx", []string{"--serve", "--open-browser"}, nil)

	out, err := serve(context.Background(), func(o *Options) {
		o.AddArguments("docs/docfx.json")
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, out)

	require.Len(t, rec.calls, 1)
	got := rec.calls[0]
	assert.Equal(t, "/usr/bin/dotnet", got.ExecutablePath)
	assert.Equal(t, rt.Root, got.WorkingDirectory)
	assert.Equal(t, []string{"docfx", "--serve", "--open-browser", "docs/docfx.json"}, got.CommandLine().Tokens())
}

func TestBindOrderForArbitraryArguments(t *testing.T) {
	rt, rec := newTestRuntime(t)
	presets := [][]string{nil, {"p1"}, {"p1", "p2", "p 3"}}
	callers := [][]string{nil, {"c1"}, {"c1", "c 2", "c3"}}

	for _, p := range presets {
		for _, c := range callers {
			tool := rt.Bind("tool", p, nil)
			_, err := tool(context.Background(), func(o *Options) { o.AddArguments(c...) })
			require.NoError(t, err)

			want := append(append([]string{"tool"}, p...), c...)
			assert.Equal(t, want, rec.calls[len(rec.calls)-1].CommandLine().Tokens())
		}
	}
}

func TestBindAppliesPreConfigureBeforeCaller(t *testing.T) {
	rt, rec := newTestRuntime(t)
	tool := rt.Bind("reportgenerator", nil, func(o *Options) {
		o.AddArguments("-reporttypes:Html")
		o.SetEnvironmentVariable("MODE", "pre")
	})

	_, err := tool(context.Background(),
		func(o *Options) { o.SetEnvironmentVariable("MODE", "caller") },
		nil,
		func(o *Options) { o.AddArguments("-reports:coverage.xml") },
	)
	require.NoError(t, err)

	got := rec.calls[0]
	assert.Equal(t, []string{"reportgenerator", "-reporttypes:Html", "-reports:coverage.xml"}, got.CommandLine().Tokens())
	assert.Equal(t, "caller", got.Environment["MODE"])
}

func TestBoundToolsShareNoState(t *testing.T) {
	rt, rec := newTestRuntime(t)
	preset := []string{"--serve"}
	serve := rt.Bind("docfx", preset, nil)
	build := rt.Bind("docfx", []string{"build"}, nil)
	preset[0] = "mutated"

	_, err := serve(context.Background(), func(o *Options) {
		o.ClearPresetArguments().AddArguments("x")
	})
	require.NoError(t, err)
	_, err = serve(context.Background())
	require.NoError(t, err)
	_, err = build(context.Background())
	require.NoError(t, err)

	require.Len(t, rec.calls, 3)
	assert.Equal(t, []string{"docfx", "x"}, rec.calls[0].CommandLine().Tokens())
	assert.Equal(t, []string{"docfx", "--serve"}, rec.calls[1].CommandLine().Tokens())
	assert.Equal(t, []string{"docfx", "build"}, rec.calls[2].CommandLine().Tokens())
	assert.NotSame(t, rec.calls[0], rec.calls[1])
}

func TestBindRejectsBadConfigurationBeforeInvoking(t *testing.T) {
	rt, rec := newTestRuntime(t)

	tests := []struct {
		name      string
		tool      Tool
		configure Configure
	}{
		{"empty name", rt.Bind("  ", nil, nil), nil},
		{"name with spaces", rt.Bind("doc fx", nil, nil), nil},
		{"missing working directory", rt.Bind("docfx", nil, nil), func(o *Options) {
			o.SetWorkingDirectory(filepath.Join(rt.Root, "missing"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.tool(context.Background(), tt.configure)
			var cfgErr *ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "want ConfigurationError, got %v", err)
		})
	}
	assert.Empty(t, rec.calls)
}

func TestRuntimeOptionsHasNoLocalTool(t *testing.T) {
	rt, _ := newTestRuntime(t)
	o := rt.Options().AddArguments("tool", "list")
	assert.Equal(t, []string{"tool", "list"}, o.CommandLine().Tokens())
	assert.Equal(t, rt.Executable, o.ExecutablePath)
}
