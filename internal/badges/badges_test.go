package badges

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stellarlinkco/buildplus/internal/loc"
	"github.com/stellarlinkco/buildplus/internal/testresults"
	"github.com/stellarlinkco/buildplus/internal/tooling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type badgeServer struct {
	*httptest.Server
	mu    sync.Mutex
	paths []string
}

func newBadgeServer(t *testing.T, status int) *badgeServer {
	t.Helper()
	s := &badgeServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.paths = append(s.paths, r.URL.Path)
		s.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte("<svg/>"))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *badgeServer) requested() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.paths...)
	sort.Strings(out)
	return out
}

func (s *badgeServer) client() *Client {
	return NewClient(s.URL+"/badge", zerolog.Nop())
}

func TestColor(t *testing.T) {
	tests := []struct {
		summary testresults.Summary
		want    string
	}{
		{testresults.Summary{Passed: 5, Failed: 1}, "critical"},
		{testresults.Summary{Passed: 5, Skipped: 11}, "orange"},
		{testresults.Summary{Passed: 5, Skipped: 10}, "success"},
		{testresults.Summary{}, "yellow"},
		{testresults.Summary{Skipped: 3}, "yellow"},
		{testresults.Summary{Passed: 5}, "success"},
		{testresults.Summary{Failed: 1, Skipped: 20}, "critical"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Color(tt.summary), "%+v", tt.summary)
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "3 passed,1 failed,2 skipped", Message(testresults.Summary{Passed: 3, Failed: 1, Skipped: 2}))
	assert.Equal(t, "3 passed", Message(testresults.Summary{Passed: 3}))
	assert.Equal(t, "1 failed,2 skipped", Message(testresults.Summary{Failed: 1, Skipped: 2}))
	assert.Equal(t, "none", Message(testresults.Summary{}))
}

func TestURL(t *testing.T) {
	c := NewClient("", zerolog.Nop())
	assert.Equal(t, "https://img.shields.io/badge/tests-3%20passed%2C1%20failed-critical", c.URL("tests", "3 passed,1 failed", "critical"))
	assert.Equal(t, "https://img.shields.io/badge/.NET-8.0.100-blue", c.URL(".NET", "8.0.100", "blue"))
	assert.Equal(t, "https://img.shields.io/badge/build--status-ok__now-green", c.URL("build-status", "ok_now", "green"))
}

func TestDownload(t *testing.T) {
	srv := newBadgeServer(t, http.StatusOK)
	path := filepath.Join(t.TempDir(), "nested", "out", "badge.svg")

	require.NoError(t, srv.client().Download(context.Background(), path, "Lines of Code", "1,234", "blue"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(data))
	assert.Equal(t, []string{"/badge/Lines of Code-1,234-blue"}, srv.requested())
}

func TestDownloadHTTPError(t *testing.T) {
	srv := newBadgeServer(t, http.StatusServiceUnavailable)
	path := filepath.Join(t.TempDir(), "badge.svg")

	err := srv.client().Download(context.Background(), path, "a", "b", "c")
	assert.ErrorContains(t, err, "status 503")
	assert.NoFileExists(t, path)
}

const trxTemplate = `<?xml version="1.0" encoding="utf-8"?>
<TestRun xmlns="http://microsoft.com/schemas/VisualStudio/TeamTest/2010">
  <ResultSummary><Counters total="%s" executed="%s" passed="%s" failed="%s"/></ResultSummary>
</TestRun>`

func writeTRX(t *testing.T, root, rel, total, executed, passed, failed string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	content := []byte(fmt.Sprintf(trxTemplate, total, executed, passed, failed))
	require.NoError(t, os.WriteFile(path, content, 0644))
}

func TestForTests(t *testing.T) {
	root := t.TempDir()
	writeTRX(t, root, "tests/Unit/TestResults/unit.trx", "10", "9", "9", "0")
	writeTRX(t, root, "tests/Integration/TestResults/deep/int.trx", "3", "3", "2", "1")
	writeTRX(t, root, "src/ignored.trx", "5", "5", "5", "0")

	srv := newBadgeServer(t, http.StatusOK)
	output := filepath.Join(root, "badges")

	total, err := srv.client().ForTests(context.Background(), root, output, "*.trx")
	require.NoError(t, err)
	assert.Equal(t, testresults.Summary{Passed: 11, Failed: 1, Skipped: 1}, total)
	assert.FileExists(t, filepath.Join(output, TestReportFile))
	assert.Equal(t, []string{"/badge/tests-11 passed,1 failed,1 skipped-critical"}, srv.requested())
}

func TestForTestsNoResults(t *testing.T) {
	root := t.TempDir()
	srv := newBadgeServer(t, http.StatusOK)

	total, err := srv.client().ForTests(context.Background(), root, filepath.Join(root, "badges"), "*.trx")
	require.NoError(t, err)
	assert.Equal(t, testresults.Summary{}, total)
	assert.Equal(t, []string{"/badge/tests-none-yellow"}, srv.requested())
}

func TestForDotNetVersion(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "global.json"), []byte(`{"sdk":{"version":"8.0.100","rollForward":"latestMinor"}}`), 0644))
	srv := newBadgeServer(t, http.StatusOK)

	version, err := srv.client().ForDotNetVersion(context.Background(), root, filepath.Join(root, "badges"))
	require.NoError(t, err)
	assert.Equal(t, "8.0.100", version)
	assert.FileExists(t, filepath.Join(root, "badges", DotNetVersionFile))
	assert.Equal(t, []string{"/badge/.NET-8.0.100-blue"}, srv.requested())
}

func TestForDotNetVersionMissing(t *testing.T) {
	root := t.TempDir()
	srv := newBadgeServer(t, http.StatusOK)

	_, err := srv.client().ForDotNetVersion(context.Background(), root, root)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "global.json"), []byte(`{"sdk":{}}`), 0644))
	_, err = srv.client().ForDotNetVersion(context.Background(), root, root)
	assert.ErrorContains(t, err, "sdk.version")
	assert.Empty(t, srv.requested())
}

func TestForLineCount(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, 0755))
	big := make([]byte, 0, 1500*3)
	for i := 0; i < 1500; i++ {
		big = append(big, 'x', ';', '\n')
	}
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.cs"), big, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "b.cs"), []byte("y;\n"), 0644))

	srv := newBadgeServer(t, http.StatusOK)
	output := filepath.Join(root, "badges")

	res, err := srv.client().ForLineCount(context.Background(), output, loc.Params{Include: "*.cs", Root: root})
	require.NoError(t, err)
	assert.Equal(t, loc.Result{Files: 2, Lines: 1501}, res)
	assert.FileExists(t, filepath.Join(output, LinesOfCodeFile))
	assert.FileExists(t, filepath.Join(output, NumberOfFilesFile))
	assert.Equal(t, []string{
		"/badge/Code Files-2-blue",
		"/badge/Lines of Code-1,501-blue",
	}, srv.requested())
}

func TestForCoverage(t *testing.T) {
	var got []string
	rt := tooling.Runtime{
		Root:       t.TempDir(),
		Executable: "/usr/bin/dotnet",
		Invoker: tooling.InvokerFunc(func(_ context.Context, o *tooling.Options) ([]string, error) {
			got = o.CommandLine().Tokens()
			return nil, nil
		}),
	}
	tool := rt.Bind("reportgenerator", nil, nil)

	require.NoError(t, ForCoverage(context.Background(), tool, "badges", "tests/**/coverage.cobertura.xml"))
	assert.Equal(t, []string{
		"reportgenerator",
		"-reports:tests/**/coverage.cobertura.xml",
		"-targetdir:badges",
		"-reporttypes:Badges",
	}, got)
}
