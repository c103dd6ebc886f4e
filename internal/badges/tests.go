package badges

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/stellarlinkco/buildplus/internal/testresults"
)

const TestReportFile = "test_report_badge.svg"

// Color picks the badge color for a test summary.
func Color(s testresults.Summary) string {
	switch {
	case s.Failed > 0:
		return "critical"
	case s.Skipped > 10:
		return "orange"
	case s.Passed == 0 && s.Failed == 0:
		return "yellow"
	default:
		return "success"
	}
}

// Message lists the non-zero counts, e.g. "12 passed,1 skipped".
func Message(s testresults.Summary) string {
	var parts []string
	if s.Passed > 0 {
		parts = append(parts, fmt.Sprintf("%d passed", s.Passed))
	}
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.Failed))
	}
	if s.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", s.Skipped))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// FindTestResults returns the result files matching resultName anywhere under
// <root>/tests, sorted.
func FindTestResults(root, resultName string) ([]string, error) {
	pattern := filepath.ToSlash(filepath.Join("tests", "**", resultName))
	matches, err := doublestar.Glob(os.DirFS(root), pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	sort.Strings(matches)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = filepath.Join(root, filepath.FromSlash(m))
	}
	return out, nil
}

// ForTests sums every result file and writes test_report_badge.svg to output.
func (c *Client) ForTests(ctx context.Context, root, output, resultName string) (testresults.Summary, error) {
	files, err := FindTestResults(root, resultName)
	if err != nil {
		return testresults.Summary{}, err
	}

	summaries := make([]testresults.Summary, 0, len(files))
	for _, file := range files {
		s, err := testresults.ParseTRXFile(file)
		if err != nil {
			return testresults.Summary{}, err
		}
		summaries = append(summaries, s)
	}
	total := testresults.Sum(summaries...)
	c.Logger.Info().
		Int("files", len(files)).
		Int("passed", total.Passed).
		Int("failed", total.Failed).
		Int("skipped", total.Skipped).
		Msg("test results")

	return total, c.Download(ctx, filepath.Join(output, TestReportFile), "tests", Message(total), Color(total))
}
