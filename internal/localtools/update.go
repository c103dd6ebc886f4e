package localtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/stellarlinkco/buildplus/internal/tooling"
)

var prereleaseMarkers = []string{"rc", "preview", "beta", "alpha"}

// UpdateReport lists the tools that were and were not updated.
type UpdateReport struct {
	Updated []string
	Failed  []string
}

// UpdateLocalTools updates every tool in the local manifest. A failing tool
// is logged and recorded; the remaining tools are still updated. Only a
// failure to list the tools is returned as an error.
func UpdateLocalTools(ctx context.Context, rt tooling.Runtime) (UpdateReport, error) {
	logger := rt.Logger.With().Str("component", "tools-update").Logger()

	lines, err := rt.Invoke(ctx, rt.Options().SetArguments("tool", "list").SetLogOutput(false))
	if err != nil {
		return UpdateReport{}, fmt.Errorf("list local tools: %w", err)
	}

	var report UpdateReport
	for _, item := range parseToolList(lines) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		logger.Info().Str("tool", item.name).Str("version", item.version).Msg("updating")

		args := []string{"tool", "update", item.name}
		if isPrerelease(item.version) {
			args = append(args, "--prerelease")
		}
		if _, err := rt.Invoke(ctx, rt.Options().SetArguments(args...)); err != nil {
			logger.Warn().Err(err).Str("tool", item.name).Msg("tool update failed")
			report.Failed = append(report.Failed, item.name)
			continue
		}
		report.Updated = append(report.Updated, item.name)
	}
	return report, nil
}

type listedTool struct {
	name    string
	version string
}

// parseToolList reads `dotnet tool list` output: two header lines, then one
// whitespace separated row per tool.
func parseToolList(lines []string) []listedTool {
	if len(lines) <= 2 {
		return nil
	}
	var out []listedTool
	for _, line := range lines[2:] {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		out = append(out, listedTool{name: fields[0], version: fields[1]})
	}
	return out
}

func isPrerelease(version string) bool {
	v := strings.ToLower(version)
	for _, marker := range prereleaseMarkers {
		if strings.Contains(v, marker) {
			return true
		}
	}
	return false
}
