package badges

import (
	"context"

	"github.com/stellarlinkco/buildplus/internal/localtools"
	"github.com/stellarlinkco/buildplus/internal/tooling"
)

// ForCoverage asks reportgenerator to render its badge set for the coverage
// files into output.
func ForCoverage(ctx context.Context, reportGenerator tooling.Tool, output, files string) error {
	_, err := reportGenerator(ctx, localtools.ReportGeneratorArgs(files, output, "Badges"))
	return err
}
