package badges

import (
	"context"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/stellarlinkco/buildplus/internal/loc"
	"golang.org/x/sync/errgroup"
)

const (
	LinesOfCodeFile   = "lines_of_code.svg"
	NumberOfFilesFile = "number_of_files.svg"
)

// ForLineCount counts lines of code and writes the line and file count
// badges concurrently.
func (c *Client) ForLineCount(ctx context.Context, output string, p loc.Params) (loc.Result, error) {
	res, err := loc.Count(p)
	if err != nil {
		return loc.Result{}, err
	}

	lines := humanize.Comma(int64(res.Lines))
	files := humanize.Comma(int64(res.Files))
	c.Logger.Info().Str("files", files).Str("lines", lines).Msg("lines of code")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.Download(gctx, filepath.Join(output, LinesOfCodeFile), "Lines of Code", lines, "blue")
	})
	g.Go(func() error {
		return c.Download(gctx, filepath.Join(output, NumberOfFilesFile), "Code Files", files, "blue")
	})
	return res, g.Wait()
}
