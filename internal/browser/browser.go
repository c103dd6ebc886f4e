// Package browser opens files in the platform's default viewer.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/stellarlinkco/buildplus/internal/tooling"
)

// ErrNoBrowser is returned when no known browser command is available.
var ErrNoBrowser = errors.New("unable to find a browser tool")

// linuxCandidates are tried in order on platforms other than windows and darwin.
var linuxCandidates = []string{"google-chrome", "firefox", "xdg-open"}

// Resolver finds a tool by name, as tooling.ResolveTool does.
type Resolver func(name string) (string, error)

// Command returns the browser executable for platform.
func Command(platform string, resolve Resolver) (string, error) {
	if resolve == nil {
		resolve = tooling.ResolveTool
	}
	var candidates []string
	switch platform {
	case "windows":
		candidates = []string{"explorer"}
	case "darwin":
		candidates = []string{"open"}
	default:
		candidates = linuxCandidates
	}
	for _, name := range candidates {
		if path, err := resolve(name); err == nil {
			return path, nil
		}
	}
	return "", ErrNoBrowser
}

// OpenBrowser opens path with the platform browser through rt's invoker.
func OpenBrowser(ctx context.Context, rt tooling.Runtime, path string) error {
	return open(ctx, rt, runtime.GOOS, nil, path)
}

func open(ctx context.Context, rt tooling.Runtime, platform string, resolve Resolver, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("open %s: is a directory", path)
	}

	exe, err := Command(platform, resolve)
	if err != nil {
		return err
	}

	o := tooling.NewOptions(rt.Root).
		SetExecutablePath(exe).
		SetArguments(path).
		SetLogger(rt.Logger)
	o.Platform = platform
	_, err = rt.Invoke(ctx, o)
	return err
}
