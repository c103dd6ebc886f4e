package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stellarlinkco/buildplus/internal/config"
	"github.com/stellarlinkco/buildplus/internal/localtools"
	"github.com/stellarlinkco/buildplus/internal/logging"
	"github.com/stellarlinkco/buildplus/internal/presets"
	"github.com/stellarlinkco/buildplus/internal/tooling"
)

// app holds what every command needs once the build root is known.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	rt       tooling.Runtime
	registry *localtools.Registry
	stdout   io.Writer
}

type rootFlags struct {
	root     string
	logLevel string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:           "buildplus",
		Short:         "buildplus - local tool runner and build helpers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.PersistentFlags().StringVar(&flags.root, "root", "", "build root (default: discovered from the working directory)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (trace, debug, info, warn, error, quiet)")

	load := func() (*app, error) {
		return loadApp(flags, stdout, stderr)
	}

	rootCmd.AddCommand(
		newInitCmd(flags, stdout),
		newStatusCmd(load),
		newRunCmd(load),
		newToolsCmd(load),
		newDocsCmd(load),
		newWaitCmd(load),
		newBadgesCmd(load),
		newLocCmd(load),
		newHooksCmd(load),
		newOpenCmd(load),
		newScheduleCmd(load),
	)
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func resolveRoot(flags *rootFlags) (string, error) {
	if flags.root != "" {
		return filepath.Abs(flags.root)
	}
	return config.FindRoot()
}

func loadApp(flags *rootFlags, stdout, stderr io.Writer) (*app, error) {
	root, err := resolveRoot(flags)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(root)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}

	logger := logging.New(logging.Config{
		Level:     cfg.Log.Level,
		NoColor:   cfg.Log.NoColor,
		Timestamp: cfg.Log.Timestamp,
	}, stderr)

	dotnet := cfg.Build.Dotnet
	if dotnet == "" {
		if resolved, err := tooling.ResolveTool("dotnet"); err == nil {
			dotnet = resolved
		}
	}

	rt := tooling.Runtime{
		Root:       root,
		Executable: dotnet,
		Logger:     logger,
	}
	registry := localtools.NewRegistry(rt)

	defs, err := presets.Load(cfg.Resolve(cfg.Build.ToolsDir), logger)
	if err != nil {
		return nil, fmt.Errorf("load tool presets: %w", err)
	}
	if err := registry.RegisterAll(defs); err != nil {
		return nil, fmt.Errorf("register tool presets: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		rt:       rt,
		registry: registry,
		stdout:   stdout,
	}, nil
}
