package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/buildplus/internal/badges"
	"github.com/stellarlinkco/buildplus/internal/browser"
	"github.com/stellarlinkco/buildplus/internal/config"
	"github.com/stellarlinkco/buildplus/internal/githooks"
	"github.com/stellarlinkco/buildplus/internal/loc"
	"github.com/stellarlinkco/buildplus/internal/localtools"
	"github.com/stellarlinkco/buildplus/internal/tooling"
)

type loader func() (*app, error)

func newInitCmd(flags *rootFlags, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the buildplus config and tool preset directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(flags)
			if err != nil {
				return err
			}

			cfgPath := config.ConfigPath(root)
			if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
				if err := config.SaveConfig(root, config.DefaultConfig()); err != nil {
					return fmt.Errorf("write config: %w", err)
				}
				fmt.Fprintf(stdout, "Created config: %s\n", cfgPath)
			} else {
				fmt.Fprintf(stdout, "Config already exists: %s\n", cfgPath)
			}

			toolsDir := filepath.Join(root, filepath.FromSlash(config.DefaultToolsDir))
			if err := os.MkdirAll(toolsDir, 0755); err != nil {
				return fmt.Errorf("create tools dir: %w", err)
			}
			if err := writeIfNotExists(stdout, filepath.Join(toolsDir, "format.yaml"), defaultFormatPreset); err != nil {
				return err
			}

			fmt.Fprintf(stdout, "Build root ready: %s\n", root)
			return nil
		},
	}
}

func newStatusCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show buildplus status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			out := a.stdout
			root := a.cfg.Build.Root

			fmt.Fprintf(out, "Root: %s\n", root)
			if _, err := os.Stat(config.ConfigPath(root)); err == nil {
				fmt.Fprintf(out, "Config: %s\n", config.ConfigPath(root))
			} else if _, err := os.Stat(config.TOMLConfigPath(root)); err == nil {
				fmt.Fprintf(out, "Config: %s\n", config.TOMLConfigPath(root))
			} else {
				fmt.Fprintln(out, "Config: defaults (run 'buildplus init')")
			}
			if a.rt.Executable != "" {
				fmt.Fprintf(out, "Dotnet: %s\n", a.rt.Executable)
			} else {
				fmt.Fprintln(out, "Dotnet: not found")
			}
			fmt.Fprintf(out, "Tools: %d\n", len(a.registry.Entries()))
			fmt.Fprintf(out, "Schedules: %d\n", len(a.cfg.Schedules))
			if _, err := os.Stat(githooks.PreCommitPath(root)); err == nil {
				fmt.Fprintln(out, "Pre-commit hook: installed")
			} else {
				fmt.Fprintln(out, "Pre-commit hook: not installed")
			}
			return nil
		},
	}
}

func newRunCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "run <tool> [-- args...]",
		Short: "Run a registered local tool",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			lines, err := a.registry.Run(cmd.Context(), args[0], args[1:]...)
			printLines(a.stdout, lines)
			return err
		},
	}
}

func newToolsCmd(load loader) *cobra.Command {
	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "Manage local tools",
	}
	toolsCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List registered tools",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := load()
				if err != nil {
					return err
				}
				for _, e := range a.registry.Entries() {
					line := e.Name + "\t" + tooling.NewArguments(append([]string{e.LocalTool}, e.Preset...)...).String()
					if e.Description != "" {
						line += "\t" + e.Description
					}
					fmt.Fprintln(a.stdout, line)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "update",
			Short: "Update every tool in the local tool manifest",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := load()
				if err != nil {
					return err
				}
				report, err := localtools.UpdateLocalTools(cmd.Context(), a.rt)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "Updated: %d, failed: %d\n", len(report.Updated), len(report.Failed))
				for _, name := range report.Failed {
					fmt.Fprintf(a.stdout, "  failed: %s\n", name)
				}
				return nil
			},
		},
	)
	return toolsCmd
}

func newDocsCmd(load loader) *cobra.Command {
	var branch string
	docsCmd := &cobra.Command{
		Use:   "docs",
		Short: "Build or serve the documentation site with docfx",
	}
	docsCmd.PersistentFlags().StringVar(&branch, "branch", "", "source branch for docfx links")

	run := func(pick func(localtools.Builtins) tooling.Tool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			configure := []tooling.Configure{func(o *tooling.Options) { o.AddArguments(args...) }}
			if branch != "" {
				configure = append(configure, localtools.WithSourceBranch(branch))
			}
			lines, err := pick(localtools.NewBuiltins(a.rt))(cmd.Context(), configure...)
			printLines(a.stdout, lines)
			return err
		}
	}

	docsCmd.AddCommand(
		&cobra.Command{
			Use:   "build [docfx.json]",
			Short: "Build the documentation site",
			RunE:  run(func(b localtools.Builtins) tooling.Tool { return b.DocFXBuild }),
		},
		&cobra.Command{
			Use:   "serve [docfx.json]",
			Short: "Build, serve and open the documentation site",
			RunE:  run(func(b localtools.Builtins) tooling.Tool { return b.DocFXServe }),
		},
	)
	return docsCmd
}

func newWaitCmd(load loader) *cobra.Command {
	var (
		pattern string
		stream  string
		timeout time.Duration
		kill    bool
	)
	waitCmd := &cobra.Command{
		Use:   "wait --pattern <regexp> -- <command> [args...]",
		Short: "Start a command and wait until its output matches a pattern",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return fmt.Errorf("pattern: %w", err)
			}
			want, err := parseStream(stream)
			if err != nil {
				return err
			}
			if timeout <= 0 {
				timeout = a.cfg.WatchTimeout()
			}

			w, err := tooling.RunUntil(cmd.Context(), tooling.WatchSpec{
				Command: args[0],
				Args:    args[1:],
				Dir:     a.cfg.Build.Root,
				Predicate: func(kind tooling.StreamKind, line string) bool {
					return (want == nil || *want == kind) && re.MatchString(line)
				},
				Timeout: timeout,
				Logger:  a.logger,
			})
			if err != nil {
				if w != nil {
					_ = w.Kill()
				}
				return err
			}
			fmt.Fprintf(a.stdout, "Matched %q (pid %d)\n", pattern, w.Pid())
			if kill {
				return w.Kill()
			}
			return w.Wait(cmd.Context())
		},
	}
	waitCmd.Flags().StringVarP(&pattern, "pattern", "p", "", "regular expression to wait for")
	waitCmd.Flags().StringVar(&stream, "stream", "any", "stream to match: stdout, stderr or any")
	waitCmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "how long to wait (default: watch.timeout)")
	waitCmd.Flags().BoolVar(&kill, "kill", false, "stop the command once the pattern matched")
	_ = waitCmd.MarkFlagRequired("pattern")
	return waitCmd
}

func parseStream(s string) (*tooling.StreamKind, error) {
	switch strings.ToLower(s) {
	case "", "any":
		return nil, nil
	case "stdout":
		k := tooling.StdOut
		return &k, nil
	case "stderr":
		k := tooling.StdErr
		return &k, nil
	}
	return nil, fmt.Errorf("unknown stream %q", s)
}

func newBadgesCmd(load loader) *cobra.Command {
	badgesCmd := &cobra.Command{
		Use:   "badges",
		Short: "Generate status badges",
	}

	withClient := func(fn func(cmd *cobra.Command, a *app, c *badges.Client, output string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			c := badges.NewClient(a.cfg.Badges.ShieldsURL, a.logger)
			return fn(cmd, a, c, a.cfg.Resolve(a.cfg.Badges.Output))
		}
	}

	testsBadge := func(cmd *cobra.Command, a *app, c *badges.Client, output string) error {
		s, err := c.ForTests(cmd.Context(), a.cfg.Build.Root, output, a.cfg.Badges.TestResultName)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Tests: %s\n", s)
		return nil
	}
	coverageBadge := func(cmd *cobra.Command, a *app, _ *badges.Client, output string) error {
		return badges.ForCoverage(cmd.Context(), localtools.NewBuiltins(a.rt).ReportGenerator, output, a.cfg.Badges.CoverageFiles)
	}
	dotnetBadge := func(cmd *cobra.Command, a *app, c *badges.Client, output string) error {
		v, err := c.ForDotNetVersion(cmd.Context(), a.cfg.Build.Root, output)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, ".NET: %s\n", v)
		return nil
	}
	locBadge := func(cmd *cobra.Command, a *app, c *badges.Client, output string) error {
		res, err := c.ForLineCount(cmd.Context(), output, locParams(a.cfg))
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Files: %d, lines: %d\n", res.Files, res.Lines)
		return nil
	}

	badgesCmd.AddCommand(
		&cobra.Command{Use: "tests", Short: "Badge from test result files", Args: cobra.NoArgs, RunE: withClient(testsBadge)},
		&cobra.Command{Use: "coverage", Short: "Coverage badges via reportgenerator", Args: cobra.NoArgs, RunE: withClient(coverageBadge)},
		&cobra.Command{Use: "dotnet", Short: "Badge with the SDK version from global.json", Args: cobra.NoArgs, RunE: withClient(dotnetBadge)},
		&cobra.Command{Use: "loc", Short: "Lines of code and file count badges", Args: cobra.NoArgs, RunE: withClient(locBadge)},
	)
	return badgesCmd
}

func locParams(cfg *config.Config) loc.Params {
	return loc.Params{
		Include:           cfg.Loc.Include,
		Root:              cfg.Build.Root,
		Exclude:           cfg.Loc.Exclude,
		ExcludeDirs:       cfg.Loc.ExcludeDirs,
		IgnoreLinePattern: cfg.Loc.IgnoreLinePattern,
		KeepBlankLines:    cfg.Loc.KeepBlankLines,
		RespectGitignore:  cfg.Loc.RespectGitignore,
	}
}

func newLocCmd(load loader) *cobra.Command {
	var include, exclude string
	locCmd := &cobra.Command{
		Use:   "loc",
		Short: "Count lines of code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			p := locParams(a.cfg)
			if include != "" {
				p.Include = include
			}
			if exclude != "" {
				p.Exclude = exclude
			}
			res, err := loc.Count(p)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Files: %d\nLines: %d\n", res.Files, res.Lines)
			return nil
		},
	}
	locCmd.Flags().StringVar(&include, "include", "", "comma separated include globs (default: loc.include)")
	locCmd.Flags().StringVar(&exclude, "exclude", "", "comma separated exclude globs (default: loc.exclude)")
	return locCmd
}

func newHooksCmd(load loader) *cobra.Command {
	hooksCmd := &cobra.Command{
		Use:   "hooks",
		Short: "Manage git hooks",
	}
	hooksCmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Install the dotnet format pre-commit hook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			path, err := githooks.InstallFormatPreCommit(a.cfg.Build.Root)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Installed: %s\n", path)
			return nil
		},
	})
	return hooksCmd
}

func newOpenCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "open <file>",
		Short: "Open a file in the browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			return browser.OpenBrowser(cmd.Context(), a.rt, a.cfg.Resolve(args[0]))
		},
	}
}

func printLines(w io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

func writeIfNotExists(w io.Writer, path, content string) error {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(w, "  Created: %s\n", path)
	return nil
}

const defaultFormatPreset = `name: format
tool: dotnet-format
args: ["--verify-no-changes"]
description: check formatting of the solution
`
