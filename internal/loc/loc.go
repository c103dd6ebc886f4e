// Package loc counts lines of code under a directory tree.
package loc

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cexll/agentsdk-go/pkg/gitignore"
)

// Params selects the files and lines to count. Glob fields are comma
// separated lists; see ParseGlobs.
type Params struct {
	Include           string
	Root              string
	Exclude           string
	ExcludeDirs       string
	IgnoreLinePattern string
	KeepBlankLines    bool
	RespectGitignore  bool
}

type Result struct {
	Files int
	Lines int
}

// ParseGlobs splits a comma separated glob list. Entries starting with "/",
// "\", "./" or ".\" are anchored at the root; any other entry matches at any
// depth.
func ParseGlobs(globs string) []string {
	var out []string
	for _, raw := range strings.Split(globs, ",") {
		g := strings.TrimSpace(raw)
		if g == "" {
			continue
		}
		g = strings.ReplaceAll(g, `\`, "/")
		switch {
		case strings.HasPrefix(g, "./"):
			out = append(out, strings.TrimLeft(g[2:], "/"))
		case strings.HasPrefix(g, "/"):
			out = append(out, strings.TrimLeft(g, "/"))
		default:
			out = append(out, "**/"+g)
		}
	}
	return out
}

// Count walks p.Root (the build root when empty) and counts matching files
// and the trimmed lines in them.
func Count(p Params) (Result, error) {
	root, err := resolveRoot(p.Root)
	if err != nil {
		return Result{}, err
	}

	var ignoreLine *regexp.Regexp
	if strings.TrimSpace(p.IgnoreLinePattern) != "" {
		ignoreLine, err = regexp.Compile("(?i)" + p.IgnoreLinePattern)
		if err != nil {
			return Result{}, fmt.Errorf("ignore line pattern: %w", err)
		}
	}

	var ignored *gitignore.Matcher
	if p.RespectGitignore {
		ignored, err = gitignore.NewMatcher(root)
		if err != nil {
			return Result{}, fmt.Errorf("load .gitignore: %w", err)
		}
	}

	include := ParseGlobs(p.Include)
	exclude := ParseGlobs(p.Exclude)
	excludeDirs := ParseGlobs(p.ExcludeDirs)

	var res Result
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if matchAny(excludeDirs, rel) {
				return filepath.SkipDir
			}
			if ignored != nil && !ignored.ShouldTraverse(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !matchAny(include, rel) || matchAny(exclude, rel) {
			return nil
		}
		if ignored != nil && ignored.Match(rel, false) {
			return nil
		}

		n, err := countLines(path, ignoreLine, p.KeepBlankLines)
		if err != nil {
			return err
		}
		res.Files++
		res.Lines += n
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("count lines under %s: %w", root, err)
	}
	return res, nil
}

// resolveRoot treats a root that looks like a file path as its directory.
func resolveRoot(root string) (string, error) {
	if strings.TrimSpace(root) == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		root = cwd
	}
	root = filepath.Clean(root)
	if filepath.Ext(root) != "" {
		root = filepath.Dir(root)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("loc root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("loc root %s is not a directory", root)
	}
	return root, nil
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func countLines(path string, ignore *regexp.Regexp, keepBlank bool) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" && !keepBlank {
			continue
		}
		if ignore != nil && ignore.MatchString(line) {
			continue
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	return n, nil
}
