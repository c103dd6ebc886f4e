// Package githooks installs the repository's git hooks.
package githooks

import (
	"fmt"
	"os"
	"path/filepath"
)

// FormatPreCommit runs `dotnet format` on staged C# files and restages them.
const FormatPreCommit = `#!/bin/sh
echo 'Running pre-commit for C# files'

CHANGED_FILES=$(git diff --name-only --cached --diff-filter=ACMR)

get_pattern_files() {
  pattern=$(echo "$*" | sed "s/ /\$\\\|/g")
  echo "$CHANGED_FILES" | { grep "$pattern$" || true; }
}

CSHARP_FILES=$(get_pattern_files .cs)

if [ -n "$CSHARP_FILES" ]; then
  dotnet format -v normal --include $CSHARP_FILES
  echo "$CSHARP_FILES" | xargs git add
fi
`

// PreCommitPath returns the pre-commit hook location for the repository at root.
func PreCommitPath(root string) string {
	return filepath.Join(root, ".git", "hooks", "pre-commit")
}

// InstallFormatPreCommit replaces the pre-commit hook with FormatPreCommit.
func InstallFormatPreCommit(root string) (string, error) {
	return Install(root, "pre-commit", FormatPreCommit)
}

// Install writes an executable hook named name, replacing any existing one.
func Install(root, name, script string) (string, error) {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil {
		return "", fmt.Errorf("not a git repository: %s: %w", root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a git repository: %s is not a directory", gitDir)
	}

	hooksDir := filepath.Join(gitDir, "hooks")
	if err := os.MkdirAll(hooksDir, 0755); err != nil {
		return "", fmt.Errorf("create hooks dir: %w", err)
	}

	path := filepath.Join(hooksDir, name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("remove existing hook: %w", err)
	}
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		return "", fmt.Errorf("write hook: %w", err)
	}
	return path, nil
}
