package tooling

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// EnvVarFor returns the environment variable that overrides the location of
// the named tool, e.g. DOTNET_EXE for "dotnet".
func EnvVarFor(name string) string {
	key := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(name))
	return key + "_EXE"
}

// ResolveTool finds the named tool, preferring the <NAME>_EXE environment
// variable over PATH lookup.
func ResolveTool(name string) (string, error) {
	if path := strings.TrimSpace(os.Getenv(EnvVarFor(name))); path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("%s points to %s: %w", EnvVarFor(name), path, err)
		}
		return path, nil
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", name, err)
	}
	return path, nil
}

// CommandExists reports whether the named tool can be resolved.
func CommandExists(name string) bool {
	_, err := ResolveTool(name)
	return err == nil
}
