// Package presets loads local tool definitions from YAML files.
package presets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var errInvalidPresetYAML = errors.New("invalid preset YAML")

// Definition binds a registry name to a local tool with preset arguments.
type Definition struct {
	Name             string            `yaml:"name"`
	Tool             string            `yaml:"tool"`
	Args             []string          `yaml:"args"`
	WorkingDirectory string            `yaml:"workingDirectory"`
	Environment      map[string]string `yaml:"environment"`
	Description      string            `yaml:"description"`

	// Path is the file the definition was read from.
	Path string `yaml:"-"`
}

// LocalTool returns the tool name, defaulting to the definition name.
func (d Definition) LocalTool() string {
	if tool := strings.TrimSpace(d.Tool); tool != "" {
		return tool
	}
	return d.Name
}

// Load reads every *.yaml and *.yml file in dir in name order. A missing or
// empty dir yields no definitions. Files that are not valid YAML are skipped
// with a warning; a missing name or a duplicate name is an error.
func Load(dir string, logger zerolog.Logger) ([]Definition, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat presets dir %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("presets path is not a directory: %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read presets dir %q: %w", dir, err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	defs := make([]Definition, 0, len(entries))
	seen := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		def, err := parseFile(path)
		if err != nil {
			if errors.Is(err, errInvalidPresetYAML) {
				logger.Warn().Err(err).Str("path", path).Msg("skip invalid preset")
				continue
			}
			return nil, err
		}

		if prevPath, exists := seen[def.Name]; exists {
			return nil, fmt.Errorf("duplicate preset name %q in %s (already in %s)", def.Name, path, prevPath)
		}
		seen[def.Name] = path
		defs = append(defs, def)
	}

	return defs, nil
}

func isYAML(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func parseFile(path string) (Definition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("read preset %q: %w", path, err)
	}

	var def Definition
	if err := yaml.Unmarshal(content, &def); err != nil {
		return Definition{}, fmt.Errorf("%w %s: %v", errInvalidPresetYAML, path, err)
	}

	def.Name = strings.TrimSpace(def.Name)
	if def.Name == "" {
		return Definition{}, fmt.Errorf("parse preset %q: missing name", path)
	}
	def.Tool = strings.TrimSpace(def.Tool)
	def.Description = strings.TrimSpace(def.Description)
	def.Path = path
	return def, nil
}
