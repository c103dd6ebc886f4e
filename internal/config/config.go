package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DirName               = ".buildplus"
	DefaultToolsDir       = ".buildplus/tools"
	DefaultBadgesOutput   = "badges"
	DefaultShieldsURL     = "https://img.shields.io/badge/"
	DefaultTestResultName = "*.trx"
	DefaultCoverageFiles  = "tests/**/coverage.cobertura.xml"
	DefaultLocInclude     = "*.cs"
	DefaultLocExcludeDirs = "bin,obj"
	DefaultWatchTimeout   = "60s"
	DefaultLogLevel       = "info"
	DefaultScheduleStore  = ".buildplus/schedule.json"

	EnvRoot          = "BUILDPLUS_ROOT"
	EnvDotnet        = "BUILDPLUS_DOTNET"
	EnvToolsDir      = "BUILDPLUS_TOOLS_DIR"
	EnvBadgesOutput  = "BUILDPLUS_BADGES_OUTPUT"
	EnvShieldsURL    = "BUILDPLUS_SHIELDS_URL"
	EnvWatchTimeout  = "BUILDPLUS_WATCH_TIMEOUT"
	EnvLogLevel      = "BUILDPLUS_LOG_LEVEL"
	EnvLogNoColor    = "BUILDPLUS_LOG_NOCOLOR"
	EnvRespectIgnore = "BUILDPLUS_LOC_GITIGNORE"
)

// rootMarkers identify the build root when walking up from the working directory.
var rootMarkers = []string{".git", "global.json", filepath.Join(".config", "dotnet-tools.json")}

type Config struct {
	Build     BuildConfig      `json:"build" toml:"build"`
	Badges    BadgesConfig     `json:"badges" toml:"badges"`
	Loc       LocConfig        `json:"loc" toml:"loc"`
	Watch     WatchConfig      `json:"watch" toml:"watch"`
	Log       LogConfig        `json:"log" toml:"log"`
	Schedules []ScheduleConfig `json:"schedules,omitempty" toml:"schedules"`
}

type BuildConfig struct {
	// Root is discovered, never read from the file.
	Root     string `json:"-" toml:"-"`
	Dotnet   string `json:"dotnet,omitempty" toml:"dotnet"`
	ToolsDir string `json:"toolsDir" toml:"toolsDir"`
}

type BadgesConfig struct {
	Output         string `json:"output" toml:"output"`
	ShieldsURL     string `json:"shieldsUrl" toml:"shieldsUrl"`
	TestResultName string `json:"testResultName" toml:"testResultName"`
	CoverageFiles  string `json:"coverageFiles" toml:"coverageFiles"`
}

type LocConfig struct {
	Include           string `json:"include" toml:"include"`
	Exclude           string `json:"exclude,omitempty" toml:"exclude"`
	ExcludeDirs       string `json:"excludeDirs,omitempty" toml:"excludeDirs"`
	IgnoreLinePattern string `json:"ignoreLinePattern,omitempty" toml:"ignoreLinePattern"`
	KeepBlankLines    bool   `json:"keepBlankLines" toml:"keepBlankLines"`
	RespectGitignore  bool   `json:"respectGitignore" toml:"respectGitignore"`
}

type WatchConfig struct {
	Timeout string `json:"timeout" toml:"timeout"`
}

type LogConfig struct {
	Level     string `json:"level" toml:"level"`
	NoColor   bool   `json:"noColor" toml:"noColor"`
	Timestamp bool   `json:"timestamp" toml:"timestamp"`
}

type ScheduleConfig struct {
	Name     string `json:"name" toml:"name"`
	Cron     string `json:"cron" toml:"cron"`
	Action   string `json:"action" toml:"action"`
	Disabled bool   `json:"disabled,omitempty" toml:"disabled"`
}

func DefaultConfig() *Config {
	return &Config{
		Build: BuildConfig{
			ToolsDir: DefaultToolsDir,
		},
		Badges: BadgesConfig{
			Output:         DefaultBadgesOutput,
			ShieldsURL:     DefaultShieldsURL,
			TestResultName: DefaultTestResultName,
			CoverageFiles:  DefaultCoverageFiles,
		},
		Loc: LocConfig{
			Include:     DefaultLocInclude,
			ExcludeDirs: DefaultLocExcludeDirs,
		},
		Watch: WatchConfig{
			Timeout: DefaultWatchTimeout,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}

// FindRoot returns BUILDPLUS_ROOT if set, otherwise the closest ancestor of
// the working directory holding a root marker, falling back to the working
// directory itself.
func FindRoot() (string, error) {
	if root := os.Getenv(EnvRoot); root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", EnvRoot, err)
		}
		return abs, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	dir := cwd
	for {
		for _, marker := range rootMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd, nil
		}
		dir = parent
	}
}

func ConfigDir(root string) string {
	return filepath.Join(root, DirName)
}

func ConfigPath(root string) string {
	return filepath.Join(ConfigDir(root), "config.json")
}

func TOMLConfigPath(root string) string {
	return filepath.Join(ConfigDir(root), "config.toml")
}

// LoadConfig layers defaults, the config file under root (JSON preferred
// over TOML) and environment overrides.
func LoadConfig(root string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath(root))
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
		if _, err := toml.DecodeFile(TOMLConfigPath(root), cfg); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg.Build.Root = root

	if dotnet := os.Getenv(EnvDotnet); dotnet != "" {
		cfg.Build.Dotnet = dotnet
	}
	if dir := os.Getenv(EnvToolsDir); dir != "" {
		cfg.Build.ToolsDir = dir
	}
	if out := os.Getenv(EnvBadgesOutput); out != "" {
		cfg.Badges.Output = out
	}
	if url := os.Getenv(EnvShieldsURL); url != "" {
		cfg.Badges.ShieldsURL = url
	}
	if timeout := os.Getenv(EnvWatchTimeout); timeout != "" {
		cfg.Watch.Timeout = timeout
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Log.Level = level
	}
	if noColor := os.Getenv(EnvLogNoColor); noColor != "" {
		if parsed, err := strconv.ParseBool(noColor); err == nil {
			cfg.Log.NoColor = parsed
		}
	}
	if respect := os.Getenv(EnvRespectIgnore); respect != "" {
		if parsed, err := strconv.ParseBool(respect); err == nil {
			cfg.Loc.RespectGitignore = parsed
		}
	}

	defaults := DefaultConfig()
	if cfg.Build.ToolsDir == "" {
		cfg.Build.ToolsDir = defaults.Build.ToolsDir
	}
	if cfg.Badges.Output == "" {
		cfg.Badges.Output = defaults.Badges.Output
	}
	if cfg.Badges.ShieldsURL == "" {
		cfg.Badges.ShieldsURL = defaults.Badges.ShieldsURL
	}
	if cfg.Badges.TestResultName == "" {
		cfg.Badges.TestResultName = defaults.Badges.TestResultName
	}
	if cfg.Badges.CoverageFiles == "" {
		cfg.Badges.CoverageFiles = defaults.Badges.CoverageFiles
	}
	if cfg.Loc.Include == "" {
		cfg.Loc.Include = defaults.Loc.Include
	}
	if cfg.Watch.Timeout == "" {
		cfg.Watch.Timeout = defaults.Watch.Timeout
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}

	return cfg, nil
}

// SaveConfig writes cfg as JSON under root.
func SaveConfig(root string, cfg *Config) error {
	if err := os.MkdirAll(ConfigDir(root), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(root), data, 0644)
}

// Resolve makes a config-relative path absolute against the build root.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Build.Root, filepath.FromSlash(path))
}

// WatchTimeout parses Watch.Timeout, falling back to the default.
func (c *Config) WatchTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Watch.Timeout); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(DefaultWatchTimeout)
	return d
}
