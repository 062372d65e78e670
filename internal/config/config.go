package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete maw configuration
type Config struct {
	Backends BackendsConfig `mapstructure:"backends"`
	State    StateConfig    `mapstructure:"state"`
	Skills   SkillsConfig   `mapstructure:"skills"`
	Ralph    RalphConfig    `mapstructure:"ralph"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// BackendsConfig controls which AI backends are available and how they run
type BackendsConfig struct {
	// Default is the backend used when a phase or loop requests "auto" and
	// no keyword heuristic applies. Options: "claude", "codex", "gemini"
	Default string `mapstructure:"default"`

	Claude NativeBackendConfig `mapstructure:"claude"`
	Codex  BridgeBackendConfig `mapstructure:"codex"`
	Gemini BridgeBackendConfig `mapstructure:"gemini"`
}

// NativeBackendConfig configures the in-process native backend
type NativeBackendConfig struct {
	// Enabled controls whether the backend is registered (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Model is an informational model label recorded in result metadata
	Model string `mapstructure:"model"`
}

// BridgeBackendConfig configures a subprocess-bridged backend
type BridgeBackendConfig struct {
	// Enabled controls whether the backend is registered (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Command is the backend CLI binary used for availability probing
	// (e.g., "codex", "gemini")
	Command string `mapstructure:"command"`
	// Interpreter is the interpreter that runs the bridge script (default: "python3")
	Interpreter string `mapstructure:"interpreter"`
	// Script is the path to the bridge script. If empty, the backend is
	// registered but every execution fails fast with a configuration error.
	Script string `mapstructure:"script"`
	// Model is an optional model override passed through to the bridge
	Model string `mapstructure:"model"`
	// DefaultSandbox is the sandbox level used when a caller does not set one.
	// Options: "read-only", "workspace-write", "danger-full-access"
	DefaultSandbox string `mapstructure:"default_sandbox"`
	// MaxConcurrent limits simultaneous subprocess spawns for this backend
	// (0 = unlimited)
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// StateConfig controls where maw stores durable state
type StateConfig struct {
	// Root is the state directory. Relative paths are resolved against the
	// working directory. Supports ~ for home directory expansion.
	// (default: ".maw")
	Root string `mapstructure:"root"`
}

// SkillsConfig controls skill discovery
type SkillsConfig struct {
	// SearchPaths are the directories scanned for skill descriptors, in
	// priority order. (default: [".maw/skills"])
	SearchPaths []string `mapstructure:"search_paths"`
	// Watch enables filesystem watching for automatic re-discovery (default: false)
	Watch bool `mapstructure:"watch"`
}

// RalphConfig controls ralph loop defaults
type RalphConfig struct {
	// MaxIterations is the default iteration cap (default: 10)
	MaxIterations int `mapstructure:"max_iterations"`
	// DelaySeconds is the default inter-iteration delay (default: 2)
	DelaySeconds int `mapstructure:"delay_seconds"`
	// CompletionMarker is the default completion marker substring
	CompletionMarker string `mapstructure:"completion_marker"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
}

// Delay returns the configured inter-iteration delay as a Duration.
func (r *RalphConfig) Delay() time.Duration {
	return time.Duration(r.DelaySeconds) * time.Second
}

// ResolveRoot returns the resolved state root path.
// If Root starts with ~, it expands to the user's home directory.
// Relative paths are resolved against baseDir.
func (s *StateConfig) ResolveRoot(baseDir string) string {
	path := s.Root
	if path == "" {
		path = ".maw"
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Backends: BackendsConfig{
			Default: "claude",
			Claude: NativeBackendConfig{
				Enabled: true,
				Model:   "claude",
			},
			Codex: BridgeBackendConfig{
				Enabled:        true,
				Command:        "codex",
				Interpreter:    "python3",
				Script:         "",
				DefaultSandbox: "workspace-write",
				MaxConcurrent:  0,
			},
			Gemini: BridgeBackendConfig{
				Enabled:        true,
				Command:        "gemini",
				Interpreter:    "python3",
				Script:         "",
				DefaultSandbox: "workspace-write",
				MaxConcurrent:  0,
			},
		},
		State: StateConfig{
			Root: ".maw",
		},
		Skills: SkillsConfig{
			SearchPaths: []string{filepath.Join(".maw", "skills")},
			Watch:       false,
		},
		Ralph: RalphConfig{
			MaxIterations:    10,
			DelaySeconds:     2,
			CompletionMarker: "",
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Backend defaults
	viper.SetDefault("backends.default", defaults.Backends.Default)
	viper.SetDefault("backends.claude.enabled", defaults.Backends.Claude.Enabled)
	viper.SetDefault("backends.claude.model", defaults.Backends.Claude.Model)
	viper.SetDefault("backends.codex.enabled", defaults.Backends.Codex.Enabled)
	viper.SetDefault("backends.codex.command", defaults.Backends.Codex.Command)
	viper.SetDefault("backends.codex.interpreter", defaults.Backends.Codex.Interpreter)
	viper.SetDefault("backends.codex.script", defaults.Backends.Codex.Script)
	viper.SetDefault("backends.codex.model", defaults.Backends.Codex.Model)
	viper.SetDefault("backends.codex.default_sandbox", defaults.Backends.Codex.DefaultSandbox)
	viper.SetDefault("backends.codex.max_concurrent", defaults.Backends.Codex.MaxConcurrent)
	viper.SetDefault("backends.gemini.enabled", defaults.Backends.Gemini.Enabled)
	viper.SetDefault("backends.gemini.command", defaults.Backends.Gemini.Command)
	viper.SetDefault("backends.gemini.interpreter", defaults.Backends.Gemini.Interpreter)
	viper.SetDefault("backends.gemini.script", defaults.Backends.Gemini.Script)
	viper.SetDefault("backends.gemini.model", defaults.Backends.Gemini.Model)
	viper.SetDefault("backends.gemini.default_sandbox", defaults.Backends.Gemini.DefaultSandbox)
	viper.SetDefault("backends.gemini.max_concurrent", defaults.Backends.Gemini.MaxConcurrent)

	// State defaults
	viper.SetDefault("state.root", defaults.State.Root)

	// Skill defaults
	viper.SetDefault("skills.search_paths", defaults.Skills.SearchPaths)
	viper.SetDefault("skills.watch", defaults.Skills.Watch)

	// Ralph defaults
	viper.SetDefault("ralph.max_iterations", defaults.Ralph.MaxIterations)
	viper.SetDefault("ralph.delay_seconds", defaults.Ralph.DelaySeconds)
	viper.SetDefault("ralph.completion_marker", defaults.Ralph.CompletionMarker)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
}

// Init wires viper to the maw config file and environment overrides.
// Environment variables use the MAW_ prefix with underscores for nesting
// (e.g., MAW_BACKENDS_DEFAULT=codex overrides backends.default).
// A missing config file is not an error; defaults and env apply.
func Init() error {
	viper.SetConfigName("maw")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "maw"))
	}

	viper.SetEnvPrefix("MAW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	SetDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}
	return nil
}

// Load unmarshals and validates the current viper state into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the loaded configuration, falling back to defaults when
// loading fails.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Bridge returns the bridge configuration for a backend name, or nil if the
// name does not refer to a bridge backend.
func (b *BackendsConfig) Bridge(name string) *BridgeBackendConfig {
	switch strings.ToLower(name) {
	case "codex":
		return &b.Codex
	case "gemini":
		return &b.Gemini
	default:
		return nil
	}
}
