// internal/config/config.go
//
// This package resolves where the dojo repository lives, how git is invoked,
// and where the tool keeps its own logs. Everything comes from DOJO_*
// environment variables; nothing is written inside the dojo repository.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

const (
	// StateDirName is the directory created under the user cache dir when
	// DOJO_STATE_DIR is unset.
	StateDirName = "dojo-manager"

	logFileName     = "dojo.log"
	journalFileName = "journal.log"
)

// Config holds the runtime configuration.
type Config struct {
	// Root is the dojo repository. Defaults to the working directory.
	Root string `env:"DOJO_ROOT"`

	// GitBinary is the git executable looked up on PATH.
	GitBinary string `env:"DOJO_GIT" envDefault:"git"`

	// GitConfig holds key=value pairs passed to every git call as -c.
	GitConfig []string `env:"DOJO_GIT_CONFIG" envSeparator:","`

	LogLevel string `env:"DOJO_LOG_LEVEL" envDefault:"info"`

	// StateDir holds dojo.log and journal.log.
	StateDir string `env:"DOJO_STATE_DIR"`
}

// Load reads the environment and fills in defaults relative to workingDir.
func Load(workingDir string) (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.normalize(workingDir); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) normalize(workingDir string) error {
	c.Root = resolvePath(workingDir, c.Root)
	if c.Root == "" {
		c.Root = filepath.Clean(workingDir)
	}
	if !filepath.IsAbs(c.Root) {
		abs, err := filepath.Abs(c.Root)
		if err != nil {
			return fmt.Errorf("config: resolve root: %w", err)
		}
		c.Root = abs
	}

	c.GitBinary = strings.TrimSpace(c.GitBinary)
	if c.GitBinary == "" {
		c.GitBinary = "git"
	}
	c.GitConfig = trimPairs(c.GitConfig)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = zerolog.LevelInfoValue
	}

	c.StateDir = resolvePath(workingDir, c.StateDir)
	if c.StateDir == "" {
		cache, err := os.UserCacheDir()
		if err != nil {
			return fmt.Errorf("config: locate cache dir (set DOJO_STATE_DIR): %w", err)
		}
		c.StateDir = filepath.Join(cache, StateDirName)
	}
	return nil
}

func (c *Config) validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("DOJO_LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	for _, pair := range c.GitConfig {
		if !strings.Contains(pair, "=") {
			return fmt.Errorf("DOJO_GIT_CONFIG entry %q must be key=value", pair)
		}
	}
	return nil
}

// Level returns the parsed log level.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// LogPath returns the diagnostic log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.StateDir, logFileName)
}

// JournalPath returns the step journal shown in the menu.
func (c *Config) JournalPath() string {
	return filepath.Join(c.StateDir, journalFileName)
}

// EnsureStateDir creates the state directory.
func (c *Config) EnsureStateDir() error {
	if err := os.MkdirAll(c.StateDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure state dir: %w", err)
	}
	return nil
}

func trimPairs(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}
