// Package config loads hwpxkit settings from TOML, a .env file and
// HWPXKIT_* environment variables, in that order of precedence.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Segment configures unit detection.
type Segment struct {
	Mode         string   `toml:"mode"`
	Patterns     []string `toml:"patterns"`
	NumType      string   `toml:"num_type"`
	TrimTrailing bool     `toml:"trim_trailing"`
	AnswerLabels []string `toml:"answer_labels"`
}

// Resources configures binary resource resolution and collection.
type Resources struct {
	IDPolicy          string   `toml:"id_policy"`
	PayloadExtensions []string `toml:"payload_extensions"`
}

// Build configures output production.
type Build struct {
	TempDir           string `toml:"temp_dir"`
	KeepDiagnostics   bool   `toml:"keep_diagnostics"`
	DiagnosticsDir    string `toml:"diagnostics_dir"`
	BundleCompression string `toml:"bundle_compression"`
	StoreDir          string `toml:"store_dir"`
}

// Images configures payload normalization.
type Images struct {
	Normalize bool `toml:"normalize"`
	MaxWidth  int  `toml:"max_width"`
	Quality   int  `toml:"quality"`
	Workers   int  `toml:"workers"`
}

// Render configures the equation rendering proxy.
type Render struct {
	Endpoint       string `toml:"endpoint"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Merge configures cross-document merges.
type Merge struct {
	StyleMode string `toml:"style_mode"`
}

// Session configures workspaces.
type Session struct {
	Root                string `toml:"root"`
	IdleTimeoutSeconds  int    `toml:"idle_timeout_seconds"`
	ReapIntervalSeconds int    `toml:"reap_interval_seconds"`
	CacheTTLSeconds     int    `toml:"cache_ttl_seconds"`
}

// Journal configures the run journal.
type Journal struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging configures the process logger.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics configures the Prometheus recorder.
type Metrics struct {
	Enabled  bool   `toml:"enabled"`
	Textfile string `toml:"textfile"`
}

// Config is the full configuration.
type Config struct {
	Segment   Segment   `toml:"segment"`
	Resources Resources `toml:"resources"`
	Build     Build     `toml:"build"`
	Images    Images    `toml:"images"`
	Render    Render    `toml:"render"`
	Merge     Merge     `toml:"merge"`
	Session   Session   `toml:"session"`
	Journal   Journal   `toml:"journal"`
	Logging   Logging   `toml:"logging"`
	Metrics   Metrics   `toml:"metrics"`
}

// SampleConfig returns the commented sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// DefaultConfigPath returns the per-user configuration path.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load reads the configuration at path, or the default locations when path
// is empty, then applies .env and environment overrides. It returns the
// resolved path and whether that file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, "", false, err
	}
	cfg.applyEnv(os.Getenv)

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

// Init writes the sample configuration to path unless a file exists there.
func Init(path string) (string, error) {
	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return "", err
		}
	} else {
		var err error
		if path, err = expandPath(path); err != nil {
			return "", err
		}
	}
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("config already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("determine home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Clean(path), nil
}

// RenderTimeout returns the render call bound.
func (c *Config) RenderTimeout() time.Duration {
	return time.Duration(c.Render.TimeoutSeconds) * time.Second
}

// SessionIdleTimeout returns how long an unused session survives.
func (c *Config) SessionIdleTimeout() time.Duration {
	return time.Duration(c.Session.IdleTimeoutSeconds) * time.Second
}

// SessionReapInterval returns the reaper period.
func (c *Config) SessionReapInterval() time.Duration {
	return time.Duration(c.Session.ReapIntervalSeconds) * time.Second
}

// CacheTTL returns how long a parsed source stays cached in a session.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Session.CacheTTLSeconds) * time.Second
}
