package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override the file.
const (
	EnvLogLevel       = "HWPXKIT_LOG_LEVEL"
	EnvLogFormat      = "HWPXKIT_LOG_FORMAT"
	EnvSessionRoot    = "HWPXKIT_SESSION_ROOT"
	EnvJournalPath    = "HWPXKIT_JOURNAL_PATH"
	EnvRenderEndpoint = "HWPXKIT_RENDER_ENDPOINT"
	EnvDiagnosticsDir = "HWPXKIT_DIAGNOSTICS_DIR"
)

// loadDotEnv reads path into the process environment without replacing
// variables that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(EnvLogLevel, &c.Logging.Level)
	set(EnvLogFormat, &c.Logging.Format)
	set(EnvSessionRoot, &c.Session.Root)
	set(EnvJournalPath, &c.Journal.Path)
	set(EnvRenderEndpoint, &c.Render.Endpoint)
	set(EnvDiagnosticsDir, &c.Build.DiagnosticsDir)
}

