package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeSegment()
	c.normalizeResources()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeImages()
	c.normalizeSession()
	c.Render.Endpoint = strings.TrimSpace(c.Render.Endpoint)
	if c.Render.TimeoutSeconds <= 0 {
		c.Render.TimeoutSeconds = defaultRenderTimeout
	}
	c.Build.BundleCompression = lowerOr(c.Build.BundleCompression, defaultBundleCodec)
	c.Merge.StyleMode = lowerOr(c.Merge.StyleMode, defaultStyleMode)
	c.Logging.Format = lowerOr(c.Logging.Format, defaultLogFormat)
	c.Logging.Level = lowerOr(c.Logging.Level, defaultLogLevel)
	return nil
}

func lowerOr(v, def string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return def
	}
	return v
}

func (c *Config) normalizeSegment() {
	c.Segment.Mode = lowerOr(c.Segment.Mode, defaultSegmentMode)
	c.Segment.NumType = strings.ToUpper(strings.TrimSpace(c.Segment.NumType))
	if c.Segment.NumType == "" {
		c.Segment.NumType = defaultNumType
	}
	c.Segment.Patterns = compact(c.Segment.Patterns, false)
	if len(c.Segment.Patterns) == 0 {
		c.Segment.Patterns = append([]string(nil), defaultPatterns...)
	}
	c.Segment.AnswerLabels = compact(c.Segment.AnswerLabels, false)
}

func (c *Config) normalizeResources() {
	c.Resources.IDPolicy = lowerOr(c.Resources.IDPolicy, defaultIDPolicy)
	exts := compact(c.Resources.PayloadExtensions, true)
	for i, e := range exts {
		if !strings.HasPrefix(e, ".") {
			exts[i] = "." + e
		}
	}
	if len(exts) == 0 {
		exts = append([]string(nil), defaultPayloadExtensions...)
	}
	c.Resources.PayloadExtensions = exts
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name string
		dst  *string
	}{
		{"build.temp_dir", &c.Build.TempDir},
		{"build.diagnostics_dir", &c.Build.DiagnosticsDir},
		{"build.store_dir", &c.Build.StoreDir},
		{"session.root", &c.Session.Root},
		{"journal.path", &c.Journal.Path},
		{"metrics.textfile", &c.Metrics.Textfile},
	}
	for _, f := range fields {
		v, err := expandPath(strings.TrimSpace(*f.dst))
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	if c.Build.DiagnosticsDir == "" {
		v, err := expandPath(defaultDiagnosticsDir)
		if err != nil {
			return fmt.Errorf("build.diagnostics_dir: %w", err)
		}
		c.Build.DiagnosticsDir = v
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		v, err := expandPath(defaultJournalPath)
		if err != nil {
			return fmt.Errorf("journal.path: %w", err)
		}
		c.Journal.Path = v
	}
	return nil
}

func (c *Config) normalizeImages() {
	if c.Images.MaxWidth <= 0 {
		c.Images.MaxWidth = defaultImageMaxWidth
	}
	if c.Images.Quality <= 0 {
		c.Images.Quality = defaultImageQuality
	}
	if c.Images.Workers <= 0 {
		c.Images.Workers = defaultImageWorkers
	}
}

func (c *Config) normalizeSession() {
	if c.Session.IdleTimeoutSeconds < 0 {
		c.Session.IdleTimeoutSeconds = 0
	}
	if c.Session.ReapIntervalSeconds <= 0 {
		c.Session.ReapIntervalSeconds = defaultSessionReap
	}
	if c.Session.CacheTTLSeconds < 0 {
		c.Session.CacheTTLSeconds = 0
	}
}

// compact trims entries, drops empty ones and duplicates, and optionally
// lowercases.
func compact(in []string, lower bool) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range in {
		v = strings.TrimSpace(v)
		if lower {
			v = strings.ToLower(v)
		}
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
