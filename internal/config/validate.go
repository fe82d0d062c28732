package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/FocuswithJustin/hwpxkit/core/numbering"
	"github.com/FocuswithJustin/hwpxkit/core/resources"
	"github.com/FocuswithJustin/hwpxkit/core/styleiso"
	"github.com/FocuswithJustin/hwpxkit/internal/archive"
	"github.com/FocuswithJustin/hwpxkit/internal/logging"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSegment(); err != nil {
		return err
	}
	if _, err := resources.ParsePolicy(c.Resources.IDPolicy); err != nil {
		return err
	}
	if _, err := archive.ParseCompression(c.Build.BundleCompression); err != nil {
		return fmt.Errorf("build.bundle_compression: %w", err)
	}
	if err := c.validateImages(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if _, err := styleiso.ParseMode(c.Merge.StyleMode); err != nil {
		return fmt.Errorf("merge.style_mode: %w", err)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		return fmt.Errorf("logging.format: %w", err)
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal.path is required when the journal is enabled")
	}
	return nil
}

func (c *Config) validateSegment() error {
	switch c.Segment.Mode {
	case "text", "index":
	default:
		return fmt.Errorf("segment.mode must be text or index, got %q", c.Segment.Mode)
	}
	if _, err := numbering.NewMatcher(c.Segment.Patterns); err != nil {
		return fmt.Errorf("segment.patterns: %w", err)
	}
	return nil
}

func (c *Config) validateImages() error {
	if c.Images.Quality > 100 {
		return fmt.Errorf("images.quality must be between 1 and 100, got %d", c.Images.Quality)
	}
	if c.Images.Workers > 64 {
		return fmt.Errorf("images.workers must be at most 64, got %d", c.Images.Workers)
	}
	return nil
}

func (c *Config) validateRender() error {
	if c.Render.Endpoint == "" {
		return nil
	}
	u, err := url.Parse(c.Render.Endpoint)
	if err != nil {
		return fmt.Errorf("render.endpoint: %w", err)
	}
	if scheme := strings.ToLower(u.Scheme); (scheme != "http" && scheme != "https") || u.Host == "" {
		return fmt.Errorf("render.endpoint must be an http(s) URL, got %q", c.Render.Endpoint)
	}
	return nil
}
