package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Source directories are
// deliberately not required here: status and queue commands work without
// them, and the scanner refuses to run when none are configured.
func (c *Config) Validate() error {
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSources() error {
	seen := make(map[string]struct{}, len(c.Sources))
	for i, src := range c.Sources {
		if strings.TrimSpace(src.Path) == "" {
			return fmt.Errorf("sources[%d].path must be set", i)
		}
		if _, ok := seen[src.Path]; ok {
			return fmt.Errorf("sources[%d].path %q is listed twice", i, src.Path)
		}
		seen[src.Path] = struct{}{}
	}
	return nil
}

func (c *Config) validateMatching() error {
	if c.Matching.PathThreshold < 0 || c.Matching.PathThreshold > 1 {
		return errors.New("matching.path_threshold must be between 0 and 1")
	}
	if c.Matching.ContentThreshold < 0 || c.Matching.ContentThreshold > 1 {
		return errors.New("matching.content_threshold must be between 0 and 1")
	}
	if c.Matching.SampleSeconds <= 0 {
		return errors.New("matching.sample_seconds must be positive")
	}
	if c.Matching.SampleChars <= 0 {
		return errors.New("matching.sample_chars must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
