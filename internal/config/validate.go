package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateSplit(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Staging.StaleAfterHours <= 0 {
		return errors.New("staging.stale_after_hours must be positive")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.StagingDir == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateTools() error {
	if c.Tools.Decompressor == "" {
		return errors.New("tools.decompressor must be set (or export GNSSPREP_CRX2RNX)")
	}
	if c.Tools.ConstellationFilter == "" {
		return errors.New("tools.constellation_filter must be set (or export GNSSPREP_TEQC)")
	}
	if c.Tools.TimeoutSeconds < 0 {
		return errors.New("tools.timeout_seconds must be >= 0")
	}
	if c.Workers.Count < 0 {
		return errors.New("workers.count must be >= 0")
	}
	return nil
}

func (c *Config) validateSplit() error {
	if len(c.Split.Views) == 0 {
		return errors.New("split.views must include at least one view")
	}
	seen := make(map[string]struct{}, len(c.Split.Views))
	for i, view := range c.Split.Views {
		if view.Name == "" {
			return fmt.Errorf("split.views[%d].name must be set", i)
		}
		if strings.ContainsAny(view.Name, `/\`) || view.Name == "." || view.Name == ".." {
			return fmt.Errorf("split.views[%d].name %q must be a plain directory name", i, view.Name)
		}
		key := strings.ToUpper(view.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("split.views[%d].name %q is duplicated", i, view.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
