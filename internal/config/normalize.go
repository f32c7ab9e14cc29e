package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTools(); err != nil {
		return err
	}
	c.normalizeSplit()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputRoot, err = expandPath(strings.TrimSpace(c.Paths.OutputRoot)); err != nil {
		return fmt.Errorf("paths.output_root: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(strings.TrimSpace(c.Paths.StagingDir)); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() error {
	c.Tools.Decompressor = strings.TrimSpace(c.Tools.Decompressor)
	if c.Tools.Decompressor == "" {
		if value, ok := os.LookupEnv("GNSSPREP_CRX2RNX"); ok && strings.TrimSpace(value) != "" {
			c.Tools.Decompressor = strings.TrimSpace(value)
		} else {
			c.Tools.Decompressor = defaultDecompressor
		}
	}
	c.Tools.ConstellationFilter = strings.TrimSpace(c.Tools.ConstellationFilter)
	if c.Tools.ConstellationFilter == "" {
		if value, ok := os.LookupEnv("GNSSPREP_TEQC"); ok && strings.TrimSpace(value) != "" {
			c.Tools.ConstellationFilter = strings.TrimSpace(value)
		} else {
			c.Tools.ConstellationFilter = defaultFilter
		}
	}
	var err error
	if c.Tools.Decompressor, err = expandToolPath(c.Tools.Decompressor); err != nil {
		return fmt.Errorf("tools.decompressor: %w", err)
	}
	if c.Tools.ConstellationFilter, err = expandToolPath(c.Tools.ConstellationFilter); err != nil {
		return fmt.Errorf("tools.constellation_filter: %w", err)
	}
	return nil
}

// expandToolPath expands tool values that look like paths and leaves bare
// command names for PATH lookup.
func expandToolPath(value string) (string, error) {
	if !strings.ContainsAny(value, `/\`) && !strings.HasPrefix(value, "~") {
		return value, nil
	}
	return expandPath(value)
}

func (c *Config) normalizeSplit() {
	if len(c.Split.Views) == 0 {
		c.Split.Views = DefaultViews()
		return
	}
	for i := range c.Split.Views {
		c.Split.Views[i].Name = strings.TrimSpace(c.Split.Views[i].Name)
		flags := make([]string, 0, len(c.Split.Views[i].Flags))
		for _, flag := range c.Split.Views[i].Flags {
			if flag = strings.TrimSpace(flag); flag != "" {
				flags = append(flags, flag)
			}
		}
		c.Split.Views[i].Flags = flags
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
