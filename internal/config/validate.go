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
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.MediaDir) == "" {
		return errors.New("paths.media_dir must be set")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.PollIntervalSeconds <= 0 {
		return errors.New("queue.poll_interval_seconds must be positive")
	}
	if c.Queue.RetentionHours <= 0 {
		return errors.New("queue.retention_hours must be positive")
	}
	lanes := []struct {
		name   string
		policy LanePolicy
	}{
		{"transform", c.Queue.Transform},
		{"voice", c.Queue.Voice},
		{"export", c.Queue.Export},
	}
	for _, lane := range lanes {
		if lane.policy.Concurrency <= 0 {
			return fmt.Errorf("queue.%s.concurrency must be positive", lane.name)
		}
		if lane.policy.MaxAttempts <= 0 {
			return fmt.Errorf("queue.%s.max_attempts must be positive", lane.name)
		}
		if lane.policy.BackoffSeconds < 0 {
			return fmt.Errorf("queue.%s.backoff_seconds must not be negative", lane.name)
		}
		if lane.policy.TimeoutSeconds <= 0 {
			return fmt.Errorf("queue.%s.timeout_seconds must be positive", lane.name)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateExport() error {
	if c.Export.ThumbnailWidth <= 0 || c.Export.ThumbnailHeight <= 0 {
		return errors.New("export.thumbnail dimensions must be positive")
	}
	return nil
}
