package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"demostudio/internal/client"
	"demostudio/internal/config"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) apiClient() (*client.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return client.New(cfg.Paths.APIBind, cfg.Paths.APIToken)
}

// withClient runs fn against the daemon API, translating connection refusals
// into an actionable hint.
func (c *commandContext) withClient(fn func(*client.Client) error) error {
	api, err := c.apiClient()
	if err != nil {
		return err
	}
	if err := fn(api); err != nil {
		if errors.Is(err, client.ErrDaemonUnavailable) {
			cfg, _ := c.ensureConfig()
			bind := ""
			if cfg != nil {
				bind = cfg.Paths.APIBind
			}
			return fmt.Errorf("connect to daemon at %s: %w; start it with `demostudio daemon`", bind, err)
		}
		return err
	}
	return nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
