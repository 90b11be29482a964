package main

import (
	"log/slog"
	"strings"
	"sync"

	"chessmate/internal/config"
	"chessmate/internal/logger"
)

type commandContext struct {
	configFlag *string
	levelFlag  *string

	configOnce sync.Once
	config     *config.Config
	log        *slog.Logger
	configErr  error
}

func newCommandContext(configFlag, levelFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		levelFlag:  levelFlag,
	}
}

// ensureConfig loads the configuration and builds the logger once
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.levelFlag != nil && *c.levelFlag != "" {
			cfg.Log.Level = *c.levelFlag
		}

		log, err := logger.New(cfg.Log)
		if err != nil {
			c.configErr = err
			return
		}
		slog.SetDefault(log)

		c.config = cfg
		c.log = log
	})
	return c.config, c.configErr
}

func (c *commandContext) baseLogger() *slog.Logger {
	if _, err := c.ensureConfig(); err != nil || c.log == nil {
		return slog.Default()
	}
	return c.log
}
