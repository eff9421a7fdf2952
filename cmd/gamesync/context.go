package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kapu/game-metadata-sync-go/internal/app"
	"github.com/kapu/game-metadata-sync-go/internal/config"
	"github.com/kapu/game-metadata-sync-go/internal/util"
)

type commandContext struct {
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	logger     *zap.Logger
	configErr  error

	container *app.Container
}

func newCommandContext(logLevelFlag *string) *commandContext {
	return &commandContext{logLevelFlag: logLevelFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
				cfg.Logging.Level = level
			}
		}
		logger, err := util.NewLogger(cfg.Logging.Level, cfg.Logging.File)
		if err != nil {
			c.configErr = fmt.Errorf("initialize logger: %w", err)
			return
		}
		c.config = cfg
		c.logger = logger
	})
	return c.config, c.configErr
}

// ensureContainer builds the application container once per invocation.
func (c *commandContext) ensureContainer(ctx context.Context) (*app.Container, error) {
	if c.container != nil {
		return c.container, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	container, err := app.Build(ctx, cfg, c.logger)
	if err != nil {
		return nil, err
	}
	c.container = container
	return container, nil
}

func (c *commandContext) close() {
	if c.container != nil {
		c.container.Close()
		c.container = nil
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}
