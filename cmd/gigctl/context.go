package main

import (
	"context"
	"sync"

	"github.com/ignatzorin/gigmarket-backend/internal/app"
	"github.com/ignatzorin/gigmarket-backend/internal/config"
	"github.com/ignatzorin/gigmarket-backend/internal/logger"
)

// commandContext лениво грузит конфигурацию и собирает приложение.
// Команды, которым база не нужна, её не открывают.
type commandContext struct {
	configOnce sync.Once
	config     *config.Config
	configErr  error

	appOnce sync.Once
	app     *app.App
	appErr  error
	stopHub context.CancelFunc
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.configErr = err
			return
		}
		logger.Init(cfg.Env)
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureApp(ctx context.Context) (*app.App, error) {
	c.appOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.appErr = err
			return
		}
		a, err := app.New(ctx, cfg)
		if err != nil {
			c.appErr = err
			return
		}
		hubCtx, cancel := context.WithCancel(context.Background())
		go a.Hub.Run(hubCtx)
		c.app = a
		c.stopHub = cancel
	})
	return c.app, c.appErr
}

// close дожидается уведомлений, останавливает хаб и закрывает базу.
func (c *commandContext) close() {
	if c.app == nil {
		return
	}
	c.app.Close()
	c.stopHub()
}
