package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignatzorin/gigmarket-backend/internal/app"
	"github.com/ignatzorin/gigmarket-backend/internal/config"
	"github.com/ignatzorin/gigmarket-backend/internal/goroutine"
	httpHandlers "github.com/ignatzorin/gigmarket-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/gigmarket-backend/internal/http/router"
	"github.com/ignatzorin/gigmarket-backend/internal/logger"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}
	logger.Init(cfg.Env)

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.L().WithError(err).Fatal("main: не удалось собрать приложение")
	}
	defer a.Close()

	recovery := goroutine.NewRecoveryHandler(logger.L())
	recovery.SafeGo("ws hub", func() { a.Hub.Run(ctx) })
	if cfg.SweepInterval > 0 {
		recovery.SafeGo("sweeper", func() { a.Sweeper.Run(ctx, cfg.SweepInterval) })
	}

	// HTTP хэндлеры.
	handlers := httpRouter.Handlers{
		Gig:          httpHandlers.NewGigHandler(a.Gigs),
		Response:     httpHandlers.NewResponseHandler(a.Arbiter),
		Project:      httpHandlers.NewProjectHandler(a.Gigs, a.Escrow),
		Dispute:      httpHandlers.NewDisputeHandler(a.Disputes, cfg.MaxUploadSizeMB),
		Rating:       httpHandlers.NewRatingHandler(a.Ratings),
		Availability: httpHandlers.NewAvailabilityHandler(a.Availability),
		Wallet:       httpHandlers.NewWalletHandler(a.Escrow),
		Notification: httpHandlers.NewNotificationHandler(a.Notifications),
		Admin:        httpHandlers.NewAdminHandler(a.Escrow, a.Sweeper),
		WS:           httpHandlers.NewWSHandler(a.Hub, a.Tokens, wsOrigins(cfg)),
		Health:       httpHandlers.NewHealthHandler(a.DB),
	}
	engine := httpRouter.SetupRouter(cfg, handlers, a.Tokens)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	recovery.SafeGo("http shutdown", func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.L().WithError(err).Warn("main: ошибка остановки http сервера")
		}
	})

	logger.L().WithField("port", cfg.HTTPPort).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.L().WithError(err).Error("main: сервер завершился с ошибкой")
	}

	// Дожидаемся хаба и sweeper, затем a.Close дождётся уведомлений.
	stop()
	recovery.Wait()
}

// wsOrigins в development websocket принимает любой origin.
func wsOrigins(cfg *config.Config) []string {
	if cfg.Env == "development" {
		return nil
	}
	return cfg.AllowedOrigins
}
