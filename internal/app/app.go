// Package app собирает зависимости движка из конфигурации.
// Его используют HTTP сервер и операторский CLI.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gigmarket-backend/internal/config"
	"github.com/ignatzorin/gigmarket-backend/internal/db"
	"github.com/ignatzorin/gigmarket-backend/internal/logger"
	"github.com/ignatzorin/gigmarket-backend/internal/payment"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
	"github.com/ignatzorin/gigmarket-backend/internal/storage"
	"github.com/ignatzorin/gigmarket-backend/internal/ws"
)

// App готовые сервисы поверх одного подключения к базе.
type App struct {
	Config *config.Config
	DB     *sqlx.DB
	Hub    *ws.Hub

	Tokens        *service.TokenManager
	Notifier      *service.Notifier
	Notifications *service.NotificationService
	Escrow        *service.EscrowService
	Matcher       *service.MatcherService
	Arbiter       *service.ArbiterService
	Gigs          *service.GigService
	Disputes      *service.DisputeService
	Ratings       *service.RatingService
	Availability  *service.AvailabilityService
	Sweeper       *service.SweeperService
}

// New подключается к базе, применяет миграции и собирает сервисы.
// Хаб создаётся, но не запускается: это делает вызывающий через Hub.Run.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	feePolicy, err := config.LoadFeePolicy(cfg.FeePolicyPath)
	if err != nil {
		return nil, err
	}

	conn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(ctx, conn, cfg.MigrationsPath); err != nil {
		_ = conn.Close()
		return nil, err
	}

	evidence, err := storage.NewEvidenceStorage(cfg.EvidenceStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("app: не удалось подготовить хранилище доказательств: %w", err)
	}

	gigRepo := repository.NewGigRepository(conn)
	responseRepo := repository.NewResponseRepository(conn)
	projectRepo := repository.NewProjectRepository(conn)
	escrowRepo := repository.NewEscrowRepository(conn)
	disputeRepo := repository.NewDisputeRepository(conn)
	ratingRepo := repository.NewRatingRepository(conn)
	profileRepo := repository.NewProfileRepository(conn)
	availabilityRepo := repository.NewAvailabilityRepository(conn)
	notificationRepo := repository.NewNotificationRepository(conn)

	hub := ws.NewHub()
	notifications := service.NewNotificationService(notificationRepo)
	notifier := service.NewNotifier(ws.NewPushAdapter(hub, notifications), cfg.PushTimeout)

	gateway := newGateway(cfg)
	escrow := service.NewEscrowService(escrowRepo, projectRepo, gigRepo, gateway, notifier, cfg.GatewayTimeout)
	matcher := service.NewMatcherService(availabilityRepo, responseRepo, notifier, cfg.MaxCandidates)

	logger.L().WithFields(logrus.Fields{
		"fee_policy": feePolicy.Version,
		"gig_fee":    feePolicy.GigFeeRate.String(),
	}).Info("app: комиссии загружены")

	return &App{
		Config:        cfg,
		DB:            conn,
		Hub:           hub,
		Tokens:        service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL),
		Notifier:      notifier,
		Notifications: notifications,
		Escrow:        escrow,
		Matcher:       matcher,
		Arbiter:       service.NewArbiterService(gigRepo, responseRepo, projectRepo, escrow, feePolicy, notifier),
		Gigs:          service.NewGigService(gigRepo, responseRepo, projectRepo, matcher, escrow, cfg.MinCandidates, cfg.GigTTL),
		Disputes:      service.NewDisputeService(disputeRepo, projectRepo, evidence, escrow, notifier),
		Ratings:       service.NewRatingService(ratingRepo, projectRepo, profileRepo, notifier),
		Availability:  service.NewAvailabilityService(availabilityRepo),
		Sweeper:       service.NewSweeperService(gigRepo, escrow, cfg.PendingHoldGrace, notifier),
	}, nil
}

// newGateway выбирает Stripe при наличии ключа, иначе sandbox для разработки.
func newGateway(cfg *config.Config) payment.Gateway {
	if cfg.StripeSecretKey != "" {
		return payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeBaseURL, cfg.GatewayTimeout, cfg.GatewayRPS)
	}
	logger.L().Warn("app: STRIPE_SECRET_KEY не задан, используется sandbox шлюз")
	return payment.NewSandboxGateway()
}

// Close дожидается фоновых уведомлений и закрывает базу.
func (a *App) Close() {
	a.Notifier.Wait()
	if err := a.DB.Close(); err != nil {
		logger.L().WithError(err).Warn("app: ошибка закрытия базы")
	}
}
