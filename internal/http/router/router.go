package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/gigmarket-backend/internal/config"
	"github.com/ignatzorin/gigmarket-backend/internal/http/handlers"
	"github.com/ignatzorin/gigmarket-backend/internal/http/middleware"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
)

// Handlers набор хэндлеров, которые монтирует роутер.
type Handlers struct {
	Gig          *handlers.GigHandler
	Response     *handlers.ResponseHandler
	Project      *handlers.ProjectHandler
	Dispute      *handlers.DisputeHandler
	Rating       *handlers.RatingHandler
	Availability *handlers.AvailabilityHandler
	Wallet       *handlers.WalletHandler
	Notification *handlers.NotificationHandler
	Admin        *handlers.AdminHandler
	WS           *handlers.WSHandler
	Health       *handlers.HealthHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokenManager *service.TokenManager) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.NoRoute(middleware.NotFoundHandler)

	r.GET("/health", h.Health.Health)

	api := r.Group("/api")

	// websocket авторизуется токеном из query
	api.GET("/ws", h.WS.Handle)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))

	// Создание гигов и отклики дорогие: авторизация платежа и рассылка.
	writeLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)
	{
		protected.POST("/gigs", writeLimit, h.Gig.Create)
		protected.GET("/gigs/:id", middleware.UUIDValidator("id"), h.Gig.Get)
		protected.GET("/gigs/:id/history", middleware.UUIDValidator("id"), h.Gig.History)
		protected.GET("/gigs/:id/responses", middleware.UUIDValidator("id"), h.Response.List)
		protected.POST("/gigs/:id/respond", middleware.UUIDValidator("id"), writeLimit, h.Response.Respond)
		protected.POST("/gigs/:id/select", middleware.UUIDValidator("id"), h.Response.Select)
		protected.POST("/gigs/:id/accept-agreement", middleware.UUIDValidator("id"), h.Project.AcceptAgreement)
		protected.POST("/gigs/:id/complete", middleware.UUIDValidator("id"), h.Project.Complete)

		protected.GET("/projects/:id", middleware.UUIDValidator("id"), h.Project.Get)

		protected.POST("/disputes", h.Dispute.Raise)
		protected.GET("/disputes", h.Dispute.ListMine)
		protected.GET("/disputes/:id", middleware.UUIDValidator("id"), h.Dispute.Get)
		protected.POST("/disputes/:id/evidence", middleware.UUIDValidator("id"), h.Dispute.AttachEvidence)

		protected.POST("/ratings", h.Rating.Submit)
		protected.GET("/users/:id/ratings", middleware.UUIDValidator("id"), h.Rating.ListForUser)

		protected.GET("/user/availability", h.Availability.Get)
		protected.PATCH("/user/availability", h.Availability.Update)

		protected.GET("/wallet", h.Wallet.Get)
		protected.GET("/wallet/transactions", h.Wallet.Transactions)
		protected.POST("/wallet/withdrawals", writeLimit, h.Wallet.Withdraw)

		protected.GET("/notifications", h.Notification.ListNotifications)
		protected.PUT("/notifications/read-all", h.Notification.MarkAllAsRead)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), h.Notification.MarkAsRead)
		protected.PUT("/notifications/gigs/:gig_id/read", middleware.UUIDValidator("gig_id"), h.Notification.MarkGigAsRead)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokenManager), middleware.RequireRole(service.RoleAdmin))
	{
		admin.POST("/projects/:id/release", middleware.UUIDValidator("id"), h.Admin.ReleaseProject)
		admin.POST("/disputes/:id/resolve", middleware.UUIDValidator("id"), h.Dispute.Resolve)
		admin.POST("/sweeps/expire", h.Admin.ExpireSweep)
		admin.POST("/sweeps/reconcile", h.Admin.ReconcileSweep)
		admin.POST("/wallets/reconcile", h.Admin.ReconcileWallets)
	}

	return r
}
