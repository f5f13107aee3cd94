package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/gigmarket-backend/internal/interface/http/response"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
)

// NotificationHandler обслуживает маршруты уведомлений.
type NotificationHandler struct {
	notifications *service.NotificationService
}

// NewNotificationHandler создаёт новый хэндлер.
func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// ListNotifications обрабатывает GET /notifications?unread_only=true&gig_id=...
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	filter := repository.NotificationFilter{UnreadOnly: c.Query("unread_only") == "true"}
	if raw := c.Query("gig_id"); raw != "" {
		gigID, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "некорректный gig_id")
			return
		}
		filter.GigID = &gigID
	}

	limit, offset := pagination(c)
	page, err := h.notifications.ListNotifications(c.Request.Context(), userID, filter, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, page)
}

// MarkAsRead обрабатывает PUT /notifications/:id/read.
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.notifications.MarkAsRead(c.Request.Context(), userID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"read": true})
}

// MarkAllAsRead обрабатывает PUT /notifications/read-all.
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	h.markRead(c, nil)
}

// MarkGigAsRead обрабатывает PUT /notifications/gigs/:gig_id/read.
func (h *NotificationHandler) MarkGigAsRead(c *gin.Context) {
	gigID, ok := uuidParam(c, "gig_id")
	if !ok {
		return
	}
	h.markRead(c, &gigID)
}

func (h *NotificationHandler) markRead(c *gin.Context, gigID *uuid.UUID) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	n, err := h.notifications.MarkAllAsRead(c.Request.Context(), userID, gigID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"marked": n})
}
