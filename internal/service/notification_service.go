package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
)

// NotificationRepository описывает взаимодействие сервиса с хранилищем уведомлений.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, userID uuid.UUID, filter repository.NotificationFilter, limit, offset int) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID, filter repository.NotificationFilter) (int, error)
	MarkAsRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID, filter repository.NotificationFilter) (int64, error)
}

// NotificationService хранит push-уведомления, чтобы офлайн-пользователь увидел их позже.
type NotificationService struct {
	repo NotificationRepository
}

func NewNotificationService(repo NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// CreateNotification сохраняет уведомление. Реализует ws.NotificationSaver.
// gig_id и project_id из refs становятся колонками для выборки по гигу.
func (s *NotificationService) CreateNotification(ctx context.Context, userID uuid.UUID, event string, refs map[string]string, data interface{}) error {
	payload, err := json.Marshal(map[string]interface{}{
		"event": event,
		"data":  data,
	})
	if err != nil {
		return fmt.Errorf("notification service: marshal payload: %w", err)
	}

	n := &models.Notification{
		UserID:    userID,
		Event:     event,
		GigID:     refID(refs, "gig_id"),
		ProjectID: refID(refs, "project_id"),
		Payload:   payload,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return translateRepoError(err)
	}
	return nil
}

func refID(refs map[string]string, key string) *uuid.UUID {
	id, err := uuid.Parse(refs[key])
	if err != nil {
		return nil
	}
	return &id
}

// NotificationPage страница уведомлений со счётчиком непрочитанных под тем же фильтром.
type NotificationPage struct {
	Items  []models.Notification `json:"items"`
	Unread int                   `json:"unread"`
}

func (s *NotificationService) ListNotifications(ctx context.Context, userID uuid.UUID, filter repository.NotificationFilter, limit, offset int) (*NotificationPage, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.repo.List(ctx, userID, filter, limit, offset)
	if err != nil {
		return nil, translateRepoError(err)
	}
	unread, err := s.repo.CountUnread(ctx, userID, filter)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return &NotificationPage{Items: items, Unread: unread}, nil
}

// MarkAsRead чужое уведомление выглядит как несуществующее.
func (s *NotificationService) MarkAsRead(ctx context.Context, userID, id uuid.UUID) error {
	return translateRepoError(s.repo.MarkAsRead(ctx, userID, id))
}

// MarkAllAsRead отмечает прочитанными уведомления пользователя; gigID сужает до одного гига.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID, gigID *uuid.UUID) (int64, error) {
	n, err := s.repo.MarkAllAsRead(ctx, userID, repository.NotificationFilter{GigID: gigID})
	if err != nil {
		return 0, translateRepoError(err)
	}
	return n, nil
}
