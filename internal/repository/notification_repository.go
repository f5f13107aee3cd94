package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/repository/common"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationFilter сужает выборку уведомлений пользователя.
type NotificationFilter struct {
	UnreadOnly bool
	GigID      *uuid.UUID
}

// where собирает условие выборки; $1 всегда user_id.
func (f NotificationFilter) where(userID uuid.UUID) (string, []interface{}) {
	conds := []string{"user_id = $1"}
	args := []interface{}{userID}
	if f.UnreadOnly {
		conds = append(conds, "is_read = FALSE")
	}
	if f.GigID != nil {
		args = append(args, *f.GigID)
		conds = append(conds, fmt.Sprintf("gig_id = $%d", len(args)))
	}
	return strings.Join(conds, " AND "), args
}

// NotificationRepository хранит push-уведомления о гигах, проектах и спорах.
type NotificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO notifications (user_id, event, gig_id, project_id, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_read, created_at
	`, n.UserID, n.Event, n.GigID, n.ProjectID, n.Payload).Scan(&n.ID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("notification repository: create: %w", err)
	}
	return nil
}

// List новые уведомления первыми.
func (r *NotificationRepository) List(ctx context.Context, userID uuid.UUID, filter NotificationFilter, limit, offset int) ([]models.Notification, error) {
	where, args := filter.where(userID)
	args = append(args, clampLimit(limit), offset)
	query := fmt.Sprintf(`SELECT * FROM notifications WHERE %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))

	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("notification repository: list: %w", err)
	}
	return items, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID, filter NotificationFilter) (int, error) {
	filter.UnreadOnly = true
	where, args := filter.where(userID)

	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE `+where, args...); err != nil {
		return 0, fmt.Errorf("notification repository: count unread: %w", err)
	}
	return count, nil
}

// MarkAsRead чужое уведомление неотличимо от несуществующего.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, userID, id uuid.UUID) error {
	err := common.ExpectAffected(r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, common.ErrStaleState) {
		return ErrNotificationNotFound
	}
	if err != nil {
		return fmt.Errorf("notification repository: mark as read: %w", err)
	}
	return nil
}

// MarkAllAsRead отмечает прочитанными все уведомления под фильтром и возвращает их число.
func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID, filter NotificationFilter) (int64, error) {
	filter.UnreadOnly = true
	where, args := filter.where(userID)

	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("notification repository: mark all as read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("notification repository: mark all as read: %w", err)
	}
	return n, nil
}
