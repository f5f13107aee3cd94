package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/gigmarket-backend/internal/models"
)

// ProfileRepository читает профили, которыми владеет внешний сервис профилей.
type ProfileRepository struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetProfile возвращает профиль вместе с агрегатами рейтинга.
func (r *ProfileRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, `
		SELECT p.user_id, p.display_name, p.avatar_url, p.country_code, p.skills, p.genres,
			COALESCE(s.rating_avg, 0) AS rating_avg,
			COALESCE(s.rating_count, 0) AS rating_count
		FROM profiles p
		LEFT JOIN user_rating_summary s ON s.user_id = p.user_id
		WHERE p.user_id = $1
	`, userID); err != nil {
		if isNoRows(err) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("profile repository: get: %w", err)
	}
	return &profile, nil
}
