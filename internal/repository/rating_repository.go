package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/repository/common"
)

type RatingRepository struct {
	db *sqlx.DB
}

func NewRatingRepository(db *sqlx.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Create сохраняет оценку. Повторная оценка того же проекта тем же пользователем даёт ErrAlreadyRated.
func (r *RatingRepository) Create(ctx context.Context, rating *models.GigRating) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO gig_ratings (
			id, project_id, rater_id, ratee_id, overall_rating, professionalism_rating,
			punctuality_rating, quality_rating, payment_promptness_rating, review_text
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`,
		rating.ID, rating.ProjectID, rating.RaterID, rating.RateeID, rating.OverallRating,
		rating.ProfessionalismRating, rating.PunctualityRating, rating.QualityRating,
		rating.PaymentPromptnessRating, rating.ReviewText,
	).Scan(&rating.CreatedAt)
	if err != nil {
		if common.IsUniqueViolation(err, constraintRatingPerRater) {
			return ErrAlreadyRated
		}
		return fmt.Errorf("rating repository: create: %w", err)
	}
	return nil
}

func (r *RatingRepository) ListByRatee(ctx context.Context, rateeID uuid.UUID, limit, offset int) ([]models.GigRating, error) {
	var ratings []models.GigRating
	if err := r.db.SelectContext(ctx, &ratings, `
		SELECT * FROM gig_ratings WHERE ratee_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, rateeID, clampLimit(limit), offset); err != nil {
		return nil, fmt.Errorf("rating repository: list by ratee: %w", err)
	}
	return ratings, nil
}
