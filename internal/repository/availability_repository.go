package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/repository/common"
)

// AvailabilityRepository хранит готовность исполнителей к срочным гигам.
type AvailabilityRepository struct {
	db *sqlx.DB
}

func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

func (r *AvailabilityRepository) Get(ctx context.Context, userID uuid.UUID) (*models.UserAvailability, error) {
	return common.GetByField[models.UserAvailability](ctx, r.db, "user_availability", "user_id", userID, ErrAvailabilityNotFound)
}

// Upsert сохраняет запись доступности целиком.
func (r *AvailabilityRepository) Upsert(ctx context.Context, a *models.UserAvailability) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO user_availability (
			user_id, available_for_urgent_gigs, current_lat, current_lng, general_area_lat, general_area_lng,
			max_radius_km, hourly_rate, per_gig_rate, rate_negotiable, availability_schedule,
			dnd_start, dnd_end, max_notifications_per_day
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (user_id) DO UPDATE SET
			available_for_urgent_gigs = EXCLUDED.available_for_urgent_gigs,
			current_lat = EXCLUDED.current_lat,
			current_lng = EXCLUDED.current_lng,
			general_area_lat = EXCLUDED.general_area_lat,
			general_area_lng = EXCLUDED.general_area_lng,
			max_radius_km = EXCLUDED.max_radius_km,
			hourly_rate = EXCLUDED.hourly_rate,
			per_gig_rate = EXCLUDED.per_gig_rate,
			rate_negotiable = EXCLUDED.rate_negotiable,
			availability_schedule = EXCLUDED.availability_schedule,
			dnd_start = EXCLUDED.dnd_start,
			dnd_end = EXCLUDED.dnd_end,
			max_notifications_per_day = EXCLUDED.max_notifications_per_day,
			updated_at = NOW()
		RETURNING updated_at
	`,
		a.UserID, a.AvailableForUrgentGigs, a.CurrentLat, a.CurrentLng, a.GeneralAreaLat, a.GeneralAreaLng,
		a.MaxRadiusKm, a.HourlyRate, a.PerGigRate, a.RateNegotiable, a.AvailabilitySchedule,
		a.DNDStart, a.DNDEnd, a.MaxNotificationsPerDay,
	).Scan(&a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("availability repository: upsert: %w", err)
	}
	return nil
}

// ListActiveProviders предварительно отбирает доступных исполнителей с нужным навыком
// вместе с рейтингом и числом уведомлений с начала суток. Геофильтр применяется в приложении.
func (r *AvailabilityRepository) ListActiveProviders(ctx context.Context, skill string, excludeUser uuid.UUID, dayStart time.Time) ([]models.ProviderCandidate, error) {
	var candidates []models.ProviderCandidate
	if err := r.db.SelectContext(ctx, &candidates, `
		SELECT a.*, p.skills, p.genres,
			COALESCE(s.rating_avg, 0) AS rating_avg,
			(SELECT COUNT(*) FROM gig_responses gr
				WHERE gr.provider_id = a.user_id AND gr.notified_at >= $3) AS notifications_today
		FROM user_availability a
		JOIN profiles p ON p.user_id = a.user_id
		LEFT JOIN user_rating_summary s ON s.user_id = a.user_id
		WHERE a.available_for_urgent_gigs
			AND a.user_id <> $2
			AND EXISTS (SELECT 1 FROM unnest(p.skills) sk WHERE lower(sk) = lower($1))
	`, skill, excludeUser, dayStart); err != nil {
		return nil, fmt.Errorf("availability repository: list active providers: %w", err)
	}
	return candidates, nil
}
