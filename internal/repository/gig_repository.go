package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/repository/common"
)

// GigRepository хранит срочные гиги и журнал их переходов.
type GigRepository struct {
	db *sqlx.DB
}

func NewGigRepository(db *sqlx.DB) *GigRepository {
	return &GigRepository{db: db}
}

// CreateWithHold в одной транзакции создаёт гиг в статусе searching и pending-холд под его оплату.
func (r *GigRepository) CreateWithHold(ctx context.Context, gig *models.UrgentGig, hold *models.EscrowHold) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO urgent_gigs (
				id, requester_id, skill_required, genres, date_needed, duration_hours,
				payment_amount, payment_currency, location_lat, location_lng, location_address,
				location_radius_km, description, status, expires_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING created_at, updated_at
		`,
			gig.ID, gig.RequesterID, gig.SkillRequired, gig.Genres, gig.DateNeeded, gig.DurationHours,
			gig.PaymentAmount, gig.PaymentCurrency, gig.LocationLat, gig.LocationLng, gig.LocationAddress,
			gig.LocationRadiusKm, gig.Description, gig.Status, gig.ExpiresAt,
		).Scan(&gig.CreatedAt, &gig.UpdatedAt)
		if err != nil {
			return fmt.Errorf("gig repository: insert gig: %w", err)
		}

		if err := insertHistory(ctx, tx, gig.ID, nil, gig.Status, &gig.RequesterID, "created"); err != nil {
			return err
		}

		err = tx.QueryRowxContext(ctx, `
			INSERT INTO escrow_holds (id, gig_id, payer_id, amount, currency, payment_method_id, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at, updated_at
		`, hold.ID, gig.ID, hold.PayerID, hold.Amount, hold.Currency, hold.PaymentMethodID, hold.Status).Scan(&hold.CreatedAt, &hold.UpdatedAt)
		if err != nil {
			return fmt.Errorf("gig repository: insert hold: %w", err)
		}
		return nil
	})
}

func (r *GigRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.UrgentGig, error) {
	return common.GetByID[models.UrgentGig](ctx, r.db, "urgent_gigs", id, ErrGigNotFound)
}

// ListExpirable возвращает гиги, срок поиска или подтверждения которых истёк.
func (r *GigRepository) ListExpirable(ctx context.Context, now time.Time, limit int) ([]models.UrgentGig, error) {
	var gigs []models.UrgentGig
	err := r.db.SelectContext(ctx, &gigs, `
		SELECT * FROM urgent_gigs
		WHERE status IN ('searching', 'awaiting_acceptance') AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("gig repository: list expirable: %w", err)
	}
	return gigs, nil
}

// Expire переводит гиг в expired вместе со всем, что от него зависит:
// проект, pending-отклики и холд (authorized/pending -> voiding).
// Возвращает холд, если его нужно отменить у платёжного шлюза.
func (r *GigRepository) Expire(ctx context.Context, gigID uuid.UUID, reason string) (*models.EscrowHold, error) {
	var voiding *models.EscrowHold

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		// Холд блокируется первым, как и во всех транзакциях, меняющих холд.
		var holdStatus valueobject.HoldStatus
		if err := tx.GetContext(ctx, &holdStatus, `SELECT status FROM escrow_holds WHERE gig_id = $1 FOR UPDATE`, gigID); err != nil {
			if !isNoRows(err) {
				return fmt.Errorf("gig repository: lock hold: %w", err)
			}
		}
		if holdStatus == valueobject.HoldStatusCapturing {
			// захват уже идёт: гиг вот-вот станет active
			return ErrStaleState
		}

		var from valueobject.GigStatus
		if err := tx.GetContext(ctx, &from, `SELECT status FROM urgent_gigs WHERE id = $1 FOR UPDATE`, gigID); err != nil {
			if isNoRows(err) {
				return ErrGigNotFound
			}
			return fmt.Errorf("gig repository: lock gig: %w", err)
		}
		if !from.CanTransitionTo(valueobject.GigStatusExpired) {
			return ErrStaleState
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE urgent_gigs SET status = 'expired', selected_provider_id = NULL, updated_at = NOW()
			WHERE id = $1
		`, gigID); err != nil {
			return fmt.Errorf("gig repository: expire gig: %w", err)
		}

		if err := insertHistory(ctx, tx, gigID, &from, valueobject.GigStatusExpired, nil, reason); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE opportunity_projects SET status = 'expired', updated_at = NOW()
			WHERE opportunity_id = $1 AND status = 'awaiting_acceptance'
		`, gigID); err != nil {
			return fmt.Errorf("gig repository: expire project: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE gig_responses SET status = 'invalidated'
			WHERE gig_id = $1 AND status = 'pending'
		`, gigID); err != nil {
			return fmt.Errorf("gig repository: invalidate responses: %w", err)
		}

		var hold models.EscrowHold
		err := tx.GetContext(ctx, &hold, `
			UPDATE escrow_holds SET status = 'voiding', updated_at = NOW()
			WHERE gig_id = $1 AND status IN ('pending', 'authorized')
			RETURNING *
		`, gigID)
		switch {
		case err == nil:
			voiding = &hold
		case isNoRows(err):
		default:
			return fmt.Errorf("gig repository: void hold: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return voiding, nil
}

// History возвращает журнал переходов гига в хронологическом порядке.
func (r *GigRepository) History(ctx context.Context, gigID uuid.UUID) ([]models.GigStatusChange, error) {
	var changes []models.GigStatusChange
	if err := r.db.SelectContext(ctx, &changes, `
		SELECT * FROM gig_status_history WHERE gig_id = $1 ORDER BY created_at, id
	`, gigID); err != nil {
		return nil, fmt.Errorf("gig repository: history: %w", err)
	}
	return changes, nil
}

// transitionGig условно меняет статус гига и пишет строку журнала в той же транзакции.
func transitionGig(ctx context.Context, tx *sqlx.Tx, gigID uuid.UUID, from, to valueobject.GigStatus, actor *uuid.UUID, reason string) error {
	if err := valueobject.CheckGigTransition(from, to); err != nil {
		return err
	}
	err := common.ExpectAffected(tx.ExecContext(ctx, `
		UPDATE urgent_gigs SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, gigID, from, to))
	if err != nil {
		return err
	}
	return insertHistory(ctx, tx, gigID, &from, to, actor, reason)
}

func insertHistory(ctx context.Context, tx *sqlx.Tx, gigID uuid.UUID, from *valueobject.GigStatus, to valueobject.GigStatus, actor *uuid.UUID, reason string) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO gig_status_history (gig_id, from_status, to_status, actor_id, reason)
		VALUES ($1, $2, $3, $4, $5)
	`, gigID, from, to, actor, reason); err != nil {
		return fmt.Errorf("gig repository: insert history: %w", err)
	}
	return nil
}
