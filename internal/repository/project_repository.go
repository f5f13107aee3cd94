package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/repository/common"
)

// ProjectRepository хранит проекты, созданные выбором исполнителя.
type ProjectRepository struct {
	db *sqlx.DB
}

func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Select фиксирует выбор исполнителя одной транзакцией: гиг searching -> awaiting_acceptance,
// новый проект, привязка авторизованного холда, инвалидация остальных pending-откликов.
func (r *ProjectRepository) Select(ctx context.Context, project *models.OpportunityProject) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var holdStatus valueobject.HoldStatus
		if err := tx.GetContext(ctx, &holdStatus, `
			SELECT status FROM escrow_holds WHERE gig_id = $1 FOR UPDATE
		`, project.OpportunityID); err != nil {
			if isNoRows(err) {
				return ErrHoldNotFound
			}
			return fmt.Errorf("project repository: lock hold: %w", err)
		}

		err := common.ExpectAffected(tx.ExecContext(ctx, `
			UPDATE urgent_gigs SET status = 'awaiting_acceptance', selected_provider_id = $2, updated_at = NOW()
			WHERE id = $1 AND status = 'searching'
		`, project.OpportunityID, project.CreatorUserID))
		if err != nil {
			return r.explainSelectConflict(ctx, tx, project.OpportunityID, err)
		}

		from := valueobject.GigStatusSearching
		if err := insertHistory(ctx, tx, project.OpportunityID, &from, valueobject.GigStatusAwaitingAcceptance,
			&project.PosterUserID, "provider selected"); err != nil {
			return err
		}

		err = tx.QueryRowxContext(ctx, `
			INSERT INTO opportunity_projects (
				id, opportunity_id, response_id, poster_user_id, creator_user_id, title,
				agreed_amount, platform_fee_amount, creator_payout_amount, fee_rate, fee_policy_version,
				currency, stripe_payment_intent_id, status
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			RETURNING created_at, updated_at
		`,
			project.ID, project.OpportunityID, project.ResponseID, project.PosterUserID, project.CreatorUserID,
			project.Title, project.AgreedAmount, project.PlatformFeeAmount, project.CreatorPayoutAmount,
			project.FeeRate, project.FeePolicyVersion, project.Currency, project.StripePaymentIntentID, project.Status,
		).Scan(&project.CreatedAt, &project.UpdatedAt)
		if err != nil {
			if common.IsUniqueViolation(err, constraintProjectPerGig) {
				return ErrProjectExists
			}
			return fmt.Errorf("project repository: insert: %w", err)
		}

		if holdStatus != valueobject.HoldStatusAuthorized {
			return ErrStaleState
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE escrow_holds SET project_id = $2, updated_at = NOW() WHERE gig_id = $1
		`, project.OpportunityID, project.ID); err != nil {
			return fmt.Errorf("project repository: link hold: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE gig_responses SET status = 'invalidated'
			WHERE gig_id = $1 AND status = 'pending'
		`, project.OpportunityID); err != nil {
			return fmt.Errorf("project repository: invalidate responses: %w", err)
		}
		return nil
	})
}

// explainSelectConflict различает повторный выбор и гиг, ушедший из searching по другой причине.
func (r *ProjectRepository) explainSelectConflict(ctx context.Context, tx *sqlx.Tx, gigID uuid.UUID, cause error) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM opportunity_projects WHERE opportunity_id = $1)
	`, gigID); err != nil {
		return fmt.Errorf("project repository: check existing: %w", err)
	}
	if exists {
		return ErrProjectExists
	}
	return cause
}

func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.OpportunityProject, error) {
	return common.GetByID[models.OpportunityProject](ctx, r.db, "opportunity_projects", id, ErrProjectNotFound)
}

func (r *ProjectRepository) GetByGigID(ctx context.Context, gigID uuid.UUID) (*models.OpportunityProject, error) {
	return common.GetByField[models.OpportunityProject](ctx, r.db, "opportunity_projects", "opportunity_id", gigID, ErrProjectNotFound)
}
