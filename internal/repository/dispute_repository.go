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

type DisputeRepository struct {
	db *sqlx.DB
}

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Open создаёт спор и переводит проект и гиг active -> disputed одной транзакцией.
// Второй открытый спор по проекту отсекает частичный уникальный индекс.
func (r *DisputeRepository) Open(ctx context.Context, d *models.Dispute, gigID uuid.UUID) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO disputes (id, project_id, raised_by, against, reason, description, evidence_urls, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at
		`, d.ID, d.ProjectID, d.RaisedBy, d.Against, d.Reason, d.Description, d.EvidenceURLs, d.Status).Scan(&d.CreatedAt)
		if err != nil {
			if common.IsUniqueViolation(err, constraintOneOpenDispute) {
				return ErrDisputeOpen
			}
			return fmt.Errorf("dispute repository: insert: %w", err)
		}

		err = common.ExpectAffected(tx.ExecContext(ctx, `
			UPDATE opportunity_projects SET status = 'disputed', updated_at = NOW()
			WHERE id = $1 AND status = 'active'
		`, d.ProjectID))
		if err != nil {
			return err
		}

		return transitionGig(ctx, tx, gigID, valueobject.GigStatusActive, valueobject.GigStatusDisputed,
			&d.RaisedBy, "dispute raised")
	})
}

func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return common.GetByID[models.Dispute](ctx, r.db, "disputes", id, ErrDisputeNotFound)
}

// ListByUser возвращает споры, в которых пользователь участвует с любой стороны.
func (r *DisputeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	if err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes
		WHERE raised_by = $1 OR against = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, clampLimit(limit), offset); err != nil {
		return nil, fmt.Errorf("dispute repository: list by user: %w", err)
	}
	return disputes, nil
}

// AppendEvidence добавляет ссылку на доказательство к открытому спору.
func (r *DisputeRepository) AppendEvidence(ctx context.Context, disputeID uuid.UUID, url string) (*models.Dispute, error) {
	var d models.Dispute
	if err := r.db.GetContext(ctx, &d, `
		UPDATE disputes SET evidence_urls = array_append(evidence_urls, $2)
		WHERE id = $1 AND status = 'open'
		RETURNING *
	`, disputeID, url); err != nil {
		if isNoRows(err) {
			return nil, ErrStaleState
		}
		return nil, fmt.Errorf("dispute repository: append evidence: %w", err)
	}
	return &d, nil
}
