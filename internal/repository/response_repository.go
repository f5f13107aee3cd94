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

// ResponseRepository хранит отклики исполнителей на гиги.
type ResponseRepository struct {
	db *sqlx.DB
}

func NewResponseRepository(db *sqlx.DB) *ResponseRepository {
	return &ResponseRepository{db: db}
}

// CreatePending создаёт pending-отклики для уведомляемых исполнителей.
// Уже существующие пары (gig, provider) пропускаются, поэтому повторной рассылки не бывает.
// Возвращает только реально созданные строки.
func (r *ResponseRepository) CreatePending(ctx context.Context, gigID uuid.UUID, providerIDs []uuid.UUID, notifiedAt time.Time) ([]models.GigResponse, error) {
	if len(providerIDs) == 0 {
		return nil, nil
	}

	created := make([]models.GigResponse, 0, len(providerIDs))
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		inserter := common.NewBatchInserter(tx,
			`INSERT INTO gig_responses (id, gig_id, provider_id, status, notified_at)`, 5, 100,
		).Returning(`ON CONFLICT (gig_id, provider_id) DO NOTHING RETURNING *`, func(rows *sqlx.Rows) error {
			var resp models.GigResponse
			if err := rows.StructScan(&resp); err != nil {
				return err
			}
			created = append(created, resp)
			return nil
		})

		for _, providerID := range providerIDs {
			if err := inserter.Add(ctx, uuid.New(), gigID, providerID, "pending", notifiedAt); err != nil {
				return err
			}
		}
		return inserter.Flush(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("response repository: create pending: %w", err)
	}
	return created, nil
}

func (r *ResponseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.GigResponse, error) {
	return common.GetByID[models.GigResponse](ctx, r.db, "gig_responses", id, ErrResponseNotFound)
}

func (r *ResponseRepository) GetByGigAndProvider(ctx context.Context, gigID, providerID uuid.UUID) (*models.GigResponse, error) {
	var resp models.GigResponse
	if err := r.db.GetContext(ctx, &resp, `
		SELECT * FROM gig_responses WHERE gig_id = $1 AND provider_id = $2
	`, gigID, providerID); err != nil {
		if isNoRows(err) {
			return nil, ErrResponseNotFound
		}
		return nil, fmt.Errorf("response repository: get by gig and provider: %w", err)
	}
	return &resp, nil
}

func (r *ResponseRepository) ListByGig(ctx context.Context, gigID uuid.UUID) ([]models.GigResponse, error) {
	var responses []models.GigResponse
	if err := r.db.SelectContext(ctx, &responses, `
		SELECT * FROM gig_responses WHERE gig_id = $1 ORDER BY notified_at, id
	`, gigID); err != nil {
		return nil, fmt.Errorf("response repository: list by gig: %w", err)
	}
	return responses, nil
}

// Decline переводит отклик pending -> declined.
func (r *ResponseRepository) Decline(ctx context.Context, responseID uuid.UUID, message *string, respondedAt time.Time) (*models.GigResponse, error) {
	var resp models.GigResponse
	err := r.db.GetContext(ctx, &resp, `
		UPDATE gig_responses
		SET status = 'declined', responded_at = $2, message = $3,
			response_time_seconds = GREATEST(0, EXTRACT(EPOCH FROM ($2::timestamptz - notified_at)))::INTEGER
		WHERE id = $1 AND status = 'pending'
		RETURNING *
	`, responseID, respondedAt, message)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrStaleState
		}
		return nil, fmt.Errorf("response repository: decline: %w", err)
	}
	return &resp, nil
}

// Accept переводит отклик pending -> accepted одним условным UPDATE, пока гиг в searching.
// Конкурентные принятия упорядочивает частичный уникальный индекс по принятым откликам:
// проигравший получает ErrAcceptTaken.
func (r *ResponseRepository) Accept(ctx context.Context, responseID uuid.UUID, message *string, respondedAt time.Time) (*models.GigResponse, error) {
	var resp models.GigResponse
	err := r.db.GetContext(ctx, &resp, `
		UPDATE gig_responses r
		SET status = 'accepted', responded_at = $2, message = $3,
			response_time_seconds = GREATEST(0, EXTRACT(EPOCH FROM ($2::timestamptz - r.notified_at)))::INTEGER
		FROM urgent_gigs g
		WHERE r.id = $1 AND r.status = 'pending'
			AND g.id = r.gig_id AND g.status = 'searching'
		RETURNING r.*
	`, responseID, respondedAt, message)
	if err != nil {
		if common.IsUniqueViolation(err, constraintOneAccepted) {
			return nil, ErrAcceptTaken
		}
		if isNoRows(err) {
			return nil, ErrStaleState
		}
		return nil, fmt.Errorf("response repository: accept: %w", err)
	}
	return &resp, nil
}
