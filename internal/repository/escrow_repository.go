package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/repository/common"
)

// HoldUpdate дополнительные поля, записываемые вместе со сменой статуса холда.
type HoldUpdate struct {
	PaymentIntentID *string
	RefundAmount    *decimal.Decimal
	FailureReason   *string
}

// WalletCredit зачисление на кошелёк, выполняемое внутри расчёта по проекту.
type WalletCredit struct {
	UserID          uuid.UUID
	Currency        string
	Amount          decimal.Decimal
	TransactionType string
	ReferenceType   string
	ReferenceID     uuid.UUID
	Metadata        map[string]interface{}
}

// DisputeResolution закрытие спора внутри расчёта.
type DisputeResolution struct {
	DisputeID  uuid.UUID
	Status     valueobject.DisputeStatus
	SplitRatio *decimal.Decimal
	Note       string
	ResolvedBy uuid.UUID
}

// Settlement описывает финальный расчёт по проекту, выполняемый одной транзакцией:
// проект и гиг -> completed, холд в конечный статус, опционально закрытие спора и зачисление.
type Settlement struct {
	ProjectID   uuid.UUID
	ProjectFrom valueobject.ProjectStatus
	GigID       uuid.UUID
	GigFrom     valueobject.GigStatus
	HoldID      uuid.UUID
	HoldFrom    valueobject.HoldStatus
	HoldTo      valueobject.HoldStatus
	Dispute     *DisputeResolution
	Credit      *WalletCredit
	ActorID     *uuid.UUID
	Reason      string
}

// EscrowRepository хранит холды, кошельки и журнал транзакций.
type EscrowRepository struct {
	db *sqlx.DB
}

func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

func (r *EscrowRepository) GetHoldByGig(ctx context.Context, gigID uuid.UUID) (*models.EscrowHold, error) {
	return common.GetByField[models.EscrowHold](ctx, r.db, "escrow_holds", "gig_id", gigID, ErrHoldNotFound)
}

// MarkHold условно переводит холд из одного из статусов from в to.
func (r *EscrowRepository) MarkHold(ctx context.Context, holdID uuid.UUID, from []valueobject.HoldStatus, to valueobject.HoldStatus, upd HoldUpdate) (*models.EscrowHold, error) {
	var hold models.EscrowHold
	if err := markHold(ctx, r.db, &hold, holdID, from, to, upd); err != nil {
		return nil, err
	}
	return &hold, nil
}

func markHold(ctx context.Context, q sqlx.QueryerContext, dest *models.EscrowHold, holdID uuid.UUID, from []valueobject.HoldStatus, to valueobject.HoldStatus, upd HoldUpdate) error {
	fromStrings := make([]string, len(from))
	for i, s := range from {
		fromStrings[i] = string(s)
	}

	err := sqlx.GetContext(ctx, q, dest, `
		UPDATE escrow_holds SET
			status = $3,
			payment_intent_id = COALESCE($4, payment_intent_id),
			refund_amount = COALESCE($5, refund_amount),
			failure_reason = COALESCE($6, failure_reason),
			authorized_at = CASE WHEN $3 = 'authorized' THEN NOW() ELSE authorized_at END,
			captured_at = CASE WHEN $3 = 'captured' THEN NOW() ELSE captured_at END,
			settled_at = CASE WHEN $3 IN ('released', 'refunded', 'split', 'voided', 'failed') THEN NOW() ELSE settled_at END,
			updated_at = NOW()
		WHERE id = $1 AND status = ANY($2)
		RETURNING *
	`, holdID, pq.Array(fromStrings), to, upd.PaymentIntentID, upd.RefundAmount, upd.FailureReason)
	if err != nil {
		if isNoRows(err) {
			return ErrStaleState
		}
		return fmt.Errorf("escrow repository: mark hold %s: %w", to, err)
	}
	return nil
}

// MarkAuthorized переводит холд pending -> authorized и записывает платёжное намерение на гиг.
func (r *EscrowRepository) MarkAuthorized(ctx context.Context, holdID uuid.UUID, intentID string) (*models.EscrowHold, error) {
	var hold models.EscrowHold
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := markHold(ctx, tx, &hold, holdID,
			[]valueobject.HoldStatus{valueobject.HoldStatusPending}, valueobject.HoldStatusAuthorized,
			HoldUpdate{PaymentIntentID: &intentID}); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE urgent_gigs SET payment_intent_id = $2, updated_at = NOW() WHERE id = $1
		`, hold.GigID, intentID); err != nil {
			return fmt.Errorf("escrow repository: set gig intent: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

// FinalizeCapture завершает захват: холд capturing -> captured,
// проект и гиг awaiting_acceptance -> active.
func (r *EscrowRepository) FinalizeCapture(ctx context.Context, holdID, projectID uuid.UUID, actor *uuid.UUID) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var hold models.EscrowHold
		if err := markHold(ctx, tx, &hold, holdID,
			[]valueobject.HoldStatus{valueobject.HoldStatusCapturing}, valueobject.HoldStatusCaptured, HoldUpdate{}); err != nil {
			return err
		}

		err := common.ExpectAffected(tx.ExecContext(ctx, `
			UPDATE opportunity_projects SET status = 'active', updated_at = NOW()
			WHERE id = $1 AND status = 'awaiting_acceptance'
		`, projectID))
		if err != nil {
			return err
		}

		return transitionGig(ctx, tx, hold.GigID, valueobject.GigStatusAwaitingAcceptance, valueobject.GigStatusActive,
			actor, "agreement accepted")
	})
}

// Settle выполняет финальный расчёт по проекту одной транзакцией.
func (r *EscrowRepository) Settle(ctx context.Context, s Settlement) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var hold models.EscrowHold
		if err := markHold(ctx, tx, &hold, s.HoldID, []valueobject.HoldStatus{s.HoldFrom}, s.HoldTo, HoldUpdate{}); err != nil {
			return err
		}

		err := common.ExpectAffected(tx.ExecContext(ctx, `
			UPDATE opportunity_projects SET status = 'completed', completed_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND status = $2
		`, s.ProjectID, s.ProjectFrom))
		if err != nil {
			return err
		}

		if err := transitionGig(ctx, tx, s.GigID, s.GigFrom, valueobject.GigStatusCompleted, s.ActorID, s.Reason); err != nil {
			return err
		}

		if s.Dispute != nil {
			err := common.ExpectAffected(tx.ExecContext(ctx, `
				UPDATE disputes SET status = $2, split_ratio = $3, resolution = $4, resolved_by = $5, resolved_at = NOW()
				WHERE id = $1 AND status = 'open'
			`, s.Dispute.DisputeID, s.Dispute.Status, s.Dispute.SplitRatio, s.Dispute.Note, s.Dispute.ResolvedBy))
			if err != nil {
				return err
			}
		}

		if s.Credit != nil && s.Credit.Amount.IsPositive() {
			if _, err := credit(ctx, tx, *s.Credit); err != nil {
				return err
			}
		}
		return nil
	})
}

// credit зачисляет сумму на кошелёк: upsert кошелька, запись журнала и атомарный инкремент баланса.
func credit(ctx context.Context, tx *sqlx.Tx, c WalletCredit) (*models.WalletTransaction, error) {
	var wallet models.Wallet
	if err := tx.GetContext(ctx, &wallet, `
		INSERT INTO wallets (user_id, currency) VALUES ($1, $2)
		ON CONFLICT (user_id, currency) DO UPDATE SET updated_at = NOW()
		RETURNING *
	`, c.UserID, c.Currency); err != nil {
		return nil, fmt.Errorf("escrow repository: upsert wallet: %w", err)
	}
	if wallet.Frozen {
		return nil, ErrWalletFrozen
	}

	txn, err := insertTransaction(ctx, tx, wallet, c.TransactionType, c.Amount, c.ReferenceType, c.ReferenceID, c.Metadata)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE wallets SET balance = balance + $2, updated_at = NOW() WHERE id = $1
	`, wallet.ID, c.Amount); err != nil {
		return nil, fmt.Errorf("escrow repository: increment balance: %w", err)
	}
	return txn, nil
}

func insertTransaction(ctx context.Context, tx *sqlx.Tx, wallet models.Wallet, txType string, amount decimal.Decimal, refType string, refID uuid.UUID, metadata map[string]interface{}) (*models.WalletTransaction, error) {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("escrow repository: marshal metadata: %w", err)
	}

	var txn models.WalletTransaction
	err = tx.GetContext(ctx, &txn, `
		INSERT INTO wallet_transactions (
			wallet_id, user_id, transaction_type, amount, currency, reference_type, reference_id, status, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 'completed', $8)
		RETURNING *
	`, wallet.ID, wallet.UserID, txType, amount, wallet.Currency, refType, refID, raw)
	if err != nil {
		if common.IsUniqueViolation(err, constraintTransactionRef) {
			return nil, ErrAlreadyCredited
		}
		return nil, fmt.Errorf("escrow repository: insert transaction: %w", err)
	}
	return &txn, nil
}

// HasTransaction сообщает, есть ли уже транзакция данного типа по ссылке.
func (r *EscrowRepository) HasTransaction(ctx context.Context, referenceType string, referenceID uuid.UUID, txType string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM wallet_transactions
			WHERE reference_type = $1 AND reference_id = $2 AND transaction_type = $3
		)
	`, referenceType, referenceID, txType); err != nil {
		return false, fmt.Errorf("escrow repository: has transaction: %w", err)
	}
	return exists, nil
}

func (r *EscrowRepository) GetWallets(ctx context.Context, userID uuid.UUID) ([]models.Wallet, error) {
	var wallets []models.Wallet
	if err := r.db.SelectContext(ctx, &wallets, `
		SELECT * FROM wallets WHERE user_id = $1 ORDER BY currency
	`, userID); err != nil {
		return nil, fmt.Errorf("escrow repository: get wallets: %w", err)
	}
	return wallets, nil
}

func (r *EscrowRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	var txns []models.WalletTransaction
	if err := r.db.SelectContext(ctx, &txns, `
		SELECT * FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, userID, clampLimit(limit), offset); err != nil {
		return nil, fmt.Errorf("escrow repository: list transactions: %w", err)
	}
	return txns, nil
}

// Withdraw списывает сумму условным декрементом: баланс не уходит в минус, замороженный кошелёк не трогается.
func (r *EscrowRepository) Withdraw(ctx context.Context, userID uuid.UUID, currency string, amount decimal.Decimal, metadata map[string]interface{}) (*models.WalletTransaction, error) {
	var txn *models.WalletTransaction
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var wallet models.Wallet
		err := tx.GetContext(ctx, &wallet, `
			UPDATE wallets SET balance = balance - $3, updated_at = NOW()
			WHERE user_id = $1 AND currency = $2 AND balance >= $3 AND NOT frozen
			RETURNING *
		`, userID, currency, amount)
		if err != nil {
			if isNoRows(err) {
				return explainWithdrawFailure(ctx, tx, userID, currency)
			}
			return fmt.Errorf("escrow repository: decrement balance: %w", err)
		}

		txn, err = insertTransaction(ctx, tx, wallet, models.TransactionTypeWithdrawal, amount,
			models.ReferenceTypeWithdrawal, uuid.New(), metadata)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func explainWithdrawFailure(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, currency string) error {
	var wallet models.Wallet
	if err := tx.GetContext(ctx, &wallet, `
		SELECT * FROM wallets WHERE user_id = $1 AND currency = $2
	`, userID, currency); err != nil {
		if isNoRows(err) {
			return ErrWalletNotFound
		}
		return fmt.Errorf("escrow repository: get wallet: %w", err)
	}
	if wallet.Frozen {
		return ErrWalletFrozen
	}
	return ErrInsufficientFunds
}

// FindDiscrepancies сверяет каждый кошелёк с суммой его завершённых транзакций.
func (r *EscrowRepository) FindDiscrepancies(ctx context.Context) ([]models.WalletDiscrepancy, error) {
	var result []models.WalletDiscrepancy
	if err := r.db.SelectContext(ctx, &result, `
		SELECT w.id AS wallet_id, w.user_id, w.currency, w.balance,
			COALESCE(SUM(
				CASE WHEN t.transaction_type = 'withdrawal' THEN -t.amount ELSE t.amount END
			) FILTER (WHERE t.status = 'completed'), 0) AS ledger_total
		FROM wallets w
		LEFT JOIN wallet_transactions t ON t.wallet_id = w.id
		WHERE NOT w.frozen
		GROUP BY w.id
		HAVING w.balance <> COALESCE(SUM(
			CASE WHEN t.transaction_type = 'withdrawal' THEN -t.amount ELSE t.amount END
		) FILTER (WHERE t.status = 'completed'), 0)
	`); err != nil {
		return nil, fmt.Errorf("escrow repository: find discrepancies: %w", err)
	}
	return result, nil
}

func (r *EscrowRepository) FreezeWallet(ctx context.Context, walletID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE wallets SET frozen = TRUE, updated_at = NOW() WHERE id = $1
	`, walletID); err != nil {
		return fmt.Errorf("escrow repository: freeze wallet: %w", err)
	}
	return nil
}

// ListStuckHolds возвращает холды в промежуточных статусах, не менявшиеся с момента olderThan.
func (r *EscrowRepository) ListStuckHolds(ctx context.Context, statuses []valueobject.HoldStatus, olderThan time.Time, limit int) ([]models.EscrowHold, error) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	var holds []models.EscrowHold
	if err := r.db.SelectContext(ctx, &holds, `
		SELECT * FROM escrow_holds
		WHERE status = ANY($1) AND updated_at < $2
		ORDER BY updated_at
		LIMIT $3
	`, pq.Array(values), olderThan, limit); err != nil {
		return nil, fmt.Errorf("escrow repository: list stuck holds: %w", err)
	}
	return holds, nil
}
