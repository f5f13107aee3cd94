package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Типы транзакций кошелька. Сумма всегда положительна, знак задаёт тип.
const (
	TransactionTypeGigPayment = "gig_payment"
	TransactionTypeWithdrawal = "withdrawal"
	TransactionTypeRefund     = "refund"
	TransactionTypeAdjustment = "adjustment"
)

// Статусы транзакций
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Типы ссылок транзакций
const (
	ReferenceTypeProject    = "opportunity_project"
	ReferenceTypeWithdrawal = "withdrawal_request"
)

// TransactionSign возвращает +1 для зачислений и -1 для списаний.
func TransactionSign(transactionType string) int {
	if transactionType == TransactionTypeWithdrawal {
		return -1
	}
	return 1
}

// Wallet баланс пользователя в одной валюте; создаётся при первом зачислении.
type Wallet struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Currency  string          `db:"currency" json:"currency"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	Frozen    bool            `db:"frozen" json:"frozen"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// WalletTransaction запись append-only журнала кошелька.
type WalletTransaction struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	WalletID        uuid.UUID       `db:"wallet_id" json:"wallet_id"`
	UserID          uuid.UUID       `db:"user_id" json:"user_id"`
	TransactionType string          `db:"transaction_type" json:"transaction_type"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	Currency        string          `db:"currency" json:"currency"`
	ReferenceType   string          `db:"reference_type" json:"reference_type"`
	ReferenceID     uuid.UUID       `db:"reference_id" json:"reference_id"`
	Status          string          `db:"status" json:"status"`
	Metadata        json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// WalletDiscrepancy расхождение баланса кошелька с суммой его журнала.
type WalletDiscrepancy struct {
	WalletID    uuid.UUID       `db:"wallet_id" json:"wallet_id"`
	UserID      uuid.UUID       `db:"user_id" json:"user_id"`
	Currency    string          `db:"currency" json:"currency"`
	Balance     decimal.Decimal `db:"balance" json:"balance"`
	LedgerTotal decimal.Decimal `db:"ledger_total" json:"ledger_total"`
}
