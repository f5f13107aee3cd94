package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
)

// OpportunityProject описывает работу по гигу после выбора исполнителя.
// Комиссия и выплата фиксируются в момент выбора и больше не пересчитываются.
type OpportunityProject struct {
	ID                    uuid.UUID                 `db:"id" json:"id"`
	OpportunityID         uuid.UUID                 `db:"opportunity_id" json:"opportunity_id"`
	ResponseID            uuid.UUID                 `db:"response_id" json:"response_id"`
	PosterUserID          uuid.UUID                 `db:"poster_user_id" json:"poster_user_id"`
	CreatorUserID         uuid.UUID                 `db:"creator_user_id" json:"creator_user_id"`
	Title                 string                    `db:"title" json:"title"`
	AgreedAmount          decimal.Decimal           `db:"agreed_amount" json:"agreed_amount"`
	PlatformFeeAmount     decimal.Decimal           `db:"platform_fee_amount" json:"platform_fee_amount"`
	CreatorPayoutAmount   decimal.Decimal           `db:"creator_payout_amount" json:"creator_payout_amount"`
	FeeRate               decimal.Decimal           `db:"fee_rate" json:"fee_rate"`
	FeePolicyVersion      string                    `db:"fee_policy_version" json:"fee_policy_version"`
	Currency              string                    `db:"currency" json:"currency"`
	StripePaymentIntentID *string                   `db:"stripe_payment_intent_id" json:"-"`
	Status                valueobject.ProjectStatus `db:"status" json:"status"`
	CompletedAt           *time.Time                `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt             time.Time                 `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time                 `db:"updated_at" json:"updated_at"`
}

// IsParty сообщает, является ли пользователь одной из сторон проекта.
func (p *OpportunityProject) IsParty(userID uuid.UUID) bool {
	return p.PosterUserID == userID || p.CreatorUserID == userID
}

// Counterparty возвращает вторую сторону проекта.
func (p *OpportunityProject) Counterparty(userID uuid.UUID) uuid.UUID {
	if p.PosterUserID == userID {
		return p.CreatorUserID
	}
	return p.PosterUserID
}

// EscrowHold хранит деньги заказчика на пути от авторизации до выплаты или возврата.
type EscrowHold struct {
	ID              uuid.UUID              `db:"id" json:"id"`
	GigID           uuid.UUID              `db:"gig_id" json:"gig_id"`
	ProjectID       *uuid.UUID             `db:"project_id" json:"project_id,omitempty"`
	PayerID         uuid.UUID              `db:"payer_id" json:"payer_id"`
	Amount          decimal.Decimal        `db:"amount" json:"amount"`
	Currency        string                 `db:"currency" json:"currency"`
	PaymentMethodID *string                `db:"payment_method_id" json:"-"`
	PaymentIntentID *string                `db:"payment_intent_id" json:"-"`
	Status          valueobject.HoldStatus `db:"status" json:"status"`
	RefundAmount    *decimal.Decimal       `db:"refund_amount" json:"refund_amount,omitempty"`
	FailureReason   *string                `db:"failure_reason" json:"failure_reason,omitempty"`
	AuthorizedAt    *time.Time             `db:"authorized_at" json:"authorized_at,omitempty"`
	CapturedAt      *time.Time             `db:"captured_at" json:"captured_at,omitempty"`
	SettledAt       *time.Time             `db:"settled_at" json:"settled_at,omitempty"`
	CreatedAt       time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time              `db:"updated_at" json:"updated_at"`
}

// IntentID возвращает идентификатор платёжного намерения или пустую строку.
func (h EscrowHold) IntentID() string {
	if h.PaymentIntentID == nil {
		return ""
	}
	return *h.PaymentIntentID
}
