package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
)

// UrgentGig описывает срочный запрос на исполнителя ("нужен саксофонист через 2 часа").
type UrgentGig struct {
	ID                 uuid.UUID             `db:"id" json:"id"`
	RequesterID        uuid.UUID             `db:"requester_id" json:"requester_id"`
	SkillRequired      string                `db:"skill_required" json:"skill_required"`
	Genres             pq.StringArray        `db:"genres" json:"genres"`
	DateNeeded         time.Time             `db:"date_needed" json:"date_needed"`
	DurationHours      decimal.Decimal       `db:"duration_hours" json:"duration_hours"`
	PaymentAmount      decimal.Decimal       `db:"payment_amount" json:"payment_amount"`
	PaymentCurrency    string                `db:"payment_currency" json:"payment_currency"`
	LocationLat        float64               `db:"location_lat" json:"location_lat"`
	LocationLng        float64               `db:"location_lng" json:"location_lng"`
	LocationAddress    string                `db:"location_address" json:"location_address"`
	LocationRadiusKm   float64               `db:"location_radius_km" json:"location_radius_km"`
	Description        string                `db:"description" json:"description"`
	Status             valueobject.GigStatus `db:"status" json:"status"`
	SelectedProviderID *uuid.UUID            `db:"selected_provider_id" json:"selected_provider_id,omitempty"`
	PaymentIntentID    *string               `db:"payment_intent_id" json:"-"`
	ExpiresAt          time.Time             `db:"expires_at" json:"expires_at"`
	CreatedAt          time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time             `db:"updated_at" json:"updated_at"`
}

// Payment возвращает сумму гига как Money.
func (g *UrgentGig) Payment() valueobject.Money {
	return valueobject.Money{Amount: g.PaymentAmount, Currency: g.PaymentCurrency}
}

// IsParty сообщает, является ли пользователь заказчиком или выбранным исполнителем.
func (g *UrgentGig) IsParty(userID uuid.UUID) bool {
	if g.RequesterID == userID {
		return true
	}
	return g.SelectedProviderID != nil && *g.SelectedProviderID == userID
}

// GigStatusChange запись журнала переходов гига.
type GigStatusChange struct {
	ID         uuid.UUID              `db:"id" json:"id"`
	GigID      uuid.UUID              `db:"gig_id" json:"gig_id"`
	FromStatus *valueobject.GigStatus `db:"from_status" json:"from_status,omitempty"`
	ToStatus   valueobject.GigStatus  `db:"to_status" json:"to_status"`
	ActorID    *uuid.UUID             `db:"actor_id" json:"actor_id,omitempty"`
	Reason     string                 `db:"reason" json:"reason"`
	CreatedAt  time.Time              `db:"created_at" json:"created_at"`
}

// GigResponse отклик конкретного исполнителя на гиг.
type GigResponse struct {
	ID                  uuid.UUID                  `db:"id" json:"id"`
	GigID               uuid.UUID                  `db:"gig_id" json:"gig_id"`
	ProviderID          uuid.UUID                  `db:"provider_id" json:"provider_id"`
	Status              valueobject.ResponseStatus `db:"status" json:"status"`
	NotifiedAt          time.Time                  `db:"notified_at" json:"notified_at"`
	RespondedAt         *time.Time                 `db:"responded_at" json:"responded_at,omitempty"`
	ResponseTimeSeconds *int                       `db:"response_time_seconds" json:"response_time_seconds,omitempty"`
	Message             *string                    `db:"message" json:"message,omitempty"`
}
