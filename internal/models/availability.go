package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// UserAvailability готовность исполнителя к срочным гигам. Меняет только владелец.
type UserAvailability struct {
	UserID                 uuid.UUID        `db:"user_id" json:"user_id"`
	AvailableForUrgentGigs bool             `db:"available_for_urgent_gigs" json:"available_for_urgent_gigs"`
	CurrentLat             *float64         `db:"current_lat" json:"current_lat,omitempty"`
	CurrentLng             *float64         `db:"current_lng" json:"current_lng,omitempty"`
	GeneralAreaLat         *float64         `db:"general_area_lat" json:"general_area_lat,omitempty"`
	GeneralAreaLng         *float64         `db:"general_area_lng" json:"general_area_lng,omitempty"`
	MaxRadiusKm            float64          `db:"max_radius_km" json:"max_radius_km"`
	HourlyRate             *decimal.Decimal `db:"hourly_rate" json:"hourly_rate,omitempty"`
	PerGigRate             *decimal.Decimal `db:"per_gig_rate" json:"per_gig_rate,omitempty"`
	RateNegotiable         bool             `db:"rate_negotiable" json:"rate_negotiable"`
	AvailabilitySchedule   json.RawMessage  `db:"availability_schedule" json:"availability_schedule,omitempty"`
	DNDStart               *string          `db:"dnd_start" json:"dnd_start,omitempty"`
	DNDEnd                 *string          `db:"dnd_end" json:"dnd_end,omitempty"`
	MaxNotificationsPerDay int              `db:"max_notifications_per_day" json:"max_notifications_per_day"`
	UpdatedAt              time.Time        `db:"updated_at" json:"updated_at"`
}

// ProviderCandidate строка предварительной выборки исполнителей из БД
// вместе с профилем, рейтингом и счётчиком уведомлений за сутки.
type ProviderCandidate struct {
	UserAvailability
	Skills             pq.StringArray `db:"skills"`
	Genres             pq.StringArray `db:"genres"`
	RatingAvg          float64        `db:"rating_avg"`
	NotificationsToday int            `db:"notifications_today"`
}

// Profile публичные данные пользователя из сервиса профилей.
type Profile struct {
	UserID      uuid.UUID      `db:"user_id" json:"user_id"`
	DisplayName string         `db:"display_name" json:"display_name"`
	AvatarURL   *string        `db:"avatar_url" json:"avatar_url,omitempty"`
	CountryCode *string        `db:"country_code" json:"country_code,omitempty"`
	Skills      pq.StringArray `db:"skills" json:"skills"`
	Genres      pq.StringArray `db:"genres" json:"genres"`
	RatingAvg   float64        `db:"rating_avg" json:"rating_avg"`
	RatingCount int            `db:"rating_count" json:"rating_count"`
}

// Notification сохранённое push-уведомление.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Event     string          `db:"event" json:"event"`
	GigID     *uuid.UUID      `db:"gig_id" json:"gig_id,omitempty"`
	ProjectID *uuid.UUID      `db:"project_id" json:"project_id,omitempty"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
