package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
)

// GigLocationRequest точка, вокруг которой ищем исполнителей.
type GigLocationRequest struct {
	Lat      *float64 `json:"lat" binding:"required"`
	Lng      *float64 `json:"lng" binding:"required"`
	Address  string   `json:"address"`
	RadiusKm float64  `json:"radius_km"`
}

// CreateGigRequest represents the request to post an urgent gig
type CreateGigRequest struct {
	SkillRequired   string             `json:"skill_required" binding:"required"`
	Genres          []string           `json:"genres"`
	DateNeeded      time.Time          `json:"date_needed" binding:"required"`
	DurationHours   decimal.Decimal    `json:"duration_hours"`
	PaymentAmount   decimal.Decimal    `json:"payment_amount"`
	PaymentCurrency string             `json:"payment_currency" binding:"required"`
	PaymentMethodID string             `json:"payment_method_id" binding:"required"`
	Location        GigLocationRequest `json:"location"`
	Description     string             `json:"description"`
}

// ToInput converts the request into service input
func (r *CreateGigRequest) ToInput() service.CreateGigInput {
	return service.CreateGigInput{
		SkillRequired:    r.SkillRequired,
		Genres:           r.Genres,
		DateNeeded:       r.DateNeeded,
		DurationHours:    r.DurationHours,
		PaymentAmount:    r.PaymentAmount,
		PaymentCurrency:  r.PaymentCurrency,
		PaymentMethodID:  r.PaymentMethodID,
		LocationLat:      *r.Location.Lat,
		LocationLng:      *r.Location.Lng,
		LocationAddress:  r.Location.Address,
		LocationRadiusKm: r.Location.RadiusKm,
		Description:      r.Description,
	}
}

// RespondRequest represents a provider's answer to a gig offer
type RespondRequest struct {
	Action  string  `json:"action" binding:"required"`
	Message *string `json:"message"`
}

// SelectProviderRequest represents the requester's choice of an accepted response
type SelectProviderRequest struct {
	ResponseID string `json:"response_id" binding:"required"`
}

// RaiseDisputeRequest represents the request to open a dispute
type RaiseDisputeRequest struct {
	ProjectID   string   `json:"project_id" binding:"required"`
	Reason      string   `json:"reason" binding:"required"`
	Description string   `json:"description"`
	Evidence    []string `json:"evidence"`
}

// ToInput converts the request into service input
func (r *RaiseDisputeRequest) ToInput() (service.RaiseDisputeInput, error) {
	projectID, err := parseUUID("project_id", r.ProjectID)
	if err != nil {
		return service.RaiseDisputeInput{}, err
	}
	return service.RaiseDisputeInput{
		ProjectID:   projectID,
		Reason:      r.Reason,
		Description: r.Description,
		Evidence:    r.Evidence,
	}, nil
}

// ResolveDisputeRequest represents the operator's decision on a dispute
type ResolveDisputeRequest struct {
	Outcome    string           `json:"outcome" binding:"required"`
	SplitRatio *decimal.Decimal `json:"split_ratio"`
	Note       string           `json:"note"`
}

// Parse validates the outcome value
func (r *ResolveDisputeRequest) Parse() (valueobject.DisputeOutcome, error) {
	return valueobject.NewDisputeOutcome(r.Outcome)
}

// SubmitRatingRequest represents a post-completion rating
type SubmitRatingRequest struct {
	ProjectID         string  `json:"project_id" binding:"required"`
	RateeID           string  `json:"ratee_id" binding:"required"`
	Overall           int     `json:"overall" binding:"required"`
	Professionalism   int     `json:"professionalism" binding:"required"`
	Punctuality       int     `json:"punctuality" binding:"required"`
	Quality           *int    `json:"quality"`
	PaymentPromptness *int    `json:"payment_promptness"`
	Review            *string `json:"review"`
}

// ToInput converts the request into service input
func (r *SubmitRatingRequest) ToInput() (service.SubmitRatingInput, error) {
	projectID, err := parseUUID("project_id", r.ProjectID)
	if err != nil {
		return service.SubmitRatingInput{}, err
	}
	rateeID, err := parseUUID("ratee_id", r.RateeID)
	if err != nil {
		return service.SubmitRatingInput{}, err
	}
	return service.SubmitRatingInput{
		ProjectID:         projectID,
		RateeID:           rateeID,
		Overall:           r.Overall,
		Professionalism:   r.Professionalism,
		Punctuality:       r.Punctuality,
		Quality:           r.Quality,
		PaymentPromptness: r.PaymentPromptness,
		Review:            r.Review,
	}, nil
}

// UpdateAvailabilityRequest represents a partial availability update
type UpdateAvailabilityRequest struct {
	AvailableForUrgentGigs *bool            `json:"available_for_urgent_gigs"`
	CurrentLat             *float64         `json:"current_lat"`
	CurrentLng             *float64         `json:"current_lng"`
	GeneralAreaLat         *float64         `json:"general_area_lat"`
	GeneralAreaLng         *float64         `json:"general_area_lng"`
	MaxRadiusKm            *float64         `json:"max_radius_km"`
	HourlyRate             *decimal.Decimal `json:"hourly_rate"`
	PerGigRate             *decimal.Decimal `json:"per_gig_rate"`
	RateNegotiable         *bool            `json:"rate_negotiable"`
	AvailabilitySchedule   json.RawMessage  `json:"availability_schedule"`
	DNDStart               *string          `json:"dnd_start"`
	DNDEnd                 *string          `json:"dnd_end"`
	MaxNotificationsPerDay *int             `json:"max_notifications_per_day"`
}

// ToInput converts the request into service input
func (r *UpdateAvailabilityRequest) ToInput() service.UpdateAvailabilityInput {
	return service.UpdateAvailabilityInput{
		AvailableForUrgentGigs: r.AvailableForUrgentGigs,
		CurrentLat:             r.CurrentLat,
		CurrentLng:             r.CurrentLng,
		GeneralAreaLat:         r.GeneralAreaLat,
		GeneralAreaLng:         r.GeneralAreaLng,
		MaxRadiusKm:            r.MaxRadiusKm,
		HourlyRate:             r.HourlyRate,
		PerGigRate:             r.PerGigRate,
		RateNegotiable:         r.RateNegotiable,
		AvailabilitySchedule:   r.AvailabilitySchedule,
		DNDStart:               r.DNDStart,
		DNDEnd:                 r.DNDEnd,
		MaxNotificationsPerDay: r.MaxNotificationsPerDay,
	}
}

// WithdrawRequest represents a wallet withdrawal
type WithdrawRequest struct {
	Currency string          `json:"currency" binding:"required"`
	Amount   decimal.Decimal `json:"amount"`
}

// AdminReleaseRequest represents an operator-forced payout
type AdminReleaseRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func parseUUID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperror.Validation("%s должен быть валидным UUID", field)
	}
	return id, nil
}
