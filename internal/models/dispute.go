package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
)

type Dispute struct {
	ID           uuid.UUID                 `db:"id" json:"id"`
	ProjectID    uuid.UUID                 `db:"project_id" json:"project_id"`
	RaisedBy     uuid.UUID                 `db:"raised_by" json:"raised_by"`
	Against      uuid.UUID                 `db:"against" json:"against"`
	Reason       string                    `db:"reason" json:"reason"`
	Description  string                    `db:"description" json:"description"`
	EvidenceURLs pq.StringArray            `db:"evidence_urls" json:"evidence_urls"`
	Status       valueobject.DisputeStatus `db:"status" json:"status"`
	SplitRatio   *decimal.Decimal          `db:"split_ratio" json:"split_ratio,omitempty"`
	Resolution   *string                   `db:"resolution" json:"resolution,omitempty"`
	ResolvedBy   *uuid.UUID                `db:"resolved_by" json:"resolved_by,omitempty"`
	CreatedAt    time.Time                 `db:"created_at" json:"created_at"`
	ResolvedAt   *time.Time                `db:"resolved_at" json:"resolved_at,omitempty"`
}

// GigRating оценка второй стороны после завершения проекта. Неизменяема.
type GigRating struct {
	ID                      uuid.UUID `db:"id" json:"id"`
	ProjectID               uuid.UUID `db:"project_id" json:"project_id"`
	RaterID                 uuid.UUID `db:"rater_id" json:"rater_id"`
	RateeID                 uuid.UUID `db:"ratee_id" json:"ratee_id"`
	OverallRating           int       `db:"overall_rating" json:"overall_rating"`
	ProfessionalismRating   int       `db:"professionalism_rating" json:"professionalism_rating"`
	PunctualityRating       int       `db:"punctuality_rating" json:"punctuality_rating"`
	QualityRating           *int      `db:"quality_rating" json:"quality_rating,omitempty"`
	PaymentPromptnessRating *int      `db:"payment_promptness_rating" json:"payment_promptness_rating,omitempty"`
	ReviewText              *string   `db:"review_text" json:"review_text,omitempty"`
	CreatedAt               time.Time `db:"created_at" json:"created_at"`
}
