package dto

import (
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
)

// UserRatingsResponse represents a rating summary with the latest ratings
type UserRatingsResponse struct {
	Summary *service.RatingSummary `json:"summary"`
	Ratings []models.GigRating     `json:"ratings"`
}

// WalletResponse represents all wallets of a user, one per currency
type WalletResponse struct {
	Wallets []models.Wallet `json:"wallets"`
}

// DisputeResolutionResponse represents a resolved dispute with money movement
type DisputeResolutionResponse struct {
	DisputeID  string                    `json:"dispute_id"`
	Outcome    string                    `json:"outcome"`
	Settlement *service.SettlementResult `json:"settlement"`
}

// ErrorResponse is the error envelope documented for API clients
type ErrorResponse struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
