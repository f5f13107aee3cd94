package repository

import (
	"errors"

	"github.com/ignatzorin/gigmarket-backend/internal/repository/common"
)

var (
	ErrGigNotFound          = errors.New("gig not found")
	ErrResponseNotFound     = errors.New("gig response not found")
	ErrProjectNotFound      = errors.New("project not found")
	ErrHoldNotFound         = errors.New("escrow hold not found")
	ErrDisputeNotFound      = errors.New("dispute not found")
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrProfileNotFound      = errors.New("profile not found")
	ErrAvailabilityNotFound = errors.New("availability not found")

	ErrAcceptTaken       = errors.New("gig already has an accepted response")
	ErrProjectExists     = errors.New("project already exists for gig")
	ErrDisputeOpen       = errors.New("project already has an open dispute")
	ErrAlreadyRated      = errors.New("rater already rated project")
	ErrAlreadyCredited   = errors.New("reference already credited")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWalletFrozen      = errors.New("wallet frozen")

	// ErrStaleState реэкспорт общего sentinel для сервисов.
	ErrStaleState = common.ErrStaleState
)

// Имена ограничений, на которых держатся инварианты гонок.
const (
	constraintOneAccepted    = "gig_responses_one_accepted_idx"
	constraintProjectPerGig  = "opportunity_projects_opportunity_key"
	constraintOneOpenDispute = "disputes_one_open_idx"
	constraintRatingPerRater = "gig_ratings_project_rater_key"
	constraintTransactionRef = "wallet_transactions_reference_key"
)
