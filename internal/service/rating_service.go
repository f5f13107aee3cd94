package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/logger"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gigmarket-backend/internal/validation"
)

// RatingStore хранилище оценок.
type RatingStore interface {
	Create(ctx context.Context, rating *models.GigRating) error
	ListByRatee(ctx context.Context, rateeID uuid.UUID, limit, offset int) ([]models.GigRating, error)
}

// ProfileReader профили пользователей с агрегатами рейтинга.
type ProfileReader interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
}

// SubmitRatingInput оценка второй стороны проекта.
type SubmitRatingInput struct {
	ProjectID         uuid.UUID
	RateeID           uuid.UUID
	Overall           int
	Professionalism   int
	Punctuality       int
	Quality           *int
	PaymentPromptness *int
	Review            *string
}

// RatingSummary агрегаты рейтинга пользователя.
type RatingSummary struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	RatingAvg   float64   `json:"rating_avg"`
	RatingCount int       `json:"rating_count"`
}

type RatingService struct {
	ratings  RatingStore
	projects ProjectReader
	profiles ProfileReader
	notifier *Notifier
}

func NewRatingService(ratings RatingStore, projects ProjectReader, profiles ProfileReader, notifier *Notifier) *RatingService {
	return &RatingService{ratings: ratings, projects: projects, profiles: profiles, notifier: notifier}
}

// Submit сохраняет оценку. Качество оценивается только у исполнителя,
// своевременность оплаты только у заказчика.
func (s *RatingService) Submit(ctx context.Context, raterID uuid.UUID, in SubmitRatingInput) (*models.GigRating, error) {
	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if !project.IsParty(raterID) {
		return nil, apperror.ErrNotParty
	}
	if in.RateeID != project.Counterparty(raterID) || in.RateeID == raterID {
		return nil, apperror.Validation("оценить можно только вторую сторону проекта")
	}
	if project.Status != valueobject.ProjectStatusCompleted {
		return nil, invalidProjectState(project.Status)
	}

	if err := validateScores(in, in.RateeID == project.CreatorUserID); err != nil {
		return nil, err
	}

	var review *string
	if in.Review != nil {
		trimmed := strings.TrimSpace(*in.Review)
		if err := validation.ValidateLength("отзыв", trimmed, 0, validation.MaxReviewLength); err != nil {
			return nil, apperror.Validation("%s", err.Error())
		}
		if trimmed != "" {
			review = &trimmed
		}
	}

	rating := &models.GigRating{
		ID:                      uuid.New(),
		ProjectID:               project.ID,
		RaterID:                 raterID,
		RateeID:                 in.RateeID,
		OverallRating:           in.Overall,
		ProfessionalismRating:   in.Professionalism,
		PunctualityRating:       in.Punctuality,
		QualityRating:           in.Quality,
		PaymentPromptnessRating: in.PaymentPromptness,
		ReviewText:              review,
	}
	if err := s.ratings.Create(ctx, rating); err != nil {
		return nil, translateRepoError(err)
	}

	logger.L().WithFields(logrus.Fields{
		"project_id": project.ID,
		"rater_id":   raterID,
		"ratee_id":   in.RateeID,
		"overall":    in.Overall,
	}).Info("rating: оценка сохранена")

	s.notifier.Notify(in.RateeID, "Новая оценка", project.Title, map[string]string{
		"event":      "rating.received",
		"project_id": project.ID.String(),
	})
	return rating, nil
}

func validateScores(in SubmitRatingInput, rateeIsProvider bool) error {
	scores := []struct {
		name  string
		value int
	}{
		{"overall_rating", in.Overall},
		{"professionalism_rating", in.Professionalism},
		{"punctuality_rating", in.Punctuality},
	}
	for _, sc := range scores {
		if err := validation.ValidateScore(sc.name, sc.value); err != nil {
			return apperror.Validation("%s", err.Error())
		}
	}

	if rateeIsProvider {
		if in.PaymentPromptness != nil {
			return apperror.Validation("payment_promptness_rating ставится только заказчику")
		}
		if in.Quality != nil {
			if err := validation.ValidateScore("quality_rating", *in.Quality); err != nil {
				return apperror.Validation("%s", err.Error())
			}
		}
		return nil
	}

	if in.Quality != nil {
		return apperror.Validation("quality_rating ставится только исполнителю")
	}
	if in.PaymentPromptness != nil {
		if err := validation.ValidateScore("payment_promptness_rating", *in.PaymentPromptness); err != nil {
			return apperror.Validation("%s", err.Error())
		}
	}
	return nil
}

func (s *RatingService) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.GigRating, error) {
	if offset < 0 {
		offset = 0
	}
	ratings, err := s.ratings.ListByRatee(ctx, userID, limit, offset)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return ratings, nil
}

// Summary средняя оценка и число оценок из профиля.
func (s *RatingService) Summary(ctx context.Context, userID uuid.UUID) (*RatingSummary, error) {
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return &RatingSummary{
		UserID:      profile.UserID,
		DisplayName: profile.DisplayName,
		RatingAvg:   profile.RatingAvg,
		RatingCount: profile.RatingCount,
	}, nil
}
