package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gigmarket-backend/internal/geo"
	"github.com/ignatzorin/gigmarket-backend/internal/logger"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
)

// ProviderSource предварительная выборка исполнителей из хранилища.
type ProviderSource interface {
	ListActiveProviders(ctx context.Context, skill string, excludeUser uuid.UUID, dayStart time.Time) ([]models.ProviderCandidate, error)
}

// ResponseCreator создаёт pending-отклики для уведомлённых исполнителей.
type ResponseCreator interface {
	CreatePending(ctx context.Context, gigID uuid.UUID, providerIDs []uuid.UUID, notifiedAt time.Time) ([]models.GigResponse, error)
}

// MatcherService подбирает исполнителей под гиг и рассылает им уведомления.
type MatcherService struct {
	providers     ProviderSource
	responses     ResponseCreator
	notifier      *Notifier
	maxCandidates int
	now           func() time.Time
}

func NewMatcherService(providers ProviderSource, responses ResponseCreator, notifier *Notifier, maxCandidates int) *MatcherService {
	if maxCandidates <= 0 {
		maxCandidates = 50
	}
	return &MatcherService{
		providers:     providers,
		responses:     responses,
		notifier:      notifier,
		maxCandidates: maxCandidates,
		now:           time.Now,
	}
}

// Candidates возвращает отсортированных кандидатов без ограничения количества.
func (s *MatcherService) Candidates(ctx context.Context, gig *models.UrgentGig) ([]geo.Candidate, error) {
	providers, err := s.providers.ListActiveProviders(ctx, gig.SkillRequired, gig.RequesterID, dayStart(s.now()))
	if err != nil {
		return nil, translateRepoError(err)
	}
	return geo.FilterCandidates(gig, providers), nil
}

// Estimate число подходящих исполнителей на текущий момент.
func (s *MatcherService) Estimate(ctx context.Context, gig *models.UrgentGig) (int, error) {
	candidates, err := s.Candidates(ctx, gig)
	if err != nil {
		return 0, err
	}
	return len(candidates), nil
}

// Dispatch создаёт pending-отклики для лучших кандидатов и отправляет им push.
// Уведомляются только исполнители, для которых отклик создан сейчас:
// уже уведомлённые (и отказавшиеся) повторно не беспокоятся.
func (s *MatcherService) Dispatch(ctx context.Context, gig *models.UrgentGig) (int, error) {
	candidates, err := s.Candidates(ctx, gig)
	if err != nil {
		return 0, err
	}
	if len(candidates) > s.maxCandidates {
		candidates = candidates[:s.maxCandidates]
	}
	if len(candidates) == 0 {
		logger.L().WithField("gig_id", gig.ID).Info("matcher: подходящих исполнителей нет")
		return 0, nil
	}

	ids := make([]uuid.UUID, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ProviderID)
	}

	created, err := s.responses.CreatePending(ctx, gig.ID, ids, s.now())
	if err != nil {
		return 0, translateRepoError(err)
	}

	for _, resp := range created {
		s.notifier.Notify(resp.ProviderID, "Срочный гиг рядом", gigPushBody(gig), map[string]string{
			"event":       "gig.offer",
			"gig_id":      gig.ID.String(),
			"response_id": resp.ID.String(),
		})
	}

	logger.L().WithFields(logrus.Fields{
		"gig_id":     gig.ID,
		"candidates": len(candidates),
		"notified":   len(created),
	}).Info("matcher: исполнители уведомлены")
	return len(created), nil
}

func gigPushBody(gig *models.UrgentGig) string {
	body := gig.SkillRequired + ", " + gig.Payment().String()
	if gig.LocationAddress != "" {
		body += ", " + gig.LocationAddress
	}
	return body
}

// dayStart начало суток по UTC: лимит уведомлений считается в UTC.
func dayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
