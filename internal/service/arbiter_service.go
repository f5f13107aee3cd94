package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gigmarket-backend/internal/config"
	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/logger"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
)

const maxResponseMessageLen = 1000

// ResponseStore хранилище откликов исполнителей.
type ResponseStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.GigResponse, error)
	GetByGigAndProvider(ctx context.Context, gigID, providerID uuid.UUID) (*models.GigResponse, error)
	ListByGig(ctx context.Context, gigID uuid.UUID) ([]models.GigResponse, error)
	CreatePending(ctx context.Context, gigID uuid.UUID, providerIDs []uuid.UUID, notifiedAt time.Time) ([]models.GigResponse, error)
	Decline(ctx context.Context, responseID uuid.UUID, message *string, respondedAt time.Time) (*models.GigResponse, error)
	Accept(ctx context.Context, responseID uuid.UUID, message *string, respondedAt time.Time) (*models.GigResponse, error)
}

// ProjectStore хранилище проектов.
type ProjectStore interface {
	Select(ctx context.Context, project *models.OpportunityProject) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.OpportunityProject, error)
	GetByGigID(ctx context.Context, gigID uuid.UUID) (*models.OpportunityProject, error)
}

// Authorizer гарантирует авторизацию оплаты гига.
type Authorizer interface {
	Authorize(ctx context.Context, gig *models.UrgentGig) (*models.EscrowHold, error)
}

// ArbiterService разбирает отклики исполнителей и выбор заказчика.
// Гонки решает хранилище: условные UPDATE и уникальные индексы.
type ArbiterService struct {
	gigs      GigReader
	responses ResponseStore
	projects  ProjectStore
	escrow    Authorizer
	feePolicy config.FeePolicy
	notifier  *Notifier
	now       func() time.Time
}

func NewArbiterService(gigs GigReader, responses ResponseStore, projects ProjectStore, escrow Authorizer, feePolicy config.FeePolicy, notifier *Notifier) *ArbiterService {
	return &ArbiterService{
		gigs:      gigs,
		responses: responses,
		projects:  projects,
		escrow:    escrow,
		feePolicy: feePolicy,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Respond принимает ответ исполнителя на уведомление о гиге.
func (s *ArbiterService) Respond(ctx context.Context, gigID, providerID uuid.UUID, action valueobject.ResponseAction, message *string) (*models.GigResponse, error) {
	if message != nil {
		trimmed := strings.TrimSpace(*message)
		if len([]rune(trimmed)) > maxResponseMessageLen {
			return nil, apperror.Validation("сообщение не может быть длиннее %d символов", maxResponseMessageLen)
		}
		if trimmed == "" {
			message = nil
		} else {
			message = &trimmed
		}
	}

	gig, err := s.gigs.GetByID(ctx, gigID)
	if err != nil {
		return nil, translateRepoError(err)
	}

	resp, err := s.responses.GetByGigAndProvider(ctx, gigID, providerID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if resp.Status.IsTerminal() {
		return nil, apperror.ErrAlreadyResponded
	}

	log := logger.L().WithFields(logrus.Fields{"gig_id": gigID, "provider_id": providerID, "action": action})

	switch action {
	case valueobject.ResponseActionDecline:
		declined, err := s.responses.Decline(ctx, resp.ID, message, s.now())
		if err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				return nil, apperror.ErrAlreadyResponded
			}
			return nil, translateRepoError(err)
		}
		log.Debug("arbiter: исполнитель отказался")
		return declined, nil

	case valueobject.ResponseActionAccept:
		accepted, err := s.responses.Accept(ctx, resp.ID, message, s.now())
		if err != nil {
			if errors.Is(err, repository.ErrAcceptTaken) {
				log.Debug("arbiter: гонка принятия проиграна")
				return nil, apperror.ErrAlreadyTaken
			}
			if errors.Is(err, repository.ErrStaleState) {
				return nil, s.explainAcceptConflict(ctx, resp.ID, gig.ID)
			}
			return nil, translateRepoError(err)
		}

		log.Info("arbiter: исполнитель принял гиг")
		s.notifier.Notify(gig.RequesterID, "Исполнитель готов", "Исполнитель принял ваш срочный гиг", map[string]string{
			"event":       "response.accepted",
			"gig_id":      gig.ID.String(),
			"response_id": accepted.ID.String(),
		})
		return accepted, nil
	}

	return nil, apperror.Validation("action должен быть accept или decline")
}

// explainAcceptConflict объясняет, почему условный UPDATE не сработал.
func (s *ArbiterService) explainAcceptConflict(ctx context.Context, responseID, gigID uuid.UUID) error {
	resp, err := s.responses.GetByID(ctx, responseID)
	if err != nil {
		return translateRepoError(err)
	}
	switch resp.Status {
	case valueobject.ResponseStatusInvalidated:
		return apperror.ErrAlreadyTaken
	case valueobject.ResponseStatusPending:
	default:
		return apperror.ErrAlreadyResponded
	}

	gig, err := s.gigs.GetByID(ctx, gigID)
	if err != nil {
		return translateRepoError(err)
	}
	if gig.Status == valueobject.GigStatusExpired {
		return apperror.Wrap(apperror.ErrInvalidTransition, apperror.ErrCodeInvalidStateTransition, "гиг истёк")
	}
	return apperror.ErrAlreadyTaken
}

// SelectProvider фиксирует выбор заказчика: авторизация оплаты, затем одна транзакция
// с проектом, комиссией по текущей политике и инвалидацией остальных откликов.
func (s *ArbiterService) SelectProvider(ctx context.Context, gigID, requesterID, responseID uuid.UUID) (*models.OpportunityProject, error) {
	gig, err := s.gigs.GetByID(ctx, gigID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if gig.RequesterID != requesterID {
		return nil, apperror.ErrNotParty
	}

	resp, err := s.responses.GetByID(ctx, responseID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if resp.GigID != gig.ID {
		return nil, apperror.ErrResponseNotFound
	}
	if resp.Status != valueobject.ResponseStatusAccepted {
		return nil, apperror.Validation("выбрать можно только принявшего гиг исполнителя")
	}

	if gig.Status != valueobject.GigStatusSearching {
		if existing, err := s.projects.GetByGigID(ctx, gig.ID); err == nil && existing != nil {
			return nil, apperror.ErrAlreadySelected
		}
		return nil, apperror.Wrap(apperror.ErrInvalidTransition, apperror.ErrCodeInvalidStateTransition,
			"выбор невозможен: гиг в статусе "+string(gig.Status))
	}

	hold, err := s.escrow.Authorize(ctx, gig)
	if err != nil {
		return nil, err
	}

	split := valueobject.SplitFee(gig.PaymentAmount, gig.PaymentCurrency, s.feePolicy.GigFeeRate)
	project := &models.OpportunityProject{
		ID:                    uuid.New(),
		OpportunityID:         gig.ID,
		ResponseID:            resp.ID,
		PosterUserID:          gig.RequesterID,
		CreatorUserID:         resp.ProviderID,
		Title:                 projectTitle(gig),
		AgreedAmount:          split.Agreed,
		PlatformFeeAmount:     split.Fee,
		CreatorPayoutAmount:   split.Payout,
		FeeRate:               split.FeeRate,
		FeePolicyVersion:      s.feePolicy.Version,
		Currency:              split.Currency,
		StripePaymentIntentID: hold.PaymentIntentID,
		Status:                valueobject.ProjectStatusAwaitingAcceptance,
	}

	if err := s.projects.Select(ctx, project); err != nil {
		if errors.Is(err, repository.ErrProjectExists) {
			logger.L().WithField("gig_id", gig.ID).Debug("arbiter: повторный выбор отклонён")
		}
		return nil, translateRepoError(err)
	}

	logger.L().WithFields(logrus.Fields{
		"gig_id":      gig.ID,
		"project_id":  project.ID,
		"provider_id": project.CreatorUserID,
		"fee":         split.Fee.String(),
		"payout":      split.Payout.String(),
	}).Info("arbiter: исполнитель выбран")

	s.notifier.Notify(project.CreatorUserID, "Вас выбрали", project.Title, map[string]string{
		"event":      "project.selected",
		"gig_id":     gig.ID.String(),
		"project_id": project.ID.String(),
	})
	return project, nil
}

// ListResponses отклики по гигу, доступны только заказчику.
func (s *ArbiterService) ListResponses(ctx context.Context, gigID, requesterID uuid.UUID) ([]models.GigResponse, error) {
	gig, err := s.gigs.GetByID(ctx, gigID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if gig.RequesterID != requesterID {
		return nil, apperror.ErrNotParty
	}
	responses, err := s.responses.ListByGig(ctx, gigID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return responses, nil
}

func projectTitle(gig *models.UrgentGig) string {
	title := "Срочный гиг: " + gig.SkillRequired
	if gig.LocationAddress != "" {
		title += ", " + gig.LocationAddress
	}
	return title
}
