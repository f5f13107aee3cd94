package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/logger"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
	"github.com/ignatzorin/gigmarket-backend/internal/validation"
)

// GigStore хранилище гигов.
type GigStore interface {
	CreateWithHold(ctx context.Context, gig *models.UrgentGig, hold *models.EscrowHold) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.UrgentGig, error)
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]models.UrgentGig, error)
	Expire(ctx context.Context, gigID uuid.UUID, reason string) (*models.EscrowHold, error)
	History(ctx context.Context, gigID uuid.UUID) ([]models.GigStatusChange, error)
}

// ResponseLookup поиск отклика исполнителя по гигу.
type ResponseLookup interface {
	GetByGigAndProvider(ctx context.Context, gigID, providerID uuid.UUID) (*models.GigResponse, error)
}

// GigMatcher оценка и рассылка по кандидатам.
type GigMatcher interface {
	Estimate(ctx context.Context, gig *models.UrgentGig) (int, error)
	Dispatch(ctx context.Context, gig *models.UrgentGig) (int, error)
}

// GigAuthorizer авторизация и отмена оплаты гига.
type GigAuthorizer interface {
	Authorize(ctx context.Context, gig *models.UrgentGig) (*models.EscrowHold, error)
	Void(ctx context.Context, hold *models.EscrowHold) error
}

// CreateGigInput данные нового срочного гига.
type CreateGigInput struct {
	SkillRequired    string
	Genres           []string
	DateNeeded       time.Time
	DurationHours    decimal.Decimal
	PaymentAmount    decimal.Decimal
	PaymentCurrency  string
	PaymentMethodID  string
	LocationLat      float64
	LocationLng      float64
	LocationAddress  string
	LocationRadiusKm float64
	Description      string
}

// CreateGigResult итог создания гига.
type CreateGigResult struct {
	Gig              *models.UrgentGig `json:"gig"`
	EstimatedMatches int               `json:"estimated_matches"`
	NotifiedCount    int               `json:"notified_count"`
	LowSupply        bool              `json:"low_supply"`
	PaymentPending   bool              `json:"payment_pending"`
}

// GigService жизненный цикл срочного гига со стороны заказчика.
type GigService struct {
	gigs          GigStore
	responses     ResponseLookup
	projects      ProjectReaderByGig
	matcher       GigMatcher
	escrow        GigAuthorizer
	minCandidates int
	ttl           time.Duration
	now           func() time.Time
}

// ProjectReaderByGig чтение проекта по гигу.
type ProjectReaderByGig interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.OpportunityProject, error)
	GetByGigID(ctx context.Context, gigID uuid.UUID) (*models.OpportunityProject, error)
}

func NewGigService(gigs GigStore, responses ResponseLookup, projects ProjectReaderByGig, matcher GigMatcher, escrow GigAuthorizer, minCandidates int, ttl time.Duration) *GigService {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &GigService{
		gigs:          gigs,
		responses:     responses,
		projects:      projects,
		matcher:       matcher,
		escrow:        escrow,
		minCandidates: minCandidates,
		ttl:           ttl,
		now:           time.Now,
	}
}

// Create создаёт гиг с pending-холдом, авторизует оплату и рассылает предложение кандидатам.
// Отказ платежа сразу переводит гиг в expired. Временная недоступность шлюза гиг не отменяет:
// авторизацию повторят выбор исполнителя или сверка.
func (s *GigService) Create(ctx context.Context, requesterID uuid.UUID, in CreateGigInput) (*CreateGigResult, error) {
	now := s.now()
	gig, hold, err := s.buildGig(requesterID, in, now)
	if err != nil {
		return nil, err
	}

	if err := s.gigs.CreateWithHold(ctx, gig, hold); err != nil {
		return nil, translateRepoError(err)
	}

	log := logger.L().WithFields(logrus.Fields{"gig_id": gig.ID, "requester_id": requesterID})
	result := &CreateGigResult{Gig: gig}

	if _, err := s.escrow.Authorize(ctx, gig); err != nil {
		switch apperror.CodeOf(err) {
		case apperror.ErrCodePaymentDeclined:
			s.expireDeclined(ctx, gig)
			return nil, err
		case apperror.ErrCodePaymentUnavailable:
			log.WithError(err).Warn("gig: авторизация отложена, шлюз недоступен")
			result.PaymentPending = true
		default:
			return nil, err
		}
	}

	estimated, err := s.matcher.Estimate(ctx, gig)
	if err != nil {
		log.WithError(err).Warn("gig: не удалось оценить число кандидатов")
	}
	notified, err := s.matcher.Dispatch(ctx, gig)
	if err != nil {
		log.WithError(err).Error("gig: рассылка кандидатам не выполнена")
	}

	if notified > estimated {
		estimated = notified
	}
	result.EstimatedMatches = estimated
	result.NotifiedCount = notified
	result.LowSupply = estimated < s.minCandidates

	log.WithFields(logrus.Fields{
		"estimated_matches": estimated,
		"notified":          notified,
		"low_supply":        result.LowSupply,
	}).Info("gig: создан")
	return result, nil
}

func (s *GigService) expireDeclined(ctx context.Context, gig *models.UrgentGig) {
	log := logger.L().WithField("gig_id", gig.ID)
	hold, err := s.gigs.Expire(ctx, gig.ID, "payment declined")
	if err != nil {
		log.WithError(err).Error("gig: не удалось закрыть гиг после отказа платежа")
		return
	}
	gig.Status = valueobject.GigStatusExpired
	if hold != nil {
		if err := s.escrow.Void(ctx, hold); err != nil {
			log.WithError(err).Warn("gig: отмена холда отложена до сверки")
		}
	}
}

func (s *GigService) buildGig(requesterID uuid.UUID, in CreateGigInput, now time.Time) (*models.UrgentGig, *models.EscrowHold, error) {
	if err := validation.ValidateSkill(in.SkillRequired); err != nil {
		return nil, nil, apperror.Validation("%s", err.Error())
	}
	genres, err := validation.NormalizeGenres(in.Genres)
	if err != nil {
		return nil, nil, apperror.Validation("%s", err.Error())
	}

	money, err := valueobject.NewMoney(in.PaymentAmount, in.PaymentCurrency)
	if err != nil {
		return nil, nil, err
	}
	if !money.Amount.IsPositive() {
		return nil, nil, apperror.Validation("payment_amount должен быть больше нуля")
	}

	if err := validation.ValidateCoordinates(in.LocationLat, in.LocationLng); err != nil {
		return nil, nil, apperror.Validation("%s", err.Error())
	}
	if err := validation.ValidateRadius("location_radius_km", in.LocationRadiusKm); err != nil {
		return nil, nil, apperror.Validation("%s", err.Error())
	}
	if !in.DurationHours.IsPositive() || in.DurationHours.GreaterThan(decimal.NewFromFloat(validation.MaxDurationHours)) {
		return nil, nil, apperror.Validation("duration_hours должен быть больше нуля и не более %.0f", validation.MaxDurationHours)
	}
	if in.DateNeeded.IsZero() || !in.DateNeeded.After(now) {
		return nil, nil, apperror.Validation("date_needed должна быть в будущем")
	}

	address := strings.TrimSpace(in.LocationAddress)
	if err := validation.ValidateLength("адрес", address, 0, validation.MaxAddressLength); err != nil {
		return nil, nil, apperror.Validation("%s", err.Error())
	}
	description := strings.TrimSpace(in.Description)
	if err := validation.ValidateLength("описание", description, 0, validation.MaxGigDescriptionLength); err != nil {
		return nil, nil, apperror.Validation("%s", err.Error())
	}

	methodID := strings.TrimSpace(in.PaymentMethodID)
	if err := validation.ValidateLength("payment_method_id", methodID, 1, validation.MaxPaymentMethodIDLength); err != nil {
		return nil, nil, apperror.Validation("payment_method_id обязателен")
	}

	expiresAt := now.Add(s.ttl)
	if in.DateNeeded.Before(expiresAt) {
		expiresAt = in.DateNeeded
	}

	gig := &models.UrgentGig{
		ID:               uuid.New(),
		RequesterID:      requesterID,
		SkillRequired:    strings.TrimSpace(in.SkillRequired),
		Genres:           genres,
		DateNeeded:       in.DateNeeded.UTC(),
		DurationHours:    in.DurationHours,
		PaymentAmount:    money.Amount,
		PaymentCurrency:  money.Currency,
		LocationLat:      in.LocationLat,
		LocationLng:      in.LocationLng,
		LocationAddress:  address,
		LocationRadiusKm: in.LocationRadiusKm,
		Description:      description,
		Status:           valueobject.GigStatusSearching,
		ExpiresAt:        expiresAt.UTC(),
	}
	hold := &models.EscrowHold{
		ID:              uuid.New(),
		GigID:           gig.ID,
		PayerID:         requesterID,
		Amount:          money.Amount,
		Currency:        money.Currency,
		PaymentMethodID: &methodID,
		Status:          valueobject.HoldStatusPending,
	}
	return gig, hold, nil
}

// Get возвращает гиг заказчику, выбранному исполнителю или уведомлённому исполнителю.
func (s *GigService) Get(ctx context.Context, gigID, callerID uuid.UUID) (*models.UrgentGig, error) {
	gig, err := s.gigs.GetByID(ctx, gigID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if err := s.ensureCanRead(ctx, gig, callerID); err != nil {
		return nil, err
	}
	return gig, nil
}

// History журнал переходов гига.
func (s *GigService) History(ctx context.Context, gigID, callerID uuid.UUID) ([]models.GigStatusChange, error) {
	if _, err := s.Get(ctx, gigID, callerID); err != nil {
		return nil, err
	}
	history, err := s.gigs.History(ctx, gigID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return history, nil
}

// GetProject проект доступен только сторонам.
func (s *GigService) GetProject(ctx context.Context, projectID, callerID uuid.UUID) (*models.OpportunityProject, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if !project.IsParty(callerID) {
		return nil, apperror.ErrNotParty
	}
	return project, nil
}

// ProjectForGig проект гига для его сторон.
func (s *GigService) ProjectForGig(ctx context.Context, gigID, callerID uuid.UUID) (*models.OpportunityProject, error) {
	project, err := s.projects.GetByGigID(ctx, gigID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if !project.IsParty(callerID) {
		return nil, apperror.ErrNotParty
	}
	return project, nil
}

func (s *GigService) ensureCanRead(ctx context.Context, gig *models.UrgentGig, callerID uuid.UUID) error {
	if gig.IsParty(callerID) {
		return nil
	}
	_, err := s.responses.GetByGigAndProvider(ctx, gig.ID, callerID)
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrResponseNotFound) {
		return apperror.ErrNotParty
	}
	return translateRepoError(err)
}
