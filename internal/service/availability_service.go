package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/gigmarket-backend/internal/geo"
	"github.com/ignatzorin/gigmarket-backend/internal/logger"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
	"github.com/ignatzorin/gigmarket-backend/internal/validation"
)

const (
	defaultMaxRadiusKm            = 25.0
	defaultMaxNotificationsPerDay = 10
)

// AvailabilityStore хранилище доступности исполнителей.
type AvailabilityStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.UserAvailability, error)
	Upsert(ctx context.Context, a *models.UserAvailability) error
}

// UpdateAvailabilityInput частичное обновление: nil означает "не менять".
// Пустая строка в DND или расписании сбрасывает значение.
type UpdateAvailabilityInput struct {
	AvailableForUrgentGigs *bool
	CurrentLat             *float64
	CurrentLng             *float64
	GeneralAreaLat         *float64
	GeneralAreaLng         *float64
	MaxRadiusKm            *float64
	HourlyRate             *decimal.Decimal
	PerGigRate             *decimal.Decimal
	RateNegotiable         *bool
	AvailabilitySchedule   json.RawMessage
	DNDStart               *string
	DNDEnd                 *string
	MaxNotificationsPerDay *int
}

type AvailabilityService struct {
	store AvailabilityStore
}

func NewAvailabilityService(store AvailabilityStore) *AvailabilityService {
	return &AvailabilityService{store: store}
}

// Get возвращает настройки; у нового пользователя это значения по умолчанию.
func (s *AvailabilityService) Get(ctx context.Context, userID uuid.UUID) (*models.UserAvailability, error) {
	a, err := s.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAvailabilityNotFound) {
			return defaultAvailability(userID), nil
		}
		return nil, translateRepoError(err)
	}
	return a, nil
}

// Update меняет настройки владельца. Изменить чужую доступность нельзя по построению:
// userID берётся из токена.
func (s *AvailabilityService) Update(ctx context.Context, userID uuid.UUID, in UpdateAvailabilityInput) (*models.UserAvailability, error) {
	a, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.AvailableForUrgentGigs != nil {
		a.AvailableForUrgentGigs = *in.AvailableForUrgentGigs
	}
	if in.CurrentLat != nil || in.CurrentLng != nil {
		a.CurrentLat, a.CurrentLng = in.CurrentLat, in.CurrentLng
	}
	if in.GeneralAreaLat != nil || in.GeneralAreaLng != nil {
		a.GeneralAreaLat, a.GeneralAreaLng = in.GeneralAreaLat, in.GeneralAreaLng
	}
	if in.MaxRadiusKm != nil {
		a.MaxRadiusKm = *in.MaxRadiusKm
	}
	if in.HourlyRate != nil {
		a.HourlyRate = in.HourlyRate
	}
	if in.PerGigRate != nil {
		a.PerGigRate = in.PerGigRate
	}
	if in.RateNegotiable != nil {
		a.RateNegotiable = *in.RateNegotiable
	}
	if in.AvailabilitySchedule != nil {
		a.AvailabilitySchedule = in.AvailabilitySchedule
	}
	if in.DNDStart != nil {
		a.DNDStart = emptyToNil(*in.DNDStart)
	}
	if in.DNDEnd != nil {
		a.DNDEnd = emptyToNil(*in.DNDEnd)
	}
	if in.MaxNotificationsPerDay != nil {
		a.MaxNotificationsPerDay = *in.MaxNotificationsPerDay
	}

	if err := validateAvailability(a); err != nil {
		return nil, err
	}

	if err := s.store.Upsert(ctx, a); err != nil {
		return nil, translateRepoError(err)
	}

	logger.L().WithField("user_id", userID).Debug("availability: настройки обновлены")
	return a, nil
}

func validateAvailability(a *models.UserAvailability) error {
	if err := validatePair("current", a.CurrentLat, a.CurrentLng); err != nil {
		return err
	}
	if err := validatePair("general_area", a.GeneralAreaLat, a.GeneralAreaLng); err != nil {
		return err
	}
	if err := validation.ValidateRadius("max_radius_km", a.MaxRadiusKm); err != nil {
		return apperror.Validation("%s", err.Error())
	}
	for name, rate := range map[string]*decimal.Decimal{"hourly_rate": a.HourlyRate, "per_gig_rate": a.PerGigRate} {
		if rate != nil && (rate.IsNegative() || !rate.Equal(rate.Round(2))) {
			return apperror.Validation("%s должна быть неотрицательной суммой с точностью до копеек", name)
		}
	}
	if a.MaxNotificationsPerDay < 0 || a.MaxNotificationsPerDay > validation.MaxNotificationsPerDay {
		return apperror.Validation("max_notifications_per_day должен быть от 0 до %d", validation.MaxNotificationsPerDay)
	}

	if (a.DNDStart == nil) != (a.DNDEnd == nil) {
		return apperror.Validation("dnd_start и dnd_end задаются вместе")
	}
	if a.DNDStart != nil {
		if _, err := geo.ParseWindow(*a.DNDStart + "-" + *a.DNDEnd); err != nil {
			return apperror.Validation("некорректное окно не беспокоить: %s", err.Error())
		}
	}

	if len(a.AvailabilitySchedule) > 0 {
		schedule, err := geo.ParseSchedule(a.AvailabilitySchedule)
		if err != nil {
			return apperror.Validation("некорректное расписание: %s", err.Error())
		}
		if schedule == nil {
			a.AvailabilitySchedule = nil
		}
	}
	return nil
}

func validatePair(prefix string, lat, lng *float64) error {
	if (lat == nil) != (lng == nil) {
		return apperror.Validation("%s_lat и %s_lng задаются вместе", prefix, prefix)
	}
	if lat == nil {
		return nil
	}
	if err := validation.ValidateCoordinates(*lat, *lng); err != nil {
		return apperror.Validation("%s", err.Error())
	}
	return nil
}

func defaultAvailability(userID uuid.UUID) *models.UserAvailability {
	return &models.UserAvailability{
		UserID:                 userID,
		MaxRadiusKm:            defaultMaxRadiusKm,
		MaxNotificationsPerDay: defaultMaxNotificationsPerDay,
	}
}

func emptyToNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
