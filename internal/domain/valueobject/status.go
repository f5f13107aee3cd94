package valueobject

import "github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"

// GigStatus жизненный цикл срочного гига.
type GigStatus string

const (
	GigStatusSearching          GigStatus = "searching"
	GigStatusAwaitingAcceptance GigStatus = "awaiting_acceptance"
	GigStatusActive             GigStatus = "active"
	GigStatusCompleted          GigStatus = "completed"
	GigStatusDisputed           GigStatus = "disputed"
	GigStatusExpired            GigStatus = "expired"
)

var gigTransitions = map[GigStatus][]GigStatus{
	GigStatusSearching:          {GigStatusAwaitingAcceptance, GigStatusExpired},
	GigStatusAwaitingAcceptance: {GigStatusActive, GigStatusExpired},
	GigStatusActive:             {GigStatusCompleted, GigStatusDisputed},
	GigStatusDisputed:           {GigStatusCompleted},
	GigStatusCompleted:          {},
	GigStatusExpired:            {},
}

func (s GigStatus) IsValid() bool {
	_, ok := gigTransitions[s]
	return ok
}

func (s GigStatus) CanTransitionTo(next GigStatus) bool {
	for _, allowed := range gigTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal сообщает, что из статуса нет переходов.
func (s GigStatus) IsTerminal() bool {
	return s.IsValid() && len(gigTransitions[s]) == 0
}

// HasSelectedProvider сообщает, что в статусе у гига обязан быть выбранный исполнитель.
func (s GigStatus) HasSelectedProvider() bool {
	switch s {
	case GigStatusAwaitingAcceptance, GigStatusActive, GigStatusCompleted, GigStatusDisputed:
		return true
	}
	return false
}

// CheckGigTransition возвращает ErrInvalidTransition для запрещённого перехода.
func CheckGigTransition(from, to GigStatus) error {
	if !from.CanTransitionTo(to) {
		return apperror.Wrap(apperror.ErrInvalidTransition, apperror.ErrCodeInvalidStateTransition,
			"переход гига "+string(from)+" -> "+string(to)+" недопустим")
	}
	return nil
}

// ResponseStatus статус отклика исполнителя.
type ResponseStatus string

const (
	ResponseStatusPending     ResponseStatus = "pending"
	ResponseStatusAccepted    ResponseStatus = "accepted"
	ResponseStatusDeclined    ResponseStatus = "declined"
	ResponseStatusInvalidated ResponseStatus = "invalidated"
)

func (s ResponseStatus) IsTerminal() bool {
	return s != ResponseStatusPending
}

// ResponseAction действие исполнителя над откликом.
type ResponseAction string

const (
	ResponseActionAccept  ResponseAction = "accept"
	ResponseActionDecline ResponseAction = "decline"
)

func NewResponseAction(action string) (ResponseAction, error) {
	a := ResponseAction(action)
	if a != ResponseActionAccept && a != ResponseActionDecline {
		return "", apperror.New(apperror.ErrCodeValidation, "action должен быть accept или decline")
	}
	return a, nil
}

// ProjectStatus статус проекта после выбора исполнителя.
type ProjectStatus string

const (
	ProjectStatusAwaitingAcceptance ProjectStatus = "awaiting_acceptance"
	ProjectStatusActive             ProjectStatus = "active"
	ProjectStatusCompleted          ProjectStatus = "completed"
	ProjectStatusDisputed           ProjectStatus = "disputed"
	ProjectStatusExpired            ProjectStatus = "expired"
)

// DisputeStatus статус спора.
type DisputeStatus string

const (
	DisputeStatusOpen            DisputeStatus = "open"
	DisputeStatusResolvedRefund  DisputeStatus = "resolved_refund"
	DisputeStatusResolvedRelease DisputeStatus = "resolved_release"
	DisputeStatusResolvedSplit   DisputeStatus = "resolved_split"
)

// DisputeOutcome решение арбитража.
type DisputeOutcome string

const (
	DisputeOutcomeRefund  DisputeOutcome = "refund"
	DisputeOutcomeRelease DisputeOutcome = "release"
	DisputeOutcomeSplit   DisputeOutcome = "split"
)

func NewDisputeOutcome(outcome string) (DisputeOutcome, error) {
	switch o := DisputeOutcome(outcome); o {
	case DisputeOutcomeRefund, DisputeOutcomeRelease, DisputeOutcomeSplit:
		return o, nil
	}
	return "", apperror.New(apperror.ErrCodeValidation, "outcome должен быть refund, release или split")
}

// ResolvedStatus статус спора, соответствующий решению.
func (o DisputeOutcome) ResolvedStatus() DisputeStatus {
	switch o {
	case DisputeOutcomeRefund:
		return DisputeStatusResolvedRefund
	case DisputeOutcomeSplit:
		return DisputeStatusResolvedSplit
	default:
		return DisputeStatusResolvedRelease
	}
}

// HoldStatus стадия средств в escrow.
// pending, capturing, refunding и voiding: промежуточные подстатусы
// на время внешнего вызова; их дожимает сверка.
type HoldStatus string

const (
	HoldStatusPending    HoldStatus = "pending"
	HoldStatusAuthorized HoldStatus = "authorized"
	HoldStatusCapturing  HoldStatus = "capturing"
	HoldStatusCaptured   HoldStatus = "captured"
	HoldStatusReleased   HoldStatus = "released"
	HoldStatusRefunding  HoldStatus = "refunding"
	HoldStatusRefunded   HoldStatus = "refunded"
	HoldStatusSplit      HoldStatus = "split"
	HoldStatusVoiding    HoldStatus = "voiding"
	HoldStatusVoided     HoldStatus = "voided"
	HoldStatusFailed     HoldStatus = "failed"
)

// IsSettled сообщает, что деньги по холду окончательно распределены.
func (s HoldStatus) IsSettled() bool {
	switch s {
	case HoldStatusReleased, HoldStatusRefunded, HoldStatusSplit, HoldStatusVoided, HoldStatusFailed:
		return true
	}
	return false
}
