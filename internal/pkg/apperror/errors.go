package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound               ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized           ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden              ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest             ErrorCode = "BAD_REQUEST"
	ErrCodeConflict               ErrorCode = "CONFLICT"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation             ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError          ErrorCode = "DATABASE_ERROR"
	ErrCodeInvalidStateTransition ErrorCode = "INVALID_STATE_TRANSITION"
	ErrCodeAlreadyResponded       ErrorCode = "ALREADY_RESPONDED"
	ErrCodeAlreadyTaken           ErrorCode = "ALREADY_TAKEN"
	ErrCodeAlreadySelected        ErrorCode = "ALREADY_SELECTED"
	ErrCodeAlreadyRated           ErrorCode = "ALREADY_RATED"
	ErrCodeDisputeAlreadyOpen     ErrorCode = "DISPUTE_ALREADY_OPEN"
	ErrCodeInsufficientFunds      ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCodePaymentDeclined        ErrorCode = "PAYMENT_DECLINED"
	ErrCodePaymentUnavailable     ErrorCode = "PAYMENT_UNAVAILABLE"
	ErrCodeLedgerInconsistency    ErrorCode = "LEDGER_INCONSISTENCY"
	ErrCodeRateLimited            ErrorCode = "RATE_LIMITED"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду, чтобы errors.Is(err, apperror.ErrAlreadyTaken) работал для обёрнутых копий.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict, ErrCodeInvalidStateTransition, ErrCodeAlreadyResponded,
		ErrCodeAlreadyTaken, ErrCodeAlreadySelected, ErrCodeAlreadyRated,
		ErrCodeDisputeAlreadyOpen, ErrCodeInsufficientFunds:
		return http.StatusConflict
	case ErrCodePaymentDeclined:
		return http.StatusPaymentRequired
	case ErrCodePaymentUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки приложения или пустую строку.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	return CodeOf(err) == ErrCodeForbidden
}

func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

// IsConflict сообщает, что ошибка означает проигрыш в гонке или недопустимый переход.
func IsConflict(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.HTTPStatus == http.StatusConflict
}

// Validation создаёт ошибку валидации с форматированным сообщением.
func Validation(format string, args ...interface{}) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf(format, args...))
}

var (
	ErrGigNotFound         = New(ErrCodeNotFound, "гиг не найден")
	ErrResponseNotFound    = New(ErrCodeNotFound, "отклик не найден")
	ErrProjectNotFound     = New(ErrCodeNotFound, "проект не найден")
	ErrDisputeNotFound     = New(ErrCodeNotFound, "спор не найден")
	ErrWalletNotFound      = New(ErrCodeNotFound, "кошелёк не найден")
	ErrUserNotFound        = New(ErrCodeNotFound, "пользователь не найден")
	ErrUnauthorized        = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden           = New(ErrCodeForbidden, "недостаточно прав")
	ErrNotParty            = New(ErrCodeForbidden, "вы не участник этого гига")
	ErrInvalidTransition   = New(ErrCodeInvalidStateTransition, "недопустимый переход состояния")
	ErrAlreadyResponded    = New(ErrCodeAlreadyResponded, "вы уже ответили на этот гиг")
	ErrAlreadyTaken        = New(ErrCodeAlreadyTaken, "гиг уже принят другим исполнителем")
	ErrAlreadySelected     = New(ErrCodeAlreadySelected, "исполнитель для гига уже выбран")
	ErrAlreadyRated        = New(ErrCodeAlreadyRated, "вы уже оценили этот проект")
	ErrDisputeAlreadyOpen  = New(ErrCodeDisputeAlreadyOpen, "по проекту уже открыт спор")
	ErrInsufficientFunds   = New(ErrCodeInsufficientFunds, "недостаточно средств на кошельке")
	ErrLedgerInconsistency = New(ErrCodeLedgerInconsistency, "кошелёк заморожен до проверки оператором")
	ErrPaymentDeclined     = New(ErrCodePaymentDeclined, "платёж отклонён")
	ErrPaymentUnavailable  = New(ErrCodePaymentUnavailable, "платёжный сервис временно недоступен, повторите попытку")
)
