package service

import (
	"context"
	"errors"

	"github.com/ignatzorin/gigmarket-backend/internal/payment"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
)

// translateRepoError переводит ошибки хранилища в ошибки приложения.
// Неизвестные ошибки заворачиваются как ошибки БД.
func translateRepoError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, repository.ErrGigNotFound):
		return apperror.ErrGigNotFound
	case errors.Is(err, repository.ErrResponseNotFound):
		return apperror.ErrResponseNotFound
	case errors.Is(err, repository.ErrProjectNotFound):
		return apperror.ErrProjectNotFound
	case errors.Is(err, repository.ErrDisputeNotFound):
		return apperror.ErrDisputeNotFound
	case errors.Is(err, repository.ErrWalletNotFound):
		return apperror.ErrWalletNotFound
	case errors.Is(err, repository.ErrProfileNotFound):
		return apperror.ErrUserNotFound
	case errors.Is(err, repository.ErrNotificationNotFound):
		return apperror.Wrap(err, apperror.ErrCodeNotFound, "уведомление не найдено")
	case errors.Is(err, repository.ErrHoldNotFound):
		return apperror.Wrap(err, apperror.ErrCodeNotFound, "холд не найден")
	case errors.Is(err, repository.ErrAcceptTaken):
		return apperror.ErrAlreadyTaken
	case errors.Is(err, repository.ErrProjectExists):
		return apperror.ErrAlreadySelected
	case errors.Is(err, repository.ErrDisputeOpen):
		return apperror.ErrDisputeAlreadyOpen
	case errors.Is(err, repository.ErrAlreadyRated):
		return apperror.ErrAlreadyRated
	case errors.Is(err, repository.ErrInsufficientFunds):
		return apperror.ErrInsufficientFunds
	case errors.Is(err, repository.ErrWalletFrozen):
		return apperror.ErrLedgerInconsistency
	case errors.Is(err, repository.ErrStaleState):
		return apperror.Wrap(err, apperror.ErrCodeInvalidStateTransition, "состояние изменилось, операция недопустима")
	}
	return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "ошибка хранилища")
}

// translateGatewayError переводит ошибку платёжного шлюза: отказ видит пользователь,
// временные сбои отдаются как PAYMENT_UNAVAILABLE, прочее как внутренняя ошибка.
func translateGatewayError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, payment.ErrDeclined) {
		return apperror.Wrap(err, apperror.ErrCodePaymentDeclined, apperror.ErrPaymentDeclined.Message)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if payment.IsRetryable(err) {
		return apperror.Wrap(err, apperror.ErrCodePaymentUnavailable, apperror.ErrPaymentUnavailable.Message)
	}
	return apperror.Wrap(err, apperror.ErrCodeInternal, "ошибка платёжного шлюза")
}
