package common

import (
	"errors"

	"github.com/lib/pq"
)

// ErrStaleState условный UPDATE не затронул ни одной строки: состояние уже изменилось.
var ErrStaleState = errors.New("state changed concurrently")

const (
	uniqueViolationCode      = "23505"
	serializationFailureCode = "40001"
	deadlockDetectedCode     = "40P01"
)

// IsUniqueViolation сообщает, что ошибка вызвана нарушением уникальности.
// Если constraint не пуст, сверяется и имя ограничения (или индекса).
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != uniqueViolationCode {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// IsRetryable сообщает, что транзакцию можно безопасно повторить целиком.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == serializationFailureCode || pqErr.Code == deadlockDetectedCode
}
