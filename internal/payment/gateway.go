// Package payment содержит клиент платёжного шлюза: авторизация с ручным захватом,
// захват, возврат и отмена платёжного намерения.
package payment

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
)

var (
	// ErrDeclined платёж отклонён банком или шлюзом; повтор не поможет.
	ErrDeclined = errors.New("payment: declined")
	// ErrTransient временная ошибка (сеть, таймаут, 5xx, 429); повтор с тем же ключом безопасен.
	ErrTransient = errors.New("payment: transient failure")
	// ErrAlreadyCaptured намерение уже захвачено; для захвата это успех.
	ErrAlreadyCaptured = errors.New("payment: already captured")
)

// AuthorizeRequest запрос на авторизацию суммы без захвата.
type AuthorizeRequest struct {
	Amount          valueobject.Money
	PaymentMethodID string
	Metadata        map[string]string
	IdempotencyKey  string
}

// Intent результат операции шлюза.
type Intent struct {
	ID     string
	Status string
}

// Gateway платёжный шлюз. Все вызовы должны быть ограничены по времени через ctx.
type Gateway interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (*Intent, error)
	Capture(ctx context.Context, intentID, idempotencyKey string) (*Intent, error)
	Refund(ctx context.Context, intentID string, amount valueobject.Money, idempotencyKey string) (*Intent, error)
	Cancel(ctx context.Context, intentID, idempotencyKey string) (*Intent, error)
}

// IdempotencyKey строит детерминированный ключ идемпотентности из частей операции.
// Повтор той же операции даёт тот же ключ, поэтому шлюз не проведёт её дважды.
func IdempotencyKey(parts ...string) string {
	sum := blake2b.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:16])
}
