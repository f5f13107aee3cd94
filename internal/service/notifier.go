package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gigmarket-backend/internal/goroutine"
	"github.com/ignatzorin/gigmarket-backend/internal/logger"
)

// PushSender доставляет push-уведомление пользователю.
type PushSender interface {
	Send(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error
}

// Notifier отправляет уведомления в фоне с ограничением по времени.
// Ошибки доставки только логируются: бизнес-операция от них не зависит.
type Notifier struct {
	push     PushSender
	recovery *goroutine.RecoveryHandler
	timeout  time.Duration
}

func NewNotifier(push PushSender, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{
		push:     push,
		recovery: goroutine.NewRecoveryHandler(logger.L()),
		timeout:  timeout,
	}
}

// Notify ставит уведомление в отправку и сразу возвращается.
func (n *Notifier) Notify(userID uuid.UUID, title, body string, data map[string]string) {
	if n == nil || n.push == nil {
		return
	}
	n.recovery.SafeGo("push notify", func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		if err := n.push.Send(ctx, userID, title, body, data); err != nil {
			logger.L().WithFields(logrus.Fields{
				"user_id": userID,
				"event":   data["event"],
				"error":   err,
			}).Warn("push: уведомление не доставлено")
		}
	})
}

// Wait ждёт завершения отправленных уведомлений (graceful shutdown и тесты).
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.recovery.Wait()
}
