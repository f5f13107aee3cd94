package ws

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// NotificationSaver сохраняет уведомление, чтобы офлайн-пользователь увидел его позже.
type NotificationSaver interface {
	CreateNotification(ctx context.Context, userID uuid.UUID, event string, refs map[string]string, data interface{}) error
}

// PushMessage полезная нагрузка push-уведомления.
type PushMessage struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// PushAdapter отправляет push-уведомления: сохраняет их и рассылает через хаб.
type PushAdapter struct {
	hub   *Hub
	saver NotificationSaver
}

func NewPushAdapter(hub *Hub, saver NotificationSaver) *PushAdapter {
	return &PushAdapter{hub: hub, saver: saver}
}

// Send сохраняет уведомление и доставляет его онлайн-подключениям пользователя.
func (a *PushAdapter) Send(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error {
	msg := PushMessage{Title: title, Body: body, Data: data}
	event := data["event"]
	if event == "" {
		event = "notification"
	}

	if a.saver != nil {
		if err := a.saver.CreateNotification(ctx, userID, event, data, msg); err != nil {
			return fmt.Errorf("push: не удалось сохранить уведомление: %w", err)
		}
	}
	return a.hub.BroadcastToUser(ctx, userID, event, msg)
}
