package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Типы фоновых задач
const (
	TypeNotificationDeliver = "notification:deliver"
)

// NotificationDeliverPayload описывает событие комнаты, о котором нужно
// уведомить её участников (кроме самого актора).
type NotificationDeliverPayload struct {
	RoomID  uuid.UUID `json:"room_id"`
	ActorID uuid.UUID `json:"actor_id"`
	Type    string    `json:"type"`
	Title   string    `json:"title"`
	Content string    `json:"content"`
}

func NewNotificationDeliverTask(p NotificationDeliverPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeNotificationDeliver, payload), nil
}
