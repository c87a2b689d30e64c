package notify

import (
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/teamroom/teamroom/internal/tasks"
)

// Enqueuer ставит задачи на рассылку уведомлений. Уведомления — побочный
// сток потоков сообщений и файлов: отказ постановки задачи логируется,
// но исходную операцию не валит.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

func (e *Enqueuer) NotifyRoom(roomID, actorID uuid.UUID, notifType, title, content string) {
	if e == nil || e.client == nil {
		return
	}

	task, err := tasks.NewNotificationDeliverTask(tasks.NotificationDeliverPayload{
		RoomID:  roomID,
		ActorID: actorID,
		Type:    notifType,
		Title:   title,
		Content: content,
	})
	if err != nil {
		logrus.WithError(err).Error("Failed to build notification task")
		return
	}

	if _, err := e.client.Enqueue(task, asynq.MaxRetry(3)); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to enqueue notification task")
	}
}
