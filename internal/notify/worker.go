package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/teamroom/teamroom/internal/database"
	"github.com/teamroom/teamroom/internal/models"
	"github.com/teamroom/teamroom/internal/relay"
	"github.com/teamroom/teamroom/internal/tasks"
)

// Worker обслуживает очередь уведомлений: пишет строки Notification
// участникам комнаты, толкает живое событие онлайн-пользователям
// и шлёт Web Push.
type Worker struct {
	server   *asynq.Server
	db       *database.Database
	hub      *relay.Hub
	notifier *Notifier
	log      *logrus.Entry
}

func NewWorker(redisOpt asynq.RedisClientOpt, db *database.Database, hub *relay.Hub, notifier *Notifier) *Worker {
	log := logrus.WithField("component", "notify_worker")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 5,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.WithField("task_type", task.Type()).Errorf("Task failed: %v", err)
			}),
		},
	)

	return &Worker{
		server:   server,
		db:       db,
		hub:      hub,
		notifier: notifier,
		log:      log,
	}
}

// Start запускает worker; вызывается в отдельной горутине.
func (w *Worker) Start() {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeNotificationDeliver, w.handleDeliver)

	w.log.Info("Notification worker starting")
	if err := w.server.Run(mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
		w.log.Fatalf("Could not run notification worker: %v", err)
	}
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) handleDeliver(ctx context.Context, t *asynq.Task) error {
	var p tasks.NotificationDeliverPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	memberIDs, err := w.db.GetRoomMemberIDs(p.RoomID)
	if err != nil {
		return fmt.Errorf("load room members: %w", err)
	}

	now := time.Now()
	notifications := make([]models.Notification, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id == p.ActorID {
			continue
		}
		notifications = append(notifications, models.Notification{
			UserID:    id,
			Type:      p.Type,
			Title:     p.Title,
			Content:   p.Content,
			CreatedAt: now,
		})
	}

	if err := w.db.CreateNotifications(notifications); err != nil {
		return fmt.Errorf("persist notifications: %w", err)
	}

	for _, n := range notifications {
		if w.hub != nil && w.hub.IsUserOnline(n.UserID) {
			ev := relay.Event{
				Type:      relay.TypeNotice,
				UserID:    n.UserID,
				Timestamp: now,
			}
			if data, err := json.Marshal(map[string]string{
				"type":    n.Type,
				"title":   n.Title,
				"content": n.Content,
			}); err == nil {
				ev.Data = data
				if payload, err := json.Marshal(ev); err == nil {
					w.hub.SendToUser(n.UserID, payload)
				}
			}
			continue
		}
		// Оффлайн-пользователям — Web Push
		w.notifier.Send(n.UserID, p.Title, p.Content)
	}

	w.log.WithFields(logrus.Fields{
		"room_id":    p.RoomID,
		"recipients": len(notifications),
		"type":       p.Type,
	}).Debug("Notifications delivered")

	return nil
}
