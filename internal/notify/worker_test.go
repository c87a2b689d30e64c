package notify

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/teamroom/teamroom/internal/database"
	"github.com/teamroom/teamroom/internal/models"
	"github.com/teamroom/teamroom/internal/relay"
	"github.com/teamroom/teamroom/internal/tasks"
)

func newWorkerFixture(t *testing.T) (*Worker, *database.Database, *relay.Hub) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(gdb))
	db := database.NewDatabase(gdb)

	hub := relay.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	// asynq-сервер для прямого вызова handleDeliver не нужен
	w := &Worker{
		db:  db,
		hub: hub,
		log: logrus.WithField("component", "notify_worker_test"),
	}
	return w, db, hub
}

func seedUser(t *testing.T, db *database.Database, name string) *models.User {
	t.Helper()
	u := &models.User{
		ID: uuid.New(), Username: name,
		Email: name + "@example.com", PasswordHash: "hash",
	}
	require.NoError(t, db.SaveUser(u))
	return u
}

func TestDeliverFansOutToMembersExceptActor(t *testing.T) {
	w, db, hub := newWorkerFixture(t)

	actor := seedUser(t, db, "actor")
	online := seedUser(t, db, "online")
	offline := seedUser(t, db, "offline")

	room := &models.Room{ID: uuid.New(), Name: "general", CreatedBy: actor.ID}
	require.NoError(t, db.CreateRoom(room))
	for _, u := range []*models.User{actor, online, offline} {
		require.NoError(t, db.AddMember(u.ID, room.ID, models.RoleMember))
	}

	client := relay.NewClient(hub, nil, online.ID)
	hub.Register(client)
	require.Eventually(t, func() bool {
		return hub.IsUserOnline(online.ID)
	}, 2*time.Second, 10*time.Millisecond)

	task, err := tasks.NewNotificationDeliverTask(tasks.NotificationDeliverPayload{
		RoomID:  room.ID,
		ActorID: actor.ID,
		Type:    models.NotificationNewMessage,
		Title:   "New message from actor",
		Content: "hello",
	})
	require.NoError(t, err)
	require.NoError(t, w.handleDeliver(context.Background(), task))

	// Автору события уведомление не пишется
	actorNotifs, err := db.GetUserNotifications(actor.ID, 10)
	require.NoError(t, err)
	require.Empty(t, actorNotifs)

	for _, u := range []*models.User{online, offline} {
		notifs, err := db.GetUserNotifications(u.ID, 10)
		require.NoError(t, err)
		require.Len(t, notifs, 1)
		require.Equal(t, models.NotificationNewMessage, notifs[0].Type)
		require.False(t, notifs[0].IsRead)
	}

	// Онлайн-участник дополнительно получает живое событие
	select {
	case payload := <-client.Send:
		var ev relay.Event
		require.NoError(t, json.Unmarshal(payload, &ev))
		require.Equal(t, relay.TypeNotice, ev.Type)
		require.Equal(t, online.ID, ev.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for live notification")
	}
}

func TestDeliverMalformedPayloadNotRetried(t *testing.T) {
	w, _, _ := newWorkerFixture(t)

	task := asynq.NewTask(tasks.TypeNotificationDeliver, []byte("{not json"))
	err := w.handleDeliver(context.Background(), task)
	require.Error(t, err)
	require.True(t, errors.Is(err, asynq.SkipRetry))
}
