package handlers

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/teamroom/teamroom/internal/database"
	"github.com/teamroom/teamroom/internal/handlers/dto"
	"github.com/teamroom/teamroom/internal/models"
	"github.com/teamroom/teamroom/internal/relay"
)

type relayFixture struct {
	handler *MessageHandler
	db      *database.Database
	hub     *relay.Hub
	roomID  uuid.UUID
	member  *models.User
	outside *models.User
}

func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(gdb))
	db := database.NewDatabase(gdb)

	member := &models.User{
		ID: uuid.New(), Username: "alice",
		Email: "alice@example.com", PasswordHash: "hash",
	}
	outside := &models.User{
		ID: uuid.New(), Username: "mallory",
		Email: "mallory@example.com", PasswordHash: "hash",
	}
	require.NoError(t, db.SaveUser(member))
	require.NoError(t, db.SaveUser(outside))

	room := &models.Room{ID: uuid.New(), Name: "general", CreatedBy: member.ID}
	require.NoError(t, db.CreateRoom(room))
	require.NoError(t, db.AddMember(member.ID, room.ID, models.RoleOwner))

	hub := relay.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	return &relayFixture{
		handler: NewMessageHandler(db, hub, nil),
		db:      db,
		hub:     hub,
		roomID:  room.ID,
		member:  member,
		outside: outside,
	}
}

func receiveEvent(t *testing.T, c *relay.Client) *relay.Event {
	t.Helper()
	select {
	case payload := <-c.Send:
		var ev relay.Event
		require.NoError(t, json.Unmarshal(payload, &ev))
		return &ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestPostPersistsThenBroadcasts(t *testing.T) {
	f := newRelayFixture(t)

	subscriber := relay.NewClient(f.hub, nil, f.member.ID)
	f.hub.JoinRoom(subscriber, f.roomID)

	response, err := f.handler.Post(f.roomID, f.member.ID, "  hello room  ")
	require.NoError(t, err)
	require.Equal(t, "hello room", response.Content)
	require.Equal(t, "alice", response.User.Username)

	// Сообщение закоммичено до рассылки
	saved, err := f.db.GetMessage(response.ID.String())
	require.NoError(t, err)
	require.Equal(t, "hello room", saved.Content)

	ev := receiveEvent(t, subscriber)
	require.Equal(t, relay.TypeNewMessage, ev.Type)
	require.Equal(t, f.roomID, *ev.RoomID)

	var got dto.MessageResponse
	require.NoError(t, json.Unmarshal(ev.Data, &got))
	require.Equal(t, response.ID, got.ID)
	require.Equal(t, "hello room", got.Content)
	require.Equal(t, "alice", got.User.Username)
}

func TestPostRejectsBlankContent(t *testing.T) {
	f := newRelayFixture(t)

	for _, content := range []string{"", "   ", "\n\t  "} {
		_, err := f.handler.Post(f.roomID, f.member.ID, content)
		require.ErrorIs(t, err, relay.ErrEmptyContent)
	}

	// Отказ валидации не оставляет строк
	history, err := f.handler.History(f.roomID, 10)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestPostRejectsNonMember(t *testing.T) {
	f := newRelayFixture(t)

	subscriber := relay.NewClient(f.hub, nil, f.member.ID)
	f.hub.JoinRoom(subscriber, f.roomID)

	_, err := f.handler.Post(f.roomID, f.outside.ID, "let me in")
	require.ErrorIs(t, err, relay.ErrNotAMember)

	history, err := f.handler.History(f.roomID, 10)
	require.NoError(t, err)
	require.Empty(t, history)

	select {
	case payload := <-subscriber.Send:
		t.Fatalf("unexpected broadcast: %s", payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHistoryReturnsLastMessagesAscending(t *testing.T) {
	f := newRelayFixture(t)

	for _, content := range []string{"one", "two", "three"} {
		_, err := f.handler.Post(f.roomID, f.member.ID, content)
		require.NoError(t, err)
		// created_at с секундной точностью в sqlite различаться не обязан,
		// но порядок вставки сортировку не ломает
		time.Sleep(5 * time.Millisecond)
	}

	history, err := f.handler.History(f.roomID, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "two", history[0].Content)
	require.Equal(t, "three", history[1].Content)
	require.Equal(t, "alice", history[0].User.Username)
}

func TestHandleJoinRoomChecksMembership(t *testing.T) {
	f := newRelayFixture(t)

	intruder := relay.NewClient(f.hub, nil, f.outside.ID)
	ev := &relay.Event{Type: relay.TypeJoinRoom, RoomID: &f.roomID}
	require.ErrorIs(t, f.handler.HandleEvent(intruder, ev), relay.ErrNotAMember)
	require.False(t, intruder.IsInRoom(f.roomID))

	client := relay.NewClient(f.hub, nil, f.member.ID)
	require.NoError(t, f.handler.HandleEvent(client, ev))
	require.True(t, client.IsInRoom(f.roomID))

	ack := receiveEvent(t, client)
	require.Equal(t, relay.TypeJoinRoom, ack.Type)
}

func TestHandleSendMessageRebroadcastOwnOnly(t *testing.T) {
	f := newRelayFixture(t)

	require.NoError(t, f.db.AddMember(f.outside.ID, f.roomID, models.RoleMember))

	posted, err := f.handler.Post(f.roomID, f.member.ID, "original")
	require.NoError(t, err)

	// Чужое сообщение повторно разослать нельзя
	other := relay.NewClient(f.hub, nil, f.outside.ID)
	payload, err := json.Marshal(dto.ChatPayload{MessageID: &posted.ID})
	require.NoError(t, err)
	ev := &relay.Event{Type: relay.TypeSendMessage, RoomID: &f.roomID, Data: payload}
	require.ErrorIs(t, f.handler.HandleEvent(other, ev), relay.ErrInvalidEvent)

	// Автор — может; персистентность повторно не трогается
	author := relay.NewClient(f.hub, nil, f.member.ID)
	f.hub.JoinRoom(author, f.roomID)
	require.NoError(t, f.handler.HandleEvent(author, ev))

	rebroadcast := receiveEvent(t, author)
	require.Equal(t, relay.TypeNewMessage, rebroadcast.Type)

	history, err := f.handler.History(f.roomID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestHandleEventInvalidFrames(t *testing.T) {
	f := newRelayFixture(t)
	client := relay.NewClient(f.hub, nil, f.member.ID)

	require.ErrorIs(t,
		f.handler.HandleEvent(client, &relay.Event{Type: relay.TypeJoinRoom}),
		relay.ErrInvalidEvent)
	require.ErrorIs(t,
		f.handler.HandleEvent(client, &relay.Event{Type: relay.TypeSendMessage}),
		relay.ErrInvalidEvent)

	// Неизвестный тип молча игнорируется
	require.NoError(t, f.handler.HandleEvent(client, &relay.Event{Type: "unknown"}))
}
