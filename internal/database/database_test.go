package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/teamroom/teamroom/internal/models"
)

// openTestDB поднимает схему на sqlite: тесты не требуют работающего Postgres
func openTestDB(t *testing.T) *Database {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	return NewDatabase(db)
}

func createTestUser(t *testing.T, d *Database, username string) *models.User {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
	}
	require.NoError(t, d.SaveUser(user))
	return user
}

func createTestRoom(t *testing.T, d *Database, creator uuid.UUID, name string) *models.Room {
	t.Helper()
	room := &models.Room{
		ID:        uuid.New(),
		Name:      name,
		CreatedBy: creator,
	}
	require.NoError(t, d.CreateRoom(room))
	return room
}

func TestAddMemberDuplicateIsDetected(t *testing.T) {
	d := openTestDB(t)
	user := createTestUser(t, d, "alice")
	room := createTestRoom(t, d, user.ID, "general")

	require.NoError(t, d.AddMember(user.ID, room.ID, models.RoleMember))

	// Повторная вставка той же пары упирается в составной первичный ключ
	err := d.AddMember(user.ID, room.ID, models.RoleMember)
	require.ErrorIs(t, err, ErrAlreadyMember)

	members, err := d.GetRoomMembers(room.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)

	ok, err := d.IsMember(user.ID, room.ID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestIsMemberFalseForOutsider(t *testing.T) {
	d := openTestDB(t)
	alice := createTestUser(t, d, "alice")
	bob := createTestUser(t, d, "bob")
	room := createTestRoom(t, d, alice.ID, "general")
	require.NoError(t, d.AddMember(alice.ID, room.ID, models.RoleOwner))

	ok, err := d.IsMember(bob.ID, room.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetUserRoomsOnlyMemberships(t *testing.T) {
	d := openTestDB(t)
	alice := createTestUser(t, d, "alice")
	bob := createTestUser(t, d, "bob")

	mine := createTestRoom(t, d, alice.ID, "mine")
	other := createTestRoom(t, d, bob.ID, "other")
	require.NoError(t, d.AddMember(alice.ID, mine.ID, models.RoleOwner))
	require.NoError(t, d.AddMember(bob.ID, other.ID, models.RoleOwner))

	rooms, err := d.GetUserRooms(alice.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	require.Equal(t, mine.ID, rooms[0].ID)
}

func TestGetUserRoomsNewestFirst(t *testing.T) {
	d := openTestDB(t)
	alice := createTestUser(t, d, "alice")

	base := time.Now().Add(-time.Hour)
	names := []string{"oldest", "middle", "newest"}
	for i, name := range names {
		room := &models.Room{
			ID:        uuid.New(),
			Name:      name,
			CreatedBy: alice.ID,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, d.CreateRoom(room))
		require.NoError(t, d.AddMember(alice.ID, room.ID, models.RoleMember))
	}

	rooms, err := d.GetUserRooms(alice.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 3)

	// Самые свежие комнаты первыми
	require.Equal(t, "newest", rooms[0].Name)
	require.Equal(t, "middle", rooms[1].Name)
	require.Equal(t, "oldest", rooms[2].Name)
}

func TestGetRoomMessagesReturnsLastAscending(t *testing.T) {
	d := openTestDB(t)
	user := createTestUser(t, d, "alice")
	room := createTestRoom(t, d, user.ID, "general")

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		msg := &models.Message{
			ID:        uuid.New(),
			RoomID:    room.ID,
			UserID:    user.ID,
			Content:   string(rune('a' + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, d.SaveMessage(msg))
	}

	messages, err := d.GetRoomMessages(room.ID.String(), 3)
	require.NoError(t, err)
	require.Len(t, messages, 3)

	// Последние три сообщения, старые первыми
	require.Equal(t, "c", messages[0].Content)
	require.Equal(t, "d", messages[1].Content)
	require.Equal(t, "e", messages[2].Content)
}

func TestCreateFileVersionDuplicateNumber(t *testing.T) {
	d := openTestDB(t)
	user := createTestUser(t, d, "alice")
	room := createTestRoom(t, d, user.ID, "general")

	file := &models.File{RoomID: room.ID, Name: "doc.txt", OriginalName: "doc.txt"}
	v1 := &models.FileVersion{
		Version:      1,
		StoredName:   "doc.txt",
		OriginalName: "doc.txt",
		Size:         3,
		MimeType:     "text/plain",
		Hash:         "aaa",
		UploaderID:   user.ID,
	}
	require.NoError(t, d.CreateFileWithVersion(file, v1))
	require.NotEqual(t, uuid.Nil, file.ID)

	dup := &models.FileVersion{
		FileID:       file.ID,
		Version:      1,
		StoredName:   "doc.txt",
		OriginalName: "doc.txt",
		Size:         3,
		MimeType:     "text/plain",
		Hash:         "bbb",
		UploaderID:   user.ID,
	}
	require.ErrorIs(t, d.CreateFileVersion(dup), ErrDuplicateVersion)

	max, err := d.MaxFileVersion(file.ID)
	require.NoError(t, err)
	require.Equal(t, 1, max)
}

func TestMaxFileVersionEmptyChain(t *testing.T) {
	d := openTestDB(t)

	max, err := d.MaxFileVersion(uuid.New())
	require.NoError(t, err)
	require.Equal(t, 0, max)
}

func TestGetRoomFileScopedToRoom(t *testing.T) {
	d := openTestDB(t)
	user := createTestUser(t, d, "alice")
	room := createTestRoom(t, d, user.ID, "general")
	other := createTestRoom(t, d, user.ID, "other")

	file := &models.File{RoomID: room.ID, Name: "doc.txt", OriginalName: "doc.txt"}
	v1 := &models.FileVersion{
		Version: 1, StoredName: "doc.txt", OriginalName: "doc.txt",
		Size: 3, MimeType: "text/plain", Hash: "aaa", UploaderID: user.ID,
	}
	require.NoError(t, d.CreateFileWithVersion(file, v1))

	// Ссылка на файл из чужой комнаты равнозначна отсутствию файла
	_, err := d.GetRoomFile(file.ID, other.ID)
	require.ErrorIs(t, err, ErrNotFound)

	found, err := d.GetRoomFile(file.ID, room.ID)
	require.NoError(t, err)
	require.Equal(t, file.ID, found.ID)
}

func TestMarkNotificationRead(t *testing.T) {
	d := openTestDB(t)
	alice := createTestUser(t, d, "alice")
	bob := createTestUser(t, d, "bob")

	n := models.Notification{
		ID:     uuid.New(),
		UserID: alice.ID,
		Type:   models.NotificationNewMessage,
		Title:  "New message",
	}
	require.NoError(t, d.CreateNotifications([]models.Notification{n}))

	// Чужое уведомление пометить нельзя
	require.ErrorIs(t, d.MarkNotificationRead(n.ID, bob.ID), ErrNotFound)

	require.NoError(t, d.MarkNotificationRead(n.ID, alice.ID))

	list, err := d.GetUserNotifications(alice.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.True(t, list[0].IsRead)
}

func TestSavePushSubscriptionRebindsEndpoint(t *testing.T) {
	d := openTestDB(t)
	alice := createTestUser(t, d, "alice")
	bob := createTestUser(t, d, "bob")

	sub := &models.PushSubscription{
		UserID:   alice.ID,
		Endpoint: "https://push.example.com/ep1",
		P256dh:   "key1",
		Auth:     "auth1",
	}
	require.NoError(t, d.SavePushSubscription(sub))

	// Браузер пересоздал подписку с тем же endpoint для другого пользователя
	rebound := &models.PushSubscription{
		UserID:   bob.ID,
		Endpoint: "https://push.example.com/ep1",
		P256dh:   "key2",
		Auth:     "auth2",
	}
	require.NoError(t, d.SavePushSubscription(rebound))

	aliceSubs, err := d.GetPushSubscriptions(alice.ID)
	require.NoError(t, err)
	require.Empty(t, aliceSubs)

	bobSubs, err := d.GetPushSubscriptions(bob.ID)
	require.NoError(t, err)
	require.Len(t, bobSubs, 1)
	require.Equal(t, "key2", bobSubs[0].P256dh)
}
