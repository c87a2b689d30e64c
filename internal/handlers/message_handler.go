package handlers

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/teamroom/teamroom/internal/database"
	"github.com/teamroom/teamroom/internal/handlers/dto"
	"github.com/teamroom/teamroom/internal/models"
	"github.com/teamroom/teamroom/internal/notify"
	"github.com/teamroom/teamroom/internal/relay"
)

// MessageHandler — реле сообщений: персистентность строго до рассылки.
// Обслуживает и websocket-события, и HTTP-постинг через общий Post.
type MessageHandler struct {
	db       *database.Database
	hub      *relay.Hub
	enqueuer *notify.Enqueuer
}

func NewMessageHandler(db *database.Database, hub *relay.Hub, enqueuer *notify.Enqueuer) *MessageHandler {
	return &MessageHandler{
		db:       db,
		hub:      hub,
		enqueuer: enqueuer,
	}
}

// Post сохраняет сообщение и ровно один раз публикует его в канал комнаты.
// Валидация и авторизация — до любой записи; отказ персистентности
// отменяет пост целиком, рассылка в этом случае не происходит.
func (h *MessageHandler) Post(roomID, userID uuid.UUID, content string) (*dto.MessageResponse, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, relay.ErrEmptyContent
	}

	isMember, err := h.db.IsMember(userID, roomID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, relay.ErrNotAMember
	}

	message := &models.Message{
		RoomID:    roomID,
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now(),
	}

	if err := h.db.SaveMessage(message); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to save message")
		return nil, err
	}

	user, err := h.db.GetUser(userID.String())
	if err != nil {
		logrus.WithError(err).Error("Failed to resolve message author")
		return nil, err
	}

	response := formatMessage(message, user)

	h.broadcastMessage(roomID, userID, response)

	go h.db.UpdateLastSeen(userID.String())

	h.enqueuer.NotifyRoom(roomID, userID, models.NotificationNewMessage,
		"New message from "+user.Username, content)

	return response, nil
}

// broadcastMessage публикует new-message в канал комнаты. Доставка
// best-effort: ошибка одного соединения исходный пост не валит.
func (h *MessageHandler) broadcastMessage(roomID, userID uuid.UUID, response *dto.MessageResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal message event")
		return
	}

	ev := relay.Event{
		Type:      relay.TypeNewMessage,
		RoomID:    &roomID,
		UserID:    userID,
		Data:      data,
		Timestamp: time.Now(),
	}

	if err := h.hub.PublishEvent(roomID, ev); err != nil {
		logrus.WithError(err).Error("Failed to publish message event")
	}
}

// HandleEvent обрабатывает события, пришедшие по websocket-соединению.
func (h *MessageHandler) HandleEvent(client *relay.Client, ev *relay.Event) error {
	switch ev.Type {
	case relay.TypeJoinRoom:
		return h.handleJoinRoom(client, ev)

	case relay.TypeLeaveRoom:
		if ev.RoomID == nil {
			return relay.ErrInvalidEvent
		}
		h.hub.LeaveRoom(client, *ev.RoomID)
		return nil

	case relay.TypeSendMessage:
		return h.handleSendMessage(client, ev)

	default:
		logrus.WithField("type", ev.Type).Debug("Unknown event type")
		return nil
	}
}

// handleJoinRoom привязывает соединение к каналу комнаты. Отказ отклоняет
// только привязку: само соединение остаётся открытым.
func (h *MessageHandler) handleJoinRoom(client *relay.Client, ev *relay.Event) error {
	if ev.RoomID == nil {
		return relay.ErrInvalidEvent
	}

	isMember, err := h.db.IsMember(client.UserID, *ev.RoomID)
	if err != nil {
		return err
	}
	if !isMember {
		return relay.ErrNotAMember
	}

	h.hub.JoinRoom(client, *ev.RoomID)
	return client.SendEvent(relay.TypeJoinRoom, ev.RoomID, map[string]string{"status": "joined"})
}

func (h *MessageHandler) handleSendMessage(client *relay.Client, ev *relay.Event) error {
	if ev.RoomID == nil {
		return relay.ErrInvalidEvent
	}

	var payload dto.ChatPayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return relay.ErrInvalidEvent
	}

	// message_id — подсказка для рассылки сообщения, уже созданного
	// через REST: ничего не персистим заново
	if payload.MessageID != nil {
		return h.rebroadcast(client, *ev.RoomID, *payload.MessageID)
	}

	_, err := h.Post(*ev.RoomID, client.UserID, payload.Content)
	return err
}

func (h *MessageHandler) rebroadcast(client *relay.Client, roomID, messageID uuid.UUID) error {
	message, err := h.db.GetMessage(messageID.String())
	if err != nil {
		return err
	}
	if message.RoomID != roomID || message.UserID != client.UserID {
		return relay.ErrInvalidEvent
	}

	h.broadcastMessage(roomID, client.UserID, formatMessage(message, &message.User))
	return nil
}

// History возвращает последние limit сообщений комнаты по возрастанию
// created_at для гидрации поздно подключившегося клиента.
func (h *MessageHandler) History(roomID uuid.UUID, limit int) ([]*dto.MessageResponse, error) {
	messages, err := h.db.GetRoomMessages(roomID.String(), limit)
	if err != nil {
		return nil, err
	}

	responses := make([]*dto.MessageResponse, len(messages))
	for i := range messages {
		responses[i] = formatMessage(&messages[i], &messages[i].User)
	}
	return responses, nil
}

func formatMessage(msg *models.Message, user *models.User) *dto.MessageResponse {
	return &dto.MessageResponse{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		UserID:    msg.UserID,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
		User: dto.UserInfo{
			ID:        user.ID,
			Username:  user.Username,
			AvatarURL: user.AvatarURL,
		},
	}
}
