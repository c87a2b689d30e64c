package dto

import (
	"github.com/google/uuid"
	"time"
)

// ChatPayload — тело события send-message. MessageID заполняется, когда
// клиент просит разослать уже созданное через REST сообщение.
type ChatPayload struct {
	Content   string     `json:"content"`
	MessageID *uuid.UUID `json:"message_id,omitempty"`
}

// MessageResponse — сообщение с разрешённым профилем автора,
// и для REST-ответов, и для события new-message.
type MessageResponse struct {
	ID        uuid.UUID `json:"id"`
	RoomID    uuid.UUID `json:"room_id"`
	UserID    uuid.UUID `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	User      UserInfo  `json:"user"`
}

type UserInfo struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

type PostMessageRequest struct {
	RoomID  uuid.UUID `json:"room_id" binding:"required"`
	Content string    `json:"content" binding:"required"`
}
