package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/teamroom/teamroom/internal/handlers/dto"
	"github.com/teamroom/teamroom/internal/middleware"
	"github.com/teamroom/teamroom/internal/relay"
)

// HTTPMessageHandler — REST-обёртка над реле сообщений.
type HTTPMessageHandler struct {
	messages *MessageHandler
}

func NewHTTPMessageHandler(messages *MessageHandler) *HTTPMessageHandler {
	return &HTTPMessageHandler{messages: messages}
}

// GetMessages отдаёт историю комнаты: GET /api/messages?roomId=&limit=
func (h *HTTPMessageHandler) GetMessages(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	roomID, err := uuid.Parse(c.Query("roomId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid roomId"})
		return
	}

	// Историю видят только участники
	isMember, err := h.messages.db.IsMember(userID, roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check membership"})
		return
	}
	if !isMember {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not a member of this room"})
		return
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	messages, err := h.messages.History(roomID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// PostMessage создаёт сообщение: POST /api/messages {room_id, content}
func (h *HTTPMessageHandler) PostMessage(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	var req dto.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.messages.Post(req.RoomID, userID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, relay.ErrEmptyContent):
			c.JSON(http.StatusBadRequest, gin.H{"error": "message content is empty"})
		case errors.Is(err, relay.ErrNotAMember):
			c.JSON(http.StatusForbidden, gin.H{"error": "you are not a member of this room"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save message"})
		}
		return
	}

	c.JSON(http.StatusCreated, message)
}
