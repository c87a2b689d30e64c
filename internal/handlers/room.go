package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/teamroom/teamroom/internal/database"
	"github.com/teamroom/teamroom/internal/handlers/dto"
	"github.com/teamroom/teamroom/internal/middleware"
	"github.com/teamroom/teamroom/internal/models"
)

type RoomHandler struct {
	db *database.Database
}

func NewRoomHandler(db *database.Database) *RoomHandler {
	return &RoomHandler{db: db}
}

// CreateRoom создает новую комнату; создатель становится owner
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room := &models.Room{
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   userID,
		CreatedAt:   time.Now(),
	}

	if err := h.db.CreateRoom(room); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
		return
	}

	if err := h.db.AddMember(userID, room.ID, models.RoleOwner); err != nil && !errors.Is(err, database.ErrAlreadyMember) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add creator to room"})
		return
	}

	c.JSON(http.StatusCreated, formatRoomResponse(room))
}

// GetMyRooms получает список комнат пользователя, самые свежие первыми
func (h *RoomHandler) GetMyRooms(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	rooms, err := h.db.GetUserRooms(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get rooms"})
		return
	}

	roomsResponse := make([]gin.H, len(rooms))
	for i, room := range rooms {
		roomResponse := formatRoomResponse(&room)

		// Последнее сообщение для превью
		messages, _ := h.db.GetRoomMessages(room.ID.String(), 1)
		if len(messages) > 0 {
			roomResponse["last_message"] = gin.H{
				"id":         messages[0].ID,
				"content":    messages[0].Content,
				"user_id":    messages[0].UserID,
				"created_at": messages[0].CreatedAt,
			}
		}

		roomsResponse[i] = roomResponse
	}

	c.JSON(http.StatusOK, gin.H{"rooms": roomsResponse})
}

// JoinRoom добавляет пользователя в комнату. Повторный вход — безвредный
// no-op: членство уже есть, отвечаем как при успехе.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	if _, err := h.db.GetRoom(roomID.String()); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return
	}

	if err := h.db.AddMember(userID, roomID, models.RoleMember); err != nil {
		if errors.Is(err, database.ErrAlreadyMember) {
			c.JSON(http.StatusOK, gin.H{"message": "already a member"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join room"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "joined room successfully"})
}

// GetRoomMembers получает список участников комнаты
func (h *RoomHandler) GetRoomMembers(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	isMember, err := h.db.IsMember(userID, roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check membership"})
		return
	}
	if !isMember {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not a member of this room"})
		return
	}

	members, err := h.db.GetRoomMembers(roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get members"})
		return
	}

	result := make([]gin.H, len(members))
	for i, member := range members {
		result[i] = gin.H{
			"id":         member.UserID,
			"username":   member.User.Username,
			"avatar_url": member.User.AvatarURL,
			"role":       member.Role,
			"joined_at":  member.JoinedAt,
		}
	}

	c.JSON(http.StatusOK, gin.H{"members": result})
}

// formatRoomResponse форматирует ответ для комнаты
func formatRoomResponse(room *models.Room) gin.H {
	return gin.H{
		"id":          room.ID,
		"name":        room.Name,
		"description": room.Description,
		"created_by":  room.CreatedBy,
		"created_at":  room.CreatedAt,
	}
}
