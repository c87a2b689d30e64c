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
	"github.com/teamroom/teamroom/internal/notify"
)

type NotificationHandler struct {
	db       *database.Database
	notifier *notify.Notifier
}

func NewNotificationHandler(db *database.Database, notifier *notify.Notifier) *NotificationHandler {
	return &NotificationHandler{db: db, notifier: notifier}
}

// GetNotifications отдаёт уведомления пользователя, свежие первыми
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	notifications, err := h.db.GetUserNotifications(userID, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get notifications"})
		return
	}

	result := make([]gin.H, len(notifications))
	for i, n := range notifications {
		result[i] = gin.H{
			"id":         n.ID,
			"type":       n.Type,
			"title":      n.Title,
			"content":    n.Content,
			"is_read":    n.IsRead,
			"created_at": n.CreatedAt,
		}
	}

	c.JSON(http.StatusOK, gin.H{"notifications": result})
}

// MarkRead помечает уведомление прочитанным
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}

	if err := h.db.MarkNotificationRead(id, userID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark notification"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "marked as read"})
}

// Subscribe сохраняет Web Push подписку браузера
func (h *NotificationHandler) Subscribe(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	var req dto.PushSubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub := &models.PushSubscription{
		UserID:    userID,
		Endpoint:  req.Endpoint,
		P256dh:    req.P256dh,
		Auth:      req.Auth,
		CreatedAt: time.Now(),
	}

	if err := h.db.SavePushSubscription(sub); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save subscription"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "subscribed"})
}

// VAPIDKey отдаёт публичный VAPID-ключ для фронтенда
func (h *NotificationHandler) VAPIDKey(c *gin.Context) {
	key := h.notifier.VAPIDPublicKey()
	if key == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "push notifications are disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key})
}
