package server

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/teamroom/teamroom/internal/config"
	"github.com/teamroom/teamroom/internal/handlers"
	"github.com/teamroom/teamroom/internal/middleware"
	"github.com/teamroom/teamroom/pkg/auth"
)

func APIEndpoints(
	r *gin.Engine,
	cfg *config.Config,
	jwtMgr *auth.JWTManager,
	rdb *redis.Client,
	authH *handlers.AuthHandler,
	roomH *handlers.RoomHandler,
	messageH *handlers.HTTPMessageHandler,
	fileH *handlers.FileHandler,
	notificationH *handlers.NotificationHandler,
	wsH *handlers.WebSocketHandler,
) error {
	rateLimit, err := middleware.RateLimit(cfg.RateLimit)
	if err != nil {
		return err
	}

	// Auth endpoints
	authGroup := r.Group("/auth")
	authGroup.Use(rateLimit)
	{
		authGroup.POST("/register", authH.Register)
		authGroup.POST("/login", authH.Login)
		authGroup.POST("/logout", authH.Logout)
	}

	// API endpoints
	api := r.Group("/api")
	api.Use(rateLimit, middleware.AuthMiddleware(jwtMgr, rdb))
	{
		api.GET("/me", authH.GetMe)

		api.GET("/rooms", roomH.GetMyRooms)
		api.POST("/rooms", roomH.CreateRoom)
		api.POST("/rooms/:id/join", roomH.JoinRoom)
		api.GET("/rooms/:id/members", roomH.GetRoomMembers)

		api.GET("/messages", messageH.GetMessages)
		api.POST("/messages", messageH.PostMessage)

		api.GET("/files", fileH.ListFiles)
		api.POST("/files/upload", fileH.Upload)
		api.GET("/files/:id/versions", fileH.ListVersions)
		api.GET("/files/:id/versions/:version/download", fileH.Download)

		api.GET("/notifications", notificationH.GetNotifications)
		api.POST("/notifications/:id/read", notificationH.MarkRead)
		api.POST("/push/subscribe", notificationH.Subscribe)
		api.GET("/push/vapid", notificationH.VAPIDKey)
	}

	// WebSocket
	r.GET("/ws", middleware.WSAuthMiddleware(jwtMgr, rdb), wsH.HandleWebSocket)

	return nil
}
