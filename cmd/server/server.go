package server

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/teamroom/teamroom/internal/config"
	"github.com/teamroom/teamroom/internal/database"
	"github.com/teamroom/teamroom/internal/files"
	"github.com/teamroom/teamroom/internal/handlers"
	"github.com/teamroom/teamroom/internal/notify"
	"github.com/teamroom/teamroom/internal/relay"
	"github.com/teamroom/teamroom/internal/storage"
	"github.com/teamroom/teamroom/pkg/auth"
)

type Server struct {
	Config     *config.Config
	Router     *gin.Engine
	DB         *database.Database
	Redis      *redis.Client
	JWTManager *auth.JWTManager
	Hub        *relay.Hub
	Worker     *notify.Worker

	asynqClient *asynq.Client
}

func NewServer() *Server {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Config load failed: %v", err)
	}

	dbConn := &database.Database{}
	if err := dbConn.Connect(cfg.DatabaseURL); err != nil {
		logrus.Fatalf("Postgres connect failed: %v", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logrus.Fatalf("invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logrus.Fatalf("Redis connect failed: %v", err)
	}

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	blobs, err := storage.NewDiskStore(cfg.BlobDir)
	if err != nil {
		logrus.Fatalf("Blob store init failed: %v", err)
	}

	hub := relay.NewHub()
	go hub.Run()

	asynqRedis := asynq.RedisClientOpt{
		Addr:     redisOpts.Addr,
		Password: redisOpts.Password,
		DB:       redisOpts.DB,
	}
	asynqClient := asynq.NewClient(asynqRedis)
	enqueuer := notify.NewEnqueuer(asynqClient)
	notifier := notify.NewNotifier(dbConn, cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
	worker := notify.NewWorker(asynqRedis, dbConn, hub, notifier)

	manager := files.NewManager(dbConn, blobs, cfg.MaxUploadSize, cfg.AllowedExtensions)

	authH := handlers.NewAuthHandler(dbConn, jwtMgr, rdb)
	messageH := handlers.NewMessageHandler(dbConn, hub, enqueuer)
	httpMessageH := handlers.NewHTTPMessageHandler(messageH)
	roomH := handlers.NewRoomHandler(dbConn)
	fileH := handlers.NewFileHandler(dbConn, manager, hub, enqueuer, cfg.MaxUploadSize)
	notificationH := handlers.NewNotificationHandler(dbConn, notifier)
	wsH := handlers.NewWebSocketHandler(hub, messageH)

	router := gin.Default()
	if err := APIEndpoints(router, cfg, jwtMgr, rdb, authH, roomH, httpMessageH, fileH, notificationH, wsH); err != nil {
		logrus.Fatalf("Router setup failed: %v", err)
	}

	return &Server{
		Config:      cfg,
		Router:      router,
		DB:          dbConn,
		Redis:       rdb,
		JWTManager:  jwtMgr,
		Hub:         hub,
		Worker:      worker,
		asynqClient: asynqClient,
	}
}

func (s *Server) Run() {
	go s.Worker.Start()

	logrus.Infof("Server starting on port %s", s.Config.Port)
	if err := s.Router.Run(":" + s.Config.Port); err != nil {
		logrus.Fatalf("Server run error: %v", err)
	}
}

func (s *Server) Shutdown() {
	s.Worker.Shutdown()
	s.Hub.Stop()
	s.asynqClient.Close()
	s.Redis.Close()
}
