package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/teamroom/teamroom/internal/database"
	"github.com/teamroom/teamroom/internal/files"
	"github.com/teamroom/teamroom/internal/handlers/dto"
	"github.com/teamroom/teamroom/internal/middleware"
	"github.com/teamroom/teamroom/internal/models"
	"github.com/teamroom/teamroom/internal/notify"
	"github.com/teamroom/teamroom/internal/relay"
)

type FileHandler struct {
	db       *database.Database
	manager  *files.Manager
	hub      *relay.Hub
	enqueuer *notify.Enqueuer
	maxSize  int64
}

func NewFileHandler(db *database.Database, manager *files.Manager, hub *relay.Hub, enqueuer *notify.Enqueuer, maxSize int64) *FileHandler {
	return &FileHandler{
		db:       db,
		manager:  manager,
		hub:      hub,
		enqueuer: enqueuer,
		maxSize:  maxSize,
	}
}

// Upload принимает multipart-загрузку: POST /api/files/upload
// (file, room_id, опционально file_id для обновления, опционально comment)
func (h *FileHandler) Upload(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	roomID, err := uuid.Parse(c.PostForm("room_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room_id"})
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

	var fileID *uuid.UUID
	if raw := c.PostForm("file_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file_id"})
			return
		}
		fileID = &id
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	src, err := header.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
		return
	}
	defer src.Close()

	// Читаем не больше потолка + 1 байт: этого хватает, чтобы отличить
	// "ровно лимит" от "превышен", не буферизуя гигабайты
	data, err := io.ReadAll(io.LimitReader(src, h.maxSize+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
		return
	}

	version, err := h.manager.CreateOrUpdate(files.Upload{
		RoomID:       roomID,
		UploaderID:   userID,
		FileID:       fileID,
		Data:         data,
		OriginalName: header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
		Comment:      c.PostForm("comment"),
	})
	if err != nil {
		switch {
		case errors.Is(err, files.ErrPayloadTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds size limit"})
		case errors.Is(err, files.ErrUnsupportedType):
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "file type is not allowed"})
		case errors.Is(err, files.ErrEmptyPayload):
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is empty"})
		case errors.Is(err, files.ErrFileNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
		}
		return
	}

	uploader, err := h.db.GetUser(userID.String())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve uploader"})
		return
	}

	h.broadcastNewFile(roomID, userID, version, uploader)

	h.enqueuer.NotifyRoom(roomID, userID, models.NotificationNewFile,
		uploader.Username+" uploaded "+version.OriginalName, version.Label())

	c.JSON(http.StatusCreated, formatVersion(version, uploader))
}

// broadcastNewFile публикует new-file, чтобы клиенты обновили список файлов
func (h *FileHandler) broadcastNewFile(roomID, userID uuid.UUID, version *models.FileVersion, uploader *models.User) {
	payload := dto.NewFilePayload{
		FileID:       version.FileID,
		Version:      version.Label(),
		OriginalName: version.OriginalName,
		Uploader: dto.UserInfo{
			ID:        uploader.ID,
			Username:  uploader.Username,
			AvatarURL: uploader.AvatarURL,
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal new-file event")
		return
	}

	ev := relay.Event{
		Type:      relay.TypeNewFile,
		RoomID:    &roomID,
		UserID:    userID,
		Data:      data,
		Timestamp: time.Now(),
	}

	if err := h.hub.PublishEvent(roomID, ev); err != nil {
		logrus.WithError(err).Error("Failed to publish new-file event")
	}
}

// ListFiles отдаёт файлы комнаты с аннотацией: GET /api/files?roomId=
func (h *FileHandler) ListFiles(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	roomID, err := uuid.Parse(c.Query("roomId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid roomId"})
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

	summaries, err := h.manager.ListFiles(roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list files"})
		return
	}

	result := make([]dto.FileSummaryResponse, len(summaries))
	for i, s := range summaries {
		result[i] = dto.FileSummaryResponse{
			ID:            s.File.ID,
			RoomID:        s.File.RoomID,
			Name:          s.File.Name,
			OriginalName:  s.File.OriginalName,
			CreatedAt:     s.File.CreatedAt,
			UpdatedAt:     s.File.UpdatedAt,
			VersionCount:  s.VersionCount,
			LatestVersion: *formatVersion(&s.Latest, &s.Latest.Uploader),
		}
	}

	c.JSON(http.StatusOK, gin.H{"files": result})
}

// ListVersions — каноническая история версий: GET /api/files/:id/versions
func (h *FileHandler) ListVersions(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return
	}

	file, err := h.db.GetFile(fileID.String())
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load file"})
		return
	}

	isMember, err := h.db.IsMember(userID, file.RoomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check membership"})
		return
	}
	if !isMember {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not a member of this room"})
		return
	}

	versions, err := h.manager.ListVersions(fileID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list versions"})
		return
	}

	result := make([]dto.FileVersionResponse, len(versions))
	for i := range versions {
		result[i] = *formatVersion(&versions[i], &versions[i].Uploader)
	}

	c.JSON(http.StatusOK, gin.H{"versions": result})
}

// Download стримит блоб версии: GET /api/files/:id/versions/:version/download
func (h *FileHandler) Download(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return
	}

	versionNum, err := strconv.Atoi(c.Param("version"))
	if err != nil || versionNum < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid version"})
		return
	}

	file, err := h.db.GetFile(fileID.String())
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load file"})
		return
	}

	isMember, err := h.db.IsMember(userID, file.RoomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check membership"})
		return
	}
	if !isMember {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not a member of this room"})
		return
	}

	version, blob, err := h.manager.OpenVersion(fileID, versionNum)
	if err != nil {
		if errors.Is(err, files.ErrFileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "version not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open version"})
		return
	}
	defer blob.Close()

	c.Header("Content-Disposition", `attachment; filename="`+version.OriginalName+`"`)
	c.DataFromReader(http.StatusOK, version.Size, version.MimeType, blob, nil)
}

func formatVersion(v *models.FileVersion, uploader *models.User) *dto.FileVersionResponse {
	return &dto.FileVersionResponse{
		ID:           v.ID,
		FileID:       v.FileID,
		Version:      v.Label(),
		OriginalName: v.OriginalName,
		Size:         v.Size,
		MimeType:     v.MimeType,
		Comment:      v.Comment,
		Hash:         v.Hash,
		CreatedAt:    v.CreatedAt,
		Uploader: dto.UserInfo{
			ID:        uploader.ID,
			Username:  uploader.Username,
			AvatarURL: uploader.AvatarURL,
		},
	}
}
