package dto

import (
	"github.com/google/uuid"
	"time"
)

// FileVersionResponse — одно звено истории версий.
type FileVersionResponse struct {
	ID           uuid.UUID `json:"id"`
	FileID       uuid.UUID `json:"file_id"`
	Version      string    `json:"version"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mime_type"`
	Comment      string    `json:"comment,omitempty"`
	Hash         string    `json:"hash"`
	CreatedAt    time.Time `json:"created_at"`
	Uploader     UserInfo  `json:"uploader"`
}

// FileSummaryResponse — файл для списков: число версий плюс метаданные
// последней версии.
type FileSummaryResponse struct {
	ID            uuid.UUID           `json:"id"`
	RoomID        uuid.UUID           `json:"room_id"`
	Name          string              `json:"name"`
	OriginalName  string              `json:"original_name"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	VersionCount  int                 `json:"version_count"`
	LatestVersion FileVersionResponse `json:"latest_version"`
}

// NewFilePayload — тело события new-file.
type NewFilePayload struct {
	FileID       uuid.UUID `json:"file_id"`
	Version      string    `json:"version"`
	OriginalName string    `json:"original_name"`
	Uploader     UserInfo  `json:"uploader"`
}

type PushSubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256dh   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}
