package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// File — логическая идентичность документа в комнате. Создаётся один раз,
// при первой загрузке; повторные загрузки только добавляют версии.
type File struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoomID       uuid.UUID `gorm:"type:uuid;not null;index"`
	Name         string    `gorm:"not null"`
	OriginalName string    `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Связи
	Room     Room          `gorm:"foreignKey:RoomID"`
	Versions []FileVersion `gorm:"foreignKey:FileID"`
}

func (f *File) BeforeCreate(*gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// FileVersion — одно звено цепочки версий. Номера версий строго возрастают
// для данного файла и никогда не переиспользуются; уникальный индекс на
// (file_id, version) закрывает гонку двух одновременных загрузок.
type FileVersion struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	FileID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_file_versions_file_version"`
	Version      int       `gorm:"not null;uniqueIndex:idx_file_versions_file_version"`
	StoredName   string    `gorm:"not null"`
	OriginalName string    `gorm:"not null"`
	Size         int64     `gorm:"not null"`
	MimeType     string    `gorm:"not null"`
	StorageKey   *string
	Comment      string
	Hash         string `gorm:"not null;index"`
	UploaderID   uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt    time.Time

	File     File `gorm:"foreignKey:FileID"`
	Uploader User `gorm:"foreignKey:UploaderID"`
}

func (v *FileVersion) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// Label возвращает человекочитаемую метку версии: "v1", "v2", ...
func (v FileVersion) Label() string {
	return fmt.Sprintf("v%d", v.Version)
}
