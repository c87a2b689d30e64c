package database

import (
	"errors"

	"github.com/google/uuid"
	"github.com/teamroom/teamroom/internal/models"
	"gorm.io/gorm"
)

func (d *Database) CreateFile(file *models.File) error {
	return d.db.Create(file).Error
}

// GetRoomFile ищет файл строго в пределах комнаты: ссылка на чужой файл
// равнозначна отсутствию файла.
func (d *Database) GetRoomFile(fileID, roomID uuid.UUID) (*models.File, error) {
	var file models.File
	err := d.db.First(&file, "id = ? AND room_id = ?", fileID, roomID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &file, nil
}

func (d *Database) GetFile(id string) (*models.File, error) {
	var file models.File
	if err := d.db.First(&file, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &file, nil
}

// GetRoomFiles возвращает файлы комнаты с подгруженными версиями
// (по возрастанию номера), самые свежие файлы первыми.
func (d *Database) GetRoomFiles(roomID uuid.UUID) ([]models.File, error) {
	var files []models.File
	err := d.db.
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Preload("Versions", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("version ASC").Preload("Uploader")
		}).
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

// CreateFileVersion вставляет звено цепочки. Нарушение уникального индекса
// (file_id, version) возвращается как ErrDuplicateVersion, чтобы менеджер
// версий мог пересчитать номер и повторить.
func (d *Database) CreateFileVersion(version *models.FileVersion) error {
	if err := d.db.Create(version).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateVersion
		}
		return err
	}
	return nil
}

// CreateFileWithVersion атомарно создаёт File вместе с его первой версией:
// файл без единой версии существовать не должен.
func (d *Database) CreateFileWithVersion(file *models.File, version *models.FileVersion) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(file).Error; err != nil {
			return err
		}
		version.FileID = file.ID
		return tx.Create(version).Error
	})
}

// GetFileVersions — каноническая история версий, по возрастанию номера.
func (d *Database) GetFileVersions(fileID uuid.UUID) ([]models.FileVersion, error) {
	var versions []models.FileVersion
	err := d.db.
		Where("file_id = ?", fileID).
		Order("version ASC").
		Preload("Uploader").
		Find(&versions).Error
	if err != nil {
		return nil, err
	}
	return versions, nil
}

func (d *Database) GetFileVersion(fileID uuid.UUID, version int) (*models.FileVersion, error) {
	var fv models.FileVersion
	err := d.db.
		Where("file_id = ? AND version = ?", fileID, version).
		Preload("Uploader").
		First(&fv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &fv, nil
}

// MaxFileVersion возвращает наибольший существующий номер версии файла,
// 0 — если версий ещё нет.
func (d *Database) MaxFileVersion(fileID uuid.UUID) (int, error) {
	var max *int
	err := d.db.Model(&models.FileVersion{}).
		Where("file_id = ?", fileID).
		Select("MAX(version)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func (d *Database) TouchFile(fileID uuid.UUID) error {
	return d.db.Model(&models.File{}).Where("id = ?", fileID).Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}
