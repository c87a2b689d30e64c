package database

import (
	"errors"

	"github.com/teamroom/teamroom/internal/models"
	"gorm.io/gorm"
)

func (d *Database) SaveMessage(message *models.Message) error {
	return d.db.Create(message).Error
}

func (d *Database) GetMessage(id string) (*models.Message, error) {
	var message models.Message
	if err := d.db.Preload("User").First(&message, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &message, nil
}

// GetRoomMessages получает историю комнаты по возрастанию created_at
// (при равенстве — по порядку вставки). Отдаются последние limit сообщений.
//
// Между этим чтением и привязкой соединения к каналу есть окно: сообщение,
// сохранённое в этот промежуток, живой канал может не увидеть, оно всплывёт
// только при следующем чтении истории. Гонка задокументирована, не устраняется.
func (d *Database) GetRoomMessages(roomID string, limit int) ([]models.Message, error) {
	var messages []models.Message

	err := d.db.
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Limit(limit).
		Preload("User").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Разворачиваем порядок, чтобы старые сообщения были первыми
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
