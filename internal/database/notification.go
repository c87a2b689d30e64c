package database

import (
	"errors"

	"github.com/google/uuid"
	"github.com/teamroom/teamroom/internal/models"
	"gorm.io/gorm"
)

func (d *Database) CreateNotifications(notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return d.db.Create(&notifications).Error
}

func (d *Database) GetUserNotifications(userID uuid.UUID, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := d.db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

func (d *Database) MarkNotificationRead(id, userID uuid.UUID) error {
	res := d.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SavePushSubscription перезаписывает подписку с тем же endpoint:
// браузер мог пересоздать её для другого пользователя.
func (d *Database) SavePushSubscription(sub *models.PushSubscription) error {
	err := d.db.Create(sub).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}
	return d.db.Model(&models.PushSubscription{}).
		Where("endpoint = ?", sub.Endpoint).
		Updates(map[string]interface{}{
			"user_id":    sub.UserID,
			"p256dh":     sub.P256dh,
			"auth":       sub.Auth,
			"revoked_at": nil,
		}).Error
}

func (d *Database) GetPushSubscriptions(userID uuid.UUID) ([]models.PushSubscription, error) {
	var subs []models.PushSubscription
	err := d.db.
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (d *Database) DeletePushSubscription(endpoint string) error {
	return d.db.Delete(&models.PushSubscription{}, "endpoint = ?", endpoint).Error
}
