package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Notification struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Type      string    `gorm:"not null"`
	Title     string    `gorm:"not null"`
	Content   string
	IsRead    bool `gorm:"not null;default:false"`
	CreatedAt time.Time

	User User `gorm:"foreignKey:UserID"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

const (
	NotificationNewMessage = "new_message"
	NotificationNewFile    = "new_file"
)

// PushSubscription — Web Push подписка браузера пользователя.
type PushSubscription struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Endpoint  string    `gorm:"uniqueIndex;not null"`
	P256dh    string    `gorm:"not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time
	RevokedAt *time.Time
}

func (s *PushSubscription) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
