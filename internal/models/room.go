package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Room struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string    `gorm:"not null"`
	Description string
	CreatedBy   uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Связи
	Members  []RoomMember `gorm:"foreignKey:RoomID"`
	Messages []Message    `gorm:"foreignKey:RoomID"`
	Files    []File       `gorm:"foreignKey:RoomID"`
}

func (r *Room) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RoomMember — строка членства. Сам факт её существования открывает
// пользователю канал комнаты и право писать сообщения/файлы.
type RoomMember struct {
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoomID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Role     string    `gorm:"not null;default:'member'"`
	JoinedAt time.Time

	User User `gorm:"foreignKey:UserID"`
	Room Room `gorm:"foreignKey:RoomID"`
}

const (
	RoleMember = "member"
	RoleOwner  = "owner"
)
