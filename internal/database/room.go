package database

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/teamroom/teamroom/internal/models"
	"gorm.io/gorm"
)

func (d *Database) CreateRoom(room *models.Room) error {
	return d.db.Create(room).Error
}

func (d *Database) GetRoom(id string) (*models.Room, error) {
	var room models.Room
	if err := d.db.First(&room, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &room, nil
}

// IsMember — единственный гейт авторизации для комнаты: членство бинарно,
// строка либо есть, либо нет.
func (d *Database) IsMember(userID, roomID uuid.UUID) (bool, error) {
	var count int64
	err := d.db.Model(&models.RoomMember{}).
		Where("user_id = ? AND room_id = ?", userID, roomID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddMember создаёт строку членства. Повторная вставка той же пары
// упирается в составной первичный ключ и возвращает ErrAlreadyMember.
func (d *Database) AddMember(userID, roomID uuid.UUID, role string) error {
	member := models.RoomMember{
		UserID:   userID,
		RoomID:   roomID,
		Role:     role,
		JoinedAt: time.Now(),
	}
	if err := d.db.Create(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAlreadyMember
		}
		return err
	}
	return nil
}

func (d *Database) RemoveMember(userID, roomID uuid.UUID) error {
	return d.db.Delete(&models.RoomMember{}, "user_id = ? AND room_id = ?", userID, roomID).Error
}

// GetUserRooms возвращает комнаты пользователя, самые свежие первыми.
func (d *Database) GetUserRooms(userID uuid.UUID) ([]models.Room, error) {
	var rooms []models.Room
	err := d.db.
		Joins("JOIN room_members ON room_members.room_id = rooms.id").
		Where("room_members.user_id = ?", userID).
		Order("rooms.created_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (d *Database) GetRoomMembers(roomID uuid.UUID) ([]models.RoomMember, error) {
	var members []models.RoomMember
	err := d.db.
		Where("room_id = ?", roomID).
		Order("joined_at ASC").
		Preload("User").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

// GetRoomMemberIDs — облегчённый вариант для рассылки уведомлений.
func (d *Database) GetRoomMemberIDs(roomID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := d.db.Model(&models.RoomMember{}).
		Where("room_id = ?", roomID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
