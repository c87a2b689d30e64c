package database

import (
	"errors"

	"github.com/teamroom/teamroom/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func (d *Database) Connect(dsn string) error {
	if dsn == "" {
		return errors.New("DATABASE_URL is not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return err
	}

	if err := Migrate(db); err != nil {
		return err
	}

	d.db = db

	return nil
}

// Migrate выполняет автомиграцию всех моделей. Вынесена отдельно,
// чтобы тесты могли поднять схему на sqlite.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Room{},
		&models.RoomMember{},
		&models.Message{},
		&models.File{},
		&models.FileVersion{},
		&models.Notification{},
		&models.PushSubscription{},
	)
}
