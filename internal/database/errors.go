package database

import "errors"

var (
	// ErrNotFound — запрошенная запись не найдена
	ErrNotFound = errors.New("database: record not found")
	// ErrAlreadyMember — пара (user_id, room_id) уже существует;
	// вызывающие обрабатывают как безвредный no-op
	ErrAlreadyMember = errors.New("database: user is already a room member")
	// ErrDuplicateVersion — нарушен уникальный индекс (file_id, version)
	ErrDuplicateVersion = errors.New("database: duplicate file version")
)
