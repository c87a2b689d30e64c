package files

import "errors"

var (
	// ErrPayloadTooLarge — блоб превышает настроенный потолок размера
	ErrPayloadTooLarge = errors.New("files: payload exceeds size limit")
	// ErrUnsupportedType — расширение или содержимое вне allow-list
	ErrUnsupportedType = errors.New("files: unsupported file type")
	// ErrFileNotFound — target file не существует в этой комнате
	ErrFileNotFound = errors.New("files: file not found")
	// ErrEmptyPayload — пустая загрузка
	ErrEmptyPayload = errors.New("files: empty payload")
)
