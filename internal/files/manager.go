package files

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/teamroom/teamroom/internal/database"
	"github.com/teamroom/teamroom/internal/models"
	"github.com/teamroom/teamroom/internal/storage"
)

// Manager ведёт цепочки версий файлов: превращает повторные загрузки одного
// логического файла в упорядоченную историю версий v1, v2, ...
type Manager struct {
	db      *database.Database
	blobs   storage.BlobStore
	maxSize int64
	allowed map[string]struct{}

	// Назначение номера версии сериализуется на файл: мьютекс закрывает
	// гонку "посчитали существующие версии — вставили" внутри процесса,
	// уникальный индекс (file_id, version) — между процессами.
	// Запись живёт, пока на неё есть держатели; последний убирает её из map.
	mu        sync.Mutex
	fileLocks map[uuid.UUID]*fileLock
}

type fileLock struct {
	sync.Mutex
	refs int
}

func NewManager(db *database.Database, blobs storage.BlobStore, maxSize int64, allowedExts []string) *Manager {
	allowed := make(map[string]struct{}, len(allowedExts))
	for _, ext := range allowedExts {
		allowed[strings.ToLower(ext)] = struct{}{}
	}
	return &Manager{
		db:        db,
		blobs:     blobs,
		maxSize:   maxSize,
		allowed:   allowed,
		fileLocks: make(map[uuid.UUID]*fileLock),
	}
}

// Upload — одна загрузка, новая или "обновить существующий файл".
type Upload struct {
	RoomID       uuid.UUID
	UploaderID   uuid.UUID
	FileID       *uuid.UUID // nil — создать новый File
	Data         []byte
	OriginalName string
	MimeType     string // заявленный клиентом; содержимое всё равно проверяется
	Comment      string
}

// FileSummary — файл с аннотацией для списков: число версий и метаданные
// последней версии.
type FileSummary struct {
	File         models.File
	VersionCount int
	Latest       models.FileVersion
}

// CreateOrUpdate валидирует загрузку, пишет блоб и только после этого
// коммитит строку FileVersion. Порядок жёсткий: сначала блоб, потом
// метаданные — никогда наоборот.
func (m *Manager) CreateOrUpdate(up Upload) (*models.FileVersion, error) {
	if len(up.Data) == 0 {
		return nil, ErrEmptyPayload
	}
	if int64(len(up.Data)) > m.maxSize {
		return nil, ErrPayloadTooLarge
	}

	ext := strings.ToLower(filepath.Ext(up.OriginalName))
	if _, ok := m.allowed[ext]; !ok {
		return nil, ErrUnsupportedType
	}

	// Расширению не доверяем: содержимое тоже должно попадать в allow-list
	detected := mimetype.Detect(up.Data)
	if !m.contentAllowed(detected) {
		return nil, ErrUnsupportedType
	}

	mime := up.MimeType
	if mime == "" {
		mime = detected.String()
	}

	sum := sha256.Sum256(up.Data)
	hash := hex.EncodeToString(sum[:])

	if up.FileID == nil {
		return m.createNew(up, ext, mime, hash)
	}
	return m.appendVersion(up, *up.FileID, ext, mime, hash)
}

func (m *Manager) createNew(up Upload, ext, mime, hash string) (*models.FileVersion, error) {
	storedName := sanitizeName(up.OriginalName)
	key := newStorageKey(up.RoomID, ext)

	if err := m.blobs.Put(key, up.Data); err != nil {
		logrus.WithError(err).WithField("room_id", up.RoomID).Error("Blob write failed for new file")
		return nil, fmt.Errorf("store blob: %w", err)
	}

	file := &models.File{
		RoomID:       up.RoomID,
		Name:         storedName,
		OriginalName: up.OriginalName,
	}
	version := &models.FileVersion{
		Version:      1,
		StoredName:   storedName,
		OriginalName: up.OriginalName,
		Size:         int64(len(up.Data)),
		MimeType:     mime,
		StorageKey:   &key,
		Comment:      up.Comment,
		Hash:         hash,
		UploaderID:   up.UploaderID,
		CreatedAt:    time.Now(),
	}

	if err := m.db.CreateFileWithVersion(file, version); err != nil {
		// Метаданные не закоммитились — блоб осиротел, подчищаем
		m.discardBlob(key)
		return nil, fmt.Errorf("commit file version: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"room_id": up.RoomID,
		"file_id": file.ID,
		"version": version.Label(),
		"size":    version.Size,
	}).Info("File created")

	return version, nil
}

func (m *Manager) appendVersion(up Upload, fileID uuid.UUID, ext, mime, hash string) (*models.FileVersion, error) {
	file, err := m.db.GetRoomFile(fileID, up.RoomID)
	if err != nil {
		if err == database.ErrNotFound {
			return nil, ErrFileNotFound
		}
		return nil, err
	}

	lock := m.lockFor(file.ID)
	lock.Lock()
	defer m.releaseLock(file.ID, lock)

	key := newStorageKey(up.RoomID, ext)
	if err := m.blobs.Put(key, up.Data); err != nil {
		logrus.WithError(err).WithField("file_id", file.ID).Error("Blob write failed for version")
		return nil, fmt.Errorf("store blob: %w", err)
	}

	version := &models.FileVersion{
		FileID:       file.ID,
		StoredName:   sanitizeName(up.OriginalName),
		OriginalName: up.OriginalName,
		Size:         int64(len(up.Data)),
		MimeType:     mime,
		StorageKey:   &key,
		Comment:      up.Comment,
		Hash:         hash,
		UploaderID:   up.UploaderID,
		CreatedAt:    time.Now(),
	}

	// Одна повторная попытка: другой процесс мог успеть занять номер
	for attempt := 0; attempt < 2; attempt++ {
		max, err := m.db.MaxFileVersion(file.ID)
		if err != nil {
			m.discardBlob(key)
			return nil, fmt.Errorf("next version: %w", err)
		}
		version.Version = max + 1

		err = m.db.CreateFileVersion(version)
		if err == nil {
			if terr := m.db.TouchFile(file.ID); terr != nil {
				logrus.WithError(terr).WithField("file_id", file.ID).Warn("Failed to touch file")
			}
			logrus.WithFields(logrus.Fields{
				"file_id": file.ID,
				"version": version.Label(),
				"size":    version.Size,
			}).Info("File version added")
			return version, nil
		}
		if err != database.ErrDuplicateVersion {
			m.discardBlob(key)
			return nil, fmt.Errorf("commit file version: %w", err)
		}
	}

	m.discardBlob(key)
	return nil, fmt.Errorf("commit file version: %w", database.ErrDuplicateVersion)
}

// ListFiles возвращает файлы комнаты с числом версий и метаданными последней.
func (m *Manager) ListFiles(roomID uuid.UUID) ([]FileSummary, error) {
	filesList, err := m.db.GetRoomFiles(roomID)
	if err != nil {
		return nil, err
	}

	summaries := make([]FileSummary, 0, len(filesList))
	for _, f := range filesList {
		if len(f.Versions) == 0 {
			continue
		}
		summaries = append(summaries, FileSummary{
			File:         f,
			VersionCount: len(f.Versions),
			Latest:       f.Versions[len(f.Versions)-1],
		})
	}
	return summaries, nil
}

// ListVersions — история версий файла по возрастанию номера.
func (m *Manager) ListVersions(fileID uuid.UUID) ([]models.FileVersion, error) {
	if _, err := m.db.GetFile(fileID.String()); err != nil {
		if err == database.ErrNotFound {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return m.db.GetFileVersions(fileID)
}

// OpenVersion отдаёт метаданные версии и reader её блоба.
func (m *Manager) OpenVersion(fileID uuid.UUID, version int) (*models.FileVersion, io.ReadCloser, error) {
	fv, err := m.db.GetFileVersion(fileID, version)
	if err != nil {
		if err == database.ErrNotFound {
			return nil, nil, ErrFileNotFound
		}
		return nil, nil, err
	}
	if fv.StorageKey == nil {
		return nil, nil, fmt.Errorf("version %s has no stored blob", fv.Label())
	}
	rc, err := m.blobs.Open(*fv.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return fv, rc, nil
}

func (m *Manager) contentAllowed(detected *mimetype.MIME) bool {
	// mimetype строит цепочку от конкретного к родителю: docx -> zip -> octet-stream.
	// Достаточно, чтобы хоть одно звено попало в allow-list.
	for mt := detected; mt != nil; mt = mt.Parent() {
		if _, ok := m.allowed[strings.ToLower(mt.Extension())]; ok {
			return true
		}
	}
	return false
}

func (m *Manager) lockFor(fileID uuid.UUID) *fileLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.fileLocks[fileID]
	if !ok {
		lock = &fileLock{}
		m.fileLocks[fileID] = lock
	}
	lock.refs++
	return lock
}

func (m *Manager) releaseLock(fileID uuid.UUID, lock *fileLock) {
	lock.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(m.fileLocks, fileID)
	}
}

func (m *Manager) discardBlob(key string) {
	if err := m.blobs.Delete(key); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Failed to delete orphaned blob")
	}
}

func newStorageKey(roomID uuid.UUID, ext string) string {
	return roomID.String() + "/" + uuid.New().String() + ext
}

// sanitizeName приводит отображаемое имя к безопасному виду: base без пути,
// недопустимые символы заменяются подчёркиванием.
func sanitizeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "file"
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_', r == ' ':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.TrimSpace(b.String())
}
