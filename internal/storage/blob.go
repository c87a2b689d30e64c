package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// BlobStore хранит бинарные полезные нагрузки версий файлов,
// адресуемые ключом хранения.
type BlobStore interface {
	Put(key string, data []byte) error
	Open(key string) (io.ReadCloser, error)
	Delete(key string) error
}

// DiskStore кладёт блобы в каталог на диске; ключ — относительный путь.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blob store: create root dir: %w", err)
	}
	return &DiskStore{root: root}, nil
}

func (s *DiskStore) path(key string) (string, error) {
	// Ключи генерируются сервером, но на всякий случай не даём выйти за root
	clean := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("blob store: invalid key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *DiskStore) Put(key string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("blob store: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("blob store: %w", err)
	}
	return nil
}

func (s *DiskStore) Open(key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}
	return f, nil
}

func (s *DiskStore) Delete(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("blob store: %w", err)
	}
	return nil
}
