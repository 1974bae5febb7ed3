package billing

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage keeps receipt files
type Storage interface {
	// Save writes data under name and returns the stored path
	Save(name string, data []byte) (string, error)

	// Get reads a stored file
	Get(path string) ([]byte, error)

	// Delete removes a stored file
	Delete(path string) error
}

// LocalStorage keeps receipts in a directory on disk
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates basePath if needed and returns a LocalStorage on it
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// resolve maps a stored path to a file inside basePath. Paths with a
// directory component are refused.
func (l *LocalStorage) resolve(path string) (string, error) {
	if path == "" || path != filepath.Base(path) || path == "." || path == ".." {
		return "", fmt.Errorf("invalid storage path %q", path)
	}
	return filepath.Join(l.basePath, path), nil
}

// Save writes a receipt file
func (l *LocalStorage) Save(name string, data []byte) (string, error) {
	full, err := l.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return name, nil
}

// Get reads a receipt file
func (l *LocalStorage) Get(path string) ([]byte, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a receipt file
func (l *LocalStorage) Delete(path string) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
