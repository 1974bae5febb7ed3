package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zombor/billed/internal/bill"
)

// UserKey is the storage key holding the serialized session user
const UserKey = "user"

// ErrNoUser is returned when no user is stored
var ErrNoUser = errors.New("no user in session")

// decodeUser parses the serialized {type, email} user object
func decodeUser(raw string) (bill.User, error) {
	if raw == "" {
		return bill.User{}, ErrNoUser
	}
	var user bill.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return bill.User{}, fmt.Errorf("unmarshaling session user: %w", err)
	}
	return user, nil
}

// MemoryStore is a key/value session store kept in memory
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]string)}
}

// NewMemoryStoreWithUser creates a MemoryStore holding user
func NewMemoryStoreWithUser(user bill.User) (*MemoryStore, error) {
	m := NewMemoryStore()
	if err := m.SetUser(user); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MemoryStore) GetItem(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.items[key]
}

func (m *MemoryStore) SetItem(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
}

func (m *MemoryStore) RemoveItem(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
}

// SetUser serializes user under UserKey
func (m *MemoryStore) SetUser(user bill.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshaling session user: %w", err)
	}
	m.SetItem(UserKey, string(data))
	return nil
}

// CurrentUser implements bill.SessionStore
func (m *MemoryStore) CurrentUser() (bill.User, error) {
	return decodeUser(m.GetItem(UserKey))
}

// FileStore reads session items from a JSON object on disk, e.g.
//
//	{"user": "{\"type\":\"Employee\",\"email\":\"a@a\"}"}
//
// The file is read on every call so an external login can replace it.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore for path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session file: %w", err)
	}
	items := make(map[string]string)
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshaling session file: %w", err)
	}
	return items, nil
}

// CurrentUser implements bill.SessionStore
func (f *FileStore) CurrentUser() (bill.User, error) {
	items, err := f.load()
	if err != nil {
		return bill.User{}, err
	}
	return decodeUser(items[UserKey])
}

// SetUser writes user to the session file, keeping other items
func (f *FileStore) SetUser(user bill.User) error {
	items, err := f.load()
	if err != nil {
		return err
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshaling session user: %w", err)
	}
	items[UserKey] = string(data)

	out, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshaling session file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	if err := os.WriteFile(f.path, out, 0600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	return nil
}
