package local

import (
	"sync"
	"time"
)

// Storage is the key/value store holding sessions and reset tokens.
// The gofiber storage drivers satisfy it. Get returns nil, nil for a missing key.
type Storage interface {
	Get(key string) ([]byte, error)
	Set(key string, val []byte, exp time.Duration) error
	Delete(key string) error
}

type memoryEntry struct {
	val     []byte
	expires time.Time
}

// MemoryStorage is an in-process Storage with expiry.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	now  func() time.Time
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string]memoryEntry), now: time.Now}
}

// Get returns a copy of the value stored under key.
func (s *MemoryStorage) Get(key string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()

	if !ok || (!e.expires.IsZero() && !s.now().Before(e.expires)) {
		return nil, nil
	}

	out := make([]byte, len(e.val))
	copy(out, e.val)

	return out, nil
}

// Set stores a copy of val. A zero exp never expires.
func (s *MemoryStorage) Set(key string, val []byte, exp time.Duration) error {
	e := memoryEntry{val: make([]byte, len(val))}
	copy(e.val, val)

	if exp > 0 {
		e.expires = s.now().Add(exp)
	}

	s.mu.Lock()
	s.data[key] = e
	s.mu.Unlock()

	return nil
}

// Delete removes key.
func (s *MemoryStorage) Delete(key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()

	return nil
}
