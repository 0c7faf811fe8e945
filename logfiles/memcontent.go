package logfiles

import (
	"context"
	"sort"
	"sync"

	"github.com/Hardikdarji921/esp32-datalogger/errors"
)

// MemContentStore is the in-memory ContentStore used by tests and
// single-node dev.
type MemContentStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemContentStore creates an empty in-memory content store.
func NewMemContentStore() *MemContentStore {
	return &MemContentStore{objects: make(map[string][]byte)}
}

func (s *MemContentStore) Put(_ context.Context, name string, data []byte) error {
	if name == "" {
		return errors.WrapInvalid(errors.ErrInvalidPayload,
			"LogContent", "Put", "name required")
	}

	s.mu.Lock()
	s.objects[name] = append([]byte(nil), data...)
	s.mu.Unlock()
	return nil
}

func (s *MemContentStore) Get(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[name]
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrKeyNotFound,
			"LogContent", "Get", "lookup "+name)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemContentStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	delete(s.objects, name)
	s.mu.Unlock()
	return nil
}

func (s *MemContentStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.objects))
	for name := range s.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
