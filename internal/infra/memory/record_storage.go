package memory

import (
	"context"
	"sync"
)

// RecordStorage keeps named string records in a map. Contents are lost on exit.
type RecordStorage struct {
	mu      sync.RWMutex
	records map[string]string
}

func NewRecordStorage() *RecordStorage {
	return &RecordStorage{records: make(map[string]string)}
}

func (s *RecordStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key]
	return v, ok, nil
}

func (s *RecordStorage) SetItem(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = value
	return nil
}
