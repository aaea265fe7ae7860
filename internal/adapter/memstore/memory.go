// Package memstore keeps a serialized parser in memory, for tests and
// one-shot runs that should not touch disk.
package memstore

import (
	"encoding/json"
	"fmt"
	"sync"

	"nlu/internal/domain"
)

type MemoryStore struct {
	mu     sync.RWMutex
	parser []byte
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SaveParser stores an encoded copy of d, so later changes to the
// caller's maps do not leak into the store.
func (s *MemoryStore) SaveParser(d domain.ParserDict) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode parser: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("memory store is closed")
	}
	s.parser = data
	return nil
}

func (s *MemoryStore) LoadParser() (domain.ParserDict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var d domain.ParserDict
	if s.closed {
		return d, fmt.Errorf("memory store is closed")
	}
	if s.parser == nil {
		return d, fmt.Errorf("%w: no parser stored", domain.ErrNotFitted)
	}
	if err := json.Unmarshal(s.parser, &d); err != nil {
		return d, fmt.Errorf("failed to decode parser: %w", err)
	}
	return d, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.parser = nil
	return nil
}
