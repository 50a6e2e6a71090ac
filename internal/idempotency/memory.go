package idempotency

import (
	"context"
	"sync"
)

type recordKey struct {
	recipient string
	key       string
}

// MemoryStore keeps records in process memory. Records never expire.
type MemoryStore struct {
	mu      sync.Mutex
	records map[recordKey]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[recordKey]string)}
}

func (s *MemoryStore) Claim(_ context.Context, recipient, key, messageID string) (string, bool, error) {
	if err := validate(recipient, key); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := recordKey{recipient: recipient, key: key}
	if existing, ok := s.records[k]; ok {
		return existing, false, nil
	}
	s.records[k] = messageID
	return messageID, true, nil
}

func (s *MemoryStore) Lookup(_ context.Context, recipient, key string) (string, bool, error) {
	if err := validate(recipient, key); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.records[recordKey{recipient: recipient, key: key}]
	return id, ok, nil
}

func (s *MemoryStore) Release(_ context.Context, recipient, key, messageID string) error {
	if err := validate(recipient, key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := recordKey{recipient: recipient, key: key}
	if s.records[k] == messageID {
		delete(s.records, k)
	}
	return nil
}

// Len returns the number of records held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
