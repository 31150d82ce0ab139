package settings

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory settings store for demo/development mode.
type MemoryStore struct {
	consumers map[string]*ConsumerSettings
	lenders   map[string]*LenderSettings
	mu        sync.RWMutex
}

// NewMemoryStore creates a new in-memory settings store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		consumers: make(map[string]*ConsumerSettings),
		lenders:   make(map[string]*LenderSettings),
	}
}

func (m *MemoryStore) GetConsumer(ctx context.Context, consumerID string) (*ConsumerSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.consumers[consumerID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) PutConsumer(ctx context.Context, s *ConsumerSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *s
	m.consumers[s.ConsumerID] = &cp
	return nil
}

func (m *MemoryStore) GetLender(ctx context.Context, lenderID string) (*LenderSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.lenders[lenderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) PutLender(ctx context.Context, s *LenderSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *s
	m.lenders[s.LenderID] = &cp
	return nil
}
