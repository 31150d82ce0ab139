package history

import (
	"context"
	"sort"
	"sync"

	"github.com/loticredit/loticredit/internal/pagination"
)

// MemoryStore is an in-memory snapshot store for demo/development mode.
type MemoryStore struct {
	byConsumer map[string][]*Snapshot // newest first
	mu         sync.RWMutex
}

// NewMemoryStore creates a new in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byConsumer: make(map[string][]*Snapshot)}
}

func (m *MemoryStore) Create(ctx context.Context, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *snap
	list := append(m.byConsumer[snap.ConsumerID], &cp)
	sort.SliceStable(list, func(i, j int) bool {
		return before(list[j].CreatedAt, list[j].ID, list[i].CreatedAt, list[i].ID)
	})
	m.byConsumer[snap.ConsumerID] = list
	return nil
}

func (m *MemoryStore) Latest(ctx context.Context, consumerID string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.byConsumer[consumerID]
	if len(list) == 0 {
		return nil, ErrSnapshotNotFound
	}
	cp := *list[0]
	return &cp, nil
}

func (m *MemoryStore) List(ctx context.Context, consumerID string, limit int, after *pagination.Cursor) ([]*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Snapshot
	for _, s := range m.byConsumer[consumerID] {
		if !after.Before(s.CreatedAt, s.ID) {
			continue
		}
		cp := *s
		out = append(out, &cp)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
