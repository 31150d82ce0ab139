package lending

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/loticredit/loticredit/internal/pagination"
)

// MemoryStore is an in-memory lending store for demo/development mode.
type MemoryStore struct {
	products     map[string]*Product
	applications map[string]*Application
	mu           sync.RWMutex
}

// NewMemoryStore creates a new in-memory lending store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:     make(map[string]*Product),
		applications: make(map[string]*Application),
	}
}

func (m *MemoryStore) CreateProduct(ctx context.Context, p *Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *MemoryStore) ListProducts(ctx context.Context, lenderID string) ([]*Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Product
	for _, p := range m.products {
		if p.LenderID == lenderID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) CreateApplication(ctx context.Context, a *Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *a
	m.applications[a.ID] = &cp
	return nil
}

func (m *MemoryStore) GetApplication(ctx context.Context, id string) (*Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.applications[id]
	if !ok {
		return nil, ErrApplicationNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, id string, from, to Status, reason string, at time.Time) (*Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.applications[id]
	if !ok {
		return nil, ErrApplicationNotFound
	}
	if a.Status != from {
		return nil, ErrInvalidTransition
	}
	a.Status = to
	a.Reason = reason
	a.UpdatedAt = at
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) ListApplications(ctx context.Context, lenderID string, status Status, limit int, after *pagination.Cursor) ([]*Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []*Application
	for _, a := range m.applications {
		if a.LenderID != lenderID || (status != "" && a.Status != status) {
			continue
		}
		if !after.Before(a.CreatedAt, a.ID) {
			continue
		}
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]*Application, len(all))
	for i, a := range all {
		cp := *a
		out[i] = &cp
	}
	return out, nil
}

func (m *MemoryStore) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Application
	for _, a := range m.applications {
		if a.Status == StatusPending && a.CreatedAt.Before(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
