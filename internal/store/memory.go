package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps all state in process. Everything crossing its boundary is
// copied, so callers can mutate what they get back freely.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]*Product
	order    []string
	history  []*HistoryEntry // oldest first
	autoSync *AutoSyncConfig
}

func NewMemoryStore(autoSync AutoSyncConfig) *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*Product),
		autoSync: autoSync.Clone(),
	}
}

func (s *MemoryStore) ListProducts(ctx context.Context) ([]*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.products[id].Clone())
	}
	return out, nil
}

func (s *MemoryStore) GetProduct(ctx context.Context, id string) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return p.Clone(), nil
}

func (s *MemoryStore) SaveProduct(ctx context.Context, p *Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[p.ID]; !ok {
		s.order = append(s.order, p.ID)
	}
	s.products[p.ID] = p.Clone()
	return nil
}

func (s *MemoryStore) AppendHistory(ctx context.Context, entry *HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := *entry
	s.history = append(s.history, &e)
	return nil
}

func (s *MemoryStore) ListHistory(ctx context.Context, limit, offset int) ([]*HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}
	n := len(s.history)
	if offset >= n {
		return []*HistoryEntry{}, nil
	}
	if limit <= 0 || offset+limit > n {
		limit = n - offset
	}

	out := make([]*HistoryEntry, 0, limit)
	for i := n - 1 - offset; i >= n-offset-limit; i-- {
		e := *s.history[i]
		out = append(out, &e)
	}
	return out, nil
}

func (s *MemoryStore) GetAutoSyncConfig(ctx context.Context) (*AutoSyncConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autoSync.Clone(), nil
}

func (s *MemoryStore) SaveAutoSyncConfig(ctx context.Context, cfg *AutoSyncConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoSync = cfg.Clone()
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
