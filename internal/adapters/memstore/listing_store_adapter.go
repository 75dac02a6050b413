// Package memstore - хранилище объявлений в памяти для локального запуска без базы
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"listing-aggregator-service/internal/core/domain"
	"listing-aggregator-service/internal/core/port"
)

type MemoryListingStoreAdapter struct {
	mu       sync.RWMutex
	listings map[string]domain.Listing
}

func NewMemoryListingStoreAdapter() *MemoryListingStoreAdapter {
	return &MemoryListingStoreAdapter{listings: make(map[string]domain.Listing)}
}

func (s *MemoryListingStoreAdapter) FindByID(ctx context.Context, id string) (*domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.listings[id]
	if !ok {
		return nil, nil
	}
	return cloneListing(l), nil
}

func (s *MemoryListingStoreAdapter) BulkInsert(ctx context.Context, listings []domain.Listing) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, l := range listings {
		if _, exists := s.listings[l.ID]; exists {
			continue
		}
		s.listings[l.ID] = *cloneListing(l)
		inserted++
	}
	return inserted, nil
}

func (s *MemoryListingStoreAdapter) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listings, id)
	return nil
}

func (s *MemoryListingStoreAdapter) TouchLastChecked(ctx context.Context, id string, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok {
		return nil
	}
	l.LastCheckedAt = checkedAt
	s.listings[id] = l
	return nil
}

// ListIDsPage - id в лексикографическом порядке, как ORDER BY id в PostgreSQL
func (s *MemoryListingStoreAdapter) ListIDsPage(ctx context.Context, page, pageSize int) ([]string, int, error) {
	if page < 1 || pageSize < 1 {
		return nil, 0, fmt.Errorf("%w: invalid page %d/%d", domain.ErrPersistence, page, pageSize)
	}

	s.mu.RLock()
	ids := make([]string, 0, len(s.listings))
	for id := range s.listings {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	start := (page - 1) * pageSize
	if start >= len(ids) {
		return []string{}, len(ids), nil
	}
	end := min(start+pageSize, len(ids))
	return ids[start:end], len(ids), nil
}

func cloneListing(l domain.Listing) *domain.Listing {
	l.HeatingTypes = append([]string(nil), l.HeatingTypes...)
	return &l
}

var _ port.ListingStorePort = (*MemoryListingStoreAdapter)(nil)
