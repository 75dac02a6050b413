package memstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"listing-aggregator-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkInsertSkipsExistingIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryListingStoreAdapter()

	n, err := s.BulkInsert(ctx, []domain.Listing{{ID: "a", Price: 1}, {ID: "b", Price: 2}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.BulkInsert(ctx, []domain.Listing{{ID: "a", Price: 100}, {ID: "c", Price: 3}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	a, err := s.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1.0, a.Price, "existing listing is not overwritten")

	missing, err := s.FindByID(ctx, "zzz")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFindByIDReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryListingStoreAdapter()
	_, _ = s.BulkInsert(ctx, []domain.Listing{{ID: "a", HeatingTypes: []string{"gas"}}})

	l, _ := s.FindByID(ctx, "a")
	l.HeatingTypes[0] = "changed"

	again, _ := s.FindByID(ctx, "a")
	assert.Equal(t, []string{"gas"}, again.HeatingTypes)
}

func TestListIDsPageAndTouch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryListingStoreAdapter()
	for i := 0; i < 5; i++ {
		_, _ = s.BulkInsert(ctx, []domain.Listing{{ID: fmt.Sprintf("id%d", i)}})
	}

	ids, total, err := s.ListIDsPage(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Equal(t, []string{"id2", "id3"}, ids)

	ids, _, err = s.ListIDsPage(ctx, 4, 2)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, _, err = s.ListIDsPage(ctx, 0, 2)
	assert.True(t, errors.Is(err, domain.ErrPersistence))

	checked := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.TouchLastChecked(ctx, "id1", checked))
	l, _ := s.FindByID(ctx, "id1")
	assert.Equal(t, checked, l.LastCheckedAt)

	require.NoError(t, s.Delete(ctx, "id1"))
	l, _ = s.FindByID(ctx, "id1")
	assert.Nil(t, l)
}
