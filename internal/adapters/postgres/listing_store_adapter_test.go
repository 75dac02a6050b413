package postgres

import (
	"errors"
	"testing"
	"time"

	"listing-aggregator-service/internal/core/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListingArgsMatchInsertPlaceholders(t *testing.T) {
	now := time.Now()
	l := domain.Listing{
		ID:         "4zida_1",
		SourceID:   "1",
		SourceName: domain.SourceFourZida,
		Price:      450,
		Furnished:  domain.FurnishedFull,
		RentOrSale: domain.Rent,
		Location:   &domain.GeoPoint{Latitude: 44.8125, Longitude: 20.4612},
		CreatedAt:  now,
	}

	args := listingArgs(l)
	require.Len(t, args, 23)
	assert.Equal(t, "4zida", args[2])
	assert.Equal(t, []string{}, args[11], "nil heating types are stored as an empty array")

	hash, ok := args[22].(*string)
	require.True(t, ok)
	require.NotNil(t, hash)
	assert.Len(t, *hash, geohashPrecision)
	assert.Equal(t, "srywc", (*hash)[:5])
}

func TestListingArgsWithoutLocation(t *testing.T) {
	args := listingArgs(domain.Listing{ID: "x"})
	assert.Nil(t, args[12])
	assert.Nil(t, args[13])
	assert.Nil(t, args[22])
}

func TestWrapPgError(t *testing.T) {
	err := wrapPgError("insert listing 1", &pgconn.PgError{Code: "23505", Message: "duplicate key"})
	assert.True(t, errors.Is(err, domain.ErrPersistence))
	assert.Contains(t, err.Error(), "SQLSTATE 23505")

	err = wrapPgError("count listings", errors.New("conn closed"))
	assert.True(t, errors.Is(err, domain.ErrPersistence))
}

func TestNewAdapterRequiresPool(t *testing.T) {
	_, err := NewPostgresListingStoreAdapter(nil)
	assert.Error(t, err)
}
