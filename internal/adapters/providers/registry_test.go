package providers

import (
	"context"
	"errors"
	"testing"

	"listing-aggregator-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopFetcher struct{}

func (nopFetcher) Fetch(ctx context.Context, req domain.RequestSpec) (*domain.RawResponse, error) {
	return nil, domain.ErrTransientNetwork
}

func TestNewRegistryKeepsConfiguredOrder(t *testing.T) {
	r, err := NewRegistry(Settings{
		Enabled: []domain.SourceName{domain.SourceNekretnine, domain.SourceCityExpert},
	}, nopFetcher{})
	require.NoError(t, err)

	providers := r.Providers()
	require.Len(t, providers, 2)
	assert.Equal(t, domain.SourceNekretnine, providers[0].Source())
	assert.Equal(t, domain.SourceCityExpert, providers[1].Source())

	p, err := r.Provider(domain.SourceCityExpert)
	require.NoError(t, err)
	assert.Equal(t, domain.DetailNone, p.DetailMode())

	_, err = r.Provider(domain.SourceHaloOglasi)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestNewRegistryDefaultsToAllSources(t *testing.T) {
	r, err := NewRegistry(Settings{}, nopFetcher{})
	require.NoError(t, err)

	var names []domain.SourceName
	for _, p := range r.Providers() {
		names = append(names, p.Source())
	}
	assert.Equal(t, domain.KnownSources(), names)
}

func TestNewRegistryRejectsUnknownAndDuplicate(t *testing.T) {
	_, err := NewRegistry(Settings{Enabled: []domain.SourceName{"olx"}}, nopFetcher{})
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	_, err = NewRegistry(Settings{Enabled: []domain.SourceName{domain.SourceFourZida, domain.SourceFourZida}}, nopFetcher{})
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	_, err = NewRegistry(Settings{}, nil)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}
