package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFromPath(t *testing.T) {
	assert.Equal(t, "ListingsCreatedEvent/1.0.0", keyFromPath("events/listings-created/v1.json"))
	assert.Equal(t, "SweepCommand/2.0.0", keyFromPath("commands/sweep/v2.json"))
	assert.Empty(t, keyFromPath("events/v1.json"))
	assert.Empty(t, keyFromPath("misc/sweep/v1.json"))
}

func TestLoadRegistersEmbeddedSchemas(t *testing.T) {
	s, err := Load()
	require.NoError(t, err)

	assert.True(t, s.Has("SweepCommand", "1.0.0"))
	assert.True(t, s.Has("ListingsCreatedEvent", "1.0.0"))
	assert.True(t, s.Has("ListingDeletedEvent", "1.0.0"))
	assert.False(t, s.Has("SweepCommand", "2.0.0"))
}

func TestValidateSweepCommand(t *testing.T) {
	s, err := Load()
	require.NoError(t, err)

	valid := []string{
		`{"type":"liveness"}`,
		`{"type":"ingestion","preset":"belgrade-rent"}`,
		`{"type":"ingestion","criteria":{"rentOrSale":"rent","municipalities":["Vračar"],"minPrice":300,"maxPrice":900,"structures":[1.5,2],"furnished":["furnished"]}}`,
	}
	for _, body := range valid {
		assert.NoError(t, s.Validate("SweepCommand", "1.0.0", []byte(body)), body)
	}

	invalid := []string{
		`{}`,
		`{"type":"reindex"}`,
		`{"type":"ingestion"}`,
		`{"type":"ingestion","preset":"a","criteria":{"rentOrSale":"rent","municipalities":["Vračar"]}}`,
		`{"type":"ingestion","criteria":{"rentOrSale":"lease","municipalities":["Vračar"]}}`,
		`{"type":"ingestion","criteria":{"rentOrSale":"rent","municipalities":[]}}`,
		`{"type":"ingestion","criteria":{"rentOrSale":"rent","municipalities":["Vračar"],"structures":[1.3]}}`,
		`{"type":"liveness","extra":true}`,
	}
	for _, body := range invalid {
		assert.Error(t, s.Validate("SweepCommand", "1.0.0", []byte(body)), body)
	}
}

func TestValidateRejectsUnknownTypeAndBadJSON(t *testing.T) {
	s, err := Load()
	require.NoError(t, err)

	assert.ErrorContains(t, s.Validate("ReindexCommand", "1.0.0", []byte(`{}`)), "not found")
	assert.ErrorContains(t, s.Validate("SweepCommand", "1.0.0", []byte(`{"type":`)), "not a valid JSON")
}
