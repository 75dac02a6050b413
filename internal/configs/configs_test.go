package configs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"listing-aggregator-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const presetsYAML = `
presets:
  - name: belgrade-center-rent
    rent_or_sale: rent
    min_price: 300
    max_price: 900
    municipalities: ["Vračar", "Stari Grad"]
    structures: [1.5, 2]
    furnished: [furnished, semi-furnished]
  - name: novi-beograd-sale
    rent_or_sale: sale
    municipalities: ["Novi Beograd"]
`

func TestParseSearchPresets(t *testing.T) {
	presets, err := ParseSearchPresets([]byte(presetsYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"belgrade-center-rent", "novi-beograd-sale"}, presets.Names())

	rent, ok := presets.Preset("belgrade-center-rent")
	require.True(t, ok)
	assert.Equal(t, domain.Rent, rent.RentOrSale)
	assert.Equal(t, 300.0, rent.MinPrice)
	assert.Equal(t, []string{"Vračar", "Stari Grad"}, rent.Municipalities)
	assert.Equal(t, []domain.Furnished{domain.FurnishedFull, domain.FurnishedSemi}, rent.Furnished)
	assert.Equal(t, 1, rent.Page)

	_, ok = presets.Preset("missing")
	assert.False(t, ok)
}

func TestPresetReturnsIndependentCopy(t *testing.T) {
	presets, err := ParseSearchPresets([]byte(presetsYAML))
	require.NoError(t, err)

	first, _ := presets.Preset("belgrade-center-rent")
	first.Municipalities[0] = "Zemun"

	second, _ := presets.Preset("belgrade-center-rent")
	assert.Equal(t, "Vračar", second.Municipalities[0])
}

func TestParseSearchPresetsRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"no name":     "presets:\n  - rent_or_sale: rent\n    municipalities: [Vračar]\n",
		"duplicate":   "presets:\n  - {name: a, rent_or_sale: rent, municipalities: [Vračar]}\n  - {name: a, rent_or_sale: sale, municipalities: [Vračar]}\n",
		"bad deal":    "presets:\n  - {name: a, rent_or_sale: lease, municipalities: [Vračar]}\n",
		"no places":   "presets:\n  - {name: a, rent_or_sale: rent}\n",
		"bad furnish": "presets:\n  - {name: a, rent_or_sale: rent, municipalities: [Vračar], furnished: [luxury]}\n",
	}
	for name, body := range cases {
		_, err := ParseSearchPresets([]byte(body))
		assert.True(t, errors.Is(err, domain.ErrConfiguration), name)
	}
}

func TestLoadSearchPresetsFromFile(t *testing.T) {
	presets, err := LoadSearchPresets("")
	require.NoError(t, err)
	assert.Empty(t, presets)

	path := filepath.Join(t.TempDir(), "searches.yaml")
	require.NoError(t, os.WriteFile(path, []byte(presetsYAML), 0o600))

	presets, err = LoadSearchPresets(path)
	require.NoError(t, err)
	assert.Len(t, presets, 2)

	_, err = LoadSearchPresets(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("RABBITMQ_ENABLED", "false")
	t.Setenv("AGGREGATOR_SOURCES", "4zida, halooglasi,")
	t.Setenv("AGGREGATOR_REQUEST_TIMEOUT", "5s")
	t.Setenv("AGGREGATOR_MAX_ROUNDS", "not-a-number")
	t.Setenv("LIVENESS_RECHECK_THRESHOLD", "10m")
	t.Setenv("LIVENESS_PROBES_PER_SECOND", "0.5")
	t.Setenv("HALOOGLASI_BASE_URL", "http://localhost:9000")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.False(t, cfg.RabbitMQ.Enabled)
	assert.Equal(t, []string{"4zida", "halooglasi"}, cfg.Aggregator.Sources)
	assert.Equal(t, 5*time.Second, cfg.Aggregator.RequestTimeout)
	assert.Equal(t, 50, cfg.Aggregator.MaxRounds)
	assert.Equal(t, 10*time.Minute, cfg.Liveness.RecheckThreshold)
	assert.Equal(t, 0.5, cfg.Liveness.ProbesPerSecond)
	assert.Equal(t, "http://localhost:9000", cfg.Aggregator.HaloOglasi.BaseURL)
	assert.Equal(t, "8090", cfg.Rest.Port)
}

func TestLoadConfigRequiresConnectionSettings(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("RABBITMQ_ENABLED", "false")
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.env"))
	assert.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("RABBITMQ_ENABLED", "true")
	t.Setenv("RABBITMQ_URL", "")
	_, err = LoadConfig(filepath.Join(t.TempDir(), "absent.env"))
	assert.ErrorContains(t, err, "RABBITMQ_URL")

	t.Setenv("STORE_DRIVER", "mongo")
	_, err = LoadConfig(filepath.Join(t.TempDir(), "absent.env"))
	assert.ErrorContains(t, err, "STORE_DRIVER")
}
