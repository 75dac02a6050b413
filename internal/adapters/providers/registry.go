// Package providers собирает закрытый набор адаптеров источников.
package providers

import (
	"fmt"

	"listing-aggregator-service/internal/adapters/providers/cityexpert"
	"listing-aggregator-service/internal/adapters/providers/fourzida"
	"listing-aggregator-service/internal/adapters/providers/halooglasi"
	"listing-aggregator-service/internal/adapters/providers/nekretnine"
	"listing-aggregator-service/internal/core/domain"
	"listing-aggregator-service/internal/core/port"
)

// Settings - включенные источники и их адреса
type Settings struct {
	Enabled    []domain.SourceName // пусто - все известные
	CityExpert cityexpert.Config
	FourZida   fourzida.Config
	HaloOglasi halooglasi.Config
	Nekretnine nekretnine.Config
}

// Registry - набор адаптеров, собранный один раз при старте
type Registry struct {
	ordered []port.ProviderPort
	byName  map[domain.SourceName]port.ProviderPort
}

// NewRegistry создает адаптеры включенных источников в порядке их перечисления
func NewRegistry(settings Settings, fetcher port.FetcherPort) (*Registry, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("%w: fetcher is required", domain.ErrConfiguration)
	}

	enabled := settings.Enabled
	if len(enabled) == 0 {
		enabled = domain.KnownSources()
	}

	providers := make([]port.ProviderPort, 0, len(enabled))
	for _, name := range enabled {
		var p port.ProviderPort
		switch name {
		case domain.SourceCityExpert:
			p = cityexpert.NewCityExpertAdapter(settings.CityExpert, fetcher)
		case domain.SourceFourZida:
			p = fourzida.NewFourZidaAdapter(settings.FourZida, fetcher)
		case domain.SourceHaloOglasi:
			p = halooglasi.NewHaloOglasiAdapter(settings.HaloOglasi, fetcher)
		case domain.SourceNekretnine:
			p = nekretnine.NewNekretnineAdapter(settings.Nekretnine, fetcher)
		default:
			return nil, fmt.Errorf("%w: no adapter for source %q", domain.ErrConfiguration, name)
		}
		providers = append(providers, p)
	}

	return NewRegistryOf(providers...)
}

// NewRegistryOf собирает реестр из готовых адаптеров. Повтор источника - ошибка конфигурации.
func NewRegistryOf(providers ...port.ProviderPort) (*Registry, error) {
	r := &Registry{
		ordered: make([]port.ProviderPort, 0, len(providers)),
		byName:  make(map[domain.SourceName]port.ProviderPort, len(providers)),
	}
	for _, p := range providers {
		if _, dup := r.byName[p.Source()]; dup {
			return nil, fmt.Errorf("%w: source %q registered twice", domain.ErrConfiguration, p.Source())
		}
		r.byName[p.Source()] = p
		r.ordered = append(r.ordered, p)
	}
	return r, nil
}

func (r *Registry) Providers() []port.ProviderPort {
	return append([]port.ProviderPort(nil), r.ordered...)
}

func (r *Registry) Provider(name domain.SourceName) (port.ProviderPort, error) {
	p, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: source %q is not enabled", domain.ErrConfiguration, name)
	}
	return p, nil
}

var _ port.ProviderRegistryPort = (*Registry)(nil)
