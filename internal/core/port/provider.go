package port

import (
	"context"

	"listing-aggregator-service/internal/core/domain"
)

// ProviderPort - стратегия одного источника объявлений.
// Все методы, кроме IsInactive, не выполняют сетевых вызовов.
type ProviderPort interface {
	Source() domain.SourceName
	DetailMode() domain.DetailMode

	// BuildRequest переводит общие критерии в запрос конкретного источника
	BuildRequest(criteria domain.SearchCriteria) (domain.RequestSpec, error)

	// ExtractCandidates разбирает страницу результатов и сообщает, есть ли следующая
	ExtractCandidates(raw *domain.RawResponse) (candidates []domain.Candidate, hasNextPage bool, err error)

	// Normalize приводит кандидата к каноническому виду. Нераспознанные коды дают unknown/nil.
	Normalize(candidate domain.Candidate, criteria domain.SearchCriteria) (*domain.Listing, error)

	// BuildDetailRequest возвращает ErrConfiguration, если источнику нужен URL, а его нет
	BuildDetailRequest(sourceID, url string) (domain.RequestSpec, error)

	// EnrichFromDetail дополняет объявление данными со страницы объявления
	EnrichFromDetail(raw *domain.RawResponse, listing *domain.Listing) error

	// IsInactive проверяет объявление на источнике. Сетевые сбои дают LivenessUnknown.
	IsInactive(ctx context.Context, sourceID, url string) domain.Liveness
}

// ProviderRegistryPort - закрытый набор адаптеров, собранный при старте
type ProviderRegistryPort interface {
	// Providers возвращает адаптеры в стабильном порядке
	Providers() []ProviderPort

	// Provider возвращает ErrConfiguration для неизвестного или выключенного источника
	Provider(name domain.SourceName) (ProviderPort, error)
}
