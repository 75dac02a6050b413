package port

import (
	"context"

	"listing-aggregator-service/internal/core/domain"
)

// FetcherPort выполняет HTTP-запросы к источникам.
// Ответ с любым статусом возвращается без ошибки, ошибка - только для сбоя транспорта.
// Сбои соединения и таймауты оборачивают domain.ErrTransientNetwork.
type FetcherPort interface {
	Fetch(ctx context.Context, req domain.RequestSpec) (*domain.RawResponse, error)
}
