package port

import (
	"context"

	"listing-aggregator-service/internal/core/domain"
)

// ListingEventsPort публикует события жизненного цикла объявлений для внешних подписчиков
type ListingEventsPort interface {
	PublishCreated(ctx context.Context, listings []domain.Listing) error
	PublishDeleted(ctx context.Context, listing domain.Listing) error
}
