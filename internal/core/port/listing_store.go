package port

import (
	"context"
	"time"

	"listing-aggregator-service/internal/core/domain"
)

// ListingStorePort - узкий интерфейс хранилища объявлений
type ListingStorePort interface {
	// FindByID возвращает nil, nil, если объявления нет
	FindByID(ctx context.Context, id string) (*domain.Listing, error)

	// BulkInsert сохраняет пачку. Уже существующие id пропускаются без ошибки.
	BulkInsert(ctx context.Context, listings []domain.Listing) (inserted int, err error)

	Delete(ctx context.Context, id string) error

	TouchLastChecked(ctx context.Context, id string, checkedAt time.Time) error

	// ListIDsPage возвращает страницу id (нумерация с 1) и общее количество объявлений
	ListIDsPage(ctx context.Context, page, pageSize int) (ids []string, total int, err error)
}
