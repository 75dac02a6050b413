package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"listing-aggregator-service/internal/core/domain"
	"listing-aggregator-service/internal/core/port"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mmcloughlin/geohash"
)

const geohashPrecision = 7 // ~153x153 м

const listingColumns = `id, source_id, source_name, price, size, structure, address, place, municipality, floor,
	furnished, heating_types, latitude, longitude, cover_photo_url, advertiser_name, advertiser_type,
	rent_or_sale, url, posted_at, last_checked_at, created_at`

const insertListingSQL = `
	INSERT INTO listings (` + listingColumns + `, geohash)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	ON CONFLICT (id) DO NOTHING`

// PostgresListingStoreAdapter реализует ListingStorePort для PostgreSQL
type PostgresListingStoreAdapter struct {
	pool *pgxpool.Pool
}

func NewPostgresListingStoreAdapter(pool *pgxpool.Pool) (*PostgresListingStoreAdapter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &PostgresListingStoreAdapter{pool: pool}, nil
}

func (a *PostgresListingStoreAdapter) FindByID(ctx context.Context, id string) (*domain.Listing, error) {
	row := a.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)

	listing, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapPgError("find listing "+id, err)
	}
	return listing, nil
}

// BulkInsert вставляет пачку одной транзакцией. Конфликт по id не считается ошибкой.
func (a *PostgresListingStoreAdapter) BulkInsert(ctx context.Context, listings []domain.Listing) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return 0, wrapPgError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, l := range listings {
		batch.Queue(insertListingSQL, listingArgs(l)...)
	}

	br := tx.SendBatch(ctx, batch)
	inserted := 0
	for _, l := range listings {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return 0, wrapPgError("insert listing "+l.ID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, wrapPgError("close batch", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, wrapPgError("commit listings", err)
	}
	return inserted, nil
}

func (a *PostgresListingStoreAdapter) Delete(ctx context.Context, id string) error {
	if _, err := a.pool.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id); err != nil {
		return wrapPgError("delete listing "+id, err)
	}
	return nil
}

func (a *PostgresListingStoreAdapter) TouchLastChecked(ctx context.Context, id string, checkedAt time.Time) error {
	if _, err := a.pool.Exec(ctx, `UPDATE listings SET last_checked_at = $2 WHERE id = $1`, id, checkedAt); err != nil {
		return wrapPgError("touch listing "+id, err)
	}
	return nil
}

func (a *PostgresListingStoreAdapter) ListIDsPage(ctx context.Context, page, pageSize int) ([]string, int, error) {
	if page < 1 || pageSize < 1 {
		return nil, 0, fmt.Errorf("%w: invalid page %d/%d", domain.ErrPersistence, page, pageSize)
	}

	var total int
	if err := a.pool.QueryRow(ctx, `SELECT count(*) FROM listings`).Scan(&total); err != nil {
		return nil, 0, wrapPgError("count listings", err)
	}

	rows, err := a.pool.Query(ctx, `SELECT id FROM listings ORDER BY id LIMIT $1 OFFSET $2`, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, wrapPgError("list listing ids", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, 0, wrapPgError("scan listing ids", err)
	}
	return ids, total, nil
}

// listingArgs - аргументы insertListingSQL в порядке колонок
func listingArgs(l domain.Listing) []any {
	var lat, lng *float64
	var hash *string
	if l.Location != nil {
		lat, lng = &l.Location.Latitude, &l.Location.Longitude
		h := geohash.EncodeWithPrecision(l.Location.Latitude, l.Location.Longitude, geohashPrecision)
		hash = &h
	}

	heating := l.HeatingTypes
	if heating == nil {
		heating = []string{}
	}

	return []any{
		l.ID, l.SourceID, string(l.SourceName), l.Price, l.Size, l.Structure, l.Address, l.Place, l.Municipality, l.Floor,
		string(l.Furnished), heating, lat, lng, l.CoverPhotoURL, l.AdvertiserName, l.AdvertiserType,
		string(l.RentOrSale), l.URL, l.PostedAt, l.LastCheckedAt, l.CreatedAt,
		hash,
	}
}

func scanListing(row pgx.Row) (*domain.Listing, error) {
	var (
		l                                 domain.Listing
		sourceName, furnished, rentOrSale string
		lat, lng                          *float64
	)
	err := row.Scan(
		&l.ID, &l.SourceID, &sourceName, &l.Price, &l.Size, &l.Structure, &l.Address, &l.Place, &l.Municipality, &l.Floor,
		&furnished, &l.HeatingTypes, &lat, &lng, &l.CoverPhotoURL, &l.AdvertiserName, &l.AdvertiserType,
		&rentOrSale, &l.URL, &l.PostedAt, &l.LastCheckedAt, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.SourceName = domain.SourceName(sourceName)
	l.Furnished = domain.ParseFurnished(furnished)
	l.RentOrSale = domain.RentOrSale(rentOrSale)
	if lat != nil && lng != nil {
		l.Location = &domain.GeoPoint{Latitude: *lat, Longitude: *lng}
	}
	return &l, nil
}

// wrapPgError помечает ошибку как ошибку хранилища и добавляет код PostgreSQL, если он есть
func wrapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%w: %s: %s (SQLSTATE %s): %w", domain.ErrPersistence, op, pgErr.Message, pgErr.Code, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrPersistence, op, err)
}

var _ port.ListingStorePort = (*PostgresListingStoreAdapter)(nil)
