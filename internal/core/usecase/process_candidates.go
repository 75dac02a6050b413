package usecase

import (
	"context"
	"fmt"
	"time"

	"listing-aggregator-service/internal/contextkeys"
	"listing-aggregator-service/internal/core/domain"
	"listing-aggregator-service/internal/core/port"

	"golang.org/x/sync/errgroup"
)

const defaultDetailConcurrency = 3

// PipelineConfig - настройки обработки одной страницы кандидатов
type PipelineConfig struct {
	DetailConcurrency   int
	DropOnDetailFailure bool // false - объявления в режиме enrich сохраняются без обогащения
	RequestTimeout      time.Duration
}

// ProcessCandidatesUseCase отсеивает, дедуплицирует, обогащает и сохраняет кандидатов одной страницы
type ProcessCandidatesUseCase struct {
	store   port.ListingStorePort
	fetcher port.FetcherPort
	events  port.ListingEventsPort
	cfg     PipelineConfig
	now     func() time.Time
}

func NewProcessCandidatesUseCase(
	store port.ListingStorePort,
	fetcher port.FetcherPort,
	events port.ListingEventsPort,
	cfg PipelineConfig,
) *ProcessCandidatesUseCase {
	if cfg.DetailConcurrency <= 0 {
		cfg.DetailConcurrency = defaultDetailConcurrency
	}
	return &ProcessCandidatesUseCase{
		store:   store,
		fetcher: fetcher,
		events:  events,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Execute возвращает количество сохраненных объявлений. Ошибка означает, что страница не сохранена.
func (uc *ProcessCandidatesUseCase) Execute(ctx context.Context, provider port.ProviderPort, candidates []domain.Candidate, criteria domain.SearchCriteria) (int, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case": "ProcessCandidates",
		"source":   string(provider.Source()),
		"page":     criteria.Page,
	})

	listings := uc.normalize(ctx, provider, candidates, criteria)
	listings = uc.dropKnown(ctx, listings)
	if len(listings) == 0 {
		logger.Debug("No new listings on page", port.Fields{"candidates": len(candidates)})
		return 0, nil
	}

	if provider.DetailMode() != domain.DetailNone {
		listings = uc.enrich(ctx, provider, listings)
	}

	ready := make([]domain.Listing, 0, len(listings))
	now := uc.now().UTC()
	for _, l := range listings {
		if !l.IsComplete() {
			logger.Debug("Listing dropped: incomplete after enrichment", port.Fields{"listing_id": l.ID})
			continue
		}
		l.CreatedAt = now
		l.LastCheckedAt = now
		ready = append(ready, *l)
	}
	if len(ready) == 0 {
		return 0, nil
	}

	inserted, err := uc.store.BulkInsert(ctx, ready)
	if err != nil {
		logger.Error("Failed to persist listings, page dropped", err, port.Fields{"count": len(ready)})
		return 0, fmt.Errorf("%w: bulk insert of %d listings from %s: %w", domain.ErrPersistence, len(ready), provider.Source(), err)
	}

	logger.Info("Listings persisted", port.Fields{"candidates": len(candidates), "persisted": inserted})

	if err := uc.events.PublishCreated(ctx, ready); err != nil {
		logger.Error("Failed to publish listings created event", err, port.Fields{"count": len(ready)})
	}

	return inserted, nil
}

// normalize отбрасывает кандидатов без цены, приводит остальных к Listing
// и схлопывает повторы внутри страницы
func (uc *ProcessCandidatesUseCase) normalize(ctx context.Context, provider port.ProviderPort, candidates []domain.Candidate, criteria domain.SearchCriteria) []*domain.Listing {
	logger := contextkeys.LoggerFromContext(ctx)
	gateBeforeDetail := provider.DetailMode() != domain.DetailRequired

	seen := make(map[string]struct{}, len(candidates))
	listings := make([]*domain.Listing, 0, len(candidates))
	for _, c := range candidates {
		if c.Price <= 0 {
			logger.Debug("Candidate dropped: no price", port.Fields{"source_id": c.SourceID})
			continue
		}

		listing, err := provider.Normalize(c, criteria)
		if err != nil {
			logger.Warn("Candidate dropped: normalization failed", port.Fields{"source_id": c.SourceID, "error": err.Error()})
			continue
		}
		if gateBeforeDetail && !listing.IsComplete() {
			logger.Debug("Candidate dropped: incomplete", port.Fields{"listing_id": listing.ID})
			continue
		}
		if _, dup := seen[listing.ID]; dup {
			continue
		}
		seen[listing.ID] = struct{}{}
		listings = append(listings, listing)
	}
	return listings
}

// dropKnown оставляет только объявления, которых еще нет в хранилище
func (uc *ProcessCandidatesUseCase) dropKnown(ctx context.Context, listings []*domain.Listing) []*domain.Listing {
	logger := contextkeys.LoggerFromContext(ctx)

	fresh := listings[:0]
	for _, l := range listings {
		existing, err := uc.store.FindByID(ctx, l.ID)
		if err != nil {
			logger.Error("Lookup failed, candidate dropped", err, port.Fields{"listing_id": l.ID})
			continue
		}
		if existing != nil {
			continue
		}
		fresh = append(fresh, l)
	}
	return fresh
}

// enrich загружает страницы объявлений с ограниченным параллелизмом.
// Порядок результата совпадает с порядком входа.
func (uc *ProcessCandidatesUseCase) enrich(ctx context.Context, provider port.ProviderPort, listings []*domain.Listing) []*domain.Listing {
	logger := contextkeys.LoggerFromContext(ctx)
	keepOnFailure := provider.DetailMode() == domain.DetailEnrich && !uc.cfg.DropOnDetailFailure

	results := make([]*domain.Listing, len(listings))
	var g errgroup.Group
	g.SetLimit(uc.cfg.DetailConcurrency)

	for i, l := range listings {
		g.Go(func() error {
			enriched, err := uc.enrichOne(ctx, provider, l)
			if err != nil {
				logger.Warn("Detail enrichment failed", port.Fields{"listing_id": l.ID, "error": err.Error(), "kept": keepOnFailure})
				if keepOnFailure {
					results[i] = l
				}
				return nil
			}
			results[i] = enriched
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*domain.Listing, 0, len(results))
	for _, l := range results {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

// enrichOne обогащает копию объявления, исходное не меняется
func (uc *ProcessCandidatesUseCase) enrichOne(ctx context.Context, provider port.ProviderPort, l *domain.Listing) (enriched *domain.Listing, err error) {
	defer func() {
		if r := recover(); r != nil {
			enriched, err = nil, fmt.Errorf("panic during enrichment: %v", r)
		}
	}()

	req, err := provider.BuildDetailRequest(l.SourceID, l.URL)
	if err != nil {
		return nil, err
	}

	fetchCtx := ctx
	if uc.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, uc.cfg.RequestTimeout)
		defer cancel()
	}

	raw, err := uc.fetcher.Fetch(fetchCtx, req)
	if err != nil {
		return nil, err
	}

	listingCopy := *l
	listingCopy.HeatingTypes = append([]string(nil), l.HeatingTypes...)
	if err := provider.EnrichFromDetail(raw, &listingCopy); err != nil {
		return nil, err
	}
	return &listingCopy, nil
}
