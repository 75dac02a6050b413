package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"listing-aggregator-service/internal/contextkeys"
	"listing-aggregator-service/internal/core/domain"
	"listing-aggregator-service/internal/core/port"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	defaultLivenessPageSize = 50
	defaultRecheckThreshold = 5 * time.Minute
	defaultProbeConcurrency = 4
	defaultProbesPerSecond  = 2
)

// LivenessConfig - настройки прохода проверки актуальности
type LivenessConfig struct {
	PageSize         int
	RecheckThreshold time.Duration // проверенные недавнее этого порога пропускаются
	ProbeConcurrency int
	ProbesPerSecond  float64 // на один источник
}

type probeOutcome int

const (
	outcomeSkipped probeOutcome = iota
	outcomeDeleted
	outcomeTouched
	outcomeUnknown
	outcomeFailed
)

// LivenessSweepUseCase проверяет сохраненные объявления на источниках.
// Неактивные удаляются, активным обновляется время проверки, неизвестный результат ничего не меняет.
type LivenessSweepUseCase struct {
	store    port.ListingStorePort
	registry port.ProviderRegistryPort
	events   port.ListingEventsPort
	cfg      LivenessConfig
	now      func() time.Time

	limitersMu sync.Mutex
	limiters   map[domain.SourceName]*rate.Limiter
}

func NewLivenessSweepUseCase(
	store port.ListingStorePort,
	registry port.ProviderRegistryPort,
	events port.ListingEventsPort,
	cfg LivenessConfig,
) *LivenessSweepUseCase {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultLivenessPageSize
	}
	if cfg.RecheckThreshold <= 0 {
		cfg.RecheckThreshold = defaultRecheckThreshold
	}
	if cfg.ProbeConcurrency <= 0 {
		cfg.ProbeConcurrency = defaultProbeConcurrency
	}
	if cfg.ProbesPerSecond <= 0 {
		cfg.ProbesPerSecond = defaultProbesPerSecond
	}
	return &LivenessSweepUseCase{
		store:    store,
		registry: registry,
		events:   events,
		cfg:      cfg,
		now:      time.Now,
		limiters: make(map[domain.SourceName]*rate.Limiter),
	}
}

// Execute обходит страницы с последней к первой: удаления не сдвигают еще не пройденные страницы
func (uc *LivenessSweepUseCase) Execute(ctx context.Context) (*domain.LivenessStats, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"use_case": "LivenessSweep"})

	_, total, err := uc.store.ListIDsPage(ctx, 1, uc.cfg.PageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: count listings: %w", domain.ErrPersistence, err)
	}

	pages := (total + uc.cfg.PageSize - 1) / uc.cfg.PageSize
	logger.Info("Liveness sweep started", port.Fields{"listings": total, "pages": pages})

	stats := &domain.LivenessStats{}
	var statsMu sync.Mutex

	for page := pages; page >= 1; page-- {
		if err := ctx.Err(); err != nil {
			logger.Warn("Liveness sweep cancelled", port.Fields{"page": page})
			return stats, err
		}

		ids, _, err := uc.store.ListIDsPage(ctx, page, uc.cfg.PageSize)
		if err != nil {
			logger.Error("Failed to list page of listings", err, port.Fields{"page": page})
			stats.Failed++
			continue
		}

		var g errgroup.Group
		g.SetLimit(uc.cfg.ProbeConcurrency)
		for _, id := range ids {
			g.Go(func() error {
				outcome := uc.checkListing(ctx, id)

				statsMu.Lock()
				defer statsMu.Unlock()
				switch outcome {
				case outcomeSkipped:
					stats.Skipped++
					return nil
				case outcomeDeleted:
					stats.Deleted++
				case outcomeTouched:
					stats.Touched++
				case outcomeUnknown:
					stats.Unknown++
				case outcomeFailed:
					stats.Failed++
					return nil
				}
				stats.Checked++
				return nil
			})
		}
		_ = g.Wait()
	}

	logger.Info("Liveness sweep finished", port.Fields{
		"checked": stats.Checked,
		"skipped": stats.Skipped,
		"deleted": stats.Deleted,
		"touched": stats.Touched,
		"unknown": stats.Unknown,
		"failed":  stats.Failed,
	})
	return stats, nil
}

func (uc *LivenessSweepUseCase) checkListing(ctx context.Context, id string) (outcome probeOutcome) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"use_case": "LivenessSweep", "listing_id": id})
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic during liveness check", fmt.Errorf("%v", r), nil)
			outcome = outcomeFailed
		}
	}()

	listing, err := uc.store.FindByID(ctx, id)
	if err != nil {
		logger.Error("Failed to load listing", err, nil)
		return outcomeFailed
	}
	if listing == nil {
		return outcomeSkipped
	}

	now := uc.now().UTC()
	if now.Sub(listing.LastCheckedAt) < uc.cfg.RecheckThreshold {
		return outcomeSkipped
	}

	provider, err := uc.registry.Provider(listing.SourceName)
	if err != nil {
		logger.Error("No adapter for listing source, listing left untouched", err, port.Fields{"source": string(listing.SourceName)})
		return outcomeFailed
	}

	if err := uc.limiter(listing.SourceName).Wait(ctx); err != nil {
		return outcomeFailed
	}

	switch provider.IsInactive(ctx, listing.SourceID, listing.URL) {
	case domain.LivenessInactive:
		if err := uc.store.Delete(ctx, id); err != nil {
			logger.Error("Failed to delete inactive listing", err, nil)
			return outcomeFailed
		}
		logger.Info("Inactive listing deleted", port.Fields{"source": string(listing.SourceName)})
		if err := uc.events.PublishDeleted(ctx, *listing); err != nil {
			logger.Error("Failed to publish listing deleted event", err, nil)
		}
		return outcomeDeleted

	case domain.LivenessActive:
		if err := uc.store.TouchLastChecked(ctx, id, now); err != nil {
			logger.Error("Failed to update last checked time", err, nil)
			return outcomeFailed
		}
		return outcomeTouched

	default:
		logger.Debug("Liveness unknown, listing left untouched", nil)
		return outcomeUnknown
	}
}

// limiter возвращает ограничитель частоты проверок для источника
func (uc *LivenessSweepUseCase) limiter(source domain.SourceName) *rate.Limiter {
	uc.limitersMu.Lock()
	defer uc.limitersMu.Unlock()

	l, ok := uc.limiters[source]
	if !ok {
		l = rate.NewLimiter(rate.Limit(uc.cfg.ProbesPerSecond), 1)
		uc.limiters[source] = l
	}
	return l
}
