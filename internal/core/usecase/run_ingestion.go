package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"listing-aggregator-service/internal/contextkeys"
	"listing-aggregator-service/internal/core/domain"
	"listing-aggregator-service/internal/core/port"
	usecases_port "listing-aggregator-service/internal/core/port/usecases"
)

const (
	defaultRequestTimeout = 3 * time.Second
	defaultMaxRounds      = 50
)

// IngestionConfig - ограничения одного запуска сбора
type IngestionConfig struct {
	RequestTimeout time.Duration // на каждый запрос страницы выдачи
	MaxRounds      int
}

// RunIngestionUseCase обходит все включенные источники постранично.
// Страницы одного раунда запрашиваются параллельно, обрабатываются последовательно в порядке реестра.
type RunIngestionUseCase struct {
	registry  port.ProviderRegistryPort
	fetcher   port.FetcherPort
	processUC usecases_port.ProcessCandidatesPort
	cfg       IngestionConfig
}

func NewRunIngestionUseCase(
	registry port.ProviderRegistryPort,
	fetcher port.FetcherPort,
	processUC usecases_port.ProcessCandidatesPort,
	cfg IngestionConfig,
) *RunIngestionUseCase {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = defaultMaxRounds
	}
	return &RunIngestionUseCase{
		registry:  registry,
		fetcher:   fetcher,
		processUC: processUC,
		cfg:       cfg,
	}
}

// sourceJob - следующая страница, которую нужно забрать у источника
type sourceJob struct {
	provider port.ProviderPort
	criteria domain.SearchCriteria
}

type fetchResult struct {
	raw *domain.RawResponse
	err error
}

func (uc *RunIngestionUseCase) Execute(ctx context.Context, criteria domain.SearchCriteria) (*domain.IngestionStats, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"use_case": "RunIngestion"})

	criteria = criteria.WithDefaults()
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	stats := domain.NewIngestionStats()
	queue := make([]sourceJob, 0)
	for _, p := range uc.registry.Providers() {
		queue = append(queue, sourceJob{provider: p, criteria: criteria})
		stats.ForSource(p.Source())
	}

	logger.Info("Ingestion started", port.Fields{"sources": len(queue), "municipalities": criteria.Municipalities})

	for round := 1; len(queue) > 0; round++ {
		if round > uc.cfg.MaxRounds {
			logger.Warn("Max rounds reached, stopping ingestion", port.Fields{"max_rounds": uc.cfg.MaxRounds, "pending_sources": len(queue)})
			break
		}
		if err := ctx.Err(); err != nil {
			logger.Warn("Ingestion cancelled", port.Fields{"round": round})
			return stats, err
		}
		stats.Rounds = round

		results := uc.fetchRound(ctx, queue)

		next := make([]sourceJob, 0, len(queue))
		for i, job := range queue {
			source := job.provider.Source()
			jobLogger := logger.WithFields(port.Fields{"source": string(source), "page": job.criteria.Page, "round": round})
			jobCtx := contextkeys.ContextWithLogger(ctx, jobLogger)

			hasNext, err := uc.processPage(jobCtx, job, results[i], stats.ForSource(source))
			if err != nil {
				jobLogger.Error("Source excluded from ingestion run", err, nil)
				stats.ForSource(source).Failed = true
				continue
			}
			if hasNext {
				next = append(next, sourceJob{provider: job.provider, criteria: job.criteria.NextPage()})
			}
		}
		queue = next
	}

	for _, s := range stats.Sources {
		stats.Persisted += s.Persisted
	}
	logger.Info("Ingestion finished", port.Fields{"rounds": stats.Rounds, "persisted": stats.Persisted})

	return stats, nil
}

// fetchRound запрашивает по одной странице у каждого источника. У каждого запроса свой таймаут,
// сбой одного источника не отменяет остальные.
func (uc *RunIngestionUseCase) fetchRound(ctx context.Context, queue []sourceJob) []fetchResult {
	logger := contextkeys.LoggerFromContext(ctx)
	results := make([]fetchResult, len(queue))

	var wg sync.WaitGroup
	for i, job := range queue {
		req, err := job.provider.BuildRequest(job.criteria)
		if err != nil {
			results[i] = fetchResult{err: fmt.Errorf("build request: %w", err)}
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Panic while fetching page", fmt.Errorf("%v", r), port.Fields{"source": string(job.provider.Source())})
					results[i] = fetchResult{err: fmt.Errorf("panic while fetching: %v", r)}
				}
			}()

			reqCtx, cancel := context.WithTimeout(ctx, uc.cfg.RequestTimeout)
			defer cancel()

			raw, err := uc.fetcher.Fetch(reqCtx, req)
			results[i] = fetchResult{raw: raw, err: err}
		}()
	}
	wg.Wait()

	return results
}

// processPage разбирает страницу и передает кандидатов дальше. Паника превращается в ошибку источника.
func (uc *RunIngestionUseCase) processPage(ctx context.Context, job sourceJob, result fetchResult, st *domain.SourceStats) (hasNext bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			hasNext, err = false, fmt.Errorf("panic while processing page: %v", r)
		}
	}()

	if result.err != nil {
		return false, result.err
	}

	candidates, hasNext, err := job.provider.ExtractCandidates(result.raw)
	if err != nil {
		return false, fmt.Errorf("extract candidates: %w", err)
	}
	st.Pages++
	if len(candidates) == 0 {
		contextkeys.LoggerFromContext(ctx).Info("No candidates on page, source finished", nil)
		return false, nil
	}
	st.Candidates += len(candidates)

	persisted, err := uc.processUC.Execute(ctx, job.provider, candidates, job.criteria)
	if err != nil {
		return false, err
	}
	st.Persisted += persisted

	return hasNext, nil
}
