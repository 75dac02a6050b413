package usecases_port

import (
	"context"

	"listing-aggregator-service/internal/core/domain"
	"listing-aggregator-service/internal/core/port"
)

// RunIngestionPort - один полный запуск сбора по всем включенным источникам
type RunIngestionPort interface {
	Execute(ctx context.Context, criteria domain.SearchCriteria) (*domain.IngestionStats, error)
}

// ProcessCandidatesPort - дедупликация, обогащение и сохранение одной страницы одного источника
type ProcessCandidatesPort interface {
	Execute(ctx context.Context, provider port.ProviderPort, candidates []domain.Candidate, criteria domain.SearchCriteria) (persisted int, err error)
}

// LivenessSweepPort - один проход проверки актуальности сохраненных объявлений
type LivenessSweepPort interface {
	Execute(ctx context.Context) (*domain.LivenessStats, error)
}

// SweepEntryPointsPort - точки входа для планировщика. Запуск асинхронный, ошибки только логируются.
// Возвращается run_id запущенного прохода.
type SweepEntryPointsPort interface {
	RunIngestionSweep(ctx context.Context, criteria domain.SearchCriteria) string
	RunLivenessSweep(ctx context.Context) string
}
