package usecase

import (
	"context"
	"fmt"
	"sync"

	"listing-aggregator-service/internal/contextkeys"
	"listing-aggregator-service/internal/core/domain"
	"listing-aggregator-service/internal/core/port"
	usecases_port "listing-aggregator-service/internal/core/port/usecases"

	"github.com/google/uuid"
)

// SweepEntryPoints запускает проходы в фоне. Ошибки и паники только логируются.
type SweepEntryPoints struct {
	appCtx      context.Context
	ingestionUC usecases_port.RunIngestionPort
	livenessUC  usecases_port.LivenessSweepPort
	wg          sync.WaitGroup
}

// NewSweepEntryPoints - appCtx ограничивает время жизни всех запущенных проходов
func NewSweepEntryPoints(
	appCtx context.Context,
	ingestionUC usecases_port.RunIngestionPort,
	livenessUC usecases_port.LivenessSweepPort,
) *SweepEntryPoints {
	return &SweepEntryPoints{
		appCtx:      appCtx,
		ingestionUC: ingestionUC,
		livenessUC:  livenessUC,
	}
}

func (e *SweepEntryPoints) RunIngestionSweep(ctx context.Context, criteria domain.SearchCriteria) string {
	return e.launch(ctx, "ingestion", func(runCtx context.Context, logger port.LoggerPort) error {
		stats, err := e.ingestionUC.Execute(runCtx, criteria)
		if err != nil {
			return err
		}
		logger.Info("Ingestion sweep completed", port.Fields{"rounds": stats.Rounds, "persisted": stats.Persisted})
		return nil
	})
}

func (e *SweepEntryPoints) RunLivenessSweep(ctx context.Context) string {
	return e.launch(ctx, "liveness", func(runCtx context.Context, logger port.LoggerPort) error {
		stats, err := e.livenessUC.Execute(runCtx)
		if err != nil {
			return err
		}
		logger.Info("Liveness sweep completed", port.Fields{"checked": stats.Checked, "deleted": stats.Deleted})
		return nil
	})
}

// Wait ждет завершения всех запущенных проходов
func (e *SweepEntryPoints) Wait() {
	e.wg.Wait()
}

// launch отвязывает проход от контекста вызывающего (HTTP-запрос, сообщение из очереди),
// сохраняя логгер и trace_id. Отмена приходит только из appCtx.
func (e *SweepEntryPoints) launch(ctx context.Context, kind string, run func(context.Context, port.LoggerPort) error) string {
	runID := uuid.NewString()

	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"sweep":  kind,
		"run_id": runID,
	})

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(e.appCtx, cancel)
	runCtx = contextkeys.ContextWithRunID(runCtx, runID)
	runCtx = contextkeys.ContextWithLogger(runCtx, logger)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		defer stop()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Sweep panicked", fmt.Errorf("%v", r), nil)
			}
		}()

		logger.Info("Sweep started", nil)
		if err := run(runCtx, logger); err != nil {
			logger.Error("Sweep failed", err, nil)
		}
	}()

	return runID
}

var _ usecases_port.SweepEntryPointsPort = (*SweepEntryPoints)(nil)
