package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"listing-aggregator-service/internal/adapters/eventlog"
	"listing-aggregator-service/internal/adapters/httpfetcher"
	logger_adapter "listing-aggregator-service/internal/adapters/logger"
	"listing-aggregator-service/internal/adapters/memstore"
	postgres_adapter "listing-aggregator-service/internal/adapters/postgres"
	"listing-aggregator-service/internal/adapters/providers"
	"listing-aggregator-service/internal/adapters/providers/cityexpert"
	"listing-aggregator-service/internal/adapters/providers/fourzida"
	"listing-aggregator-service/internal/adapters/providers/halooglasi"
	"listing-aggregator-service/internal/adapters/providers/nekretnine"
	rabbitmq_adapter "listing-aggregator-service/internal/adapters/rabbitmq"
	"listing-aggregator-service/internal/adapters/rest"
	"listing-aggregator-service/internal/configs"
	"listing-aggregator-service/internal/constants"
	"listing-aggregator-service/internal/contracts"
	"listing-aggregator-service/internal/core/domain"
	"listing-aggregator-service/internal/core/port"
	"listing-aggregator-service/internal/core/usecase"
	fluentlogger "listing-aggregator-service/pkg/fluent_logger"
	"listing-aggregator-service/pkg/postgres"
	"listing-aggregator-service/pkg/rabbitmq/rabbitmq_common"
	"listing-aggregator-service/pkg/rabbitmq/rabbitmq_consumer"
	"listing-aggregator-service/pkg/rabbitmq/rabbitmq_producer"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/jackc/pgx/v5/pgxpool"
)

const shutdownTimeout = 15 * time.Second

// sourceDomains - домены источников для лимитов colly
var sourceDomains = map[domain.SourceName]string{
	domain.SourceCityExpert: "*cityexpert.rs*",
	domain.SourceFourZida:   "*4zida.rs*",
	domain.SourceHaloOglasi: "*halooglasi.com*",
	domain.SourceNekretnine: "*nekretnine.rs*",
}

type App struct {
	config *configs.AppConfig
	logger port.LoggerPort

	appCtx    context.Context
	cancelApp context.CancelFunc

	apiServer        *rest.Server
	commandsConsumer *rabbitmq_adapter.SweepCommandsConsumerAdapter
	entryPoints      *usecase.SweepEntryPoints

	eventProducer *rabbitmq_producer.Publisher
	connManager   *rabbitmq_common.ConnectionManager
	pool          *pgxpool.Pool
	fluentClient  *fluent.Fluent
}

func NewApp() (*App, error) {
	appConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}

	app := &App{config: appConfig}
	app.appCtx, app.cancelApp = context.WithCancel(context.Background())

	// если сборка не удалась, закрываем то, что уже открыто
	ok := false
	defer func() {
		if !ok {
			app.cancelApp()
			app.closeResources()
		}
	}()

	// --- 1. ЛОГГЕРЫ ---
	baseLogger, err := app.initLoggers()
	if err != nil {
		return nil, err
	}
	appLogger := baseLogger.WithFields(port.Fields{"component": "app"})
	app.logger = appLogger

	// --- 2. ХРАНИЛИЩЕ ---
	store, err := app.initStore(baseLogger)
	if err != nil {
		appLogger.Error("Failed to initialize listing store", err, nil)
		return nil, err
	}

	// --- 3. СОБЫТИЯ ---
	var events port.ListingEventsPort = eventlog.NewLogListingEventsAdapter()
	if appConfig.RabbitMQ.Enabled {
		connManager, err := rabbitmq_common.NewConnectionManager(
			rabbitmq_common.Config{URL: appConfig.RabbitMQ.URL},
			rabbitmq_adapter.NewPkgLoggerBridge(baseLogger.WithFields(port.Fields{"component": "rabbitmq_conn_manager"})),
		)
		if err != nil {
			appLogger.Error("Failed to create connection manager", err, nil)
			return nil, fmt.Errorf("failed to create connection manager: %w", err)
		}
		app.connManager = connManager

		eventProducer, err := rabbitmq_producer.NewPublisher(rabbitmq_producer.PublisherConfig{
			Config:                   rabbitmq_common.Config{URL: appConfig.RabbitMQ.URL},
			ExchangeName:             constants.ExchangeListingEvents,
			ExchangeType:             constants.ExchangeTypeTopic,
			DurableExchange:          true,
			DeclareExchangeIfMissing: true,
			ConfirmMode:              true,
			Logger:                   rabbitmq_adapter.NewPkgLoggerBridge(baseLogger.WithFields(port.Fields{"component": "rabbitmq_producer"})),
		}, connManager)
		if err != nil {
			return nil, fmt.Errorf("failed to create event producer: %w", err)
		}
		app.eventProducer = eventProducer

		events, err = rabbitmq_adapter.NewListingEventsEnqueueAdapter(eventProducer)
		if err != nil {
			return nil, err
		}
		appLogger.Info("RabbitMQ event producer initialized", port.Fields{"exchange": constants.ExchangeListingEvents})
	}

	// --- 4. ИСТОЧНИКИ ---
	fetcher, err := httpfetcher.NewCollyFetcherAdapter(fetcherConfig(appConfig.Aggregator))
	if err != nil {
		return nil, fmt.Errorf("failed to create fetcher: %w", err)
	}

	settings, err := providerSettings(appConfig.Aggregator)
	if err != nil {
		return nil, err
	}
	registry, err := providers.NewRegistry(settings, fetcher)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider registry: %w", err)
	}

	presets, err := configs.LoadSearchPresets(appConfig.SearchPresetsFile)
	if err != nil {
		return nil, err
	}
	appLogger.Info("Sources and presets loaded", port.Fields{
		"sources": len(registry.Providers()),
		"presets": presets.Names(),
	})

	// --- 5. USE CASES ---
	processUC := usecase.NewProcessCandidatesUseCase(store, fetcher, events, usecase.PipelineConfig{
		DetailConcurrency:   appConfig.Aggregator.DetailConcurrency,
		DropOnDetailFailure: appConfig.Aggregator.DropOnDetailFailure,
		RequestTimeout:      appConfig.Aggregator.RequestTimeout,
	})
	ingestionUC := usecase.NewRunIngestionUseCase(registry, fetcher, processUC, usecase.IngestionConfig{
		RequestTimeout: appConfig.Aggregator.RequestTimeout,
		MaxRounds:      appConfig.Aggregator.MaxRounds,
	})
	livenessUC := usecase.NewLivenessSweepUseCase(store, registry, events, usecase.LivenessConfig{
		PageSize:         appConfig.Liveness.PageSize,
		RecheckThreshold: appConfig.Liveness.RecheckThreshold,
		ProbeConcurrency: appConfig.Liveness.ProbeConcurrency,
		ProbesPerSecond:  appConfig.Liveness.ProbesPerSecond,
	})
	app.entryPoints = usecase.NewSweepEntryPoints(app.appCtx, ingestionUC, livenessUC)
	appLogger.Info("All use cases initialized", nil)

	// --- 6. ВХОДЯЩИЕ АДАПТЕРЫ ---
	if appConfig.RabbitMQ.Enabled {
		schemas, err := contracts.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load message schemas: %w", err)
		}
		app.commandsConsumer, err = rabbitmq_adapter.NewSweepCommandsConsumerAdapter(
			commandsConsumerConfig(appConfig.RabbitMQ),
			app.entryPoints,
			presets,
			schemas,
			baseLogger.WithFields(port.Fields{"component": "SweepCommandsConsumerAdapter"}),
			app.connManager,
		)
		if err != nil {
			return nil, err
		}
	}

	app.apiServer = rest.NewServer(appConfig.Rest.Port, rest.NewSweepHandlers(app.entryPoints, presets), baseLogger)

	ok = true
	return app, nil
}

func (a *App) initLoggers() (port.LoggerPort, error) {
	cfg := a.config

	var activeLoggers []port.LoggerPort

	stdoutLogger := logger_adapter.NewSlogAdapter(logger_adapter.SlogConfig{
		Level:    parseLogLevel(cfg.StdoutLogger.Level),
		IsJSON:   cfg.StdoutLogger.IsJSON,
		UseColor: !cfg.StdoutLogger.IsJSON,
	})
	activeLoggers = append(activeLoggers, stdoutLogger)

	if cfg.FluentBit.Enabled {
		fluentClient, err := fluentlogger.NewClient(fluentlogger.Config{
			Host:      cfg.FluentBit.Host,
			Port:      cfg.FluentBit.Port,
			TagPrefix: cfg.AppName,
		})
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit client", err, nil)
			return nil, fmt.Errorf("failed to create fluentbit client: %w", err)
		}
		a.fluentClient = fluentClient

		fluentAdapter, err := logger_adapter.NewFluentLoggerAdapter(fluentClient, parseLogLevel(cfg.FluentBit.Level))
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit adapter", err, nil)
			return nil, err
		}
		activeLoggers = append(activeLoggers, fluentAdapter)
	}

	multiLogger, err := logger_adapter.NewMultiloggerAdapter(activeLoggers...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}

	baseLogger := multiLogger.WithFields(port.Fields{"service_name": cfg.AppName})
	baseLogger.Info("Logger system initialized", port.Fields{
		"active_loggers": len(activeLoggers), "fluent_enabled": cfg.FluentBit.Enabled,
	})
	return baseLogger, nil
}

func (a *App) initStore(baseLogger port.LoggerPort) (port.ListingStorePort, error) {
	storeLogger := baseLogger.WithFields(port.Fields{"component": "store", "driver": a.config.Store.Driver})

	if a.config.Store.Driver == configs.StoreDriverMemory {
		storeLogger.Warn("Using in-memory listing store, data is lost on restart", nil)
		return memstore.NewMemoryListingStoreAdapter(), nil
	}

	pool, err := postgres.NewClient(a.appCtx, postgres.Config{
		DatabaseURL:    a.config.Store.DatabaseURL,
		MaxConns:       int32(a.config.Store.MaxConns),
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	a.pool = pool
	storeLogger.Info("PostgreSQL pool initialized", nil)

	return postgres_adapter.NewPostgresListingStoreAdapter(pool)
}

func fetcherConfig(cfg configs.AggregatorConfig) httpfetcher.Config {
	limits := make([]httpfetcher.DomainLimit, 0, len(sourceDomains))
	for _, name := range domain.KnownSources() {
		limits = append(limits, httpfetcher.DomainLimit{
			DomainGlob:  sourceDomains[name],
			Parallelism: cfg.SourceParallelism,
			RandomDelay: cfg.RandomDelay,
		})
	}
	return httpfetcher.Config{
		RequestTimeout: cfg.RequestTimeout,
		Limits:         limits,
		RandomizeAgent: cfg.RandomizeUserAgent,
	}
}

func providerSettings(cfg configs.AggregatorConfig) (providers.Settings, error) {
	settings := providers.Settings{
		CityExpert: cityexpert.Config{BaseURL: cfg.CityExpert.BaseURL},
		FourZida:   fourzida.Config{BaseURL: cfg.FourZida.BaseURL},
		HaloOglasi: halooglasi.Config{BaseURL: cfg.HaloOglasi.BaseURL},
		Nekretnine: nekretnine.Config{BaseURL: cfg.Nekretnine.BaseURL},
	}
	for _, raw := range cfg.Sources {
		name, err := domain.ParseSourceName(raw)
		if err != nil {
			return providers.Settings{}, fmt.Errorf("AGGREGATOR_SOURCES: %w", err)
		}
		settings.Enabled = append(settings.Enabled, name)
	}
	return settings, nil
}

func commandsConsumerConfig(cfg configs.RabbitMQConfig) rabbitmq_consumer.ConsumerConfig {
	return rabbitmq_consumer.ConsumerConfig{
		Config:                 rabbitmq_common.Config{URL: cfg.URL},
		QueueName:              constants.QueueSweepCommands,
		DeclareQueue:           true,
		DurableQueue:           true,
		ExchangeNameForBind:    constants.ExchangeSweepCommands,
		DeclareExchangeForBind: true,
		ExchangeTypeForBind:    constants.ExchangeTypeDirect,
		DurableExchangeForBind: true,
		RoutingKeyForBind:      constants.RoutingKeySweepCommands,
		PrefetchCount:          cfg.Prefetch,
		ConsumerTag:            "sweep-commands-consumer",

		EnableRetryMechanism: true,
		RetryExchange:        constants.RetryExchangeForSweepCommands,
		RetryQueue:           constants.RetryQueueForSweepCommands,
		RetryTTL:             int(cfg.RetryTTL.Milliseconds()),
		FinalDLXExchange:     constants.FinalDLXExchangeForSweepCommands,
		FinalDLQ:             constants.FinalDLQForSweepCommands,
		FinalDLQRoutingKey:   constants.FinalDLQRoutingKeyForSweepCommands,
		MaxRetries:           cfg.MaxRetries,
	}
}

// Run запускает входящие адаптеры и блокируется до сигнала ОС или ошибки компонента
func (a *App) Run() error {
	defer a.shutdown()

	a.logger.Info("Application is starting...", nil)

	componentErrors := make(chan error, 2)
	go func() {
		if err := a.apiServer.Start(); err != nil {
			componentErrors <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	if a.commandsConsumer != nil {
		go func() {
			if err := a.commandsConsumer.Start(a.appCtx); err != nil && !errors.Is(err, context.Canceled) {
				componentErrors <- fmt.Errorf("sweep commands consumer: %w", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	a.logger.Info("Application running. Waiting for signals or component error...", nil)
	select {
	case receivedSignal := <-quit:
		a.logger.Warn("Received OS signal, shutting down...", port.Fields{"signal": receivedSignal.String()})
		return nil
	case err := <-componentErrors:
		a.logger.Error("Component failed, shutting down", err, nil)
		return err
	}
}

// shutdown: сначала входящие адаптеры, затем отмена и ожидание проходов, затем исходящие ресурсы
func (a *App) shutdown() {
	a.logger.Info("Shutdown sequence initiated...", nil)

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.apiServer != nil {
		if err := a.apiServer.Stop(stopCtx); err != nil {
			a.logger.Error("Error during API server shutdown", err, nil)
		}
	}
	if a.commandsConsumer != nil {
		if err := a.commandsConsumer.Close(); err != nil {
			a.logger.Error("Error closing sweep commands consumer", err, nil)
		}
	}

	a.cancelApp()
	if a.entryPoints != nil {
		done := make(chan struct{})
		go func() {
			a.entryPoints.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-stopCtx.Done():
			a.logger.Warn("Running sweeps did not stop in time", nil)
		}
	}

	a.logger.Info("Application shut down gracefully.", nil)
	a.closeResources()
}

func (a *App) closeResources() {
	if a.eventProducer != nil {
		if err := a.eventProducer.Close(); err != nil && a.logger != nil {
			a.logger.Error("Error closing event producer", err, nil)
		}
	}
	if a.connManager != nil {
		if err := a.connManager.Close(); err != nil && a.logger != nil {
			a.logger.Error("Error closing RabbitMQ connection", err, nil)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.fluentClient != nil {
		if err := a.fluentClient.Close(); err != nil {
			// fluent может быть уже недоступен
			fmt.Printf("ERROR: Error closing fluent client: %v\n", err)
		}
	}
}

func parseLogLevel(levelStr string) slog.Level {
	level, ok := logger_adapter.ParseLevel(levelStr)
	if !ok {
		fmt.Printf("Warning: Unknown log level '%s'. Defaulting to 'info'.\n", levelStr)
	}
	return level
}
