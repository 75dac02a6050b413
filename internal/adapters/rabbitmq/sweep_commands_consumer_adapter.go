package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"listing-aggregator-service/internal/constants"
	"listing-aggregator-service/internal/contextkeys"
	"listing-aggregator-service/internal/core/domain"
	"listing-aggregator-service/internal/core/port"
	usecases_port "listing-aggregator-service/internal/core/port/usecases"
	"listing-aggregator-service/pkg/rabbitmq/rabbitmq_common"
	"listing-aggregator-service/pkg/rabbitmq/rabbitmq_consumer"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	sweepTypeIngestion = "ingestion"
	sweepTypeLiveness  = "liveness"
)

// MessageValidator проверяет тело сообщения по схеме его типа и версии
type MessageValidator interface {
	Validate(messageType, version string, body []byte) error
}

// PresetSource отдает именованные критерии поиска
type PresetSource interface {
	Preset(name string) (domain.SearchCriteria, bool)
}

// SweepCommandsConsumerAdapter слушает команды планировщика и запускает проходы сбора и проверки
type SweepCommandsConsumerAdapter struct {
	consumer    rabbitmq_consumer.Consumer
	entryPoints usecases_port.SweepEntryPointsPort
	presets     PresetSource
	validator   MessageValidator
	logger      port.LoggerPort
}

// NewSweepCommandsConsumerAdapter создает адаптер и потребителя очереди команд
func NewSweepCommandsConsumerAdapter(
	consumerCfg rabbitmq_consumer.ConsumerConfig,
	entryPoints usecases_port.SweepEntryPointsPort,
	presets PresetSource,
	validator MessageValidator,
	logger port.LoggerPort,
	connManager *rabbitmq_common.ConnectionManager,
) (*SweepCommandsConsumerAdapter, error) {
	if entryPoints == nil || presets == nil || validator == nil {
		return nil, fmt.Errorf("entry points, presets and validator are required")
	}

	adapter := &SweepCommandsConsumerAdapter{
		entryPoints: entryPoints,
		presets:     presets,
		validator:   validator,
		logger:      logger,
	}

	pkgLogger := logger.WithFields(port.Fields{"component": "rabbitmq_distributing_consumer", "consumer_tag": consumerCfg.ConsumerTag})
	consumerCfg.Logger = NewPkgLoggerBridge(pkgLogger)

	consumer, err := rabbitmq_consumer.NewDistributingConsumer(consumerCfg, adapter.messageHandler, connManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ consumer for sweep commands: %w", err)
	}
	adapter.consumer = consumer

	return adapter, nil
}

// Start блокируется до отмены ctx
func (a *SweepCommandsConsumerAdapter) Start(ctx context.Context) error {
	a.logger.Info("Starting sweep commands consumer", nil)
	return a.consumer.StartConsuming(ctx)
}

func (a *SweepCommandsConsumerAdapter) Close() error {
	return a.consumer.Close()
}

// messageHandler возвращает ошибку только для сообщений, которые стоит повторить или отправить в DLQ
func (a *SweepCommandsConsumerAdapter) messageHandler(d amqp.Delivery) error {
	traceID, ok := d.Headers["x-trace-id"].(string)
	if !ok || traceID == "" {
		traceID = uuid.New().String()
	}

	msgLogger := a.logger.WithFields(port.Fields{
		"trace_id":     traceID,
		"delivery_tag": d.DeliveryTag,
	})

	ctx := context.Background()
	ctx = contextkeys.ContextWithLogger(ctx, msgLogger)
	ctx = contextkeys.ContextWithTraceID(ctx, traceID)

	messageType, _ := d.Headers["event-type"].(string)
	if messageType == "" {
		messageType = constants.CommandTypeSweep
	}
	version, _ := d.Headers["event-version"].(string)
	if version == "" {
		version = constants.MessageVersionV1
	}

	if err := a.validator.Validate(messageType, version, d.Body); err != nil {
		msgLogger.Error("Message failed schema validation. Rejecting.", err, port.Fields{"message_type": messageType, "version": version})
		return fmt.Errorf("invalid sweep command: %w", err)
	}

	var cmd SweepCommandDTO
	if err := json.Unmarshal(d.Body, &cmd); err != nil {
		msgLogger.Error("Error unmarshalling sweep command", err, nil)
		return fmt.Errorf("unmarshal error: %w", err)
	}

	cmdLogger := msgLogger.WithFields(port.Fields{"sweep": cmd.Type})
	ctx = contextkeys.ContextWithLogger(ctx, cmdLogger)

	switch cmd.Type {
	case sweepTypeLiveness:
		runID := a.entryPoints.RunLivenessSweep(ctx)
		cmdLogger.Info("Liveness sweep started", port.Fields{"run_id": runID})

	case sweepTypeIngestion:
		criteria, err := a.resolveCriteria(cmd)
		if err != nil {
			// команду нельзя выполнить ни сейчас, ни после повтора
			cmdLogger.Error("Cannot resolve search criteria, dropping command", err, port.Fields{"preset": cmd.Preset})
			return nil
		}
		runID := a.entryPoints.RunIngestionSweep(ctx, criteria)
		cmdLogger.Info("Ingestion sweep started", port.Fields{"run_id": runID, "preset": cmd.Preset})

	default:
		cmdLogger.Warn("Unknown sweep type, dropping command", nil)
	}
	return nil
}

func (a *SweepCommandsConsumerAdapter) resolveCriteria(cmd SweepCommandDTO) (domain.SearchCriteria, error) {
	var criteria domain.SearchCriteria
	switch {
	case cmd.Preset != "":
		preset, ok := a.presets.Preset(cmd.Preset)
		if !ok {
			return domain.SearchCriteria{}, fmt.Errorf("%w: unknown search preset %q", domain.ErrConfiguration, cmd.Preset)
		}
		criteria = preset
	case cmd.Criteria != nil:
		criteria = toCriteria(*cmd.Criteria)
	default:
		return domain.SearchCriteria{}, fmt.Errorf("%w: neither preset nor criteria given", domain.ErrInvalidCriteria)
	}

	criteria = criteria.WithDefaults()
	if err := criteria.Validate(); err != nil {
		return domain.SearchCriteria{}, err
	}
	return criteria, nil
}

var _ port.EventListenerPort = (*SweepCommandsConsumerAdapter)(nil)
