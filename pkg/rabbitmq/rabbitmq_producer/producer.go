package rabbitmq_producer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"listing-aggregator-service/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConfirmed - брокер ответил nack на публикацию в режиме подтверждений
var ErrNotConfirmed = errors.New("producer: message was nacked by broker")

// PublisherConfig конфигурация для производителя
type PublisherConfig struct {
	rabbitmq_common.Config
	ExchangeName       string // пустая строка - default exchange
	ExchangeType       string // direct, fanout, topic, headers
	DurableExchange    bool
	AutoDeleteExchange bool
	ExchangeArgs       amqp.Table

	// false - обменник должен уже существовать
	DeclareExchangeIfMissing bool

	// ConfirmMode включает publisher confirms: Publish ждет ack брокера
	ConfirmMode bool

	Logger rabbitmq_common.Logger
}

func (cfg *PublisherConfig) validate() error {
	if err := cfg.Config.Validate(); err != nil {
		return fmt.Errorf("invalid base config: %w", err)
	}
	if cfg.DeclareExchangeIfMissing && (cfg.ExchangeName == "") != (cfg.ExchangeType == "") {
		return fmt.Errorf("producer: exchange name and type must be set together when DeclareExchangeIfMissing is true")
	}
	return nil
}

// Publisher публикует сообщения в один обменник. Канал открывается заново,
// если ConnectionManager переподключился после обрыва.
type Publisher struct {
	config      PublisherConfig
	connManager *rabbitmq_common.ConnectionManager
	channel     *amqp.Channel
	mu          sync.Mutex

	Logger rabbitmq_common.Logger
}

// NewPublisher создает производителя и сразу открывает канал
func NewPublisher(cfg PublisherConfig, connManager *rabbitmq_common.ConnectionManager) (*Publisher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if connManager == nil {
		return nil, fmt.Errorf("producer: connection manager is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = rabbitmq_common.NewNoopLogger()
	}

	p := &Publisher{
		config:      cfg,
		connManager: connManager,
		Logger:      logger,
	}
	if err := p.openChannel(); err != nil {
		return nil, err
	}

	p.Logger.Debug("Publisher is ready", "exchange", cfg.ExchangeName, "confirm_mode", cfg.ConfirmMode)
	return p, nil
}

// openChannel вызывается под p.mu или до того, как Publisher стал доступен другим горутинам
func (p *Publisher) openChannel() error {
	_, ch, err := p.connManager.GetChannel()
	if err != nil {
		return fmt.Errorf("producer: failed to get channel from manager: %w", err)
	}

	if p.config.DeclareExchangeIfMissing && p.config.ExchangeName != "" {
		p.Logger.Debug("Declaring exchange", "name", p.config.ExchangeName, "type", p.config.ExchangeType)
		err = ch.ExchangeDeclare(
			p.config.ExchangeName,
			p.config.ExchangeType,
			p.config.DurableExchange,
			p.config.AutoDeleteExchange,
			false, // internal
			false, // no-wait
			p.config.ExchangeArgs,
		)
		if err != nil {
			_ = ch.Close()
			return fmt.Errorf("producer: failed to declare exchange '%s': %w", p.config.ExchangeName, err)
		}
	}

	if p.config.ConfirmMode {
		if err := ch.Confirm(false); err != nil {
			_ = ch.Close()
			return fmt.Errorf("producer: failed to enable confirm mode: %w", err)
		}
	}

	p.channel = ch
	return nil
}

// Publish публикует сообщение. В режиме подтверждений ждет ack в пределах ctx.
func (p *Publisher) Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil || p.channel.IsClosed() {
		p.Logger.Warn("Producer channel is closed, reopening", "exchange", p.config.ExchangeName)
		if err := p.openChannel(); err != nil {
			return err
		}
	}

	confirmation, err := p.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		p.config.ExchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		msg,
	)
	if err != nil {
		return fmt.Errorf("producer: failed to publish message: %w", err)
	}

	// без confirm mode подтверждения нет
	if confirmation == nil {
		return nil
	}
	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("producer: waiting for confirmation: %w", err)
	}
	if !acked {
		return ErrNotConfirmed
	}
	return nil
}

// Close закрывает канал производителя. Общее соединение закрывает ConnectionManager.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil {
		return nil
	}
	err := p.channel.Close()
	p.channel = nil
	if err != nil && !errors.Is(err, amqp.ErrClosed) {
		p.Logger.Error(err, "Error closing producer channel")
		return err
	}
	p.Logger.Info("Producer closed", "exchange", p.config.ExchangeName)
	return nil
}
