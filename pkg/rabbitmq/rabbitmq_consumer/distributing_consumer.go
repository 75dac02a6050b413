package rabbitmq_consumer

import (
	"context"
	"fmt"
	"time"

	"listing-aggregator-service/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageHandler обрабатывает одно сообщение. Ack/nack/retry решает пакет по возвращенной ошибке.
type MessageHandler func(delivery amqp.Delivery) error

// deliveryOutcome - что делать с сообщением после обработки
type deliveryOutcome int

const (
	outcomeAck deliveryOutcome = iota
	outcomeDrop
	outcomeRetry
	outcomeDeadLetter
)

// decideOutcome выбирает судьбу сообщения по результату обработки и числу прошлых попыток
func decideOutcome(processErr error, retryEnabled bool, deaths int64, maxRetries int) deliveryOutcome {
	switch {
	case processErr == nil:
		return outcomeAck
	case !retryEnabled:
		return outcomeDrop
	case deaths < int64(maxRetries):
		return outcomeRetry
	default:
		return outcomeDeadLetter
	}
}

// DistributingConsumer обрабатывает каждое сообщение в отдельной горутине
type DistributingConsumer struct {
	baseConsumer *baseConsumer
	handler      MessageHandler
}

// NewDistributingConsumer создает нового потребителя
func NewDistributingConsumer(cfg ConsumerConfig, handler MessageHandler, connManager *rabbitmq_common.ConnectionManager) (*DistributingConsumer, error) {
	if handler == nil {
		return nil, fmt.Errorf("distributing Consumer: message handler is required")
	}

	bc, err := newBaseConsumer(cfg, connManager)
	if err != nil {
		return nil, fmt.Errorf("distributing Consumer: %w", err)
	}

	return &DistributingConsumer{
		baseConsumer: bc,
		handler:      handler,
	}, nil
}

// StartConsuming блокируется до отмены ctx или закрытия соединения
func (c *DistributingConsumer) StartConsuming(ctx context.Context) error {
	bc := c.baseConsumer
	if bc.channel == nil || bc.connection == nil || bc.connection.IsClosed() {
		return fmt.Errorf("distributing Consumer: not connected")
	}

	msgs, err := bc.channel.Consume(
		bc.actualQueueName,
		bc.config.ConsumerTag,
		false, // auto-ack
		bc.config.ExclusiveConsumer,
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("distributing Consumer %s: failed to register a consumer on queue '%s': %w", bc.config.ConsumerTag, bc.actualQueueName, err)
	}

	bc.Logger.Info("[*] Waiting for messages on queue", "queue_name", bc.actualQueueName)

	go c.dispatch(ctx, msgs)

	notifyClose := make(chan *amqp.Error, 1)
	bc.connection.NotifyClose(notifyClose)

	select {
	case <-ctx.Done():
		bc.Logger.Info("Context cancelled. Shutting down consumer.", "consumer_tag", bc.config.ConsumerTag)
		return nil
	case amqpErr := <-notifyClose:
		if amqpErr == nil {
			return fmt.Errorf("distributing Consumer %s: connection closed", bc.config.ConsumerTag)
		}
		bc.Logger.Error(amqpErr, "Connection closed for consumer.", "consumer_tag", bc.config.ConsumerTag)
		return amqpErr
	}
}

// dispatch читает доставки и запускает обработчик для каждой
func (c *DistributingConsumer) dispatch(ctx context.Context, msgs <-chan amqp.Delivery) {
	bc := c.baseConsumer
	for {
		// отмена проверяется до чтения, чтобы не брать новую работу после команды на остановку
		select {
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-ctx.Done():
			bc.Logger.Info("Context cancelled for consumer. Exiting consumption loop.", "consumer_tag", bc.config.ConsumerTag)
			return
		case d, ok := <-msgs:
			if !ok {
				bc.Logger.Info("Deliveries channel closed by RabbitMQ. Exiting loop.", "consumer_tag", bc.config.ConsumerTag)
				return
			}
			bc.wg.Add(1)
			go func(delivery amqp.Delivery) {
				defer bc.wg.Done()
				c.handleDelivery(delivery)
			}(d)
		}
	}
}

func (c *DistributingConsumer) handleDelivery(delivery amqp.Delivery) {
	bc := c.baseConsumer
	tag := bc.config.ConsumerTag

	bc.Logger.Debug("[->] Started processing message", "consumer_tag", tag, "delivery_tag", delivery.DeliveryTag)

	processErr := c.safeHandle(delivery)
	if processErr != nil {
		bc.Logger.Error(processErr, "Handler error for message", "consumer_tag", tag, "delivery_tag", delivery.DeliveryTag)
	}

	deaths := deathCount(delivery.Headers, bc.actualQueueName)
	switch decideOutcome(processErr, bc.config.EnableRetryMechanism, deaths, bc.config.MaxRetries) {
	case outcomeAck:
		_ = delivery.Ack(false)
		bc.Logger.Debug("[+] Message Ack'd", "consumer_tag", tag, "delivery_tag", delivery.DeliveryTag)

	case outcomeDrop:
		bc.Logger.Warn("Retry disabled. Nacking message without requeue.", "consumer_tag", tag)
		_ = delivery.Nack(false, false)

	case outcomeRetry:
		bc.Logger.Info("Retrying message", "consumer_tag", tag, "delivery_tag", delivery.DeliveryTag, "death_count", deaths)
		_ = delivery.Nack(false, false)

	case outcomeDeadLetter:
		bc.Logger.Warn("Max retries reached for message. Publishing to final DLX.", "consumer_tag", tag, "delivery_tag", delivery.DeliveryTag)
		publishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := bc.finalDlxPublisher.Publish(publishCtx, bc.config.FinalDLQRoutingKey, amqp.Publishing{
			ContentType:  delivery.ContentType,
			Body:         delivery.Body,
			Headers:      delivery.Headers,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
		})
		cancel()
		if err != nil {
			bc.Logger.Error(err, "Failed to publish to final DLX. Nacking to trigger retry loop again.", "consumer_tag", tag)
			_ = delivery.Nack(false, false)
			return
		}
		_ = delivery.Ack(false)
	}
}

// safeHandle превращает панику обработчика в ошибку
func (c *DistributingConsumer) safeHandle(delivery amqp.Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("message handler panicked: %v", r)
		}
	}()
	return c.handler(delivery)
}

// Close закрывает потребителя
func (c *DistributingConsumer) Close() error {
	c.baseConsumer.Logger.Info("Closing consumer")
	return c.baseConsumer.Close()
}
