package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"listing-aggregator-service/internal/constants"
	"listing-aggregator-service/internal/contextkeys"
	"listing-aggregator-service/internal/core/domain"
	"listing-aggregator-service/internal/core/port"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 10 * time.Second

// MessagePublisher - то, что адаптеру нужно от rabbitmq_producer.Publisher
type MessagePublisher interface {
	Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error
}

// ListingEventsEnqueueAdapter публикует события listings.created и listings.deleted
type ListingEventsEnqueueAdapter struct {
	producer MessagePublisher
	now      func() time.Time
}

// NewListingEventsEnqueueAdapter создает новый экземпляр
func NewListingEventsEnqueueAdapter(producer MessagePublisher) (*ListingEventsEnqueueAdapter, error) {
	if producer == nil {
		return nil, fmt.Errorf("producer cannot be nil")
	}
	return &ListingEventsEnqueueAdapter{producer: producer, now: time.Now}, nil
}

// PublishCreated отправляет одно событие на всю сохраненную пачку
func (a *ListingEventsEnqueueAdapter) PublishCreated(ctx context.Context, listings []domain.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	event := ListingsCreatedEventDTO{
		MessageID:  uuid.NewString(),
		OccurredAt: a.now().UTC(),
		RunID:      contextkeys.RunIDFromContext(ctx),
		Listings:   make([]ListingDTO, 0, len(listings)),
	}
	for _, l := range listings {
		event.Listings = append(event.Listings, toListingDTO(l))
	}

	return a.publish(ctx, constants.RoutingKeyListingsCreated, constants.EventTypeListingsCreated, event, port.Fields{
		"listings_count": len(listings),
	})
}

// PublishDeleted отправляет событие об удалении неактивного объявления
func (a *ListingEventsEnqueueAdapter) PublishDeleted(ctx context.Context, listing domain.Listing) error {
	event := ListingDeletedEventDTO{
		MessageID:    uuid.NewString(),
		OccurredAt:   a.now().UTC(),
		RunID:        contextkeys.RunIDFromContext(ctx),
		ID:           listing.ID,
		SourceID:     listing.SourceID,
		SourceName:   string(listing.SourceName),
		URL:          listing.URL,
		Municipality: listing.Municipality,
		RentOrSale:   string(listing.RentOrSale),
		Reason:       "inactive",
	}

	return a.publish(ctx, constants.RoutingKeyListingDeleted, constants.EventTypeListingDeleted, event, port.Fields{
		"listing_id": listing.ID,
	})
}

func (a *ListingEventsEnqueueAdapter) publish(ctx context.Context, routingKey, eventType string, event any, fields port.Fields) error {
	adapterLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":   "ListingEventsEnqueueAdapter",
		"routing_key": routingKey,
	})

	body, err := json.Marshal(event)
	if err != nil {
		adapterLogger.Error("Failed to marshal event to JSON", err, fields)
		return fmt.Errorf("failed to marshal %s: %w", eventType, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    a.now(),
		Headers: amqp.Table{
			"event-type":    eventType,
			"event-version": constants.MessageVersionV1,
		},
	}
	if traceID := contextkeys.TraceIDFromContext(ctx); traceID != "" {
		msg.Headers["x-trace-id"] = traceID
	}

	// событие отправляется и при остановке прохода, если запись уже сделана
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := a.producer.Publish(publishCtx, routingKey, msg); err != nil {
		adapterLogger.Error("Failed to publish event", err, fields)
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}

	adapterLogger.Debug("Event published", fields)
	return nil
}

var _ port.ListingEventsPort = (*ListingEventsEnqueueAdapter)(nil)
