package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"listing-aggregator-service/internal/constants"
	"listing-aggregator-service/internal/contextkeys"
	"listing-aggregator-service/internal/contracts"
	"listing-aggregator-service/internal/core/domain"
	"listing-aggregator-service/internal/core/port"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedMessage struct {
	routingKey string
	msg        amqp.Publishing
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

func (f *fakePublisher) Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, publishedMessage{routingKey: routingKey, msg: msg})
	return nil
}

type fakeEntryPoints struct {
	mu        sync.Mutex
	ingestion []domain.SearchCriteria
	liveness  int
	traceIDs  []string
}

func (f *fakeEntryPoints) RunIngestionSweep(ctx context.Context, criteria domain.SearchCriteria) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingestion = append(f.ingestion, criteria)
	f.traceIDs = append(f.traceIDs, contextkeys.TraceIDFromContext(ctx))
	return "run-ingestion"
}

func (f *fakeEntryPoints) RunLivenessSweep(ctx context.Context) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.liveness++
	f.traceIDs = append(f.traceIDs, contextkeys.TraceIDFromContext(ctx))
	return "run-liveness"
}

type fakePresets map[string]domain.SearchCriteria

func (f fakePresets) Preset(name string) (domain.SearchCriteria, bool) {
	c, ok := f[name]
	return c, ok
}

type nopLogger struct{}

func (nopLogger) Info(string, port.Fields)                 {}
func (nopLogger) Warn(string, port.Fields)                 {}
func (nopLogger) Error(string, error, port.Fields)         {}
func (nopLogger) Debug(string, port.Fields)                {}
func (l nopLogger) WithFields(port.Fields) port.LoggerPort { return l }

type recordingLogger struct {
	nopLogger
	mu      sync.Mutex
	entries []port.Fields
}

func (r *recordingLogger) Info(msg string, fields port.Fields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, fields)
}

func (r *recordingLogger) WithFields(port.Fields) port.LoggerPort { return r }

func sampleListing() domain.Listing {
	size, structure := 52.0, 2.0
	return domain.Listing{
		ID:            "4zida_420",
		SourceID:      "420",
		SourceName:    domain.SourceFourZida,
		Price:         650,
		Size:          &size,
		Structure:     &structure,
		Address:       domain.StringPtr("Njegoševa 12"),
		Municipality:  "Vračar",
		Floor:         domain.StringPtr("3"),
		Furnished:     domain.FurnishedFull,
		Location:      &domain.GeoPoint{Latitude: 44.8, Longitude: 20.47},
		CoverPhotoURL: domain.StringPtr("https://img.example/420.jpg"),
		RentOrSale:    domain.Rent,
		URL:           "https://www.4zida.rs/izdavanje-stanova/420",
		CreatedAt:     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		LastCheckedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPublishCreatedMatchesSchema(t *testing.T) {
	schemas, err := contracts.Load()
	require.NoError(t, err)

	publisher := &fakePublisher{}
	adapter, err := NewListingEventsEnqueueAdapter(publisher)
	require.NoError(t, err)

	ctx := contextkeys.ContextWithTraceID(context.Background(), "trace-42")
	ctx = contextkeys.ContextWithRunID(ctx, "run-7")
	require.NoError(t, adapter.PublishCreated(ctx, []domain.Listing{sampleListing()}))

	require.Len(t, publisher.messages, 1)
	sent := publisher.messages[0]
	assert.Equal(t, constants.RoutingKeyListingsCreated, sent.routingKey)
	assert.Equal(t, "application/json", sent.msg.ContentType)
	assert.Equal(t, amqp.Persistent, sent.msg.DeliveryMode)
	assert.Equal(t, constants.EventTypeListingsCreated, sent.msg.Headers["event-type"])
	assert.Equal(t, "trace-42", sent.msg.Headers["x-trace-id"])

	require.NoError(t, schemas.Validate(constants.EventTypeListingsCreated, constants.MessageVersionV1, sent.msg.Body))

	var event ListingsCreatedEventDTO
	require.NoError(t, json.Unmarshal(sent.msg.Body, &event))
	assert.Equal(t, "run-7", event.RunID)
	require.Len(t, event.Listings, 1)
	assert.Equal(t, "4zida_420", event.Listings[0].ID)
	assert.Equal(t, []string{}, event.Listings[0].HeatingTypes)
	assert.Equal(t, 44.8, event.Listings[0].Location.Lat)
}

func TestPublishCreatedSkipsEmptyBatch(t *testing.T) {
	publisher := &fakePublisher{}
	adapter, _ := NewListingEventsEnqueueAdapter(publisher)

	require.NoError(t, adapter.PublishCreated(context.Background(), nil))
	assert.Empty(t, publisher.messages)
}

func TestPublishDeletedMatchesSchema(t *testing.T) {
	schemas, err := contracts.Load()
	require.NoError(t, err)

	publisher := &fakePublisher{}
	adapter, _ := NewListingEventsEnqueueAdapter(publisher)

	require.NoError(t, adapter.PublishDeleted(context.Background(), sampleListing()))

	require.Len(t, publisher.messages, 1)
	sent := publisher.messages[0]
	assert.Equal(t, constants.RoutingKeyListingDeleted, sent.routingKey)
	_, hasTrace := sent.msg.Headers["x-trace-id"]
	assert.False(t, hasTrace)
	require.NoError(t, schemas.Validate(constants.EventTypeListingDeleted, constants.MessageVersionV1, sent.msg.Body))
}

func TestPublishErrorIsReturned(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("channel closed")}
	adapter, _ := NewListingEventsEnqueueAdapter(publisher)

	err := adapter.PublishDeleted(context.Background(), sampleListing())
	assert.ErrorContains(t, err, "channel closed")
}

func TestNewListingEventsEnqueueAdapterRequiresProducer(t *testing.T) {
	_, err := NewListingEventsEnqueueAdapter(nil)
	assert.Error(t, err)
}

func newCommandsAdapter(t *testing.T, presets fakePresets) (*SweepCommandsConsumerAdapter, *fakeEntryPoints) {
	t.Helper()
	schemas, err := contracts.Load()
	require.NoError(t, err)
	entry := &fakeEntryPoints{}
	return &SweepCommandsConsumerAdapter{
		entryPoints: entry,
		presets:     presets,
		validator:   schemas,
		logger:      nopLogger{},
	}, entry
}

func delivery(body string, headers amqp.Table) amqp.Delivery {
	return amqp.Delivery{Body: []byte(body), Headers: headers}
}

func TestSweepCommandStartsLivenessSweep(t *testing.T) {
	adapter, entry := newCommandsAdapter(t, fakePresets{})

	err := adapter.messageHandler(delivery(`{"type":"liveness"}`, amqp.Table{"x-trace-id": "trace-1"}))
	require.NoError(t, err)

	assert.Equal(t, 1, entry.liveness)
	assert.Equal(t, []string{"trace-1"}, entry.traceIDs)
}

func TestSweepCommandWithInlineCriteria(t *testing.T) {
	adapter, entry := newCommandsAdapter(t, fakePresets{})

	body := `{"type":"ingestion","criteria":{"rentOrSale":"rent","municipalities":["Vračar"],"maxPrice":900,"furnished":["semi-furnished"]}}`
	require.NoError(t, adapter.messageHandler(delivery(body, nil)))

	require.Len(t, entry.ingestion, 1)
	got := entry.ingestion[0]
	assert.Equal(t, domain.Rent, got.RentOrSale)
	assert.Equal(t, []string{"Vračar"}, got.Municipalities)
	assert.Equal(t, 900.0, got.MaxPrice)
	assert.Equal(t, []domain.Furnished{domain.FurnishedSemi}, got.Furnished)
	assert.Equal(t, 1, got.Page)
	assert.NotEmpty(t, entry.traceIDs[0])
}

func TestSweepCommandWithPreset(t *testing.T) {
	preset := domain.SearchCriteria{RentOrSale: domain.Sale, Municipalities: []string{"Zemun"}, Page: 1}
	adapter, entry := newCommandsAdapter(t, fakePresets{"zemun-sale": preset})

	require.NoError(t, adapter.messageHandler(delivery(`{"type":"ingestion","preset":"zemun-sale"}`, nil)))
	require.Len(t, entry.ingestion, 1)
	assert.Equal(t, preset, entry.ingestion[0])
}

func TestSweepCommandUnknownPresetIsDropped(t *testing.T) {
	adapter, entry := newCommandsAdapter(t, fakePresets{})

	err := adapter.messageHandler(delivery(`{"type":"ingestion","preset":"nowhere"}`, nil))
	assert.NoError(t, err)
	assert.Empty(t, entry.ingestion)
}

func TestSweepCommandInvalidBodyIsRejected(t *testing.T) {
	adapter, entry := newCommandsAdapter(t, fakePresets{})

	assert.Error(t, adapter.messageHandler(delivery(`{"type":"ingestion"}`, nil)))
	assert.Error(t, adapter.messageHandler(delivery(`not json`, nil)))
	assert.Error(t, adapter.messageHandler(delivery(`{"type":"liveness"}`, amqp.Table{"event-version": "9.0.0"})))

	assert.Empty(t, entry.ingestion)
	assert.Zero(t, entry.liveness)
}

func TestPkgLoggerBridgeConvertsPairs(t *testing.T) {
	rec := &recordingLogger{}
	bridge := NewPkgLoggerBridge(rec)

	bridge.Info("connected", "attempt", 2, 42, "ignored", "dangling")

	require.Len(t, rec.entries, 1)
	assert.Equal(t, port.Fields{"attempt": 2}, rec.entries[0])
}
