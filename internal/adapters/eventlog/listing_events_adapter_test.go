package eventlog

import (
	"context"
	"testing"

	"listing-aggregator-service/internal/contextkeys"
	"listing-aggregator-service/internal/core/domain"
	"listing-aggregator-service/internal/core/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingLogger struct {
	messages []string
	fields   []port.Fields
}

func (c *capturingLogger) Info(msg string, fields port.Fields) {
	c.messages = append(c.messages, msg)
	c.fields = append(c.fields, fields)
}

func (c *capturingLogger) Warn(string, port.Fields)               {}
func (c *capturingLogger) Error(string, error, port.Fields)       {}
func (c *capturingLogger) Debug(string, port.Fields)              {}
func (c *capturingLogger) WithFields(port.Fields) port.LoggerPort { return c }

func TestLogAdapterWritesEvents(t *testing.T) {
	logger := &capturingLogger{}
	ctx := contextkeys.ContextWithLogger(context.Background(), logger)
	adapter := NewLogListingEventsAdapter()

	require.NoError(t, adapter.PublishCreated(ctx, nil))
	require.NoError(t, adapter.PublishCreated(ctx, []domain.Listing{{ID: "4zida_1"}, {ID: "4zida_2"}}))
	require.NoError(t, adapter.PublishDeleted(ctx, domain.Listing{ID: "halooglasi_9", URL: "https://halooglasi.com/9"}))

	assert.Equal(t, []string{"Listings created", "Listing deleted"}, logger.messages)
	assert.Equal(t, []string{"4zida_1", "4zida_2"}, logger.fields[0]["listing_ids"])
	assert.Equal(t, "halooglasi_9", logger.fields[1]["listing_id"])
}
