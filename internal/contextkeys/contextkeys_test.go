package contextkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerFromContextFallsBackToNoop(t *testing.T) {
	logger := LoggerFromContext(context.Background())
	assert.NotNil(t, logger)
	assert.NotPanics(t, func() {
		logger.WithFields(nil).Error("nothing happens", nil, nil)
	})
}

func TestTraceAndRunIDs(t *testing.T) {
	ctx := ContextWithRunID(ContextWithTraceID(context.Background(), "trace-1"), "run-1")

	assert.Equal(t, "trace-1", TraceIDFromContext(ctx))
	assert.Equal(t, "run-1", RunIDFromContext(ctx))
	assert.Empty(t, RunIDFromContext(context.Background()))
}
