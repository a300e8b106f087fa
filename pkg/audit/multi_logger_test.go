package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiLogger_Log(t *testing.T) {
	logger1 := &recordingLogger{}
	logger2 := &recordingLogger{}

	multiLogger := NewMultiLogger(logger1, nil, logger2)

	event := &AuditEvent{
		Timestamp: time.Now(),
		EventType: EventTypeAuthLogin,
		Status:    EventStatusSuccess,
	}

	require.NoError(t, multiLogger.Log(context.Background(), event))

	assert.Len(t, logger1.Events(), 1)
	assert.Len(t, logger2.Events(), 1)
}

func TestMultiLogger_ContinuesAfterFailure(t *testing.T) {
	failing := &recordingLogger{err: errors.New("disk full")}
	healthy := &recordingLogger{}

	multiLogger := NewMultiLogger(failing, healthy)

	err := multiLogger.Log(context.Background(), &AuditEvent{EventType: EventTypeAuthLogin})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, healthy.Events(), 1)
}

func TestMultiLogger_Close(t *testing.T) {
	logger1 := &recordingLogger{}
	logger2 := &recordingLogger{}

	require.NoError(t, NewMultiLogger(logger1, logger2).Close())
	assert.True(t, logger1.closed)
	assert.True(t, logger2.closed)
}
