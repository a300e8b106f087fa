package audit

import (
	"context"
	"sync"
)

// recordingLogger captures events in memory
type recordingLogger struct {
	mu     sync.Mutex
	events []*AuditEvent
	err    error
	closed bool
}

func (m *recordingLogger) Log(ctx context.Context, event *AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func (m *recordingLogger) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.err
}

func (m *recordingLogger) Events() []*AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*AuditEvent, len(m.events))
	copy(result, m.events)
	return result
}
