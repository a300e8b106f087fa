package audit

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/storefront/pkg/auth"
	"github.com/platinummonkey/storefront/pkg/contextkeys"
)

// Logger is the interface for audit sinks
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *AuditEvent) error

	// Close flushes and releases the sink
	Close() error
}

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return contextkeys.WithAuditLogger(ctx, logger)
}

// FromContext retrieves the audit logger from context
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextkeys.AuditLoggerKey).(Logger); ok {
		return logger
	}
	return NopLogger()
}

// GetRequestStartTime retrieves the request start time set by Middleware.
// ok is false outside an audited request.
func GetRequestStartTime(ctx context.Context) (start time.Time, ok bool) {
	start, ok = ctx.Value(contextkeys.RequestStartTimeKey).(time.Time)
	return start, ok
}

type noOpLogger struct{}

func (noOpLogger) Log(ctx context.Context, event *AuditEvent) error { return nil }
func (noOpLogger) Close() error                                     { return nil }

// NopLogger returns a Logger that drops every event
func NopLogger() Logger {
	return noOpLogger{}
}

// NewEvent builds an event stamped with the request ID and client address
// found in ctx. Inside an audited request DurationMS is the time elapsed
// since the request began.
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *AuditEvent {
	now := time.Now()
	event := &AuditEvent{
		Timestamp: now.UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.GetRequestID(ctx),
		IPAddress: contextkeys.GetClientIP(ctx),
	}
	if start, ok := GetRequestStartTime(ctx); ok {
		event.DurationMS = now.Sub(start).Milliseconds()
	}
	return event
}

// WithActor sets the acting account
func (e *AuditEvent) WithActor(actor *auth.AdminAccount) *AuditEvent {
	if actor != nil {
		id := actor.ID
		e.ActorID = &id
		e.ActorEmail = actor.Email
	}
	return e
}

// WithTarget sets the admin account the action applies to
func (e *AuditEvent) WithTarget(id int64) *AuditEvent {
	if id > 0 {
		e.TargetID = &id
	}
	e.ResourceType = ResourceTypeAdminUser
	return e
}

// WithError records err's kind and marks the event failed, or denied for
// authorization kinds. The error text itself is not stored.
func (e *AuditEvent) WithError(err error) *AuditEvent {
	if err == nil {
		return e
	}
	e.ErrorKind = string(auth.KindOf(err))
	if e.Status == EventStatusSuccess {
		e.Status = EventStatusFailure
	}
	if errors.Is(err, auth.ErrInsufficientPermission) || errors.Is(err, auth.ErrSelfActionForbidden) {
		e.Status = EventStatusDenied
	}
	return e
}

// LogSuccess logs a successful event with a message
func LogSuccess(ctx context.Context, eventType EventType, message string, metadata map[string]interface{}) error {
	event := NewEvent(ctx, eventType, EventStatusSuccess)
	event.Message = message
	event.Metadata = metadata
	return FromContext(ctx).Log(ctx, event)
}

// LogFailure logs a failed event with an error
func LogFailure(ctx context.Context, eventType EventType, message string, err error) error {
	event := NewEvent(ctx, eventType, EventStatusFailure).WithError(err)
	event.Message = message
	return FromContext(ctx).Log(ctx, event)
}
