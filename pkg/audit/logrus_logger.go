package audit

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// LogrusLogger writes audit events as structured log lines
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger creates an audit sink on top of entry.
// Every line carries log_type=audit so it can be routed separately.
func NewLogrusLogger(entry *logrus.Entry) (*LogrusLogger, error) {
	if entry == nil {
		return nil, errors.New("logrus entry is required")
	}
	return &LogrusLogger{entry: entry.WithField("log_type", "audit")}, nil
}

// Log writes event at info level, or warn level for failures and denials
func (l *LogrusLogger) Log(ctx context.Context, event *AuditEvent) error {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"status":     event.Status,
		"timestamp":  event.Timestamp,
	}
	if event.ActorID != nil {
		fields["actor_id"] = *event.ActorID
	}
	if event.ActorEmail != "" {
		fields["actor_email"] = event.ActorEmail
	}
	if event.TargetID != nil {
		fields["target_id"] = *event.TargetID
	}
	if event.ResourceType != "" {
		fields["resource_type"] = event.ResourceType
	}
	if event.ResourceID != "" {
		fields["resource_id"] = event.ResourceID
	}
	if event.IPAddress != "" {
		fields["ip_address"] = event.IPAddress
	}
	if event.UserAgent != "" {
		fields["user_agent"] = event.UserAgent
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	if event.Method != "" {
		fields["method"] = event.Method
		fields["path"] = event.Path
		fields["status_code"] = event.StatusCode
		fields["duration_ms"] = event.DurationMS
	}
	if event.ErrorKind != "" {
		fields["error_kind"] = event.ErrorKind
	}
	if len(event.Metadata) > 0 {
		fields["metadata"] = event.Metadata
	}
	if event.Changes != nil {
		fields["changes"] = event.Changes
	}

	entry := l.entry.WithContext(ctx).WithFields(fields)
	if event.Status == EventStatusSuccess {
		entry.Info(event.Message)
	} else {
		entry.Warn(event.Message)
	}
	return nil
}

// Close is a no-op; the underlying logger is owned by the caller
func (l *LogrusLogger) Close() error {
	return nil
}
