package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// DBLogger writes audit events to the admin_audit_events table.
// The table is created by the directory migrations.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a new database-backed audit logger
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, errors.New("database connection is required")
	}
	return &DBLogger{db: db}, nil
}

const insertAuditEventQuery = `
	INSERT INTO admin_audit_events (
		timestamp, event_type, status,
		actor_id, actor_email, target_id,
		resource_type, resource_id,
		ip_address, user_agent, request_id,
		method, path, status_code, duration_ms,
		message, error_kind, metadata, changes
	) VALUES (
		$1, $2, $3,
		$4, $5, $6,
		$7, $8,
		$9, $10, $11,
		$12, $13, $14, $15,
		$16, $17, $18, $19
	) RETURNING id
`

// Log inserts event and stores the generated ID on it
func (l *DBLogger) Log(ctx context.Context, event *AuditEvent) error {
	metadataJSON, err := nullableJSON(event.Metadata, len(event.Metadata) == 0)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	changesJSON, err := nullableJSON(event.Changes, event.Changes == nil)
	if err != nil {
		return fmt.Errorf("failed to marshal changes: %w", err)
	}

	err = l.db.QueryRowContext(ctx, insertAuditEventQuery,
		event.Timestamp, event.EventType, event.Status,
		event.ActorID, nullString(event.ActorEmail), event.TargetID,
		nullString(string(event.ResourceType)), nullString(event.ResourceID),
		nullString(event.IPAddress), nullString(event.UserAgent), nullString(event.RequestID),
		nullString(event.Method), nullString(event.Path), nullInt(int64(event.StatusCode)), nullInt(event.DurationMS),
		nullString(event.Message), nullString(event.ErrorKind), metadataJSON, changesJSON,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Close does not close the shared database handle
func (l *DBLogger) Close() error {
	return nil
}

func nullableJSON(v interface{}, empty bool) (interface{}, error) {
	if empty {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
