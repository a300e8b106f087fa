package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the type of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthLogin          EventType = "auth.login"
	EventTypeAuthLoginFailed    EventType = "auth.login_failed"
	EventTypeAuthTokenRejected  EventType = "auth.token_rejected"
	EventTypeAuthPasswordChange EventType = "auth.password_change"

	// Authorization events
	EventTypeAuthzAccessDenied     EventType = "authz.access_denied"
	EventTypeAuthzRoleChange       EventType = "authz.role_change"
	EventTypeAuthzPermissionChange EventType = "authz.permission_change"

	// Admin directory events
	EventTypeAdminUserCreate     EventType = "admin.user_create"
	EventTypeAdminUserSeed       EventType = "admin.user_seed"
	EventTypeAdminUserUpdate     EventType = "admin.user_update"
	EventTypeAdminUserActivate   EventType = "admin.user_activate"
	EventTypeAdminUserDeactivate EventType = "admin.user_deactivate"

	// Request events written by Middleware
	EventTypeHTTPRequest EventType = "http.request"
)

// EventStatus represents the outcome of an audited action
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being acted on
type ResourceType string

const (
	ResourceTypeAdminUser ResourceType = "admin_user"
	ResourceTypeSession   ResourceType = "session"
)

// AuditEvent is one entry of the admin audit trail.
// It never carries passwords, digests or bearer tokens.
type AuditEvent struct {
	ID        int64       `json:"id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Who acted
	ActorID    *int64 `json:"actor_id,omitempty"`
	ActorEmail string `json:"actor_email,omitempty"`

	// What was acted on
	TargetID     *int64       `json:"target_id,omitempty"`
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Request context
	IPAddress  string `json:"ip_address,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Method     string `json:"method,omitempty"`
	Path       string `json:"path,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`

	Message string `json:"message,omitempty"`
	// ErrorKind is the auth error kind for failed or denied events
	ErrorKind string                 `json:"error_kind,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Changes   *ChangeDetails         `json:"changes,omitempty"`
}

// ChangeDetails captures before/after values of changed fields
type ChangeDetails struct {
	Before map[string]interface{} `json:"before,omitempty"`
	After  map[string]interface{} `json:"after,omitempty"`
}

// NewChange records a single field transition
func NewChange(field string, before, after interface{}) *ChangeDetails {
	return &ChangeDetails{
		Before: map[string]interface{}{field: before},
		After:  map[string]interface{}{field: after},
	}
}

// Clone returns a copy of e that shares no maps or pointers with it
func (e *AuditEvent) Clone() *AuditEvent {
	c := *e
	if e.ActorID != nil {
		id := *e.ActorID
		c.ActorID = &id
	}
	if e.TargetID != nil {
		id := *e.TargetID
		c.TargetID = &id
	}
	c.Metadata = cloneFields(e.Metadata)
	if e.Changes != nil {
		c.Changes = &ChangeDetails{
			Before: cloneFields(e.Changes.Before),
			After:  cloneFields(e.Changes.After),
		}
	}
	return &c
}

func cloneFields(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneFields(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// ToJSON converts the audit event to JSON
func (e *AuditEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
