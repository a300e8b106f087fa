// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//
//	import "github.com/platinummonkey/storefront/pkg/contextkeys"
//	ctx = contextkeys.WithPrincipal(ctx, account)
//	account, _ := ctx.Value(contextkeys.PrincipalKey).(*auth.AdminAccount)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains the authenticated *auth.AdminAccount
	// Set by: middleware.Authenticator (pkg/middleware/auth.go)
	// Required by: All protected admin endpoints
	// Type: *auth.AdminAccount
	PrincipalKey Key = "admin_principal"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, audit trail, distributed tracing
	// Type: string
	RequestIDKey Key = "request_id"

	// AdminIDKey contains the authenticated admin's ID
	// Set by: Auth middleware after the account is reloaded
	// Used by: Logger, audit trail
	// Type: int64
	AdminIDKey Key = "admin_id"

	// LoggerKey contains *observability.Logger
	// Set by: Observability middleware
	// Used by: Handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"

	// AuditLoggerKey contains audit.Logger interface
	// Set by: Audit middleware (pkg/audit/middleware.go)
	// Used by: Handlers that record audit events
	// Type: audit.Logger
	AuditLoggerKey Key = "audit_logger"

	// ClientIPKey contains the caller's address as seen by the server
	// Set by: Audit middleware
	// Used by: Audit events
	// Type: string
	ClientIPKey Key = "client_ip"

	// RequestStartTimeKey contains request start timestamp
	// Set by: Audit middleware
	// Used by: Duration calculation for audit logs
	// Type: time.Time
	RequestStartTimeKey Key = "request_start_time"
)

// Helper functions for type-safe context operations

// WithPrincipal adds the authenticated account to the context
func WithPrincipal(ctx context.Context, principal interface{}) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithAdminID adds the authenticated admin's ID to the context
func WithAdminID(ctx context.Context, adminID int64) context.Context {
	return context.WithValue(ctx, AdminIDKey, adminID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// WithAuditLogger adds audit logger to the context
func WithAuditLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, AuditLoggerKey, logger)
}

// WithClientIP adds the caller's address to the context
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ClientIPKey, ip)
}

// WithRequestStartTime adds request start time to the context
func WithRequestStartTime(ctx context.Context, startTime interface{}) context.Context {
	return context.WithValue(ctx, RequestStartTimeKey, startTime)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetAdminID retrieves the authenticated admin's ID from context
func GetAdminID(ctx context.Context) int64 {
	if adminID, ok := ctx.Value(AdminIDKey).(int64); ok {
		return adminID
	}
	return 0
}

// GetClientIP retrieves the caller's address from context
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ClientIPKey).(string); ok {
		return ip
	}
	return ""
}
