package audit

import (
	"net/http"
	"strings"
	"time"

	"github.com/platinummonkey/storefront/pkg/contextkeys"
	"github.com/platinummonkey/storefront/pkg/httputil"
)

// Middleware provides HTTP middleware for audit logging
type Middleware struct {
	logger         Logger
	logAllRequests bool // If false, only log mutations, errors and sensitive paths
	trustProxy     bool
}

// NewMiddleware creates a new audit middleware.
// trustProxy selects whether X-Forwarded-For is believed for the client address.
func NewMiddleware(logger Logger, logAllRequests, trustProxy bool) *Middleware {
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		logger:         logger,
		logAllRequests: logAllRequests,
		trustProxy:     trustProxy,
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Handler stores the audit logger, client address and start time in the
// request context, then records an http.request event when warranted.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ctx := WithLogger(r.Context(), m.logger)
		ctx = contextkeys.WithRequestStartTime(ctx, startTime)
		ctx = contextkeys.WithClientIP(ctx, httputil.ClientIP(r, m.trustProxy))

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		r = r.WithContext(ctx)
		next.ServeHTTP(wrapped, r)

		if !m.logAllRequests && !m.shouldLogRequest(r, wrapped.statusCode) {
			return
		}

		status := EventStatusSuccess
		switch {
		case wrapped.statusCode == http.StatusUnauthorized || wrapped.statusCode == http.StatusForbidden:
			status = EventStatusDenied
		case wrapped.statusCode >= http.StatusBadRequest:
			status = EventStatusFailure
		}

		event := NewEvent(ctx, EventTypeHTTPRequest, status)
		event.Method = r.Method
		event.Path = r.URL.Path
		event.StatusCode = wrapped.statusCode
		event.UserAgent = r.UserAgent()

		// Best effort: the response has already been written
		_ = m.logger.Log(ctx, event)
	})
}

// shouldLogRequest determines if a request should be logged
func (m *Middleware) shouldLogRequest(r *http.Request, statusCode int) bool {
	// Always log mutations (POST, PUT, PATCH, DELETE)
	if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Method != http.MethodOptions {
		return true
	}

	// Always log errors and denials
	if statusCode >= 400 {
		return true
	}

	return isSensitiveEndpoint(r.URL.Path)
}

// isSensitiveEndpoint reports whether reads of path are audited too
func isSensitiveEndpoint(path string) bool {
	return strings.HasPrefix(path, "/auth/") || strings.HasPrefix(path, "/admin/")
}
