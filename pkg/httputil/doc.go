// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, account)
//	httputil.WriteBadRequest(w, "invalid input")
//
// Errors from pkg/auth and pkg/directory go through one mapping:
//
//	if err != nil {
//		httputil.WriteAuthError(w, err) // 400/401/403/404/409/503
//		return
//	}
//
// Bodies carry a generic message and the error kind, never the wrapped cause:
//
//	{"error": "email already in use", "code": "duplicate_email"}
//
// # Request Parsing
//
//	var req CreateAdminRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//		httputil.ContentTypeMiddleware,
//	)
//
// # Related Packages
//
//   - pkg/middleware: Authentication and authorization middleware
package httputil
