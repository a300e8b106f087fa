// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/platinummonkey/storefront/pkg/auth"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	writeErrorResponse(w, status, ErrorResponse{Error: message})
}

func writeErrorResponse(w http.ResponseWriter, status int, body ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// WriteNotFoundError writes a not found error response (404 Not Found)
func WriteNotFoundError(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

// WriteInternalError writes a 500 without exposing err to the client
func WriteInternalError(w http.ResponseWriter) {
	WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteTooManyRequests writes a rate limit error (429)
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusTooManyRequests, message)
}

// Client-facing messages per kind. They never include the underlying error.
var kindMessages = map[auth.Kind]string{
	auth.KindInvalidCredentials:     "invalid email or password",
	auth.KindMissingCredentials:     "authorization required",
	auth.KindTokenInvalid:           "invalid token",
	auth.KindTokenExpired:           "token expired",
	auth.KindUserNotFound:           "admin user not found",
	auth.KindUserInactive:           "account is inactive",
	auth.KindInsufficientPermission: "insufficient permissions",
	auth.KindSelfActionForbidden:    "cannot perform this action on your own account",
	auth.KindDuplicateEmail:         "email already in use",
	auth.KindInvalidRole:            "invalid role",
	auth.KindInvalidPermission:      "invalid permission",
	auth.KindInvalidInput:           "invalid input",
	auth.KindStorageUnavailable:     "service temporarily unavailable",
}

// StatusForError maps an auth error kind to an HTTP status for directory routes.
// UserNotFound is a 404 here because the missing account is the request target.
func StatusForError(err error) int {
	switch kind := auth.KindOf(err); kind {
	case auth.KindUserNotFound:
		return http.StatusNotFound
	case auth.KindDuplicateEmail:
		return http.StatusConflict
	case auth.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		switch kind.Category() {
		case auth.CategoryAuthentication:
			return http.StatusUnauthorized
		case auth.CategoryAuthorization:
			return http.StatusForbidden
		case auth.CategoryValidation:
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// WriteAuthError writes the response for an error returned by the auth core
// or the admin directory. Unknown errors become an opaque 500.
func WriteAuthError(w http.ResponseWriter, err error) {
	writeKindError(w, StatusForError(err), auth.KindOf(err))
}

// WriteAuthenticationError writes the response for a failed request authentication.
// Every authentication kind, UserNotFound included, is a 401; storage is a 503.
func WriteAuthenticationError(w http.ResponseWriter, err error) {
	kind := auth.KindOf(err)
	switch {
	case kind == auth.KindStorageUnavailable:
		writeKindError(w, http.StatusServiceUnavailable, kind)
	case kind.Category() == auth.CategoryAuthentication:
		// The loaded account is the caller, so do not confirm whether it exists
		if kind == auth.KindUserNotFound {
			kind = auth.KindTokenInvalid
		}
		writeKindError(w, http.StatusUnauthorized, kind)
	default:
		writeKindError(w, StatusForError(err), kind)
	}
}

func writeKindError(w http.ResponseWriter, status int, kind auth.Kind) {
	msg, ok := kindMessages[kind]
	if !ok || status == http.StatusInternalServerError {
		WriteInternalError(w)
		return
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="storefront-admin"`)
	}
	writeErrorResponse(w, status, ErrorResponse{Error: msg, Code: string(kind)})
}
