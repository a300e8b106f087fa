package auth

import (
	"errors"
	"fmt"
)

// Kind classifies an authentication or authorization failure
type Kind string

const (
	KindUnknown Kind = ""

	// Authentication: the caller is not who they claim, or cannot prove it
	KindInvalidCredentials Kind = "invalid_credentials"
	KindMissingCredentials Kind = "missing_credentials"
	KindTokenInvalid       Kind = "token_invalid"
	KindTokenExpired       Kind = "token_expired"
	KindUserNotFound       Kind = "user_not_found"
	KindUserInactive       Kind = "user_inactive"

	// Authorization: the caller is known but not allowed
	KindInsufficientPermission Kind = "insufficient_permission"
	KindSelfActionForbidden    Kind = "self_action_forbidden"

	// Validation
	KindDuplicateEmail    Kind = "duplicate_email"
	KindInvalidRole       Kind = "invalid_role"
	KindInvalidPermission Kind = "invalid_permission"
	KindInvalidInput      Kind = "invalid_input"

	// Infrastructure
	KindStorageUnavailable Kind = "storage_unavailable"
)

// Category groups kinds by how a caller should react to them
type Category int

const (
	CategoryUnknown Category = iota
	CategoryAuthentication
	CategoryAuthorization
	CategoryValidation
	CategoryStorage
)

func (c Category) String() string {
	switch c {
	case CategoryAuthentication:
		return "authentication"
	case CategoryAuthorization:
		return "authorization"
	case CategoryValidation:
		return "validation"
	case CategoryStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Category returns the group k belongs to
func (k Kind) Category() Category {
	switch k {
	case KindInvalidCredentials, KindMissingCredentials, KindTokenInvalid,
		KindTokenExpired, KindUserNotFound, KindUserInactive:
		return CategoryAuthentication
	case KindInsufficientPermission, KindSelfActionForbidden:
		return CategoryAuthorization
	case KindDuplicateEmail, KindInvalidRole, KindInvalidPermission, KindInvalidInput:
		return CategoryValidation
	case KindStorageUnavailable:
		return CategoryStorage
	default:
		return CategoryUnknown
	}
}

// Token failure reasons, carried inside a KindTokenInvalid error
var (
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenSignature = errors.New("token signature is invalid")
	ErrTokenClaims    = errors.New("token claims are unusable")
)

// Error is the typed failure returned across the auth core.
// Messages never include passwords, digests or tokens.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// NewError builds an Error for op
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind, so sentinels below work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// Sentinels for errors.Is comparisons
var (
	ErrInvalidCredentials     = &Error{Kind: KindInvalidCredentials}
	ErrMissingCredentials     = &Error{Kind: KindMissingCredentials}
	ErrTokenInvalid           = &Error{Kind: KindTokenInvalid}
	ErrTokenExpired           = &Error{Kind: KindTokenExpired}
	ErrUserNotFound           = &Error{Kind: KindUserNotFound}
	ErrUserInactive           = &Error{Kind: KindUserInactive}
	ErrInsufficientPermission = &Error{Kind: KindInsufficientPermission}
	ErrSelfActionForbidden    = &Error{Kind: KindSelfActionForbidden}
	ErrDuplicateEmail         = &Error{Kind: KindDuplicateEmail}
	ErrInvalidRole            = &Error{Kind: KindInvalidRole}
	ErrInvalidPermission      = &Error{Kind: KindInvalidPermission}
	ErrInvalidInput           = &Error{Kind: KindInvalidInput}
	ErrStorageUnavailable     = &Error{Kind: KindStorageUnavailable}
)

// KindOf returns the Kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsAuthentication reports whether err should be answered with 401
func IsAuthentication(err error) bool {
	return KindOf(err).Category() == CategoryAuthentication
}

// IsAuthorization reports whether err should be answered with 403
func IsAuthorization(err error) bool {
	return KindOf(err).Category() == CategoryAuthorization
}

// IsValidation reports whether err is caused by the request content
func IsValidation(err error) bool {
	return KindOf(err).Category() == CategoryValidation
}

// IsStorage reports whether err comes from an unavailable backing store
func IsStorage(err error) bool {
	return KindOf(err).Category() == CategoryStorage
}
