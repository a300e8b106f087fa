package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/storefront/pkg/audit"
	"github.com/platinummonkey/storefront/pkg/auth"
	"github.com/platinummonkey/storefront/pkg/contextkeys"
	"github.com/platinummonkey/storefront/pkg/httputil"
	"github.com/platinummonkey/storefront/pkg/observability"
)

// AccountLoader reloads the account named by a token.
// *directory.Directory satisfies it.
type AccountLoader interface {
	GetByID(ctx context.Context, id int64) (*auth.AdminAccount, error)
}

// Authenticator resolves the bearer token on a request to a live admin account
type Authenticator struct {
	tokens  *auth.TokenService
	loader  AccountLoader
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewAuthenticator creates an authenticator
func NewAuthenticator(tokens *auth.TokenService, loader AccountLoader) *Authenticator {
	return &Authenticator{
		tokens: tokens,
		loader: loader,
		logger: observability.NewNopLogger(),
	}
}

// WithLogger sets the logger used for rejected requests
func (a *Authenticator) WithLogger(logger *observability.Logger) *Authenticator {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// WithMetrics enables the auth attempt counters
func (a *Authenticator) WithMetrics(metrics *observability.Metrics) *Authenticator {
	a.metrics = metrics
	return a
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively.
func bearerToken(header string) (string, error) {
	const op = "parse authorization header"

	header = strings.TrimSpace(header)
	if header == "" {
		return "", auth.NewError(auth.KindMissingCredentials, op, nil)
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", auth.NewError(auth.KindTokenInvalid, op, auth.ErrTokenMalformed)
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", auth.NewError(auth.KindTokenInvalid, op, auth.ErrTokenMalformed)
	}
	return token, nil
}

// Authenticate verifies the request's bearer token, reloads the account it
// names and checks that the account is still active. It runs on every
// request; there is no cache.
func (a *Authenticator) Authenticate(r *http.Request) (*auth.AdminAccount, error) {
	return a.authenticate(r.Context(), r.Header.Get("Authorization"))
}

func (a *Authenticator) authenticate(ctx context.Context, header string) (*auth.AdminAccount, error) {
	const op = "authenticate request"

	token, err := bearerToken(header)
	if err != nil {
		return nil, err
	}

	claims, err := a.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	account, err := a.loader.GetByID(ctx, claims.AccountID)
	if err != nil {
		if auth.KindOf(err) == auth.KindUnknown {
			return nil, auth.NewError(auth.KindStorageUnavailable, op, err)
		}
		return nil, err
	}
	if !account.IsActive {
		return nil, auth.NewError(auth.KindUserInactive, op, nil)
	}
	return account, nil
}

// Handler rejects requests without a valid session and stores the
// account in the request context for the next handler.
func (a *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := observability.Tracer().Start(r.Context(), "middleware.authenticate")

		account, err := a.authenticate(ctx, r.Header.Get("Authorization"))
		if err != nil {
			kind := auth.KindOf(err)
			span.SetAttributes(attribute.String("auth.result", string(kind)))
			span.SetStatus(codes.Error, string(kind))
			span.End()
			a.metrics.ObserveAuth(string(kind), time.Since(start))

			a.reject(ctx, r, err)
			httputil.WriteAuthenticationError(w, err)
			return
		}

		span.SetAttributes(
			attribute.String("auth.result", "success"),
			attribute.Int64("admin.id", account.ID),
			attribute.String("admin.role", string(account.Role)),
		)
		span.End()
		a.metrics.ObserveAuth("success", time.Since(start))

		ctx = contextkeys.WithPrincipal(r.Context(), account)
		ctx = contextkeys.WithAdminID(ctx, account.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// reject logs and audits a failed authentication. Only the kind is
// recorded, never the header.
func (a *Authenticator) reject(ctx context.Context, r *http.Request, err error) {
	kind := auth.KindOf(err)
	log := a.logger.WithFields(map[string]interface{}{
		"kind":       string(kind),
		"path":       r.URL.Path,
		"request_id": contextkeys.GetRequestID(ctx),
	})
	if kind == auth.KindStorageUnavailable {
		log.WithError(err).Error("Account lookup failed during authentication")
	} else {
		log.Info("Request authentication rejected")
	}

	event := audit.NewEvent(ctx, audit.EventTypeAuthTokenRejected, audit.EventStatusFailure).WithError(err)
	event.ResourceType = audit.ResourceTypeSession
	event.Method = r.Method
	event.Path = r.URL.Path
	event.UserAgent = r.UserAgent()
	if logErr := audit.FromContext(ctx).Log(ctx, event); logErr != nil {
		a.logger.WithError(logErr).Warn("Failed to write audit event")
	}
}

// PrincipalFromContext returns the authenticated account, or nil
func PrincipalFromContext(ctx context.Context) *auth.AdminAccount {
	account, _ := ctx.Value(contextkeys.PrincipalKey).(*auth.AdminAccount)
	return account
}

// GetPrincipal returns the account stored by Authenticator.Handler, or nil
func GetPrincipal(r *http.Request) *auth.AdminAccount {
	return PrincipalFromContext(r.Context())
}

// RequirePermission creates middleware that admits only principals holding p.
// It must run after Authenticator.Handler.
func RequirePermission(p auth.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r)
			if principal == nil {
				httputil.WriteAuthenticationError(w, auth.ErrMissingCredentials)
				return
			}

			if !auth.HasPermission(principal, p) {
				err := auth.NewError(auth.KindInsufficientPermission, "require permission", nil)
				event := audit.NewEvent(r.Context(), audit.EventTypeAuthzAccessDenied, audit.EventStatusDenied).
					WithActor(principal).
					WithError(err)
				event.Method = r.Method
				event.Path = r.URL.Path
				event.Metadata = map[string]interface{}{"permission": string(p)}
				if logErr := audit.FromContext(r.Context()).Log(r.Context(), event); logErr != nil {
					observability.FromContext(r.Context()).WithError(logErr).Warn("Failed to write audit event")
				}

				httputil.WriteAuthError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
