package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/storefront/pkg/auth"
	"github.com/platinummonkey/storefront/pkg/directory"
	"github.com/platinummonkey/storefront/pkg/httputil"
	"github.com/platinummonkey/storefront/pkg/middleware"
	"github.com/platinummonkey/storefront/pkg/observability"
)

// AuthHandlers handles login and session introspection
type AuthHandlers struct {
	dir        *directory.Directory
	tokens     *auth.TokenService
	metrics    *observability.Metrics
	loginLimit func(http.Handler) http.Handler
}

// NewAuthHandlers creates a new auth handlers instance.
// loginLimit may be nil.
func NewAuthHandlers(dir *directory.Directory, tokens *auth.TokenService, metrics *observability.Metrics, loginLimit func(http.Handler) http.Handler) *AuthHandlers {
	return &AuthHandlers{
		dir:        dir,
		tokens:     tokens,
		metrics:    metrics,
		loginLimit: loginLimit,
	}
}

// RegisterRoutes registers authentication routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router, authn *middleware.Authenticator) {
	var login http.Handler = http.HandlerFunc(h.login)
	if h.loginLimit != nil {
		login = h.loginLimit(login)
	}
	router.Handle("/auth/login", login).Methods("POST")
	router.Handle("/auth/me", authn.Handler(http.HandlerFunc(h.me))).Methods("GET")
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries a new session token
type LoginResponse struct {
	Token     string             `json:"token"`
	TokenType string             `json:"token_type"`
	ExpiresAt time.Time          `json:"expires_at"`
	Account   *auth.AdminAccount `json:"account"`
}

// login handles POST /auth/login
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	account, err := h.dir.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteAuthError(w, err)
		return
	}

	token, expiresAt, err := h.tokens.Issue(account)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Failed to issue session token")
		httputil.WriteInternalError(w)
		return
	}
	h.metrics.ObserveTokenIssued()

	httputil.WriteSuccess(w, LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt.UTC(),
		Account:   account,
	})
}

// me handles GET /auth/me
func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, middleware.GetPrincipal(r))
}
