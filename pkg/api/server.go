package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/storefront/pkg/audit"
	"github.com/platinummonkey/storefront/pkg/auth"
	"github.com/platinummonkey/storefront/pkg/directory"
	"github.com/platinummonkey/storefront/pkg/httputil"
	"github.com/platinummonkey/storefront/pkg/middleware"
	"github.com/platinummonkey/storefront/pkg/observability"
)

// DefaultMaxBodyBytes caps request bodies when ServerConfig leaves it unset
const DefaultMaxBodyBytes = 1 << 20

// ServerConfig wires the admin API to its dependencies
type ServerConfig struct {
	Directory *directory.Directory
	Tokens    *auth.TokenService

	// LoginLimiter throttles POST /auth/login; nil disables throttling
	LoginLimiter middleware.Limiter

	AuditLogger audit.Logger
	Logger      *observability.Logger
	Metrics     *observability.Metrics

	// TrustProxy believes X-Forwarded-For when keying clients
	TrustProxy      bool
	CORSOrigins     []string
	MaxBodyBytes    int64
	AuditAllTraffic bool
}

// Server represents the admin API server
type Server struct {
	router        *mux.Router
	authn         *middleware.Authenticator
	authHandlers  *AuthHandlers
	adminHandlers *AdminHandlers
	logger        *observability.Logger
}

// NewServer creates the API server and registers every route
func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{
		router: mux.NewRouter(),
		authn: middleware.NewAuthenticator(cfg.Tokens, cfg.Directory).
			WithLogger(cfg.Logger).
			WithMetrics(cfg.Metrics),
		logger: cfg.Logger,
	}

	var loginLimit func(http.Handler) http.Handler
	if cfg.LoginLimiter != nil {
		loginLimit = middleware.LoginRateLimit(cfg.LoginLimiter).
			WithTrustProxy(cfg.TrustProxy).
			WithLogger(cfg.Logger).
			WithMetrics(cfg.Metrics).
			Handler
	}

	s.authHandlers = NewAuthHandlers(cfg.Directory, cfg.Tokens, cfg.Metrics, loginLimit)
	s.adminHandlers = NewAdminHandlers(cfg.Directory)

	s.router.Use(
		observability.RecoveryMiddleware(cfg.Logger),
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(cfg.Logger),
		audit.NewMiddleware(cfg.AuditLogger, cfg.AuditAllTraffic, cfg.TrustProxy).Handler,
	)
	if cfg.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(cfg.Metrics, routeLabel))
	}
	if len(cfg.CORSOrigins) > 0 {
		s.router.Use(httputil.CORSMiddleware(cfg.CORSOrigins))
	}
	s.router.Use(
		httputil.MaxBytesMiddleware(cfg.MaxBodyBytes),
		httputil.ContentTypeMiddleware,
	)

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "route not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.authHandlers.RegisterRoutes(s.router, s.authn)

	admin := s.router.PathPrefix("/admin").Subrouter()
	admin.Use(s.authn.Handler)
	s.adminHandlers.RegisterRoutes(admin)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router returns the underlying router, e.g. for otelhttp wrapping
func (s *Server) Router() *mux.Router {
	return s.router
}

// routeLabel reports the matched route template so metrics stay low-cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
