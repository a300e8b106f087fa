// Package middleware provides the HTTP middleware that guards admin routes.
//
// Authenticator turns "Authorization: Bearer <token>" into an admin account.
// The token is verified, the account it names is reloaded and must still be
// active, so deactivating an account ends its sessions on the next request:
//
//	authn := middleware.NewAuthenticator(tokens, dir).WithMetrics(metrics)
//	admin := router.PathPrefix("/admin").Subrouter()
//	admin.Use(authn.Handler)
//	admin.Handle("/users", middleware.RequirePermission(auth.PermissionManageAdmins)(list))
//
// Handlers read the account with GetPrincipal.
//
// LoginRateLimit throttles password attempts per client address, using either
// the in-process RateLimiter or the Redis-backed DistributedRateLimiter.
// Limiter errors let requests through.
package middleware
