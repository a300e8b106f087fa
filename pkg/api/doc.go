// Package api provides the HTTP server for storefront admin management.
//
// Routes:
//
//	POST   /auth/login                     email and password for a session token (throttled)
//	GET    /auth/me                        the authenticated account
//	GET    /admin/users                    list accounts (manage_admins)
//	GET    /admin/users/{id}               one account (manage_admins)
//	POST   /admin/users                    create an account
//	PATCH  /admin/users/{id}               edit profile fields
//	PUT    /admin/users/{id}/role          change role (super_admin)
//	PUT    /admin/users/{id}/permissions   replace permissions (super_admin)
//	PUT    /admin/users/{id}/status        activate or deactivate (super_admin)
//	DELETE /admin/users/{id}               deactivate (super_admin)
//
// Every /admin route and /auth/me runs behind middleware.Authenticator.
// The directory makes the remaining authorization decisions, and its errors
// are mapped to status codes by httputil.WriteAuthError.
//
//	srv := api.NewServer(api.ServerConfig{
//		Directory:    dir,
//		Tokens:       tokens,
//		LoginLimiter: limiter,
//		AuditLogger:  auditLogger,
//		Logger:       logger,
//		Metrics:      metrics,
//	})
//	http.ListenAndServe(":8080", srv)
package api
