// Package auth provides the credential, token and permission primitives of the
// storefront admin console.
//
// # Overview
//
// Everything in this package is pure: nothing here touches storage. Account
// persistence and the management protocol live in pkg/directory, and the
// per-request composition lives in pkg/middleware.
//
// # Passwords
//
//	hasher := auth.NewPasswordHasher(bcrypt.DefaultCost)
//	digest, err := hasher.Hash("correct horse battery")
//	ok := hasher.Verify("correct horse battery", digest)
//
// Each Hash call draws a fresh salt, so two digests of the same password differ
// and both verify.
//
// # Session Tokens
//
//	tokens, err := auth.NewTokenService(auth.TokenConfig{
//		Secret: []byte(os.Getenv("STOREFRONT_JWT_SECRET")),
//		TTL:    auth.DefaultTokenTTL,
//	})
//	token, expiresAt, err := tokens.Issue(account)
//	claims, err := tokens.Verify(token)
//
// Tokens are HS256 JWTs carrying id, email and role. There is no revocation
// list: a token for a deactivated account is rejected by the request
// authenticator, which reloads the account on every request.
//
// # Roles and Permissions
//
//	RoleSuperAdmin - every permission, manages every account
//	RoleAdmin      - manages staff accounts
//	RoleStaff, RoleStoreManager, RoleSalesManager, RoleCustomerService, RoleOther
//
// Permissions are a validated set; PermissionAll acts as a wildcard.
//
//	auth.HasPermission(account, auth.PermissionManageOrders)
//	auth.CanManage(actor, target)
//
// # Errors
//
// Failures are *auth.Error values carrying a Kind. Use errors.Is with the
// exported sentinels (auth.ErrTokenExpired, auth.ErrDuplicateEmail, ...) or
// auth.KindOf, and the category helpers to pick an HTTP status:
//
//	IsAuthentication -> 401
//	IsAuthorization  -> 403
//	IsValidation     -> 400 / 409
//	IsStorage        -> 503
//
// # Related Packages
//
//   - pkg/directory: admin account management protocol
//   - pkg/middleware: bearer-token request authenticator
//   - pkg/audit: security audit trail
package auth
