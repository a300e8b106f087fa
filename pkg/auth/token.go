package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultTokenTTL is the session lifetime when none is configured
	DefaultTokenTTL = 7 * 24 * time.Hour
	// DefaultTokenIssuer is written to and required in the iss claim
	DefaultTokenIssuer = "storefront-admin"
	// MinSecretLength is the shortest accepted HS256 signing secret in bytes
	MinSecretLength = 32
)

// Claims is the payload of a session token
type Claims struct {
	AccountID int64  `json:"id"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	jwt.RegisteredClaims
}

// TokenConfig configures a TokenService
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
	// Now overrides the clock; nil means time.Now
	Now func() time.Time
}

// TokenService issues and verifies HS256 session tokens.
// It holds no per-token state; a token stays valid until it expires.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenService creates a token service from an injected secret
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes", MinSecretLength)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultTokenIssuer
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	s := &TokenService{
		secret: secret,
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    cfg.Now,
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(cfg.Now),
	)
	return s, nil
}

// TTL returns the lifetime of newly issued tokens
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for account
func (s *TokenService) Issue(account *AdminAccount) (string, time.Time, error) {
	if account == nil || account.ID <= 0 {
		return "", time.Time{}, NewError(KindInvalidInput, "issue token", errors.New("account id is required"))
	}
	if !account.Role.Valid() {
		return "", time.Time{}, NewError(KindInvalidRole, "issue token", fmt.Errorf("unknown role %q", account.Role))
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := &Claims{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(account.ID, 10),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks signature, algorithm, issuer and lifetime and returns the claims.
//
// Failures are *Error values: KindTokenExpired when only the lifetime has
// elapsed, otherwise KindTokenInvalid wrapping ErrTokenMalformed,
// ErrTokenSignature or ErrTokenClaims.
func (s *TokenService) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, classifyTokenError(err)
	}

	if claims.AccountID <= 0 || claims.Email == "" || !claims.Role.Valid() {
		return nil, NewError(KindTokenInvalid, "verify token", ErrTokenClaims)
	}
	if claims.Subject != "" && claims.Subject != strconv.FormatInt(claims.AccountID, 10) {
		return nil, NewError(KindTokenInvalid, "verify token", ErrTokenClaims)
	}
	return claims, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return NewError(KindTokenExpired, "verify token", nil)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return NewError(KindTokenInvalid, "verify token", ErrTokenSignature)
	case errors.Is(err, jwt.ErrTokenInvalidClaims), errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return NewError(KindTokenInvalid, "verify token", ErrTokenClaims)
	default:
		return NewError(KindTokenInvalid, "verify token", ErrTokenMalformed)
	}
}
