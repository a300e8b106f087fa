package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the shortest password accepted by Hash
	MinPasswordLength = 8
	// MaxPasswordLength is the bcrypt input limit in bytes
	MaxPasswordLength = 72
)

// PasswordHasher produces and checks salted bcrypt digests
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher creates a hasher with the given bcrypt cost.
// Out-of-range costs fall back to bcrypt.DefaultCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Cost returns the work factor used for new digests
func (h *PasswordHasher) Cost() int {
	return h.cost
}

// Hash returns a digest with a fresh random salt
func (h *PasswordHasher) Hash(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether password matches digest.
// The comparison is constant-time; a malformed digest never matches.
func (h *PasswordHasher) Verify(password, digest string) bool {
	if digest == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	return err == nil
}

// NeedsRehash reports whether digest was produced with a different cost
func (h *PasswordHasher) NeedsRehash(digest string) bool {
	cost, err := bcrypt.Cost([]byte(digest))
	if err != nil {
		return true
	}
	return cost != h.cost
}

// ValidatePassword checks length limits without echoing the password
func ValidatePassword(password string) error {
	switch {
	case len(password) < MinPasswordLength:
		return NewError(KindInvalidInput, "validate password",
			fmt.Errorf("password must be at least %d characters", MinPasswordLength))
	case len(password) > MaxPasswordLength:
		return NewError(KindInvalidInput, "validate password",
			fmt.Errorf("password must be at most %d bytes", MaxPasswordLength))
	}
	return nil
}

// dummyDigest is compared against when no account exists so that unknown
// emails cost the same as wrong passwords.
var dummyDigest, _ = bcrypt.GenerateFromPassword([]byte("storefront-placeholder-password"), bcrypt.DefaultCost)

// VerifyDummy burns one comparison against a fixed digest
func (h *PasswordHasher) VerifyDummy(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyDigest, []byte(password))
}
