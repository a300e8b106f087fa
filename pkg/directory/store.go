package directory

import (
	"context"
	"time"

	"github.com/platinummonkey/storefront/pkg/auth"
)

// Record is an account together with its password digest.
// It only travels between Directory and a Store.
type Record struct {
	Account      auth.AdminAccount
	PasswordHash string
}

// Changes lists the columns an update writes. Nil fields are left alone.
type Changes struct {
	FirstName    *string
	LastName     *string
	Phone        *string
	Email        *string
	PasswordHash *string
	Role         *auth.Role
	Permissions  *auth.PermissionSet
	IsActive     *bool
}

// IsEmpty reports whether no column would change
func (c Changes) IsEmpty() bool {
	return c.FirstName == nil && c.LastName == nil && c.Phone == nil && c.Email == nil &&
		c.PasswordHash == nil && c.Role == nil && c.Permissions == nil && c.IsActive == nil
}

// Apply copies the account-visible changes onto a. PasswordHash is ignored.
func (c Changes) Apply(a *auth.AdminAccount) {
	if c.FirstName != nil {
		a.FirstName = *c.FirstName
	}
	if c.LastName != nil {
		a.LastName = *c.LastName
	}
	if c.Phone != nil {
		a.Phone = *c.Phone
	}
	if c.Email != nil {
		a.Email = *c.Email
	}
	if c.Role != nil {
		a.Role = *c.Role
	}
	if c.Permissions != nil {
		a.Permissions = c.Permissions.Clone()
	}
	if c.IsActive != nil {
		a.IsActive = *c.IsActive
	}
}

// UpdateFunc decides what to change given the current, locked row.
// Returning an error aborts the update and is passed back unchanged.
type UpdateFunc func(current *auth.AdminAccount) (Changes, error)

// Store persists admin accounts.
//
// Implementations report failures as *auth.Error: KindUserNotFound for a
// missing row, KindDuplicateEmail for a case-insensitive email clash and
// KindStorageUnavailable for everything else. No method returns the digest
// except GetCredentials.
type Store interface {
	// Create checks email uniqueness and inserts in one transaction
	Create(ctx context.Context, rec Record) (*auth.AdminAccount, error)

	GetByID(ctx context.Context, id int64) (*auth.AdminAccount, error)
	GetByEmail(ctx context.Context, email string) (*auth.AdminAccount, error)

	// GetCredentials returns the account and its digest for login
	GetCredentials(ctx context.Context, email string) (*auth.AdminAccount, string, error)

	// List returns every account ordered by ID
	List(ctx context.Context) ([]*auth.AdminAccount, error)

	// Update locks the row, calls fn with it and writes the returned changes.
	// An email change is checked for uniqueness against other rows.
	Update(ctx context.Context, id int64, fn UpdateFunc) (*auth.AdminAccount, error)

	// TouchLastLogin records a successful login
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}
