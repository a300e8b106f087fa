package directory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/platinummonkey/storefront/pkg/auth"
)

// MemoryStore is an in-process Store for local development and tests.
// Update holds the write lock across the callback, which gives it the
// same serialization as a row lock.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]*Record
	now    func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		rows:   make(map[int64]*Record),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) emailTaken(email string, excludeID int64) bool {
	for id, rec := range s.rows {
		if id != excludeID && strings.EqualFold(rec.Account.Email, email) {
			return true
		}
	}
	return false
}

// Create inserts rec under the write lock
func (s *MemoryStore) Create(ctx context.Context, rec Record) (*auth.AdminAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, auth.NewError(auth.KindStorageUnavailable, "create admin", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emailTaken(rec.Account.Email, 0) {
		return nil, auth.NewError(auth.KindDuplicateEmail, "create admin", nil)
	}

	now := s.now()
	stored := &Record{
		Account:      *rec.Account.Clone(),
		PasswordHash: rec.PasswordHash,
	}
	stored.Account.ID = s.nextID
	stored.Account.CreatedAt = now
	stored.Account.UpdatedAt = now
	stored.Account.LastLogin = nil
	if stored.Account.Permissions == nil {
		stored.Account.Permissions = auth.PermissionSet{}
	}
	s.nextID++
	s.rows[stored.Account.ID] = stored

	return stored.Account.Clone(), nil
}

// GetByID retrieves an account by ID
func (s *MemoryStore) GetByID(ctx context.Context, id int64) (*auth.AdminAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, auth.NewError(auth.KindStorageUnavailable, "get admin by id", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.rows[id]
	if !ok {
		return nil, auth.NewError(auth.KindUserNotFound, "get admin by id", nil)
	}
	return rec.Account.Clone(), nil
}

func (s *MemoryStore) findByEmail(email string) *Record {
	for _, rec := range s.rows {
		if strings.EqualFold(rec.Account.Email, email) {
			return rec
		}
	}
	return nil
}

// GetByEmail retrieves an account by email, ignoring case
func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (*auth.AdminAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, auth.NewError(auth.KindStorageUnavailable, "get admin by email", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := s.findByEmail(email)
	if rec == nil {
		return nil, auth.NewError(auth.KindUserNotFound, "get admin by email", nil)
	}
	return rec.Account.Clone(), nil
}

// GetCredentials retrieves an account and its digest by email
func (s *MemoryStore) GetCredentials(ctx context.Context, email string) (*auth.AdminAccount, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", auth.NewError(auth.KindStorageUnavailable, "get admin credentials", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := s.findByEmail(email)
	if rec == nil {
		return nil, "", auth.NewError(auth.KindUserNotFound, "get admin credentials", nil)
	}
	return rec.Account.Clone(), rec.PasswordHash, nil
}

// List returns every account ordered by ID
func (s *MemoryStore) List(ctx context.Context) ([]*auth.AdminAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, auth.NewError(auth.KindStorageUnavailable, "list admins", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]*auth.AdminAccount, 0, len(s.rows))
	for _, rec := range s.rows {
		accounts = append(accounts, rec.Account.Clone())
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

// Update applies fn's changes under the write lock
func (s *MemoryStore) Update(ctx context.Context, id int64, fn UpdateFunc) (*auth.AdminAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, auth.NewError(auth.KindStorageUnavailable, "update admin", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.rows[id]
	if !ok {
		return nil, auth.NewError(auth.KindUserNotFound, "update admin", nil)
	}

	changes, err := fn(rec.Account.Clone())
	if err != nil {
		return nil, err
	}
	if changes.IsEmpty() {
		return rec.Account.Clone(), nil
	}

	if changes.Email != nil && s.emailTaken(*changes.Email, id) {
		return nil, auth.NewError(auth.KindDuplicateEmail, "update admin", nil)
	}

	changes.Apply(&rec.Account)
	if changes.PasswordHash != nil {
		rec.PasswordHash = *changes.PasswordHash
	}
	rec.Account.UpdatedAt = s.now()

	return rec.Account.Clone(), nil
}

// TouchLastLogin records a successful login
func (s *MemoryStore) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return auth.NewError(auth.KindStorageUnavailable, "touch last login", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.rows[id]
	if !ok {
		return auth.NewError(auth.KindUserNotFound, "touch last login", nil)
	}
	t := at
	rec.Account.LastLogin = &t
	return nil
}
