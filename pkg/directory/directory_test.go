package directory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/platinummonkey/storefront/pkg/audit"
	"github.com/platinummonkey/storefront/pkg/auth"
	"github.com/platinummonkey/storefront/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct-horse-battery"

type recordingAudit struct {
	mu     sync.Mutex
	events []*audit.AuditEvent
}

func (r *recordingAudit) Log(ctx context.Context, event *audit.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingAudit) Close() error { return nil }

func (r *recordingAudit) last() *audit.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

type fixture struct {
	dir   *Directory
	store *MemoryStore
	audit *recordingAudit
	root  *auth.AdminAccount
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: NewMemoryStore(),
		audit: &recordingAudit{},
		now:   time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	f.dir = New(f.store, auth.NewPasswordHasher(bcrypt.MinCost),
		WithAuditLogger(f.audit),
		WithClock(func() time.Time { return f.now }),
	)

	root, err := f.dir.Seed(context.Background(), CreateRequest{
		Email:    "root@example.com",
		Password: testPassword,
	})
	require.NoError(t, err)
	f.root = root
	return f
}

func (f *fixture) create(t *testing.T, email string, role auth.Role, actor *auth.AdminAccount) *auth.AdminAccount {
	t.Helper()
	a, err := f.dir.Create(context.Background(), CreateRequest{
		Email:    email,
		Password: testPassword,
		Role:     role,
	}, actor)
	require.NoError(t, err)
	return a
}

func TestSeed(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, auth.RoleSuperAdmin, f.root.Role)
	assert.True(t, f.root.IsActive)
	assert.Nil(t, f.root.CreatedBy)
	assert.Equal(t, audit.EventTypeAdminUserSeed, f.audit.last().EventType)

	t.Run("refused while an active super_admin exists", func(t *testing.T) {
		_, err := f.dir.Seed(context.Background(), CreateRequest{Email: "second@example.com", Password: testPassword})
		assert.ErrorIs(t, err, ErrAlreadySeeded)
		assert.ErrorIs(t, err, auth.ErrInsufficientPermission)

		_, err = f.dir.GetByEmail(context.Background(), "second@example.com")
		assert.ErrorIs(t, err, auth.ErrUserNotFound)

		event := f.audit.last()
		assert.Equal(t, audit.EventTypeAdminUserSeed, event.EventType)
		assert.Equal(t, audit.EventStatusDenied, event.Status)
	})

	t.Run("allowed again once no super_admin is active", func(t *testing.T) {
		g := newFixture(t)
		g.create(t, "admin@example.com", auth.RoleAdmin, g.root)
		inactive := false
		_, err := g.store.Update(context.Background(), g.root.ID, func(*auth.AdminAccount) (Changes, error) {
			return Changes{IsActive: &inactive}, nil
		})
		require.NoError(t, err)

		again, err := g.dir.Seed(context.Background(), CreateRequest{Email: "recovery@example.com", Password: testPassword})
		require.NoError(t, err)
		assert.Equal(t, auth.RoleSuperAdmin, again.Role)
	})

	t.Run("storage failure", func(t *testing.T) {
		dir := New(listFailingStore{NewMemoryStore()}, auth.NewPasswordHasher(bcrypt.MinCost))
		_, err := dir.Seed(context.Background(), CreateRequest{Email: "root@example.com", Password: testPassword})
		assert.ErrorIs(t, err, auth.ErrStorageUnavailable)
	})
}

type listFailingStore struct{ *MemoryStore }

func (listFailingStore) List(ctx context.Context) ([]*auth.AdminAccount, error) {
	return nil, auth.NewError(auth.KindStorageUnavailable, "list admins", errors.New("connection refused"))
}

func TestCreate(t *testing.T) {
	t.Run("super_admin creates admin", func(t *testing.T) {
		f := newFixture(t)

		a, err := f.dir.Create(context.Background(), CreateRequest{
			Email:     "  Alice@Example.com ",
			Password:  testPassword,
			FirstName: "Alice",
			Role:      auth.RoleAdmin,
		}, f.root)
		require.NoError(t, err)

		assert.Equal(t, "alice@example.com", a.Email)
		assert.Equal(t, auth.RoleAdmin, a.Role)
		assert.Empty(t, a.Permissions)
		assert.True(t, a.IsActive)
		require.NotNil(t, a.CreatedBy)
		assert.Equal(t, f.root.ID, *a.CreatedBy)

		_, digest, err := f.store.GetCredentials(context.Background(), "alice@example.com")
		require.NoError(t, err)
		assert.NotEqual(t, testPassword, digest)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(digest), []byte(testPassword)))

		event := f.audit.last()
		assert.Equal(t, audit.EventTypeAdminUserCreate, event.EventType)
		assert.Equal(t, audit.EventStatusSuccess, event.Status)
		require.NotNil(t, event.TargetID)
		assert.Equal(t, a.ID, *event.TargetID)
	})

	t.Run("role defaults to staff", func(t *testing.T) {
		f := newFixture(t)

		a := f.create(t, "staff@example.com", "", f.root)
		assert.Equal(t, auth.RoleStaff, a.Role)
	})

	t.Run("admin may only create staff", func(t *testing.T) {
		f := newFixture(t)
		admin := f.create(t, "admin@example.com", auth.RoleAdmin, f.root)

		staff, err := f.dir.Create(context.Background(), CreateRequest{Email: "s@example.com", Password: testPassword, Role: auth.RoleStaff}, admin)
		require.NoError(t, err)
		assert.Equal(t, admin.ID, *staff.CreatedBy)

		for _, role := range []auth.Role{auth.RoleAdmin, auth.RoleSuperAdmin, auth.RoleStoreManager} {
			_, err := f.dir.Create(context.Background(), CreateRequest{Email: "x-" + string(role) + "@example.com", Password: testPassword, Role: role}, admin)
			assert.ErrorIs(t, err, auth.ErrInsufficientPermission, role)
		}

		event := f.audit.last()
		assert.Equal(t, audit.EventStatusDenied, event.Status)
		assert.Equal(t, "insufficient_permission", event.ErrorKind)
	})

	t.Run("other roles may not create", func(t *testing.T) {
		f := newFixture(t)
		staff := f.create(t, "staff@example.com", auth.RoleStaff, f.root)
		manager := f.create(t, "manager@example.com", auth.RoleStoreManager, f.root)

		for _, actor := range []*auth.AdminAccount{staff, manager, nil} {
			_, err := f.dir.Create(context.Background(), CreateRequest{Email: "new@example.com", Password: testPassword, Role: auth.RoleStaff}, actor)
			assert.ErrorIs(t, err, auth.ErrInsufficientPermission)
		}
	})

	t.Run("authorization is checked before role validity", func(t *testing.T) {
		f := newFixture(t)
		staff := f.create(t, "staff@example.com", auth.RoleStaff, f.root)

		_, err := f.dir.Create(context.Background(), CreateRequest{Email: "new@example.com", Password: testPassword, Role: "owner"}, staff)
		assert.ErrorIs(t, err, auth.ErrInsufficientPermission)
	})

	t.Run("validation failures", func(t *testing.T) {
		f := newFixture(t)

		tests := []struct {
			name   string
			req    CreateRequest
			expect error
		}{
			{"unknown role", CreateRequest{Email: "a@example.com", Password: testPassword, Role: "owner"}, auth.ErrInvalidRole},
			{"unknown permission", CreateRequest{Email: "a@example.com", Password: testPassword, Permissions: auth.NewPermissionSet("manage_everything")}, auth.ErrInvalidPermission},
			{"missing email", CreateRequest{Password: testPassword}, auth.ErrInvalidInput},
			{"malformed email", CreateRequest{Email: "not-an-email", Password: testPassword}, auth.ErrInvalidInput},
			{"display name email", CreateRequest{Email: "Bob <bob@example.com>", Password: testPassword}, auth.ErrInvalidInput},
			{"short password", CreateRequest{Email: "a@example.com", Password: "short"}, auth.ErrInvalidInput},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.dir.Create(context.Background(), tt.req, f.root)
				assert.ErrorIs(t, err, tt.expect)
				assert.NotContains(t, err.Error(), testPassword)
			})
		}
	})

	t.Run("duplicate email regardless of active status", func(t *testing.T) {
		f := newFixture(t)
		existing := f.create(t, "dup@example.com", auth.RoleStaff, f.root)
		_, err := f.dir.SoftDelete(context.Background(), existing.ID, f.root)
		require.NoError(t, err)

		_, err = f.dir.Create(context.Background(), CreateRequest{Email: "DUP@example.com", Password: testPassword}, f.root)
		assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
	})
}

func TestCreate_ConcurrentSameEmail(t *testing.T) {
	f := newFixture(t)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		dupes     int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.dir.Create(context.Background(), CreateRequest{Email: "race@example.com", Password: testPassword}, f.root)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, auth.ErrDuplicateEmail) {
				dupes++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, dupes)
}

func TestAdminCannotCreateAdmin_Scenario(t *testing.T) {
	f := newFixture(t)

	a := f.create(t, "a@example.com", auth.RoleAdmin, f.root)

	_, err := f.dir.Create(context.Background(), CreateRequest{Email: "b@example.com", Password: testPassword, Role: auth.RoleAdmin}, a)
	assert.ErrorIs(t, err, auth.ErrInsufficientPermission)
}

func TestUpdatePermissions_Scenario(t *testing.T) {
	f := newFixture(t)

	a, err := f.dir.Create(context.Background(), CreateRequest{
		Email:       "a@example.com",
		Password:    testPassword,
		Role:        auth.RoleAdmin,
		Permissions: auth.NewPermissionSet(),
	}, f.root)
	require.NoError(t, err)
	assert.False(t, auth.HasPermission(a, auth.PermissionManageCategories))

	a, err = f.dir.UpdatePermissions(context.Background(), a.ID, auth.NewPermissionSet(auth.PermissionAll), f.root)
	require.NoError(t, err)
	assert.True(t, auth.HasPermission(a, auth.PermissionManageCategories))

	event := f.audit.last()
	assert.Equal(t, audit.EventTypeAuthzPermissionChange, event.EventType)
	require.NotNil(t, event.Changes)
	assert.Equal(t, []auth.Permission{auth.PermissionAll}, event.Changes.After["permissions"])
}

func TestUpdatePermissions(t *testing.T) {
	f := newFixture(t)
	admin := f.create(t, "admin@example.com", auth.RoleAdmin, f.root)
	staff := f.create(t, "staff@example.com", auth.RoleStaff, f.root)

	_, err := f.dir.UpdatePermissions(context.Background(), staff.ID, auth.NewPermissionSet(auth.PermissionManageOrders), admin)
	assert.ErrorIs(t, err, auth.ErrInsufficientPermission)

	_, err = f.dir.UpdatePermissions(context.Background(), f.root.ID, auth.NewPermissionSet(), f.root)
	assert.ErrorIs(t, err, auth.ErrSelfActionForbidden)

	_, err = f.dir.UpdatePermissions(context.Background(), staff.ID, auth.NewPermissionSet("delete_everything"), f.root)
	assert.ErrorIs(t, err, auth.ErrInvalidPermission)

	_, err = f.dir.UpdatePermissions(context.Background(), 9999, auth.NewPermissionSet(), f.root)
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	updated, err := f.dir.UpdatePermissions(context.Background(), staff.ID, nil, f.root)
	require.NoError(t, err)
	assert.Empty(t, updated.Permissions)
}

func TestUpdateRole(t *testing.T) {
	f := newFixture(t)
	admin := f.create(t, "admin@example.com", auth.RoleAdmin, f.root)
	staff := f.create(t, "staff@example.com", auth.RoleStaff, f.root)

	t.Run("self change forbidden even for super_admin", func(t *testing.T) {
		for _, role := range []auth.Role{auth.RoleStaff, auth.RoleSuperAdmin, "bogus"} {
			_, err := f.dir.UpdateRole(context.Background(), f.root.ID, role, f.root)
			assert.ErrorIs(t, err, auth.ErrSelfActionForbidden)
		}
		assert.Equal(t, audit.EventStatusDenied, f.audit.last().Status)
	})

	t.Run("only super_admin", func(t *testing.T) {
		_, err := f.dir.UpdateRole(context.Background(), staff.ID, auth.RoleSalesManager, admin)
		assert.ErrorIs(t, err, auth.ErrInsufficientPermission)
	})

	t.Run("invalid role", func(t *testing.T) {
		_, err := f.dir.UpdateRole(context.Background(), staff.ID, "owner", f.root)
		assert.ErrorIs(t, err, auth.ErrInvalidRole)
	})

	t.Run("missing target", func(t *testing.T) {
		_, err := f.dir.UpdateRole(context.Background(), 9999, auth.RoleStaff, f.root)
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})

	t.Run("success", func(t *testing.T) {
		updated, err := f.dir.UpdateRole(context.Background(), staff.ID, auth.RoleCustomerService, f.root)
		require.NoError(t, err)
		assert.Equal(t, auth.RoleCustomerService, updated.Role)

		event := f.audit.last()
		assert.Equal(t, audit.EventTypeAuthzRoleChange, event.EventType)
		assert.Equal(t, "staff", event.Changes.Before["role"])
		assert.Equal(t, "customer_service", event.Changes.After["role"])
	})
}

func TestUpdateActiveStatus(t *testing.T) {
	t.Run("self deactivation forbidden even for super_admin", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.dir.UpdateActiveStatus(context.Background(), f.root.ID, false, f.root)
		assert.ErrorIs(t, err, auth.ErrSelfActionForbidden)

		_, err = f.dir.SoftDelete(context.Background(), f.root.ID, f.root)
		assert.ErrorIs(t, err, auth.ErrSelfActionForbidden)
	})

	t.Run("only super_admin", func(t *testing.T) {
		f := newFixture(t)
		admin := f.create(t, "admin@example.com", auth.RoleAdmin, f.root)
		staff := f.create(t, "staff@example.com", auth.RoleStaff, f.root)

		_, err := f.dir.UpdateActiveStatus(context.Background(), staff.ID, false, admin)
		assert.ErrorIs(t, err, auth.ErrInsufficientPermission)
	})

	t.Run("reactivation keeps role and permissions", func(t *testing.T) {
		f := newFixture(t)
		a, err := f.dir.Create(context.Background(), CreateRequest{
			Email:       "ops@example.com",
			Password:    testPassword,
			Role:        auth.RoleStoreManager,
			Permissions: auth.NewPermissionSet(auth.PermissionManageProducts, auth.PermissionViewReports),
		}, f.root)
		require.NoError(t, err)

		deactivated, err := f.dir.SoftDelete(context.Background(), a.ID, f.root)
		require.NoError(t, err)
		assert.False(t, deactivated.IsActive)
		assert.Equal(t, audit.EventTypeAdminUserDeactivate, f.audit.last().EventType)

		// The record still exists
		stored, err := f.dir.GetByID(context.Background(), a.ID)
		require.NoError(t, err)
		assert.False(t, stored.IsActive)

		reactivated, err := f.dir.UpdateActiveStatus(context.Background(), a.ID, true, f.root)
		require.NoError(t, err)
		assert.True(t, reactivated.IsActive)
		assert.Equal(t, auth.RoleStoreManager, reactivated.Role)
		assert.Equal(t, a.Permissions, reactivated.Permissions)
		assert.Equal(t, audit.EventTypeAdminUserActivate, f.audit.last().EventType)
	})
}

func TestUpdateProfile(t *testing.T) {
	str := func(s string) *string { return &s }

	t.Run("self may edit own profile", func(t *testing.T) {
		f := newFixture(t)
		staff := f.create(t, "staff@example.com", auth.RoleStaff, f.root)

		updated, err := f.dir.UpdateProfile(context.Background(), staff.ID, ProfileUpdate{
			FirstName: str("Sam"),
			Phone:     str("+1 555 0100"),
			Email:     str("Sam@Example.com"),
			Password:  str("a-brand-new-password"),
		}, staff)
		require.NoError(t, err)
		assert.Equal(t, "Sam", updated.FirstName)
		assert.Equal(t, "sam@example.com", updated.Email)

		_, err = f.dir.Authenticate(context.Background(), "sam@example.com", "a-brand-new-password")
		assert.NoError(t, err)

		var sawPasswordEvent bool
		for _, e := range f.audit.events {
			if e.EventType == audit.EventTypeAuthPasswordChange {
				sawPasswordEvent = true
			}
			if e.Changes != nil {
				for _, v := range e.Changes.After {
					assert.NotEqual(t, "a-brand-new-password", v)
				}
			}
		}
		assert.True(t, sawPasswordEvent)
	})

	t.Run("admin may manage staff", func(t *testing.T) {
		f := newFixture(t)
		admin := f.create(t, "admin@example.com", auth.RoleAdmin, f.root)
		staff := f.create(t, "staff@example.com", auth.RoleStaff, f.root)

		_, err := f.dir.UpdateProfile(context.Background(), staff.ID, ProfileUpdate{Password: str("reset-by-admin-1")}, admin)
		require.NoError(t, err)
	})

	t.Run("admin may not manage another admin", func(t *testing.T) {
		f := newFixture(t)
		admin := f.create(t, "admin@example.com", auth.RoleAdmin, f.root)
		other := f.create(t, "other@example.com", auth.RoleAdmin, f.root)

		_, err := f.dir.UpdateProfile(context.Background(), other.ID, ProfileUpdate{Email: str("hijack@example.com")}, admin)
		assert.ErrorIs(t, err, auth.ErrInsufficientPermission)
	})

	t.Run("staff may not edit others", func(t *testing.T) {
		f := newFixture(t)
		staff := f.create(t, "staff@example.com", auth.RoleStaff, f.root)
		peer := f.create(t, "peer@example.com", auth.RoleStaff, f.root)

		_, err := f.dir.UpdateProfile(context.Background(), peer.ID, ProfileUpdate{FirstName: str("x")}, staff)
		assert.ErrorIs(t, err, auth.ErrInsufficientPermission)
	})

	t.Run("email change rechecks uniqueness", func(t *testing.T) {
		f := newFixture(t)
		staff := f.create(t, "staff@example.com", auth.RoleStaff, f.root)

		_, err := f.dir.UpdateProfile(context.Background(), staff.ID, ProfileUpdate{Email: str("ROOT@example.com")}, staff)
		assert.ErrorIs(t, err, auth.ErrDuplicateEmail)

		// Re-saving the same address is not a conflict
		_, err = f.dir.UpdateProfile(context.Background(), staff.ID, ProfileUpdate{Email: str("staff@example.com")}, staff)
		assert.NoError(t, err)
	})

	t.Run("empty update", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.dir.UpdateProfile(context.Background(), f.root.ID, ProfileUpdate{}, f.root)
		assert.ErrorIs(t, err, auth.ErrInvalidInput)
	})

	t.Run("hierarchy is rechecked on the locked row", func(t *testing.T) {
		f := newFixture(t)
		admin := f.create(t, "admin@example.com", auth.RoleAdmin, f.root)
		staff := f.create(t, "staff@example.com", auth.RoleStaff, f.root)

		// Promote the target between the pre-check and the write
		racing := &promotingStore{MemoryStore: f.store, promote: func() {
			_, err := f.dir.UpdateRole(context.Background(), staff.ID, auth.RoleAdmin, f.root)
			require.NoError(t, err)
		}}
		d := New(racing, auth.NewPasswordHasher(bcrypt.MinCost))

		_, err := d.UpdateProfile(context.Background(), staff.ID, ProfileUpdate{FirstName: str("x")}, admin)
		assert.ErrorIs(t, err, auth.ErrInsufficientPermission)
	})
}

// promotingStore runs promote just before the first Update takes its lock
type promotingStore struct {
	*MemoryStore
	promote func()
	once    sync.Once
}

func (s *promotingStore) Update(ctx context.Context, id int64, fn UpdateFunc) (*auth.AdminAccount, error) {
	s.once.Do(s.promote)
	return s.MemoryStore.Update(ctx, id, fn)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	staff := f.create(t, "staff@example.com", auth.RoleStaff, f.root)

	t.Run("success records last login", func(t *testing.T) {
		a, err := f.dir.Authenticate(context.Background(), "STAFF@example.com", testPassword)
		require.NoError(t, err)
		assert.Equal(t, staff.ID, a.ID)
		require.NotNil(t, a.LastLogin)
		assert.True(t, f.now.Equal(*a.LastLogin))

		stored, err := f.dir.GetByID(context.Background(), staff.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.LastLogin)
		assert.Equal(t, audit.EventTypeAuthLogin, f.audit.last().EventType)
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		_, errWrong := f.dir.Authenticate(context.Background(), "staff@example.com", "wrong-password")
		_, errUnknown := f.dir.Authenticate(context.Background(), "nobody@example.com", testPassword)

		assert.ErrorIs(t, errWrong, auth.ErrInvalidCredentials)
		assert.ErrorIs(t, errUnknown, auth.ErrInvalidCredentials)
		assert.Equal(t, errWrong.Error(), errUnknown.Error())
		assert.Equal(t, audit.EventTypeAuthLoginFailed, f.audit.last().EventType)
	})

	t.Run("empty credentials", func(t *testing.T) {
		_, err := f.dir.Authenticate(context.Background(), "", "")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("inactive only after the password matches", func(t *testing.T) {
		_, err := f.dir.SoftDelete(context.Background(), staff.ID, f.root)
		require.NoError(t, err)

		_, err = f.dir.Authenticate(context.Background(), "staff@example.com", testPassword)
		assert.ErrorIs(t, err, auth.ErrUserInactive)

		_, err = f.dir.Authenticate(context.Background(), "staff@example.com", "wrong-password")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})
}

// passwordCompares counts observations of the password hash histogram
func passwordCompares(t *testing.T, registry *prometheus.Registry) uint64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "storefront_password_hash_duration_seconds" {
			return mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	return 0
}

func TestAuthenticate_EveryRejectionComparesOnce(t *testing.T) {
	registry := prometheus.NewRegistry()
	dir := New(NewMemoryStore(), auth.NewPasswordHasher(bcrypt.MinCost),
		WithMetrics(observability.NewMetrics(registry)))
	_, err := dir.Seed(context.Background(), CreateRequest{Email: "root@example.com", Password: testPassword})
	require.NoError(t, err)

	attempts := []struct {
		name     string
		email    string
		password string
	}{
		{"empty email", "", testPassword},
		{"empty password", "root@example.com", ""},
		{"blank email", "   ", "whatever-password"},
		{"unknown email", "nobody@example.com", testPassword},
		{"wrong password", "root@example.com", "wrong-password"},
	}
	for _, tt := range attempts {
		t.Run(tt.name, func(t *testing.T) {
			before := passwordCompares(t, registry)
			_, err := dir.Authenticate(context.Background(), tt.email, tt.password)
			assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
			assert.Equal(t, before+1, passwordCompares(t, registry))
		})
	}
}

func TestAuthenticate_UpgradesDigestCost(t *testing.T) {
	store := NewMemoryStore()
	weak := New(store, auth.NewPasswordHasher(bcrypt.MinCost))
	_, err := weak.Seed(context.Background(), CreateRequest{Email: "root@example.com", Password: testPassword})
	require.NoError(t, err)

	strong := New(store, auth.NewPasswordHasher(bcrypt.MinCost+1))
	_, err = strong.Authenticate(context.Background(), "root@example.com", testPassword)
	require.NoError(t, err)

	_, digest, err := store.GetCredentials(context.Background(), "root@example.com")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(digest))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)
}

// unavailableStore fails every call the way a dropped connection would
type unavailableStore struct{ *MemoryStore }

func (unavailableStore) GetByID(ctx context.Context, id int64) (*auth.AdminAccount, error) {
	return nil, auth.NewError(auth.KindStorageUnavailable, "get admin by id", errors.New("connection refused"))
}

func (unavailableStore) GetCredentials(ctx context.Context, email string) (*auth.AdminAccount, string, error) {
	return nil, "", auth.NewError(auth.KindStorageUnavailable, "get admin credentials", errors.New("connection refused"))
}

func TestStorageUnavailableIsNotNotFound(t *testing.T) {
	d := New(unavailableStore{NewMemoryStore()}, auth.NewPasswordHasher(bcrypt.MinCost))

	_, err := d.GetByID(context.Background(), 1)
	assert.ErrorIs(t, err, auth.ErrStorageUnavailable)
	assert.NotErrorIs(t, err, auth.ErrUserNotFound)

	_, err = d.Authenticate(context.Background(), "root@example.com", testPassword)
	assert.ErrorIs(t, err, auth.ErrStorageUnavailable)
	assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestReads(t *testing.T) {
	f := newFixture(t)
	staff := f.create(t, "staff@example.com", auth.RoleStaff, f.root)

	all, err := f.dir.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, f.root.ID, all[0].ID)
	assert.Equal(t, staff.ID, all[1].ID)

	byEmail, err := f.dir.GetByEmail(context.Background(), " Staff@Example.com")
	require.NoError(t, err)
	assert.Equal(t, staff.ID, byEmail.ID)

	_, err = f.dir.GetByEmail(context.Background(), "missing@example.com")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	// Returned accounts are copies
	byEmail.Role = auth.RoleSuperAdmin
	again, err := f.dir.GetByID(context.Background(), staff.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleStaff, again.Role)
}
