package directory

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/storefront/pkg/audit"
	"github.com/platinummonkey/storefront/pkg/auth"
	"github.com/platinummonkey/storefront/pkg/contextkeys"
	"github.com/platinummonkey/storefront/pkg/observability"
)

const (
	maxEmailLength = 255
	maxNameLength  = 100
	maxPhoneLength = 50
)

// Directory applies the admin management rules on top of a Store.
// Every mutating call takes the authenticated actor.
type Directory struct {
	store   Store
	hasher  *auth.PasswordHasher
	audit   audit.Logger
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// Option configures a Directory
type Option func(*Directory)

// WithAuditLogger sets the audit sink. Defaults to a no-op sink.
func WithAuditLogger(l audit.Logger) Option {
	return func(d *Directory) {
		if l != nil {
			d.audit = l
		}
	}
}

// WithLogger sets the operational logger
func WithLogger(l *observability.Logger) Option {
	return func(d *Directory) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics enables Prometheus instrumentation
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Directory) {
		d.metrics = m
	}
}

// WithClock overrides the time source used for last_login
func WithClock(now func() time.Time) Option {
	return func(d *Directory) {
		if now != nil {
			d.now = now
		}
	}
}

// New creates a Directory
func New(store Store, hasher *auth.PasswordHasher, opts ...Option) *Directory {
	d := &Directory{
		store:  store,
		hasher: hasher,
		audit:  audit.NopLogger(),
		logger: observability.NewNopLogger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CreateRequest describes a new admin account.
// An empty Role means staff; nil Permissions means none.
type CreateRequest struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Phone       string
	Role        auth.Role
	Permissions auth.PermissionSet
}

// ProfileUpdate lists the profile fields to change. Nil fields are kept.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Email     *string
	Password  *string
}

func (u ProfileUpdate) isEmpty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Phone == nil && u.Email == nil && u.Password == nil
}

// begin starts a span for op and returns the function that closes it,
// recording the result kind on the span and in the operation metrics.
func (d *Directory) begin(ctx context.Context, op string) (context.Context, func(*error)) {
	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, "directory."+op)
	return ctx, func(errp *error) {
		result := "ok"
		if err := *errp; err != nil {
			result = string(auth.KindOf(err))
			if result == "" {
				result = "error"
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
		}
		span.SetAttributes(attribute.String("directory.result", result))
		d.metrics.ObserveDirectoryOp(op, result, time.Since(start))
		span.End()
	}
}

func (d *Directory) log(ctx context.Context) *observability.Logger {
	l := d.logger
	if id := contextkeys.GetRequestID(ctx); id != "" {
		l = l.WithField("request_id", id)
	}
	return l
}

// record writes one audit event. Changes are only kept on success.
func (d *Directory) record(ctx context.Context, eventType audit.EventType, actor *auth.AdminAccount, targetID int64, changes *audit.ChangeDetails, err error) {
	event := audit.NewEvent(ctx, eventType, audit.EventStatusSuccess).
		WithActor(actor).
		WithTarget(targetID).
		WithError(err)
	if err == nil {
		event.Changes = changes
	}
	if logErr := d.audit.Log(ctx, event); logErr != nil {
		d.log(ctx).WithError(logErr).WithField("event_type", string(eventType)).Warn("Failed to write audit event")
	}
}

func requireSuperAdmin(op string, actor *auth.AdminAccount) error {
	if actor == nil || actor.Role != auth.RoleSuperAdmin {
		return auth.NewError(auth.KindInsufficientPermission, op, errors.New("requires super_admin"))
	}
	return nil
}

func validateEmail(op, raw string) (string, error) {
	email := auth.NormalizeEmail(raw)
	if email == "" {
		return "", auth.NewError(auth.KindInvalidInput, op, errors.New("email is required"))
	}
	if len(email) > maxEmailLength {
		return "", auth.NewError(auth.KindInvalidInput, op, fmt.Errorf("email must be at most %d characters", maxEmailLength))
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", auth.NewError(auth.KindInvalidInput, op, errors.New("invalid email address"))
	}
	return email, nil
}

func validateLength(op, field, value string, max int) error {
	if len(value) > max {
		return auth.NewError(auth.KindInvalidInput, op, fmt.Errorf("%s must be at most %d characters", field, max))
	}
	return nil
}

func validateProfile(op, firstName, lastName, phone string) error {
	if err := validateLength(op, "first_name", firstName, maxNameLength); err != nil {
		return err
	}
	if err := validateLength(op, "last_name", lastName, maxNameLength); err != nil {
		return err
	}
	return validateLength(op, "phone", phone, maxPhoneLength)
}

func (d *Directory) hashPassword(password string) (string, error) {
	start := time.Now()
	digest, err := d.hasher.Hash(password)
	d.metrics.ObservePasswordHash(time.Since(start))
	return digest, err
}

// comparePassword checks password against digest. An empty digest runs a
// dummy comparison so every rejected login costs one bcrypt compare.
func (d *Directory) comparePassword(password, digest string) bool {
	start := time.Now()
	defer func() { d.metrics.ObservePasswordHash(time.Since(start)) }()

	if digest == "" {
		d.hasher.VerifyDummy(password)
		return false
	}
	return d.hasher.Verify(password, digest)
}

// Create adds an admin account on behalf of actor.
//
// Checks run in this order: actor must be super_admin or admin; the role
// must be known; admins may only create staff; permissions must be known;
// email and password must be well formed; the email must be unused.
func (d *Directory) Create(ctx context.Context, req CreateRequest, actor *auth.AdminAccount) (account *auth.AdminAccount, err error) {
	const op = "create"
	ctx, done := d.begin(ctx, op)
	defer done(&err)

	var targetID int64
	defer func() {
		d.record(ctx, audit.EventTypeAdminUserCreate, actor, targetID, nil, err)
	}()

	if actor == nil || (actor.Role != auth.RoleSuperAdmin && actor.Role != auth.RoleAdmin) {
		return nil, auth.NewError(auth.KindInsufficientPermission, op, errors.New("requires super_admin or admin"))
	}

	role := req.Role
	if role == "" {
		role = auth.RoleStaff
	}
	if !role.Valid() {
		return nil, auth.NewError(auth.KindInvalidRole, op, fmt.Errorf("unknown role %q", role))
	}
	if !auth.CanCreateRole(actor, role) {
		return nil, auth.NewError(auth.KindInsufficientPermission, op, fmt.Errorf("%s may not create %s accounts", actor.Role, role))
	}

	rec, err := d.newRecord(op, req, role)
	if err != nil {
		return nil, err
	}
	createdBy := actor.ID
	rec.Account.CreatedBy = &createdBy

	account, err = d.store.Create(ctx, rec)
	if err != nil {
		return nil, err
	}
	targetID = account.ID

	d.log(ctx).WithFields(map[string]interface{}{
		"admin_id":   account.ID,
		"role":       string(account.Role),
		"created_by": actor.ID,
	}).Info("Admin account created")
	return account, nil
}

// newRecord validates req and hashes its password
func (d *Directory) newRecord(op string, req CreateRequest, role auth.Role) (Record, error) {
	perms := req.Permissions.Clone()
	if err := perms.Validate(); err != nil {
		return Record{}, auth.NewError(auth.KindInvalidPermission, op, err)
	}

	email, err := validateEmail(op, req.Email)
	if err != nil {
		return Record{}, err
	}
	if err := validateProfile(op, req.FirstName, req.LastName, req.Phone); err != nil {
		return Record{}, err
	}

	digest, err := d.hashPassword(req.Password)
	if err != nil {
		return Record{}, err
	}

	return Record{
		Account: auth.AdminAccount{
			Email:       email,
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			Phone:       req.Phone,
			Role:        role,
			Permissions: perms,
			IsActive:    true,
		},
		PasswordHash: digest,
	}, nil
}

// ErrAlreadySeeded is wrapped by Seed when an active super_admin exists
var ErrAlreadySeeded = errors.New("an active super_admin already exists")

// Seed creates a super_admin with no creator. It bypasses the actor checks,
// so it refuses to run while any active super_admin exists. A directory whose
// super_admins were all deactivated can be seeded again.
func (d *Directory) Seed(ctx context.Context, req CreateRequest) (account *auth.AdminAccount, err error) {
	const op = "seed"
	ctx, done := d.begin(ctx, op)
	defer done(&err)

	var targetID int64
	defer func() {
		d.record(ctx, audit.EventTypeAdminUserSeed, nil, targetID, nil, err)
	}()

	rec, err := d.newRecord(op, req, auth.RoleSuperAdmin)
	if err != nil {
		return nil, err
	}

	existing, err := d.store.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range existing {
		if a.Role == auth.RoleSuperAdmin && a.IsActive {
			return nil, auth.NewError(auth.KindInsufficientPermission, op, ErrAlreadySeeded)
		}
	}

	account, err = d.store.Create(ctx, rec)
	if err != nil {
		return nil, err
	}
	targetID = account.ID

	d.log(ctx).WithField("admin_id", account.ID).Info("Seeded super_admin account")
	return account, nil
}

// UpdateRole changes another account's role. super_admin only.
func (d *Directory) UpdateRole(ctx context.Context, targetID int64, newRole auth.Role, actor *auth.AdminAccount) (account *auth.AdminAccount, err error) {
	const op = "update_role"
	ctx, done := d.begin(ctx, op)
	defer done(&err)

	var changes *audit.ChangeDetails
	defer func() {
		d.record(ctx, audit.EventTypeAuthzRoleChange, actor, targetID, changes, err)
	}()

	if err := requireSuperAdmin(op, actor); err != nil {
		return nil, err
	}
	if actor.ID == targetID {
		return nil, auth.NewError(auth.KindSelfActionForbidden, op, errors.New("cannot change own role"))
	}
	if !newRole.Valid() {
		return nil, auth.NewError(auth.KindInvalidRole, op, fmt.Errorf("unknown role %q", newRole))
	}

	account, err = d.store.Update(ctx, targetID, func(current *auth.AdminAccount) (Changes, error) {
		if current.Role == newRole {
			return Changes{}, nil
		}
		changes = audit.NewChange("role", string(current.Role), string(newRole))
		return Changes{Role: &newRole}, nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// UpdatePermissions replaces another account's permission set. super_admin only.
func (d *Directory) UpdatePermissions(ctx context.Context, targetID int64, perms auth.PermissionSet, actor *auth.AdminAccount) (account *auth.AdminAccount, err error) {
	const op = "update_permissions"
	ctx, done := d.begin(ctx, op)
	defer done(&err)

	var changes *audit.ChangeDetails
	defer func() {
		d.record(ctx, audit.EventTypeAuthzPermissionChange, actor, targetID, changes, err)
	}()

	if err := requireSuperAdmin(op, actor); err != nil {
		return nil, err
	}
	if actor.ID == targetID {
		return nil, auth.NewError(auth.KindSelfActionForbidden, op, errors.New("cannot change own permissions"))
	}
	next := perms.Clone()
	if err := next.Validate(); err != nil {
		return nil, auth.NewError(auth.KindInvalidPermission, op, err)
	}

	account, err = d.store.Update(ctx, targetID, func(current *auth.AdminAccount) (Changes, error) {
		changes = audit.NewChange("permissions", current.Permissions.Sorted(), next.Sorted())
		return Changes{Permissions: &next}, nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// UpdateActiveStatus activates or deactivates another account. super_admin
// only; nobody may deactivate themselves. Role and permissions are kept.
func (d *Directory) UpdateActiveStatus(ctx context.Context, targetID int64, active bool, actor *auth.AdminAccount) (account *auth.AdminAccount, err error) {
	const op = "update_active_status"
	ctx, done := d.begin(ctx, op)
	defer done(&err)

	eventType := audit.EventTypeAdminUserActivate
	if !active {
		eventType = audit.EventTypeAdminUserDeactivate
	}
	var changes *audit.ChangeDetails
	defer func() {
		d.record(ctx, eventType, actor, targetID, changes, err)
	}()

	if err := requireSuperAdmin(op, actor); err != nil {
		return nil, err
	}
	if actor.ID == targetID && !active {
		return nil, auth.NewError(auth.KindSelfActionForbidden, op, errors.New("cannot deactivate own account"))
	}

	account, err = d.store.Update(ctx, targetID, func(current *auth.AdminAccount) (Changes, error) {
		if current.IsActive == active {
			return Changes{}, nil
		}
		changes = audit.NewChange("is_active", current.IsActive, active)
		return Changes{IsActive: &active}, nil
	})
	if err != nil {
		return nil, err
	}

	if changes != nil {
		d.log(ctx).WithFields(map[string]interface{}{
			"admin_id":  targetID,
			"is_active": active,
		}).Info("Admin account status changed")
	}
	return account, nil
}

// SoftDelete deactivates targetID. Accounts are never removed.
func (d *Directory) SoftDelete(ctx context.Context, targetID int64, actor *auth.AdminAccount) (*auth.AdminAccount, error) {
	return d.UpdateActiveStatus(ctx, targetID, false, actor)
}

// UpdateProfile edits name, phone, email or password. Accounts may edit
// their own profile; editing another requires auth.CanManage, checked
// against the locked row.
func (d *Directory) UpdateProfile(ctx context.Context, targetID int64, upd ProfileUpdate, actor *auth.AdminAccount) (account *auth.AdminAccount, err error) {
	const op = "update_profile"
	ctx, done := d.begin(ctx, op)
	defer done(&err)

	var (
		changes         *audit.ChangeDetails
		passwordChanged bool
	)
	defer func() {
		d.record(ctx, audit.EventTypeAdminUserUpdate, actor, targetID, changes, err)
		if err == nil && passwordChanged {
			d.record(ctx, audit.EventTypeAuthPasswordChange, actor, targetID, nil, nil)
		}
	}()

	if actor == nil {
		return nil, auth.NewError(auth.KindInsufficientPermission, op, errors.New("no actor"))
	}
	if upd.isEmpty() {
		return nil, auth.NewError(auth.KindInvalidInput, op, errors.New("no fields to update"))
	}
	self := actor.ID == targetID

	// Fail fast before paying for bcrypt; the decision is repeated on the locked row
	if !self {
		target, err := d.store.GetByID(ctx, targetID)
		if err != nil {
			return nil, err
		}
		if !auth.CanManage(actor, target) {
			return nil, auth.NewError(auth.KindInsufficientPermission, op, fmt.Errorf("%s may not manage %s accounts", actor.Role, target.Role))
		}
	}

	var next Changes
	if upd.FirstName != nil {
		next.FirstName = upd.FirstName
	}
	if upd.LastName != nil {
		next.LastName = upd.LastName
	}
	if upd.Phone != nil {
		next.Phone = upd.Phone
	}
	if err := validateProfile(op, deref(next.FirstName), deref(next.LastName), deref(next.Phone)); err != nil {
		return nil, err
	}
	if upd.Email != nil {
		email, err := validateEmail(op, *upd.Email)
		if err != nil {
			return nil, err
		}
		next.Email = &email
	}
	if upd.Password != nil {
		digest, err := d.hashPassword(*upd.Password)
		if err != nil {
			return nil, err
		}
		next.PasswordHash = &digest
	}

	account, err = d.store.Update(ctx, targetID, func(current *auth.AdminAccount) (Changes, error) {
		if !self && !auth.CanManage(actor, current) {
			return Changes{}, auth.NewError(auth.KindInsufficientPermission, op, fmt.Errorf("%s may not manage %s accounts", actor.Role, current.Role))
		}
		changes = profileChanges(current, next)
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	passwordChanged = next.PasswordHash != nil
	return account, nil
}

// profileChanges describes next against current for the audit trail.
// The password digest is reported only as changed.
func profileChanges(current *auth.AdminAccount, next Changes) *audit.ChangeDetails {
	details := &audit.ChangeDetails{
		Before: map[string]interface{}{},
		After:  map[string]interface{}{},
	}
	set := func(field string, before string, after *string) {
		if after != nil && *after != before {
			details.Before[field] = before
			details.After[field] = *after
		}
	}
	set("first_name", current.FirstName, next.FirstName)
	set("last_name", current.LastName, next.LastName)
	set("phone", current.Phone, next.Phone)
	set("email", current.Email, next.Email)
	if next.PasswordHash != nil {
		details.After["password"] = "[changed]"
	}
	return details
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Authenticate checks an email and password pair.
//
// Unknown emails and wrong passwords both fail with InvalidCredentials and
// cost one bcrypt comparison. UserInactive is only reported once the
// password has matched.
func (d *Directory) Authenticate(ctx context.Context, email, password string) (account *auth.AdminAccount, err error) {
	const op = "authenticate"
	ctx, done := d.begin(ctx, op)
	defer done(&err)

	var targetID int64
	defer func() {
		outcome := "success"
		eventType := audit.EventTypeAuthLogin
		if err != nil {
			outcome = string(auth.KindOf(err))
			eventType = audit.EventTypeAuthLoginFailed
		}
		d.metrics.ObserveLogin(outcome)
		d.record(ctx, eventType, account, targetID, nil, err)
	}()

	email = auth.NormalizeEmail(email)
	if email == "" || password == "" {
		d.comparePassword(password, "")
		return nil, auth.NewError(auth.KindInvalidCredentials, op, nil)
	}

	found, digest, err := d.store.GetCredentials(ctx, email)
	if errors.Is(err, auth.ErrUserNotFound) {
		d.comparePassword(password, "")
		return nil, auth.NewError(auth.KindInvalidCredentials, op, nil)
	}
	if err != nil {
		return nil, err
	}
	targetID = found.ID

	if !d.comparePassword(password, digest) {
		return nil, auth.NewError(auth.KindInvalidCredentials, op, nil)
	}
	if !found.IsActive {
		return nil, auth.NewError(auth.KindUserInactive, op, nil)
	}

	now := d.now()
	if err := d.store.TouchLastLogin(ctx, found.ID, now); err != nil {
		d.log(ctx).WithError(err).WithField("admin_id", found.ID).Warn("Failed to record last login")
	} else {
		found.LastLogin = &now
	}

	if d.hasher.NeedsRehash(digest) {
		d.rehash(ctx, found.ID, password)
	}

	return found, nil
}

// rehash upgrades a digest made with an outdated cost. Failures are logged only.
func (d *Directory) rehash(ctx context.Context, id int64, password string) {
	digest, err := d.hashPassword(password)
	if err == nil {
		_, err = d.store.Update(ctx, id, func(*auth.AdminAccount) (Changes, error) {
			return Changes{PasswordHash: &digest}, nil
		})
	}
	if err != nil {
		d.log(ctx).WithError(err).WithField("admin_id", id).Warn("Failed to upgrade password digest")
	}
}

// ListAll returns every account, active or not
func (d *Directory) ListAll(ctx context.Context) (accounts []*auth.AdminAccount, err error) {
	ctx, done := d.begin(ctx, "list")
	defer done(&err)
	return d.store.List(ctx)
}

// GetByID returns one account
func (d *Directory) GetByID(ctx context.Context, id int64) (account *auth.AdminAccount, err error) {
	ctx, done := d.begin(ctx, "get_by_id")
	defer done(&err)
	return d.store.GetByID(ctx, id)
}

// GetByEmail returns one account, matching email without regard to case
func (d *Directory) GetByEmail(ctx context.Context, email string) (account *auth.AdminAccount, err error) {
	ctx, done := d.begin(ctx, "get_by_email")
	defer done(&err)
	return d.store.GetByEmail(ctx, auth.NormalizeEmail(email))
}
