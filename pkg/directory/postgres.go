package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/platinummonkey/storefront/pkg/auth"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const uniqueViolation = "23505"

const accountColumns = `id, email, first_name, last_name, phone, role, permissions, is_active, last_login, created_by, created_at, updated_at`

// PostgresStore keeps admin accounts in the admin_users table
type PostgresStore struct {
	db     *sql.DB
	reader func() *sql.DB
	now    func() time.Time
}

// ReplicaPool hands out read replica connections, typically round-robin
type ReplicaPool interface {
	Replica() *sql.DB
}

// NewPostgresStore creates a store on db. All reads and writes go to db
// until WithReader is used.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		reader: func() *sql.DB { return db },
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithReader routes List to a read replica. Lookups used for
// authentication stay on the primary so deactivation is seen at once.
func (s *PostgresStore) WithReader(reader *sql.DB) *PostgresStore {
	if reader != nil {
		s.reader = func() *sql.DB { return reader }
	}
	return s
}

// WithReplicas is WithReader for a pool; a replica is picked per List call
func (s *PostgresStore) WithReplicas(pool ReplicaPool) *PostgresStore {
	if pool != nil {
		s.reader = pool.Replica
	}
	return s
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner, extra ...interface{}) (*auth.AdminAccount, error) {
	var (
		a                   auth.AdminAccount
		firstName, lastName sql.NullString
		phone               sql.NullString
		role                string
		lastLogin           sql.NullTime
		createdBy           sql.NullInt64
	)

	dest := append(extra,
		&a.ID, &a.Email, &firstName, &lastName, &phone, &role, &a.Permissions,
		&a.IsActive, &lastLogin, &createdBy, &a.CreatedAt, &a.UpdatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	parsed, err := auth.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("row %d has unknown role %q", a.ID, role)
	}
	a.Role = parsed
	a.FirstName = firstName.String
	a.LastName = lastName.String
	a.Phone = phone.String
	if lastLogin.Valid {
		t := lastLogin.Time
		a.LastLogin = &t
	}
	if createdBy.Valid {
		id := createdBy.Int64
		a.CreatedBy = &id
	}
	if a.Permissions == nil {
		a.Permissions = auth.PermissionSet{}
	}
	return &a, nil
}

// classify turns a driver error into the auth taxonomy.
// Errors that already carry a kind pass through.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return auth.NewError(auth.KindUserNotFound, op, nil)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return auth.NewError(auth.KindDuplicateEmail, op, nil)
	}
	return auth.NewError(auth.KindStorageUnavailable, op, err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Create inserts rec after checking the email is unused, in one transaction.
// The unique index on lower(email) backs up the check.
func (s *PostgresStore) Create(ctx context.Context, rec Record) (*auth.AdminAccount, error) {
	const op = "create admin"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(op, err)
	}
	defer tx.Rollback()

	a := rec.Account
	if err := ensureEmailFree(ctx, tx, a.Email, 0); err != nil {
		return nil, classify(op, err)
	}

	now := s.now()
	query := `
		INSERT INTO admin_users (email, password_hash, first_name, last_name, phone, role, permissions, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + accountColumns

	perms := a.Permissions
	if perms == nil {
		perms = auth.PermissionSet{}
	}

	created, err := scanAccount(tx.QueryRowContext(ctx, query,
		a.Email,
		rec.PasswordHash,
		nullString(a.FirstName),
		nullString(a.LastName),
		nullString(a.Phone),
		string(a.Role),
		perms,
		a.IsActive,
		a.CreatedBy,
		now,
		now,
	))
	if err != nil {
		return nil, classify(op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(op, err)
	}
	return created, nil
}

// ensureEmailFree fails with DuplicateEmail when another row owns email
func ensureEmailFree(ctx context.Context, tx *sql.Tx, email string, excludeID int64) error {
	var exists bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM admin_users WHERE lower(email) = lower($1) AND id <> $2)`,
		email, excludeID,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return auth.NewError(auth.KindDuplicateEmail, "check email", nil)
	}
	return nil
}

// GetByID retrieves an account by ID
func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*auth.AdminAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM admin_users WHERE id = $1`
	a, err := scanAccount(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, classify("get admin by id", err)
	}
	return a, nil
}

// GetByEmail retrieves an account by email, ignoring case
func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*auth.AdminAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM admin_users WHERE lower(email) = lower($1)`
	a, err := scanAccount(s.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, classify("get admin by email", err)
	}
	return a, nil
}

// GetCredentials retrieves an account and its digest by email
func (s *PostgresStore) GetCredentials(ctx context.Context, email string) (*auth.AdminAccount, string, error) {
	query := `SELECT password_hash, ` + accountColumns + ` FROM admin_users WHERE lower(email) = lower($1)`
	var digest string
	a, err := scanAccount(s.db.QueryRowContext(ctx, query, email), &digest)
	if err != nil {
		return nil, "", classify("get admin credentials", err)
	}
	return a, digest, nil
}

// List returns every account, active or not, ordered by ID
func (s *PostgresStore) List(ctx context.Context) ([]*auth.AdminAccount, error) {
	const op = "list admins"

	rows, err := s.reader().QueryContext(ctx, `SELECT `+accountColumns+` FROM admin_users ORDER BY id`)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var accounts []*auth.AdminAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return accounts, nil
}

// Update locks the row with SELECT ... FOR UPDATE, lets fn decide the
// changes against the locked state, and writes them in the same transaction.
func (s *PostgresStore) Update(ctx context.Context, id int64, fn UpdateFunc) (*auth.AdminAccount, error) {
	const op = "update admin"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(op, err)
	}
	defer tx.Rollback()

	current, err := scanAccount(tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM admin_users WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, classify(op, err)
	}

	changes, err := fn(current.Clone())
	if err != nil {
		return nil, err
	}
	if changes.IsEmpty() {
		return current, nil
	}

	if changes.Email != nil && !strings.EqualFold(*changes.Email, current.Email) {
		if err := ensureEmailFree(ctx, tx, *changes.Email, id); err != nil {
			return nil, classify(op, err)
		}
	}

	query, args := buildUpdate(id, changes, s.now())
	updated, err := scanAccount(tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, classify(op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(op, err)
	}
	return updated, nil
}

// buildUpdate renders a parameterized UPDATE for the non-nil changes.
// Column order is fixed so the statement text is stable.
func buildUpdate(id int64, c Changes, now time.Time) (string, []interface{}) {
	var (
		sets []string
		args []interface{}
	)
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if c.FirstName != nil {
		add("first_name", nullString(*c.FirstName))
	}
	if c.LastName != nil {
		add("last_name", nullString(*c.LastName))
	}
	if c.Phone != nil {
		add("phone", nullString(*c.Phone))
	}
	if c.Email != nil {
		add("email", *c.Email)
	}
	if c.PasswordHash != nil {
		add("password_hash", *c.PasswordHash)
	}
	if c.Role != nil {
		add("role", string(*c.Role))
	}
	if c.Permissions != nil {
		add("permissions", *c.Permissions)
	}
	if c.IsActive != nil {
		add("is_active", *c.IsActive)
	}
	add("updated_at", now)

	args = append(args, id)
	query := fmt.Sprintf("UPDATE admin_users SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), accountColumns)
	return query, args
}

// TouchLastLogin sets last_login without bumping updated_at
func (s *PostgresStore) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	const op = "touch last login"

	res, err := s.db.ExecContext(ctx, `UPDATE admin_users SET last_login = $1 WHERE id = $2`, at, id)
	if err != nil {
		return classify(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if n == 0 {
		return auth.NewError(auth.KindUserNotFound, op, nil)
	}
	return nil
}
