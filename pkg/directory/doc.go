/*
Package directory manages storefront admin accounts.

Directory enforces who may create, change and deactivate which accounts:

  - super_admin and admin may create accounts; admin may only create staff
  - only super_admin changes roles, permissions and active status
  - nobody changes their own role or permissions, or deactivates themselves
  - accounts edit their own profile; editing another needs auth.CanManage

Accounts are never removed. SoftDelete clears is_active and reactivation
restores the account with its previous role and permissions.

Storage is behind the Store interface. PostgresStore is the production
implementation and MemoryStore serves tests and local development:

	store := directory.NewPostgresStore(db)
	dir := directory.New(store, auth.NewPasswordHasher(bcrypt.DefaultCost),
		directory.WithAuditLogger(auditLogger),
		directory.WithMetrics(metrics),
	)

	account, err := dir.Create(ctx, directory.CreateRequest{
		Email:    "ops@example.com",
		Password: password,
		Role:     auth.RoleStaff,
	}, actor)

Store.Update locks the target row and hands it to a callback, so the
authorization decision and the write see the same state.

RunMigrations creates the admin_users and admin_audit_events tables.
*/
package directory
