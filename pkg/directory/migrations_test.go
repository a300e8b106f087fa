package directory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/platinummonkey/storefront/pkg/auth"
	"github.com/platinummonkey/storefront/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMigrations(t *testing.T) {
	migrations := GetMigrations()
	require.Len(t, migrations, 2)

	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.Description)
	}

	users := migrations[0].SQL
	for _, role := range auth.Roles() {
		assert.Contains(t, users, "'"+string(role)+"'")
	}
	assert.Contains(t, users, "ON admin_users (lower(email))")
	assert.True(t, strings.Contains(migrations[1].SQL, "admin_audit_events"))
}

func TestRunMigrations(t *testing.T) {
	t.Run("applies pending migrations", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS admin_schema_migrations`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT version FROM admin_schema_migrations`).
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
		mock.ExpectBegin()
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS admin_audit_events`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`INSERT INTO admin_schema_migrations`).
			WithArgs(2, "Create admin_audit_events table").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err = RunMigrations(context.Background(), db, observability.NewNopLogger())
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back a failed migration", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS admin_schema_migrations`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT version FROM admin_schema_migrations`).
			WillReturnRows(sqlmock.NewRows([]string{"version"}))
		mock.ExpectBegin()
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS admin_users`).
			WillReturnError(errors.New("permission denied for schema public"))
		mock.ExpectRollback()

		err = RunMigrations(context.Background(), db, observability.NewNopLogger())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "migration 1")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
