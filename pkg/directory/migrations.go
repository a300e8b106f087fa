package directory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/platinummonkey/storefront/pkg/auth"
	"github.com/platinummonkey/storefront/pkg/observability"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// roleCheck renders the CHECK constraint list from the role enum
func roleCheck() string {
	roles := auth.Roles()
	quoted := make([]string, len(roles))
	for i, r := range roles {
		quoted[i] = "'" + string(r) + "'"
	}
	return strings.Join(quoted, ", ")
}

// GetMigrations returns all admin directory migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create admin_users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS admin_users (
					id BIGSERIAL PRIMARY KEY,
					email VARCHAR(255) NOT NULL,
					password_hash VARCHAR(255) NOT NULL,
					first_name VARCHAR(100),
					last_name VARCHAR(100),
					phone VARCHAR(50),
					role VARCHAR(32) NOT NULL DEFAULT 'staff' CHECK (role IN (` + roleCheck() + `)),
					permissions JSONB NOT NULL DEFAULT '[]',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					last_login TIMESTAMPTZ,
					created_by BIGINT REFERENCES admin_users(id) ON DELETE SET NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_admin_users_email_lower ON admin_users (lower(email));
				CREATE INDEX IF NOT EXISTS idx_admin_users_role ON admin_users(role);
				CREATE INDEX IF NOT EXISTS idx_admin_users_created_by ON admin_users(created_by);
			`,
		},
		{
			Version:     2,
			Description: "Create admin_audit_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS admin_audit_events (
					id BIGSERIAL PRIMARY KEY,
					timestamp TIMESTAMPTZ NOT NULL,
					event_type VARCHAR(100) NOT NULL,
					status VARCHAR(20) NOT NULL,
					actor_id BIGINT REFERENCES admin_users(id) ON DELETE SET NULL,
					actor_email VARCHAR(255),
					target_id BIGINT REFERENCES admin_users(id) ON DELETE SET NULL,
					resource_type VARCHAR(50),
					resource_id VARCHAR(255),
					ip_address VARCHAR(45),
					user_agent TEXT,
					request_id VARCHAR(100),
					method VARCHAR(10),
					path TEXT,
					status_code INTEGER,
					duration_ms BIGINT,
					message TEXT,
					error_kind VARCHAR(50),
					metadata JSONB,
					changes JSONB,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_admin_audit_events_timestamp ON admin_audit_events(timestamp DESC);
				CREATE INDEX IF NOT EXISTS idx_admin_audit_events_event_type ON admin_audit_events(event_type);
				CREATE INDEX IF NOT EXISTS idx_admin_audit_events_actor_id ON admin_audit_events(actor_id);
				CREATE INDEX IF NOT EXISTS idx_admin_audit_events_target_id ON admin_audit_events(target_id);
			`,
		},
	}
}

// RunMigrations executes all pending migrations, each in its own transaction
func RunMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS admin_schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM admin_schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		log := logger.WithFields(map[string]interface{}{
			"version":     migration.Version,
			"description": migration.Description,
		})
		log.Info("Running migration")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO admin_schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		log.Info("Migration completed")
	}

	return nil
}
