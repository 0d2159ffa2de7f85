// Package migration bootstraps the catalog schema on an empty database.
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

type migrationStep struct {
	Name string
	SQL  string
}

// sentinelTable is created last, so its presence means every step has run.
const sentinelTable = "public.downloads"

var steps = []migrationStep{
	{
		Name: "create_extension_pgcrypto",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	},
	{
		Name: "create_table_users",
		SQL: `CREATE TABLE IF NOT EXISTS users (
  id            UUID        PRIMARY KEY DEFAULT gen_random_uuid(),
  name          TEXT        NOT NULL,
  email         TEXT        NOT NULL UNIQUE,
  password_hash TEXT        NOT NULL,
  role          TEXT        NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'developer')),
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_apps",
		SQL: `CREATE TABLE IF NOT EXISTS apps (
  id           UUID          PRIMARY KEY DEFAULT gen_random_uuid(),
  title        TEXT          NOT NULL UNIQUE,
  description  TEXT          NOT NULL DEFAULT '',
  category     TEXT          NOT NULL DEFAULT '',
  version      TEXT          NOT NULL DEFAULT '1.0.0',
  is_free      BOOLEAN       NOT NULL DEFAULT TRUE,
  price        NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (price >= 0),
  icon_url     TEXT,
  apk_url      TEXT,
  screenshots  JSONB         NOT NULL DEFAULT '[]'::jsonb,
  developer_id UUID          NOT NULL REFERENCES users (id) ON DELETE CASCADE,
  created_at   TIMESTAMPTZ   NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_apps_developer_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_apps_developer_id ON apps (developer_id);`,
	},
	{
		Name: "create_index_apps_category",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_apps_category ON apps (category);`,
	},
	{
		Name: "create_index_apps_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_apps_created_at ON apps (created_at DESC);`,
	},
	{
		Name: "create_index_apps_apk_url",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_apps_apk_url ON apps (apk_url);`,
	},
	{
		Name: "create_table_downloads",
		SQL: `CREATE TABLE IF NOT EXISTS downloads (
  id         UUID        PRIMARY KEY DEFAULT gen_random_uuid(),
  app_id     UUID        NOT NULL REFERENCES apps (id) ON DELETE CASCADE,
  user_id    UUID        REFERENCES users (id) ON DELETE SET NULL,
  ip         TEXT        NOT NULL DEFAULT '',
  user_agent TEXT        NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_downloads_app_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_downloads_app_id ON downloads (app_id);`,
	},
}

// EnsureMigrated creates the schema unless the sentinel table already exists.
func EnsureMigrated(ctx context.Context, db *sql.DB, log logrus.FieldLogger, dbHost string) error {
	start := time.Now()
	base := log.WithFields(logrus.Fields{
		"component": "database",
		"db_host":   dbHost,
	})

	base.WithFields(logrus.Fields{"event": "db_migration_check", "status": "starting"}).Info("checking schema")

	var exists bool
	if err := db.QueryRowContext(ctx, "SELECT to_regclass($1) IS NOT NULL", sentinelTable).Scan(&exists); err != nil {
		base.WithError(err).WithFields(logrus.Fields{
			"event":       "db_migration_failed",
			"status":      "error",
			"duration_ms": time.Since(start).Milliseconds(),
		}).Error("failed to check sentinel table")
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		base.WithFields(logrus.Fields{
			"event":       "db_migration_skip",
			"status":      "success",
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("schema already exists, skipping migration")
		return nil
	}

	base.WithFields(logrus.Fields{"event": "db_migration_start", "status": "in_progress"}).Info("applying schema")

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			base.WithError(err).WithFields(logrus.Fields{
				"event":            "db_migration_failed",
				"status":           "error",
				"migration_step":   step.Name,
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			}).Error("migration step failed")
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		base.WithFields(logrus.Fields{
			"event":            "db_migration_step",
			"status":           "success",
			"migration_step":   step.Name,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		}).Debug("migration step applied")
	}

	base.WithFields(logrus.Fields{
		"event":       "db_migration_success",
		"status":      "success",
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("schema migrated")
	return nil
}
