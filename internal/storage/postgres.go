package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"privguard/internal/model"
)

// The postgres variant exists for fleet-audit setups where one collector
// watches several devices; the schema is identical apart from dialect.
type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/privguard?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db, rebind: dollarRebind}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS app_permissions (
			package TEXT PRIMARY KEY,
			permissions TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS recommendations (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			type TEXT NOT NULL,
			package TEXT NOT NULL DEFAULT '',
			ts BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_type ON recommendations(type)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_package ON recommendations(package)`,
		`CREATE TABLE IF NOT EXISTS sensor_logs (
			id BIGSERIAL PRIMARY KEY,
			ts BIGINT NOT NULL,
			package TEXT NOT NULL,
			app_name TEXT NOT NULL,
			sensor TEXT NOT NULL,
			is_alert BOOLEAN NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sensor_logs_ts ON sensor_logs(ts)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *postgresStore) UpsertAppPermissions(ctx context.Context, rec model.AppPermissionRecord) error {
	_, err := s.exec(ctx,
		`INSERT INTO app_permissions (package, permissions) VALUES (?, ?)
		ON CONFLICT (package) DO UPDATE SET permissions = EXCLUDED.permissions`,
		rec.Package, rec.Permissions)
	return err
}

func (s *postgresStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.exec(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value)
	return err
}
