package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"

	"privguard/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:privguard.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db, rebind: passthrough}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS app_permissions (
			package TEXT PRIMARY KEY,
			permissions TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS recommendations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			type TEXT NOT NULL,
			package TEXT NOT NULL DEFAULT '',
			ts INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_type ON recommendations(type)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_package ON recommendations(package)`,
		`CREATE TABLE IF NOT EXISTS sensor_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			package TEXT NOT NULL,
			app_name TEXT NOT NULL,
			sensor TEXT NOT NULL,
			is_alert INTEGER NOT NULL
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

func (s *sqliteStore) UpsertAppPermissions(ctx context.Context, rec model.AppPermissionRecord) error {
	_, err := s.exec(ctx,
		`INSERT INTO app_permissions (package, permissions) VALUES (?, ?)
		ON CONFLICT(package) DO UPDATE SET permissions = excluded.permissions`,
		rec.Package, rec.Permissions)
	return err
}

func (s *sqliteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.exec(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}
