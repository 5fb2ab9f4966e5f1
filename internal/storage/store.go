package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"privguard/internal/config"
	"privguard/internal/model"
)

// SensorLogQuery narrows a sensor log listing. Zero value lists everything
// newest-first.
type SensorLogQuery struct {
	Sensor     model.SensorType
	Limit      int
	Since      time.Time
	AlertsOnly bool
}

type Store interface {
	Init(ctx context.Context) error
	Close() error

	UpsertAppPermissions(ctx context.Context, rec model.AppPermissionRecord) error
	GetAppPermissions(ctx context.Context, pkg string) (string, bool, error)
	ListAppPermissions(ctx context.Context) ([]model.AppPermissionRecord, error)
	DeleteAppPermissions(ctx context.Context, pkg string) error

	InsertRecommendation(ctx context.Context, rec model.Recommendation) error
	ListRecommendations(ctx context.Context) ([]model.Recommendation, error)
	DeleteRecommendationByID(ctx context.Context, id int64) error
	DeleteRecommendationsByType(ctx context.Context, recType string) error
	DeleteRecommendationsByPackage(ctx context.Context, pkg string) error

	InsertSensorLog(ctx context.Context, entry model.SensorLogEntry) error
	ListSensorLogs(ctx context.Context, q SensorLogQuery) ([]model.SensorLogEntry, error)
	DeleteSensorLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

// baseStore carries the queries shared by both drivers. Statements are
// written with ? placeholders; rebind rewrites them for postgres. Timestamps
// are stored as unix milliseconds so both dialects scan identically.
type baseStore struct {
	db     *sql.DB
	rebind func(string) string
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func (b *baseStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return b.db.ExecContext(ctx, b.rebind(query), args...)
}

func (b *baseStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return b.db.QueryContext(ctx, b.rebind(query), args...)
}

func (b *baseStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return b.db.QueryRowContext(ctx, b.rebind(query), args...)
}

func passthrough(q string) string { return q }

func dollarRebind(q string) string {
	var sb strings.Builder
	sb.Grow(len(q) + 8)
	n := 0
	for _, ch := range q {
		if ch == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(ch)
	}
	return sb.String()
}

func (b *baseStore) GetAppPermissions(ctx context.Context, pkg string) (string, bool, error) {
	var perms string
	err := b.queryRow(ctx,
		`SELECT permissions FROM app_permissions WHERE package = ?`, pkg).Scan(&perms)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return perms, true, nil
}

func (b *baseStore) ListAppPermissions(ctx context.Context) ([]model.AppPermissionRecord, error) {
	rows, err := b.query(ctx, `SELECT package, permissions FROM app_permissions ORDER BY package`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AppPermissionRecord
	for rows.Next() {
		var rec model.AppPermissionRecord
		if err := rows.Scan(&rec.Package, &rec.Permissions); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (b *baseStore) DeleteAppPermissions(ctx context.Context, pkg string) error {
	_, err := b.exec(ctx, `DELETE FROM app_permissions WHERE package = ?`, pkg)
	return err
}

func (b *baseStore) InsertRecommendation(ctx context.Context, rec model.Recommendation) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := b.exec(ctx,
		`INSERT INTO recommendations (title, description, type, package, ts) VALUES (?, ?, ?, ?, ?)`,
		rec.Title, rec.Description, rec.Type, rec.Package, ts.UnixMilli())
	return err
}

func (b *baseStore) ListRecommendations(ctx context.Context) ([]model.Recommendation, error) {
	rows, err := b.query(ctx,
		`SELECT id, title, description, type, package, ts FROM recommendations ORDER BY ts DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Recommendation
	for rows.Next() {
		var rec model.Recommendation
		var ts int64
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Description, &rec.Type, &rec.Package, &ts); err != nil {
			return nil, err
		}
		rec.Timestamp = time.UnixMilli(ts).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (b *baseStore) DeleteRecommendationByID(ctx context.Context, id int64) error {
	_, err := b.exec(ctx, `DELETE FROM recommendations WHERE id = ?`, id)
	return err
}

func (b *baseStore) DeleteRecommendationsByType(ctx context.Context, recType string) error {
	_, err := b.exec(ctx, `DELETE FROM recommendations WHERE type = ?`, recType)
	return err
}

func (b *baseStore) DeleteRecommendationsByPackage(ctx context.Context, pkg string) error {
	_, err := b.exec(ctx, `DELETE FROM recommendations WHERE package = ?`, pkg)
	return err
}

func (b *baseStore) InsertSensorLog(ctx context.Context, entry model.SensorLogEntry) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := b.exec(ctx,
		`INSERT INTO sensor_logs (ts, package, app_name, sensor, is_alert) VALUES (?, ?, ?, ?, ?)`,
		ts.UnixMilli(), entry.Package, entry.AppName, string(entry.Sensor), entry.Alert)
	return err
}

func (b *baseStore) ListSensorLogs(ctx context.Context, q SensorLogQuery) ([]model.SensorLogEntry, error) {
	query := `SELECT id, ts, package, app_name, sensor, is_alert FROM sensor_logs`
	var conds []string
	var args []any
	if q.Sensor != "" {
		conds = append(conds, `sensor = ?`)
		args = append(args, string(q.Sensor))
	}
	if !q.Since.IsZero() {
		conds = append(conds, `ts >= ?`)
		args = append(args, q.Since.UnixMilli())
	}
	if q.AlertsOnly {
		conds = append(conds, `is_alert = ?`)
		args = append(args, true)
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY ts DESC, id DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}
	rows, err := b.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SensorLogEntry
	for rows.Next() {
		var entry model.SensorLogEntry
		var ts int64
		var sensor string
		if err := rows.Scan(&entry.ID, &ts, &entry.Package, &entry.AppName, &sensor, &entry.Alert); err != nil {
			return nil, err
		}
		entry.Timestamp = time.UnixMilli(ts).UTC()
		entry.Sensor = model.SensorType(sensor)
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (b *baseStore) DeleteSensorLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := b.exec(ctx, `DELETE FROM sensor_logs WHERE ts < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (b *baseStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := b.queryRow(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}
