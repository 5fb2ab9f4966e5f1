package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"privguard/internal/model"
)

func testStore(t *testing.T) Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestAppPermissionsRoundTrip(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	rec := model.AppPermissionRecord{
		Package:     "com.example.app",
		Permissions: "android.permission.CAMERA,android.permission.INTERNET",
	}
	if err := st.UpsertAppPermissions(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// Upsert replaces, never duplicates.
	rec.Permissions = "android.permission.CAMERA"
	if err := st.UpsertAppPermissions(ctx, rec); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, found, err := st.GetAppPermissions(ctx, "com.example.app")
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if got != "android.permission.CAMERA" {
		t.Fatalf("unexpected permissions %q", got)
	}

	list, err := st.ListAppPermissions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 record, got %d", len(list))
	}

	if err := st.DeleteAppPermissions(ctx, "com.example.app"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := st.GetAppPermissions(ctx, "com.example.app"); found {
		t.Fatalf("record should be gone")
	}
	// Missing package is not an error.
	if _, found, err := st.GetAppPermissions(ctx, "com.example.missing"); err != nil || found {
		t.Fatalf("missing package: found=%v err=%v", found, err)
	}
}

func TestRecommendationDeletes(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	seed := []model.Recommendation{
		{Title: "a", Type: model.RecUnusedApp, Package: "com.a"},
		{Title: "b", Type: model.RecUnusedApp, Package: "com.b"},
		{Title: "c", Type: model.RecPermissionEscalation, Package: "com.a"},
	}
	for _, rec := range seed {
		if err := st.InsertRecommendation(ctx, rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	if err := st.DeleteRecommendationsByType(ctx, model.RecUnusedApp); err != nil {
		t.Fatalf("delete by type: %v", err)
	}
	list, err := st.ListRecommendations(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Type != model.RecPermissionEscalation {
		t.Fatalf("unexpected survivors: %+v", list)
	}

	if err := st.DeleteRecommendationsByPackage(ctx, "com.a"); err != nil {
		t.Fatalf("delete by package: %v", err)
	}
	list, err = st.ListRecommendations(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty, got %d", len(list))
	}
}

func TestSensorLogQueries(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	entries := []model.SensorLogEntry{
		{Timestamp: base.Add(-3 * time.Hour), Package: "com.a", AppName: "A", Sensor: model.SensorCamera, Alert: true},
		{Timestamp: base.Add(-2 * time.Hour), Package: "com.b", AppName: "B", Sensor: model.SensorMicrophone, Alert: false},
		{Timestamp: base.Add(-1 * time.Hour), Package: "com.c", AppName: "C", Sensor: model.SensorCamera, Alert: false},
	}
	for _, e := range entries {
		if err := st.InsertSensorLog(ctx, e); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := st.ListSensorLogs(ctx, SensorLogQuery{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Package != "com.c" {
		t.Fatalf("expected newest first, got %q", got[0].Package)
	}
	if !got[0].Timestamp.Equal(base.Add(-1 * time.Hour)) {
		t.Fatalf("timestamp mangled: %v", got[0].Timestamp)
	}

	got, err = st.ListSensorLogs(ctx, SensorLogQuery{Sensor: model.SensorCamera, Limit: 1})
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(got) != 1 || got[0].Package != "com.c" {
		t.Fatalf("unexpected filtered result: %+v", got)
	}

	got, err = st.ListSensorLogs(ctx, SensorLogQuery{AlertsOnly: true})
	if err != nil {
		t.Fatalf("alerts list: %v", err)
	}
	if len(got) != 1 || !got[0].Alert {
		t.Fatalf("unexpected alerts result: %+v", got)
	}

	deleted, err := st.DeleteSensorLogsBefore(ctx, base.Add(-90*time.Minute))
	if err != nil {
		t.Fatalf("retention delete: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if _, found, err := st.GetSetting(ctx, "missing"); err != nil || found {
		t.Fatalf("missing key: found=%v err=%v", found, err)
	}
	if err := st.SetSetting(ctx, "k", "v1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := st.SetSetting(ctx, "k", "v2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, found, err := st.GetSetting(ctx, "k")
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if got != "v2" {
		t.Fatalf("expected v2, got %q", got)
	}
}

func TestDollarRebind(t *testing.T) {
	in := `INSERT INTO t (a, b) VALUES (?, ?)`
	want := `INSERT INTO t (a, b) VALUES ($1, $2)`
	if got := dollarRebind(in); got != want {
		t.Fatalf("rebind: got %q", got)
	}
	if got := passthrough(in); got != in {
		t.Fatalf("passthrough changed query: %q", got)
	}
}
