package recommend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"privguard/internal/logging"
	"privguard/internal/model"
	"privguard/internal/platform"
	"privguard/internal/sched"
	"privguard/internal/settings"
	"privguard/internal/storage"
)

type fakePlatform struct {
	pkgs     []platform.PackageInfo
	usageOK  bool
	lastUsed map[string]time.Time
}

func (f *fakePlatform) InstalledPackages(ctx context.Context) ([]platform.PackageInfo, error) {
	out := make([]platform.PackageInfo, len(f.pkgs))
	copy(out, f.pkgs)
	return out, nil
}

func (f *fakePlatform) Label(ctx context.Context, pkg string) string { return pkg }

func (f *fakePlatform) PackageDetail(ctx context.Context, pkg string) (platform.PackageInfo, bool, error) {
	for _, p := range f.pkgs {
		if p.Package == pkg {
			return p, true, nil
		}
	}
	return platform.PackageInfo{}, false, nil
}

func (f *fakePlatform) HasUsageAccess(ctx context.Context) bool { return f.usageOK }

func (f *fakePlatform) LastUsed(ctx context.Context, window time.Duration) (map[string]time.Time, error) {
	out := make(map[string]time.Time)
	cutoff := time.Now().Add(-window)
	for pkg, ts := range f.lastUsed {
		if ts.After(cutoff) {
			out[pkg] = ts
		}
	}
	return out, nil
}

func (f *fakePlatform) LastOpAccess(ctx context.Context, op platform.Op, uid int, pkg string) (time.Time, bool) {
	return time.Time{}, false
}

func (f *fakePlatform) RecentForeground(ctx context.Context, window time.Duration) (string, bool) {
	return "", false
}

func testStore(t *testing.T) storage.Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	st, err := storage.NewSQLite(dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestComposeSynthesizesSummaries(t *testing.T) {
	store := testStore(t)
	feed := NewFeed(store, logging.Discard())
	ctx := context.Background()

	if err := feed.Record(ctx, model.Recommendation{
		Title: "Unused app with sensitive access",
		Type:  model.RecUnusedApp, Package: "com.example.old",
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	latest := &model.ScanResult{
		StartedAt: time.Now().UTC(),
		TotalApps: 4,
		Counts:    map[model.RiskTier]int{model.HighRisk: 2, model.MediumRisk: 1},
	}
	out, err := feed.Compose(ctx, latest)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 2 summaries + 1 stored advisory, got %d", len(out))
	}
	if out[0].Type != model.RecHighRiskSummary || out[1].Type != model.RecMediumRiskSummary {
		t.Fatalf("summaries must lead the feed: %s, %s", out[0].Type, out[1].Type)
	}
	if out[0].ID != 0 {
		t.Fatalf("summaries are synthesized, not stored rows")
	}
	if out[2].Type != model.RecUnusedApp {
		t.Fatalf("stored advisory missing, got %s", out[2].Type)
	}

	// A clean scan drops the summaries without any writes.
	out, err = feed.Compose(ctx, &model.ScanResult{TotalApps: 4, Counts: map[model.RiskTier]int{}})
	if err != nil {
		t.Fatalf("compose clean: %v", err)
	}
	if len(out) != 1 || out[0].Type != model.RecUnusedApp {
		t.Fatalf("clean scan should leave only stored advisories, got %d", len(out))
	}
}

func TestComposeBeforeFirstScan(t *testing.T) {
	store := testStore(t)
	feed := NewFeed(store, logging.Discard())
	out, err := feed.Compose(context.Background(), nil)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty feed, got %d", len(out))
	}
}

func TestRefreshByTypeReplacesOnlyItsType(t *testing.T) {
	store := testStore(t)
	feed := NewFeed(store, logging.Discard())
	ctx := context.Background()

	if err := feed.RefreshByType(ctx, model.RecUnusedApp, []model.Recommendation{
		{Title: "a", Package: "com.a"},
		{Title: "b", Package: "com.b"},
	}); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if err := feed.Record(ctx, model.Recommendation{
		Title: "escalation", Type: model.RecPermissionEscalation, Package: "com.c",
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	if err := feed.RefreshByType(ctx, model.RecUnusedApp, []model.Recommendation{
		{Title: "b only", Package: "com.b"},
	}); err != nil {
		t.Fatalf("second refresh: %v", err)
	}

	stored, err := store.ListRecommendations(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var unused, other int
	for _, rec := range stored {
		if rec.Type == model.RecUnusedApp {
			unused++
		} else {
			other++
		}
	}
	if unused != 1 {
		t.Fatalf("refresh must replace its type wholesale, got %d unused rows", unused)
	}
	if other != 1 {
		t.Fatalf("other types must survive a refresh, got %d", other)
	}
}

func TestRefreshSensorAlertsDedupes(t *testing.T) {
	store := testStore(t)
	feed := NewFeed(store, logging.Discard())
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		if err := store.InsertSensorLog(ctx, model.SensorLogEntry{
			Timestamp: now.Add(-time.Duration(i) * time.Minute),
			Package:   "com.example.spy",
			AppName:   "Spy",
			Sensor:    model.SensorMicrophone,
			Alert:     true,
		}); err != nil {
			t.Fatalf("insert log: %v", err)
		}
	}
	if err := store.InsertSensorLog(ctx, model.SensorLogEntry{
		Timestamp: now, Package: "com.example.ok", AppName: "OK",
		Sensor: model.SensorCamera, Alert: false,
	}); err != nil {
		t.Fatalf("insert log: %v", err)
	}

	if err := feed.RefreshSensorAlerts(ctx, now.Add(-24*time.Hour)); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	stored, err := store.ListRecommendations(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected one advisory per package and sensor, got %d", len(stored))
	}
	if stored[0].Package != "com.example.spy" || stored[0].Type != model.RecSensorAlert {
		t.Fatalf("unexpected advisory: %+v", stored[0])
	}
}

func TestUnusedFinderRequiresUsageAccess(t *testing.T) {
	store := testStore(t)
	feed := NewFeed(store, logging.Discard())
	dev := &fakePlatform{usageOK: false}
	st := settings.New(store, 30)
	finder := NewUnusedAppFinder(dev, dev, feed, st, "com.privguard.agent", logging.Discard())

	if got := finder.Run(context.Background()); got != sched.Failure {
		t.Fatalf("no usage access must be a hard failure, got %v", got)
	}
}

func TestUnusedFinderFlagsByManifestRequest(t *testing.T) {
	store := testStore(t)
	feed := NewFeed(store, logging.Discard())
	now := time.Now().UTC()
	dev := &fakePlatform{
		usageOK: true,
		pkgs: []platform.PackageInfo{
			// Requests but was never granted: still flagged.
			{Package: "com.example.dormant", Label: "Dormant", Permissions: []platform.PermissionState{
				{Name: "android.permission.CAMERA", Granted: false},
			}},
			// Used recently: not flagged.
			{Package: "com.example.active", Label: "Active", Permissions: []platform.PermissionState{
				{Name: "android.permission.CAMERA", Granted: true},
			}},
			// Unused but harmless: not flagged.
			{Package: "com.example.plain", Label: "Plain", Permissions: []platform.PermissionState{
				{Name: "android.permission.INTERNET", Granted: true},
			}},
		},
		lastUsed: map[string]time.Time{"com.example.active": now.Add(-time.Hour)},
	}
	st := settings.New(store, 30)
	finder := NewUnusedAppFinder(dev, dev, feed, st, "com.privguard.agent", logging.Discard())

	if got := finder.Run(context.Background()); got != sched.Success {
		t.Fatalf("run: %v", got)
	}
	stored, err := store.ListRecommendations(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 advisory, got %d", len(stored))
	}
	if stored[0].Package != "com.example.dormant" || stored[0].Type != model.RecUnusedApp {
		t.Fatalf("unexpected advisory: %+v", stored[0])
	}
}

func TestGrantSnapshotDiff(t *testing.T) {
	store := testStore(t)
	feed := NewFeed(store, logging.Discard())
	dev := &fakePlatform{pkgs: []platform.PackageInfo{
		{Package: "com.example.app", Permissions: []platform.PermissionState{
			{Name: "android.permission.CAMERA", Granted: false},
			{Name: "android.permission.READ_CONTACTS", Granted: true},
		}},
	}}
	delta := NewDeltaChecker(dev, dev, store, feed, "com.privguard.agent", logging.Discard())
	ctx := context.Background()

	// First pass only seeds the snapshot.
	if err := delta.CheckGrants(ctx); err != nil {
		t.Fatalf("seed pass: %v", err)
	}
	stored, err := store.ListRecommendations(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("seeding must not raise advisories, got %d", len(stored))
	}

	dev.pkgs[0].Permissions[0].Granted = true  // camera granted
	dev.pkgs[0].Permissions[1].Granted = false // contacts revoked
	if err := delta.CheckGrants(ctx); err != nil {
		t.Fatalf("diff pass: %v", err)
	}

	stored, err = store.ListRecommendations(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	byType := make(map[string]int)
	for _, rec := range stored {
		byType[rec.Type]++
	}
	if byType[model.RecPermissionGranted] != 1 || byType[model.RecPermissionRevoked] != 1 {
		t.Fatalf("expected one grant and one revoke advisory, got %v", byType)
	}
}
