// Package scanner performs the full app inventory scan: per-app risk
// classification from granted permissions, the device privacy score, the
// permission category grid and the persisted requested-permission records.
package scanner

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"privguard/internal/model"
	"privguard/internal/platform"
	"privguard/internal/recommend"
	"privguard/internal/risk"
	"privguard/internal/sched"
	"privguard/internal/storage"
)

// The permission category grid shown on the dashboard. Counts are over
// granted permissions.
var categories = []struct {
	Name       string
	Permission string
}{
	{"Camera", "android.permission.CAMERA"},
	{"Microphone", "android.permission.RECORD_AUDIO"},
	{"Location", "android.permission.ACCESS_FINE_LOCATION"},
	{"Contacts", "android.permission.READ_CONTACTS"},
	{"Call Log", "android.permission.READ_CALL_LOG"},
	{"Storage", "android.permission.READ_EXTERNAL_STORAGE"},
}

type Scanner struct {
	inv    platform.Inventory
	store  storage.Store
	delta  *recommend.DeltaChecker
	latest *Latest
	self   string
	logger *slog.Logger
}

func New(inv platform.Inventory, store storage.Store, delta *recommend.DeltaChecker, selfPackage string, logger *slog.Logger) *Scanner {
	return &Scanner{
		inv:    inv,
		store:  store,
		delta:  delta,
		latest: &Latest{},
		self:   selfPackage,
		logger: logger,
	}
}

// Latest exposes the most recent scan result.
func (s *Scanner) Latest() *model.ScanResult { return s.latest.Get() }

func (s *Scanner) Name() string { return "inventory-scan" }

func (s *Scanner) Run(ctx context.Context) sched.Result {
	if _, err := s.Scan(ctx); err != nil {
		s.logger.Error("inventory scan failed", "error", err)
		return sched.Retry
	}
	return sched.Success
}

// Scan walks the installed user apps and rebuilds the whole risk picture.
// An app's tier is the highest tier among its granted permissions; the
// persisted record keeps everything the app requests, granted or not, so
// later diffs can see escalations before the user approves anything.
// Failures on a single app are logged and that app is skipped; the scan
// itself fails only when the inventory is unreadable.
func (s *Scanner) Scan(ctx context.Context) (*model.ScanResult, error) {
	started := time.Now().UTC()
	pkgs, err := s.inv.InstalledPackages(ctx)
	if err != nil {
		return nil, err
	}

	result := &model.ScanResult{
		ScanID:    uuid.NewString(),
		StartedAt: started,
		Counts:    make(map[model.RiskTier]int),
		Apps:      make(map[model.RiskTier][]string),
	}
	granted := make(map[string]int, len(categories))

	for _, p := range pkgs {
		if p.System || p.Package == s.self {
			continue
		}
		tier := model.NoRisk
		for _, perm := range p.Permissions {
			if !perm.Granted {
				continue
			}
			if t := risk.Classify(perm.Name); t > tier {
				tier = t
			}
			granted[perm.Name]++
		}
		result.TotalApps++
		result.Counts[tier]++
		result.Apps[tier] = append(result.Apps[tier], p.Package)

		if err := s.delta.Observe(ctx, p); err != nil {
			s.logger.Warn("permission record update failed, skipping", "package", p.Package, "error", err)
		}
	}

	result.Score = risk.Score(result.Counts[model.HighRisk], result.Counts[model.MediumRisk], result.TotalApps)
	for _, cat := range categories {
		result.Categories = append(result.Categories, model.CategoryCount{
			Name:       cat.Name,
			Permission: cat.Permission,
			Apps:       granted[cat.Permission],
			Total:      result.TotalApps,
		})
	}
	result.Duration = time.Since(started)
	s.latest.Set(result)

	s.logger.Info("inventory scan finished",
		"scan_id", result.ScanID,
		"apps", result.TotalApps,
		"score", result.Score,
		"high", result.Counts[model.HighRisk],
		"medium", result.Counts[model.MediumRisk],
		"elapsed", result.Duration,
	)
	return result, nil
}
