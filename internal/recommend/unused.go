package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"privguard/internal/model"
	"privguard/internal/platform"
	"privguard/internal/risk"
	"privguard/internal/sched"
	"privguard/internal/settings"
)

// UnusedAppFinder flags user apps that request sensitive permissions but
// have not been used within the configured threshold. Request is what
// matters here, not grant: an app the user never opens has no business
// holding even a dormant claim on the camera.
type UnusedAppFinder struct {
	inv      platform.Inventory
	usage    platform.UsageSource
	feed     *Feed
	settings *settings.Settings
	self     string
	logger   *slog.Logger
}

func NewUnusedAppFinder(inv platform.Inventory, usage platform.UsageSource, feed *Feed, st *settings.Settings, selfPackage string, logger *slog.Logger) *UnusedAppFinder {
	return &UnusedAppFinder{
		inv:      inv,
		usage:    usage,
		feed:     feed,
		settings: st,
		self:     selfPackage,
		logger:   logger,
	}
}

func (u *UnusedAppFinder) Name() string { return "unused-apps" }

// Run is a hard failure without usage access: with no usage history every
// app would look unused, so producing nothing is better than producing
// noise.
func (u *UnusedAppFinder) Run(ctx context.Context) sched.Result {
	if !u.usage.HasUsageAccess(ctx) {
		u.logger.Warn("usage access unavailable, skipping unused-app pass")
		return sched.Failure
	}
	days := u.settings.UnusedThresholdDays(ctx)
	window := time.Duration(days) * 24 * time.Hour

	lastUsed, err := u.usage.LastUsed(ctx, window)
	if err != nil {
		u.logger.Error("usage history query failed", "error", err)
		return sched.Retry
	}
	pkgs, err := u.inv.InstalledPackages(ctx)
	if err != nil {
		u.logger.Error("package inventory failed", "error", err)
		return sched.Retry
	}

	now := time.Now().UTC()
	var recs []model.Recommendation
	for _, p := range pkgs {
		if p.System || p.Package == u.self {
			continue
		}
		if !requestsSensitive(p) {
			continue
		}
		if _, used := lastUsed[p.Package]; used {
			continue
		}
		recs = append(recs, model.Recommendation{
			Title:       "Unused app with sensitive access",
			Description: fmt.Sprintf("%s has not been used in %d days but requests sensitive permissions", p.Label, days),
			Package:     p.Package,
			Timestamp:   now,
		})
	}
	if err := u.feed.RefreshByType(ctx, model.RecUnusedApp, recs); err != nil {
		u.logger.Error("unused-app feed refresh failed", "error", err)
		return sched.Retry
	}
	u.logger.Info("unused-app pass finished", "threshold_days", days, "flagged", len(recs))
	return sched.Success
}

func requestsSensitive(p platform.PackageInfo) bool {
	for _, perm := range p.Permissions {
		if risk.Risky(risk.Classify(perm.Name)) {
			return true
		}
	}
	return false
}
