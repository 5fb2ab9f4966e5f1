package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"privguard/internal/model"
	"privguard/internal/platform"
	"privguard/internal/risk"
	"privguard/internal/settings"
	"privguard/internal/storage"
)

// DeltaChecker watches for permission changes between observations: newly
// requested risky permissions on a package update, and grant-state flips
// across the whole device.
type DeltaChecker struct {
	inspector platform.PackageInspector
	inv       platform.Inventory
	store     storage.Store
	feed      *Feed
	self      string
	logger    *slog.Logger
}

func NewDeltaChecker(inspector platform.PackageInspector, inv platform.Inventory, store storage.Store, feed *Feed, selfPackage string, logger *slog.Logger) *DeltaChecker {
	return &DeltaChecker{
		inspector: inspector,
		inv:       inv,
		store:     store,
		feed:      feed,
		self:      selfPackage,
		logger:    logger,
	}
}

// CheckPackage fetches pkg's current state and runs Observe on it. A
// package that is no longer installed is a no-op; removal cleanup belongs
// to the watcher.
func (c *DeltaChecker) CheckPackage(ctx context.Context, pkg string) error {
	info, ok, err := c.inspector.PackageDetail(ctx, pkg)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return c.Observe(ctx, info)
}

// Observe compares info's currently requested permissions against the
// stored record and raises an escalation advisory when risky permissions
// were added. The stored record is then replaced with the current list, so
// a first observation only establishes the baseline.
func (c *DeltaChecker) Observe(ctx context.Context, info platform.PackageInfo) error {
	pkg := info.Package
	current := make([]string, 0, len(info.Permissions))
	for _, perm := range info.Permissions {
		current = append(current, perm.Name)
	}
	sort.Strings(current)

	prevJoined, found, err := c.store.GetAppPermissions(ctx, pkg)
	if err != nil {
		return err
	}
	if found {
		prev := make(map[string]bool)
		for _, name := range strings.Split(prevJoined, ",") {
			if name != "" {
				prev[name] = true
			}
		}
		var added []string
		for _, name := range current {
			if !prev[name] && risk.Risky(risk.Classify(name)) {
				added = append(added, name)
			}
		}
		if len(added) > 0 {
			label := info.Label
			if label == "" {
				label = pkg
			}
			rec := model.Recommendation{
				Title:       "Permission escalation",
				Description: fmt.Sprintf("%s now requests: %s", label, strings.Join(added, ", ")),
				Type:        model.RecPermissionEscalation,
				Package:     pkg,
				Timestamp:   time.Now().UTC(),
			}
			if err := c.feed.Record(ctx, rec); err != nil {
				return err
			}
			c.logger.Info("permission escalation detected", "package", pkg, "added", len(added))
		}
	}
	return c.store.UpsertAppPermissions(ctx, model.AppPermissionRecord{
		Package:     pkg,
		Permissions: strings.Join(current, ","),
	})
}

// CheckGrants diffs the device-wide grant state of risky permissions
// against the last snapshot and records one advisory per flip. The snapshot
// is replaced wholesale afterwards; packages appearing in only one side are
// install/uninstall events and are not flips.
func (c *DeltaChecker) CheckGrants(ctx context.Context) error {
	pkgs, err := c.inv.InstalledPackages(ctx)
	if err != nil {
		return err
	}
	current := make(map[string]bool)
	for _, p := range pkgs {
		if p.System || p.Package == c.self {
			continue
		}
		for _, perm := range p.Permissions {
			if !risk.Risky(risk.Classify(perm.Name)) {
				continue
			}
			current[p.Package+"|"+perm.Name] = perm.Granted
		}
	}

	raw, found, err := c.store.GetSetting(ctx, settings.KeyGrantSnapshot)
	if err != nil {
		return err
	}
	if found {
		previous := make(map[string]bool)
		if err := json.Unmarshal([]byte(raw), &previous); err != nil {
			c.logger.Warn("grant snapshot unreadable, resetting", "error", err)
		} else {
			now := time.Now().UTC()
			for key, granted := range current {
				prev, seen := previous[key]
				if !seen || prev == granted {
					continue
				}
				pkg, perm, _ := strings.Cut(key, "|")
				rec := model.Recommendation{
					Package:   pkg,
					Timestamp: now,
				}
				if granted {
					rec.Type = model.RecPermissionGranted
					rec.Title = "Permission granted"
					rec.Description = fmt.Sprintf("%s was granted %s", pkg, perm)
				} else {
					rec.Type = model.RecPermissionRevoked
					rec.Title = "Permission revoked"
					rec.Description = fmt.Sprintf("%s lost %s", pkg, perm)
				}
				if err := c.feed.Record(ctx, rec); err != nil {
					return err
				}
			}
		}
	}

	encoded, err := json.Marshal(current)
	if err != nil {
		return err
	}
	return c.store.SetSetting(ctx, settings.KeyGrantSnapshot, string(encoded))
}
