package scanner

import (
	"context"
	"log/slog"

	"privguard/internal/platform"
	"privguard/internal/recommend"
	"privguard/internal/sched"
	"privguard/internal/storage"
)

// Watcher tracks package install/uninstall churn between scans. Uninstalls
// trigger cleanup of the permission record and every advisory attached to
// the package; installs get an immediate baseline observation instead of
// waiting for the next full scan. Each pass also diffs the device-wide
// grant snapshot.
type Watcher struct {
	inv    platform.Inventory
	store  storage.Store
	feed   *recommend.Feed
	delta  *recommend.DeltaChecker
	self   string
	logger *slog.Logger

	known  map[string]bool
	primed bool
}

func NewWatcher(inv platform.Inventory, store storage.Store, feed *recommend.Feed, delta *recommend.DeltaChecker, selfPackage string, logger *slog.Logger) *Watcher {
	return &Watcher{
		inv:    inv,
		store:  store,
		feed:   feed,
		delta:  delta,
		self:   selfPackage,
		logger: logger,
		known:  make(map[string]bool),
	}
}

func (w *Watcher) Name() string { return "package-watch" }

func (w *Watcher) Run(ctx context.Context) sched.Result {
	pkgs, err := w.inv.InstalledPackages(ctx)
	if err != nil {
		w.logger.Error("package inventory failed", "error", err)
		return sched.Retry
	}
	current := make(map[string]bool, len(pkgs))
	for _, p := range pkgs {
		if p.System || p.Package == w.self {
			continue
		}
		current[p.Package] = true
	}

	if !w.primed {
		// First pass after startup seeds from the persisted records so
		// uninstalls that happened while we were down still get cleaned up.
		recs, err := w.store.ListAppPermissions(ctx)
		if err != nil {
			w.logger.Error("permission record listing failed", "error", err)
			return sched.Retry
		}
		for _, rec := range recs {
			w.known[rec.Package] = true
		}
		w.primed = true
	}

	for pkg := range w.known {
		if current[pkg] {
			continue
		}
		if err := w.store.DeleteAppPermissions(ctx, pkg); err != nil {
			w.logger.Warn("record cleanup failed", "package", pkg, "error", err)
			continue
		}
		if err := w.feed.Forget(ctx, pkg); err != nil {
			w.logger.Warn("advisory cleanup failed", "package", pkg, "error", err)
			continue
		}
		delete(w.known, pkg)
		w.logger.Info("package uninstalled, records cleaned", "package", pkg)
	}

	for pkg := range current {
		if w.known[pkg] {
			continue
		}
		if err := w.delta.CheckPackage(ctx, pkg); err != nil {
			w.logger.Warn("baseline observation failed", "package", pkg, "error", err)
			continue
		}
		w.known[pkg] = true
		w.logger.Info("package installed, baseline recorded", "package", pkg)
	}

	if err := w.delta.CheckGrants(ctx); err != nil {
		w.logger.Error("grant snapshot diff failed", "error", err)
		return sched.Retry
	}
	return sched.Success
}
