package monitor

import (
	"context"
	"log/slog"
	"time"

	"privguard/internal/model"
	"privguard/internal/platform"
)

// UsageActivitySource detects sensor access through per-op last-access
// timestamps. It walks every user package each tick and reports ops whose
// last access falls inside the freshness window, so each physical access is
// observed on exactly one tick (modulo clock skew on the device side).
//
// Requires the usage-access entitlement; without it the source is not
// constructed at all.
type UsageActivitySource struct {
	inv    platform.Inventory
	usage  platform.UsageSource
	self   string
	fresh  func() time.Duration
	logger *slog.Logger
}

func NewUsageActivitySource(inv platform.Inventory, usage platform.UsageSource, selfPackage string, fresh func() time.Duration, logger *slog.Logger) *UsageActivitySource {
	return &UsageActivitySource{
		inv:    inv,
		usage:  usage,
		self:   selfPackage,
		fresh:  fresh,
		logger: logger,
	}
}

func (s *UsageActivitySource) Name() string { return "usage" }

func (s *UsageActivitySource) Detect(ctx context.Context, now time.Time) ([]Detection, error) {
	pkgs, err := s.inv.InstalledPackages(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := now.Add(-s.fresh())
	var out []Detection
	for _, p := range pkgs {
		if p.System || p.Package == s.self {
			continue
		}
		if s.opSince(ctx, platform.OpCamera, p, cutoff) {
			out = append(out, Detection{Package: p.Package, Sensor: model.SensorCamera})
		}
		if s.opSince(ctx, platform.OpRecordAudio, p, cutoff) {
			out = append(out, Detection{Package: p.Package, Sensor: model.SensorMicrophone})
		}
		// Either location op counts; fine and coarse are not distinguished
		// in the log.
		if s.opSince(ctx, platform.OpFineLocation, p, cutoff) ||
			s.opSince(ctx, platform.OpCoarseLocation, p, cutoff) {
			out = append(out, Detection{Package: p.Package, Sensor: model.SensorLocation})
		}
	}
	return out, nil
}

func (s *UsageActivitySource) opSince(ctx context.Context, op platform.Op, p platform.PackageInfo, cutoff time.Time) bool {
	ts, ok := s.usage.LastOpAccess(ctx, op, p.UID, p.Package)
	return ok && ts.After(cutoff)
}
