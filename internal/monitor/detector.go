// Package monitor implements live sensor-access detection: per-tick
// strategies feed a shared pipeline that gates on user toggles, debounces
// per sensor type, attributes a package and writes the sensor log.
package monitor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"privguard/internal/config"
	"privguard/internal/model"
	"privguard/internal/platform"
	"privguard/internal/recommend"
	"privguard/internal/settings"
	"privguard/internal/storage"
)

type Detector struct {
	cfg      atomic.Value // *config.Config
	store    storage.Store
	settings *settings.Settings
	inv      platform.Inventory
	usage    platform.UsageSource
	clip     platform.Clipboard
	feed     *recommend.Feed
	sources  []ActivitySource
	debounce *Debounce
	fg       *Foreground
	recent   *Recent
	logger   *slog.Logger
}

// NewDetector wires the detection pipeline. Strategy selection happens here,
// once: the usage source is added only when the entitlement is present at
// startup, the probe source always runs. Both run when both are capable;
// the per-sensor debounce collapses their overlap.
func NewDetector(
	cfg *config.Config,
	store storage.Store,
	st *settings.Settings,
	inv platform.Inventory,
	usage platform.UsageSource,
	prober platform.HardwareProber,
	location platform.LocationStatus,
	clip platform.Clipboard,
	feed *recommend.Feed,
	logger *slog.Logger,
) *Detector {
	d := &Detector{
		store:    store,
		settings: st,
		inv:      inv,
		usage:    usage,
		clip:     clip,
		feed:     feed,
		debounce: NewDebounce(),
		fg:       &Foreground{},
		recent:   NewRecent(cfg.Monitor.RecentBuffer),
		logger:   logger,
	}
	d.cfg.Store(cfg)

	if usage.HasUsageAccess(context.Background()) {
		d.sources = append(d.sources, NewUsageActivitySource(inv, usage, cfg.Device.SelfPackage,
			func() time.Duration { return d.config().Monitor.PollInterval }, logger))
	} else {
		logger.Warn("usage access unavailable, running hardware-probe strategy only")
	}
	d.sources = append(d.sources, NewProbeActivitySource(prober, location, d.fg,
		func() time.Duration { return d.config().Monitor.ForegroundWindow }))
	return d
}

func (d *Detector) config() *config.Config {
	return d.cfg.Load().(*config.Config)
}

func (d *Detector) UpdateConfig(cfg *config.Config) {
	d.cfg.Store(cfg)
}

// Recent exposes the in-memory buffer of the latest log entries.
func (d *Detector) Recent() *Recent { return d.recent }

// Reset drops the debounce state and the recent buffer. The persisted log is
// untouched; the next detection of any sensor logs immediately.
func (d *Detector) Reset() {
	d.debounce.Reset()
	d.recent.Clear()
}

// UsageAccess reports the live entitlement state, not the one sampled at
// construction.
func (d *Detector) UsageAccess(ctx context.Context) bool {
	return d.usage.HasUsageAccess(ctx)
}

// Run blocks until ctx is done, polling the sources on the configured
// interval. Clipboard notifications arrive on their own channel and bypass
// both polling and debounce.
func (d *Detector) Run(ctx context.Context) {
	if d.clip != nil {
		go d.watchClipboard(ctx)
	}
	ticker := time.NewTicker(d.config().Monitor.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.Tick(ctx, time.Now().UTC())
		case <-ctx.Done():
			return
		}
	}
}

// Tick runs one detection pass. Exported so tests drive time explicitly.
func (d *Detector) Tick(ctx context.Context, now time.Time) {
	cfg := d.config()
	if pkg, ok := d.usage.RecentForeground(ctx, cfg.Monitor.ForegroundWindow); ok {
		d.fg.Set(pkg, now)
	}

	logged := 0
	for _, src := range d.sources {
		dets, err := src.Detect(ctx, now)
		if err != nil {
			d.logger.Warn("detection source failed", "source", src.Name(), "error", err)
			continue
		}
		for _, det := range dets {
			if d.process(ctx, det, now, cfg) {
				logged++
			}
		}
	}
	if logged > 0 && cfg.Monitor.MirrorAlerts {
		if err := d.feed.RefreshSensorAlerts(ctx, now.Add(-24*time.Hour)); err != nil {
			d.logger.Warn("alert mirror refresh failed", "error", err)
		}
	}
}

func (d *Detector) process(ctx context.Context, det Detection, now time.Time, cfg *config.Config) bool {
	if !d.settings.MonitoringEnabled(ctx, det.Sensor) {
		return false
	}
	if !d.debounce.Allow(det.Sensor, now, debounceWindow(cfg, det.Sensor)) {
		return false
	}
	// Every camera, microphone and location detection is an alert; only
	// clipboard entries are informational.
	entry := model.SensorLogEntry{
		Timestamp: now,
		Package:   det.Package,
		AppName:   d.inv.Label(ctx, det.Package),
		Sensor:    det.Sensor,
		Alert:     true,
	}
	if err := d.store.InsertSensorLog(ctx, entry); err != nil {
		d.logger.Error("sensor log write failed", "sensor", det.Sensor, "package", det.Package, "error", err)
	}
	d.recent.Add(entry)
	d.logger.Info("sensor access",
		"sensor", det.Sensor,
		"package", det.Package,
	)
	return true
}

func (d *Detector) watchClipboard(ctx context.Context) {
	ch, err := d.clip.Subscribe(ctx)
	if err != nil {
		d.logger.Warn("clipboard subscription failed", "error", err)
		return
	}
	for range ch {
		if !d.settings.MonitoringEnabled(ctx, model.SensorClipboard) {
			continue
		}
		entry := model.SensorLogEntry{
			Timestamp: time.Now().UTC(),
			Package:   "SYSTEM",
			AppName:   "System Clipboard",
			Sensor:    model.SensorClipboard,
			Alert:     false,
		}
		if err := d.store.InsertSensorLog(ctx, entry); err != nil {
			d.logger.Error("sensor log write failed", "sensor", model.SensorClipboard, "error", err)
		}
		d.recent.Add(entry)
		d.logger.Info("clipboard changed")
	}
}

func debounceWindow(cfg *config.Config, sensor model.SensorType) time.Duration {
	switch sensor {
	case model.SensorCamera:
		return cfg.Monitor.CameraDebounce
	case model.SensorMicrophone:
		return cfg.Monitor.MicDebounce
	case model.SensorLocation:
		return cfg.Monitor.LocationDebounce
	}
	return 0
}
