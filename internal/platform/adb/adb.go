// Package adb implements the platform interfaces for an Android device
// reachable through the adb bridge. Everything is built from shell-outs to
// `adb shell` (pm, dumpsys, appops, settings) plus output parsing; no
// on-device agent is required.
package adb

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"privguard/internal/platform"
)

type Device struct {
	adbPath string
	serial  string
	self    string
	logger  *slog.Logger
	labels  *lru.Cache[string, string]

	clipInterval time.Duration
}

func New(adbPath, serial, selfPackage string, labelCacheSize int, logger *slog.Logger) (*Device, error) {
	if adbPath == "" {
		adbPath = "adb"
	}
	if labelCacheSize <= 0 {
		labelCacheSize = 512
	}
	labels, err := lru.New[string, string](labelCacheSize)
	if err != nil {
		return nil, err
	}
	return &Device{
		adbPath:      adbPath,
		serial:       serial,
		self:         selfPackage,
		logger:       logger,
		labels:       labels,
		clipInterval: 2 * time.Second,
	}, nil
}

func (d *Device) shell(ctx context.Context, args ...string) (string, error) {
	cmdArgs := make([]string, 0, len(args)+3)
	if d.serial != "" {
		cmdArgs = append(cmdArgs, "-s", d.serial)
	}
	cmdArgs = append(cmdArgs, "shell")
	cmdArgs = append(cmdArgs, args...)
	out, err := exec.CommandContext(ctx, d.adbPath, cmdArgs...).Output()
	return string(out), err
}

// InstalledPackages lists every installed package with uid, system flag and
// permission states. One `dumpsys package` call per package; a failure on a
// single package is logged and that package is skipped.
func (d *Device) InstalledPackages(ctx context.Context) ([]platform.PackageInfo, error) {
	allOut, err := d.shell(ctx, "pm", "list", "packages", "-U")
	if err != nil {
		return nil, err
	}
	sysOut, err := d.shell(ctx, "pm", "list", "packages", "-s")
	if err != nil {
		return nil, err
	}
	pkgs := parsePackageList(allOut)
	system := make(map[string]bool)
	for _, p := range parsePackageList(sysOut) {
		system[p.Package] = true
	}

	out := make([]platform.PackageInfo, 0, len(pkgs))
	for _, p := range pkgs {
		info := platform.PackageInfo{
			Package: p.Package,
			UID:     p.UID,
			System:  system[p.Package],
			Label:   d.Label(ctx, p.Package),
		}
		dump, err := d.shell(ctx, "dumpsys", "package", p.Package)
		if err != nil {
			if d.logger != nil {
				d.logger.Warn("package dump failed, skipping", "package", p.Package, "error", err)
			}
			continue
		}
		info.Permissions = parsePermissionStates(dump)
		out = append(out, info)
	}
	return out, nil
}

// PackageDetail fetches one package's current state. Existence is checked
// through pm so a dumpsys failure on an installed package surfaces as an
// error rather than "not installed".
func (d *Device) PackageDetail(ctx context.Context, pkg string) (platform.PackageInfo, bool, error) {
	listOut, err := d.shell(ctx, "pm", "list", "packages", "-U", pkg)
	if err != nil {
		return platform.PackageInfo{}, false, err
	}
	var entry packageEntry
	var found bool
	for _, p := range parsePackageList(listOut) {
		if p.Package == pkg {
			entry = p
			found = true
			break
		}
	}
	if !found {
		return platform.PackageInfo{}, false, nil
	}
	sysOut, err := d.shell(ctx, "pm", "list", "packages", "-s", pkg)
	if err != nil {
		return platform.PackageInfo{}, false, err
	}
	system := false
	for _, p := range parsePackageList(sysOut) {
		if p.Package == pkg {
			system = true
		}
	}
	dump, err := d.shell(ctx, "dumpsys", "package", pkg)
	if err != nil {
		return platform.PackageInfo{}, false, err
	}
	return platform.PackageInfo{
		Package:     pkg,
		UID:         entry.UID,
		System:      system,
		Label:       d.Label(ctx, pkg),
		Permissions: parsePermissionStates(dump),
	}, true, nil
}

// Label returns a display name for pkg. There is no reliable on-device
// label source without the apk tooling, so this derives one from the
// package identifier after confirming the package exists; results are
// cached because the detector asks on every poll tick.
func (d *Device) Label(ctx context.Context, pkg string) string {
	if pkg == "" || pkg == "UNKNOWN" {
		return "Unknown App"
	}
	if label, ok := d.labels.Get(pkg); ok {
		return label
	}
	label := deriveLabel(pkg)
	if out, err := d.shell(ctx, "pm", "list", "packages", pkg); err == nil {
		if !strings.Contains(out, "package:"+pkg) {
			label = pkg
		}
	}
	d.labels.Add(pkg, label)
	return label
}

// HasUsageAccess reports whether usage history is queryable. Over adb the
// shell user normally holds the entitlement; an unreadable or empty
// usagestats dump means we are in the degraded regime.
func (d *Device) HasUsageAccess(ctx context.Context) bool {
	out, err := d.shell(ctx, "dumpsys", "usagestats")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) != ""
}

func (d *Device) LastUsed(ctx context.Context, window time.Duration) (map[string]time.Time, error) {
	out, err := d.shell(ctx, "dumpsys", "usagestats")
	if err != nil {
		return nil, err
	}
	all := parseUsageStats(out)
	cutoff := time.Now().Add(-window)
	for pkg, ts := range all {
		if ts.Before(cutoff) {
			delete(all, pkg)
		}
	}
	return all, nil
}

// LastOpAccess queries appops for the last access time of op by pkg.
// Returns false whenever the op is unknown, never recorded, or the query
// fails; callers treat that as "no data", not an error.
func (d *Device) LastOpAccess(ctx context.Context, op platform.Op, uid int, pkg string) (time.Time, bool) {
	out, err := d.shell(ctx, "appops", "get", pkg, string(op))
	if err != nil {
		return time.Time{}, false
	}
	return parseAppOpsTime(out, time.Now())
}

func (d *Device) RecentForeground(ctx context.Context, window time.Duration) (string, bool) {
	out, err := d.shell(ctx, "dumpsys", "activity", "activities")
	if err != nil {
		return "", false
	}
	pkg := parseResumedPackage(out)
	if pkg == "" || pkg == d.self {
		return "", false
	}
	return pkg, true
}

func (d *Device) CameraBusy(ctx context.Context) bool {
	out, err := d.shell(ctx, "dumpsys", "media.camera")
	if err != nil {
		// Probe failure is read as busy: over-reporting beats missing an
		// access event.
		return true
	}
	return len(parseCameraClients(out)) > 0
}

func (d *Device) MicrophoneBusy(ctx context.Context) bool {
	out, err := d.shell(ctx, "dumpsys", "media.audio_flinger")
	if err != nil {
		return true
	}
	return parseActiveRecordTracks(out) > 0
}

func (d *Device) GPSEnabled(ctx context.Context) bool {
	out, err := d.shell(ctx, "settings", "get", "secure", "location_providers_allowed")
	if err == nil && strings.Contains(out, "gps") {
		return true
	}
	out, err = d.shell(ctx, "dumpsys", "location")
	if err != nil {
		return false
	}
	return parseGPSEnabled(out)
}

// Subscribe polls the clipboard service dump and emits on change. The raw
// dump is hashed, never parsed: clipboard content must not be handled.
func (d *Device) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(d.clipInterval)
		defer ticker.Stop()
		var last [32]byte
		var primed bool
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			out, err := d.shell(ctx, "dumpsys", "clipboard")
			if err != nil {
				continue
			}
			sum := sha256.Sum256([]byte(out))
			if primed && sum != last {
				select {
				case ch <- struct{}{}:
				default:
				}
			}
			last = sum
			primed = true
		}
	}()
	return ch, nil
}

func deriveLabel(pkg string) string {
	seg := pkg
	if i := strings.LastIndex(pkg, "."); i >= 0 && i+1 < len(pkg) {
		seg = pkg[i+1:]
	}
	seg = strings.ReplaceAll(seg, "_", " ")
	if seg == "" {
		return pkg
	}
	return strings.ToUpper(seg[:1]) + seg[1:]
}
