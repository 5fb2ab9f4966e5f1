// Package platform abstracts the OS-facing boundary: app/permission
// inventory, usage history, hardware busy probes, location provider state
// and clipboard change notifications. Detection strategies and jobs are
// written against these interfaces; the adb subpackage implements them for
// a device reachable over adb, and tests substitute fakes.
package platform

import (
	"context"
	"time"
)

// App-op identifiers for the per-operation last-access query.
type Op string

const (
	OpCamera         Op = "CAMERA"
	OpRecordAudio    Op = "RECORD_AUDIO"
	OpFineLocation   Op = "FINE_LOCATION"
	OpCoarseLocation Op = "COARSE_LOCATION"
)

// PermissionState is one requested permission and its current grant flag.
type PermissionState struct {
	Name    string
	Granted bool
}

// PackageInfo describes one installed application.
type PackageInfo struct {
	Package     string
	UID         int
	System      bool
	Label       string
	Permissions []PermissionState
}

// Inventory answers "what is installed and what may it do".
type Inventory interface {
	// InstalledPackages lists installed applications with their requested
	// permissions and grant flags. Whether system packages appear is up to
	// the implementation; callers must still check the System flag.
	InstalledPackages(ctx context.Context) ([]PackageInfo, error)
	// Label resolves a human-readable app name, falling back to something
	// derived from the package identifier.
	Label(ctx context.Context, pkg string) string
}

// PackageInspector resolves a single package without a full inventory walk.
// The second return is false when the package is not installed.
type PackageInspector interface {
	PackageDetail(ctx context.Context, pkg string) (PackageInfo, bool, error)
}

// UsageSource answers usage/activity questions. All methods degrade to
// "no data" rather than failing when the usage-access entitlement is
// absent; HasUsageAccess tells callers which regime they are in.
type UsageSource interface {
	HasUsageAccess(ctx context.Context) bool
	// LastUsed returns per-package last-used timestamps within the window.
	LastUsed(ctx context.Context, window time.Duration) (map[string]time.Time, error)
	// LastOpAccess returns the last time pkg performed op, if known.
	LastOpAccess(ctx context.Context, op Op, uid int, pkg string) (time.Time, bool)
	// RecentForeground returns the package most recently moved to the
	// foreground within the window, if any.
	RecentForeground(ctx context.Context, window time.Duration) (string, bool)
}

// HardwareProber reports whether exclusive sensor hardware is currently
// held by someone. Probe failures other than "busy" are reported as busy:
// over-reporting beats silently missing an access event.
type HardwareProber interface {
	CameraBusy(ctx context.Context) bool
	MicrophoneBusy(ctx context.Context) bool
}

// LocationStatus reports whether the GPS provider is switched on, used as a
// weak location-access signal by the fallback strategy.
type LocationStatus interface {
	GPSEnabled(ctx context.Context) bool
}

// Clipboard delivers primary-clipboard change notifications. The channel
// carries no payload: clipboard content is intentionally never read.
type Clipboard interface {
	Subscribe(ctx context.Context) (<-chan struct{}, error)
}
