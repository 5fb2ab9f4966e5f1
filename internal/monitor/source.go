package monitor

import (
	"context"
	"time"

	"privguard/internal/model"
)

// Detection is one observed sensor access, attributed to a package. Sources
// that cannot attribute report the package as "UNKNOWN".
type Detection struct {
	Package string
	Sensor  model.SensorType
}

// ActivitySource is one detection strategy, queried once per poll tick.
// Sources report what they saw; gating, debouncing and persistence belong to
// the detector.
type ActivitySource interface {
	Name() string
	Detect(ctx context.Context, now time.Time) ([]Detection, error)
}
