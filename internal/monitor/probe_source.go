package monitor

import (
	"context"
	"time"

	"privguard/internal/model"
	"privguard/internal/platform"
)

// ProbeActivitySource detects sensor use from hardware state: camera and
// microphone busy probes plus the GPS provider switch. Probes cannot tell
// who holds the hardware, so detections are attributed to the package most
// recently seen in the foreground, falling back to "UNKNOWN" when that
// observation is too old.
type ProbeActivitySource struct {
	prober   platform.HardwareProber
	location platform.LocationStatus
	fg       *Foreground
	maxAge   func() time.Duration
}

func NewProbeActivitySource(prober platform.HardwareProber, location platform.LocationStatus, fg *Foreground, maxAge func() time.Duration) *ProbeActivitySource {
	return &ProbeActivitySource{
		prober:   prober,
		location: location,
		fg:       fg,
		maxAge:   maxAge,
	}
}

func (s *ProbeActivitySource) Name() string { return "probe" }

func (s *ProbeActivitySource) Detect(ctx context.Context, now time.Time) ([]Detection, error) {
	pkg := s.fg.Get(now, s.maxAge())
	var out []Detection
	if s.prober.CameraBusy(ctx) {
		out = append(out, Detection{Package: pkg, Sensor: model.SensorCamera})
	}
	if s.prober.MicrophoneBusy(ctx) {
		out = append(out, Detection{Package: pkg, Sensor: model.SensorMicrophone})
	}
	if s.location.GPSEnabled(ctx) {
		out = append(out, Detection{Package: pkg, Sensor: model.SensorLocation})
	}
	return out, nil
}
