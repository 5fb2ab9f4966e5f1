package monitor

import (
	"sync"
	"time"

	"privguard/internal/model"
)

// Debounce tracks the last logged timestamp per sensor type. A detection is
// accepted only when more than the sensor's window has elapsed since the
// previous accepted one.
type Debounce struct {
	mu   sync.Mutex
	last map[model.SensorType]time.Time
}

func NewDebounce() *Debounce {
	return &Debounce{last: make(map[model.SensorType]time.Time)}
}

func (d *Debounce) Allow(sensor model.SensorType, now time.Time, window time.Duration) bool {
	if window <= 0 {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if ts, ok := d.last[sensor]; ok {
		if now.Sub(ts) <= window {
			return false
		}
	}
	d.last[sensor] = now
	return true
}

func (d *Debounce) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = make(map[model.SensorType]time.Time)
}
