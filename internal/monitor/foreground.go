package monitor

import (
	"sync"
	"time"
)

// Foreground is a single-slot register holding the package most recently
// seen in the foreground. Writers overwrite, readers get the latest value
// with its age; there is no queue. Staleness on the order of the polling
// interval is acceptable.
type Foreground struct {
	mu  sync.RWMutex
	pkg string
	at  time.Time
}

func (f *Foreground) Set(pkg string, at time.Time) {
	if pkg == "" {
		return
	}
	f.mu.Lock()
	f.pkg = pkg
	f.at = at
	f.mu.Unlock()
}

// Get returns the tracked package if it was written within maxAge of now.
// Falls back to "UNKNOWN" so hardware-busy events always attribute to
// something.
func (f *Foreground) Get(now time.Time, maxAge time.Duration) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.pkg == "" {
		return "UNKNOWN"
	}
	if maxAge > 0 && now.Sub(f.at) > maxAge {
		return "UNKNOWN"
	}
	return f.pkg
}
