package monitor

import (
	"sync"
	"time"

	"privguard/internal/model"
)

// Recent is a bounded in-memory buffer of the latest sensor log entries,
// kept so the API can answer "what just happened" without a store read.
type Recent struct {
	mu    sync.RWMutex
	buf   []model.SensorLogEntry
	limit int
}

func NewRecent(limit int) *Recent {
	if limit <= 0 {
		limit = 200
	}
	return &Recent{limit: limit}
}

func (r *Recent) Add(entry model.SensorLogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buf) < r.limit {
		r.buf = append(r.buf, entry)
		return
	}
	copy(r.buf, r.buf[1:])
	r.buf[len(r.buf)-1] = entry
}

// List returns up to limit entries, newest last.
func (r *Recent) List(limit int) []model.SensorLogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 || limit > len(r.buf) {
		limit = len(r.buf)
	}
	out := make([]model.SensorLogEntry, 0, limit)
	for i := len(r.buf) - limit; i < len(r.buf); i++ {
		out = append(out, r.buf[i])
	}
	return out
}

func (r *Recent) Since(ts time.Time) []model.SensorLogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.SensorLogEntry, 0)
	for _, e := range r.buf {
		if !e.Timestamp.Before(ts) {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recent) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = nil
}
