package scanner

import (
	"sync"

	"privguard/internal/model"
)

// Latest holds the most recent completed scan result. Readers get the
// pointer as published; results are treated as immutable once set.
type Latest struct {
	mu     sync.RWMutex
	result *model.ScanResult
}

func (l *Latest) Set(r *model.ScanResult) {
	l.mu.Lock()
	l.result = r
	l.mu.Unlock()
}

// Get returns the latest result, nil before the first scan completes.
func (l *Latest) Get() *model.ScanResult {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.result
}
