package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestManagerUpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := Save(path, DefaultConfig()); err != nil {
		t.Fatalf("save: %v", err)
	}
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	next := *m.Get()
	next.Monitor.MirrorAlerts = true
	next.Monitor.CameraDebounce = 45 * time.Second
	if err := m.Update(&next); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := m.Get().Monitor; !got.MirrorAlerts || got.CameraDebounce != 45*time.Second {
		t.Fatalf("snapshot not swapped: %+v", got)
	}

	// A fresh manager over the same file sees the written values.
	reopened, err := NewManager(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reopened.Get().Monitor; !got.MirrorAlerts || got.CameraDebounce != 45*time.Second {
		t.Fatalf("update not persisted: %+v", got)
	}
}

func TestStaticManagerUpdate(t *testing.T) {
	m := NewStaticManager(nil)
	next := *m.Get()
	next.Monitor.MirrorAlerts = true
	if err := m.Update(&next); err != nil {
		t.Fatalf("update: %v", err)
	}
	if !m.Get().Monitor.MirrorAlerts {
		t.Fatalf("static manager should swap the snapshot")
	}
}

func TestUpdateRejectsNil(t *testing.T) {
	m := NewStaticManager(nil)
	if err := m.Update(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
