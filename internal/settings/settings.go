// Package settings exposes the user-facing runtime settings persisted in
// the store's key-value table: per-sensor monitoring toggles (default on)
// and the unused-app threshold in days.
package settings

import (
	"context"
	"strconv"

	"privguard/internal/model"
	"privguard/internal/storage"
)

const (
	keyCameraMonitoring    = "camera_monitoring_enabled"
	keyMicMonitoring       = "microphone_monitoring_enabled"
	keyLocationMonitoring  = "location_monitoring_enabled"
	keyClipboardMonitoring = "clipboard_monitoring_enabled"
	keyUnusedThresholdDays = "unused_app_threshold_days"

	// KeyGrantSnapshot holds the serialized last-known grant map used by
	// the permission-delta checker; it is not user-visible.
	KeyGrantSnapshot = "grant_snapshot"
)

// ThresholdChoices are the values offered in the settings UI.
var ThresholdChoices = []int{30, 60, 90}

type Settings struct {
	store            storage.Store
	defaultThreshold int
}

func New(store storage.Store, defaultThresholdDays int) *Settings {
	if defaultThresholdDays <= 0 {
		defaultThresholdDays = 30
	}
	return &Settings{store: store, defaultThreshold: defaultThresholdDays}
}

func (s *Settings) MonitoringEnabled(ctx context.Context, sensor model.SensorType) bool {
	key := ""
	switch sensor {
	case model.SensorCamera:
		key = keyCameraMonitoring
	case model.SensorMicrophone:
		key = keyMicMonitoring
	case model.SensorLocation:
		key = keyLocationMonitoring
	case model.SensorClipboard:
		key = keyClipboardMonitoring
	default:
		return false
	}
	value, ok, err := s.store.GetSetting(ctx, key)
	if err != nil || !ok {
		return true
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return true
	}
	return enabled
}

func (s *Settings) SetMonitoring(ctx context.Context, sensor model.SensorType, enabled bool) error {
	key := ""
	switch sensor {
	case model.SensorCamera:
		key = keyCameraMonitoring
	case model.SensorMicrophone:
		key = keyMicMonitoring
	case model.SensorLocation:
		key = keyLocationMonitoring
	case model.SensorClipboard:
		key = keyClipboardMonitoring
	default:
		return nil
	}
	return s.store.SetSetting(ctx, key, strconv.FormatBool(enabled))
}

func (s *Settings) UnusedThresholdDays(ctx context.Context) int {
	value, ok, err := s.store.GetSetting(ctx, keyUnusedThresholdDays)
	if err != nil || !ok {
		return s.defaultThreshold
	}
	days, err := strconv.Atoi(value)
	if err != nil || days <= 0 {
		return s.defaultThreshold
	}
	return days
}

func (s *Settings) SetUnusedThresholdDays(ctx context.Context, days int) error {
	return s.store.SetSetting(ctx, keyUnusedThresholdDays, strconv.Itoa(days))
}
