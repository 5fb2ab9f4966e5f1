package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel    string            `json:"log_level" yaml:"log_level"`
	Device      DeviceConfig      `json:"device" yaml:"device"`
	Scan        ScanConfig        `json:"scan" yaml:"scan"`
	Monitor     MonitorConfig     `json:"monitor" yaml:"monitor"`
	Maintenance MaintenanceConfig `json:"maintenance" yaml:"maintenance"`
	API         APIConfig         `json:"api" yaml:"api"`
	Storage     StorageConfig     `json:"storage" yaml:"storage"`
}

// DeviceConfig describes how to reach the monitored device. SelfPackage is
// excluded from every scan and detection pass.
type DeviceConfig struct {
	ADBPath     string `json:"adb_path" yaml:"adb_path"`
	Serial      string `json:"serial" yaml:"serial"`
	SelfPackage string `json:"self_package" yaml:"self_package"`
}

type ScanConfig struct {
	Interval   time.Duration `json:"interval" yaml:"interval"`
	LabelCache int           `json:"label_cache" yaml:"label_cache"`
}

type MonitorConfig struct {
	PollInterval     time.Duration `json:"poll_interval" yaml:"poll_interval"`
	CameraDebounce   time.Duration `json:"camera_debounce" yaml:"camera_debounce"`
	MicDebounce      time.Duration `json:"mic_debounce" yaml:"mic_debounce"`
	LocationDebounce time.Duration `json:"location_debounce" yaml:"location_debounce"`
	ForegroundWindow time.Duration `json:"foreground_window" yaml:"foreground_window"`
	RecentBuffer     int           `json:"recent_buffer" yaml:"recent_buffer"`
	// MirrorAlerts copies alert-flagged log entries from the last 24 hours
	// into the recommendation feed after each poll. Off by default; the
	// sensor log and the feed are independently queryable either way.
	MirrorAlerts bool `json:"mirror_alerts" yaml:"mirror_alerts"`
}

type MaintenanceConfig struct {
	Interval             time.Duration `json:"interval" yaml:"interval"`
	RetryBackoff         time.Duration `json:"retry_backoff" yaml:"retry_backoff"`
	LogRetention         time.Duration `json:"log_retention" yaml:"log_retention"`
	DefaultThresholdDays int           `json:"default_threshold_days" yaml:"default_threshold_days"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Device: DeviceConfig{
			ADBPath:     "adb",
			SelfPackage: "com.privguard.agent",
		},
		Scan: ScanConfig{
			Interval:   10 * time.Minute,
			LabelCache: 512,
		},
		Monitor: MonitorConfig{
			PollInterval:     15 * time.Second,
			CameraDebounce:   20 * time.Second,
			MicDebounce:      20 * time.Second,
			LocationDebounce: 30 * time.Second,
			ForegroundWindow: 15 * time.Second,
			RecentBuffer:     200,
			MirrorAlerts:     false,
		},
		Maintenance: MaintenanceConfig{
			Interval:             6 * time.Hour,
			RetryBackoff:         15 * time.Minute,
			LogRetention:         30 * 24 * time.Hour,
			DefaultThresholdDays: 30,
		},
		API:     APIConfig{Enabled: true, Addr: ":8087"},
		Storage: StorageConfig{Driver: "sqlite", DSN: "file:privguard.db?_pragma=busy_timeout(5000)"},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Device.ADBPath == "" {
		cfg.Device.ADBPath = def.Device.ADBPath
	}
	if cfg.Scan.Interval <= 0 {
		cfg.Scan.Interval = def.Scan.Interval
	}
	if cfg.Scan.LabelCache <= 0 {
		cfg.Scan.LabelCache = def.Scan.LabelCache
	}
	if cfg.Monitor.PollInterval <= 0 {
		cfg.Monitor.PollInterval = def.Monitor.PollInterval
	}
	if cfg.Monitor.CameraDebounce <= 0 {
		cfg.Monitor.CameraDebounce = def.Monitor.CameraDebounce
	}
	if cfg.Monitor.MicDebounce <= 0 {
		cfg.Monitor.MicDebounce = def.Monitor.MicDebounce
	}
	if cfg.Monitor.LocationDebounce <= 0 {
		cfg.Monitor.LocationDebounce = def.Monitor.LocationDebounce
	}
	if cfg.Monitor.ForegroundWindow <= 0 {
		cfg.Monitor.ForegroundWindow = def.Monitor.ForegroundWindow
	}
	if cfg.Monitor.RecentBuffer <= 0 {
		cfg.Monitor.RecentBuffer = def.Monitor.RecentBuffer
	}
	if cfg.Maintenance.Interval <= 0 {
		cfg.Maintenance.Interval = def.Maintenance.Interval
	}
	if cfg.Maintenance.RetryBackoff <= 0 {
		cfg.Maintenance.RetryBackoff = def.Maintenance.RetryBackoff
	}
	if cfg.Maintenance.LogRetention <= 0 {
		cfg.Maintenance.LogRetention = def.Maintenance.LogRetention
	}
	if cfg.Maintenance.DefaultThresholdDays <= 0 {
		cfg.Maintenance.DefaultThresholdDays = def.Maintenance.DefaultThresholdDays
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = def.Storage.Driver
	}
	if cfg.Storage.DSN == "" && strings.EqualFold(cfg.Storage.Driver, "sqlite") {
		cfg.Storage.DSN = def.Storage.DSN
	}
}

func Validate(cfg *Config) error {
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Device.SelfPackage == "" {
		return errors.New("device.self_package must be set")
	}
	switch strings.ToLower(cfg.Storage.Driver) {
	case "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported storage driver: %s", cfg.Storage.Driver)
	}
	if cfg.Monitor.PollInterval < time.Second {
		return errors.New("monitor.poll_interval must be at least 1s")
	}
	for name, d := range map[string]time.Duration{
		"monitor.camera_debounce":   cfg.Monitor.CameraDebounce,
		"monitor.mic_debounce":      cfg.Monitor.MicDebounce,
		"monitor.location_debounce": cfg.Monitor.LocationDebounce,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

// Manager holds the live config behind an atomic snapshot and reloads it
// when the file's mtime changes.
type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	if info, err := os.Stat(path); err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

// NewStaticManager wraps an in-memory config with no backing file. Reload
// and Watch are no-ops; used by tests and by default-config startup.
func NewStaticManager(cfg *Config) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	m := &Manager{}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	if m.path == "" {
		return m.Get(), nil
	}
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

// Update replaces the live config and persists it to the backing file. A
// static manager has no file; the snapshot is still swapped.
func (m *Manager) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if m.path != "" {
		if err := Save(m.path, cfg); err != nil {
			return err
		}
		if info, err := os.Stat(m.path); err == nil {
			m.modTime = info.ModTime()
		}
	}
	m.cfg.Store(cfg)
	return nil
}

func (m *Manager) NeedsReload() (bool, error) {
	if m.path == "" {
		return false, nil
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if m.path == "" {
		return
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
