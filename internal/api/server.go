package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"privguard/internal/config"
	"privguard/internal/model"
	"privguard/internal/monitor"
	"privguard/internal/recommend"
	"privguard/internal/scanner"
	"privguard/internal/settings"
	"privguard/internal/storage"
)

type Server struct {
	cfg      *config.Manager
	scanner  *scanner.Scanner
	detector *monitor.Detector
	feed     *recommend.Feed
	settings *settings.Settings
	store    storage.Store
	logger   *slog.Logger
	version  string
}

type statusResponse struct {
	Status      string        `json:"status"`
	Time        string        `json:"time"`
	Version     string        `json:"version"`
	ConfigPath  string        `json:"config_path"`
	UsageAccess bool          `json:"usage_access"`
	Warning     string        `json:"warning,omitempty"`
	API         apiStatus     `json:"api"`
	Monitor     monitorStatus `json:"monitor"`
	LastScan    *scanStatus   `json:"last_scan,omitempty"`
}

type apiStatus struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

type monitorStatus struct {
	PollInterval     string `json:"poll_interval"`
	CameraDebounce   string `json:"camera_debounce"`
	MicDebounce      string `json:"mic_debounce"`
	LocationDebounce string `json:"location_debounce"`
}

type scanStatus struct {
	ScanID    string `json:"scan_id"`
	StartedAt string `json:"started_at"`
	TotalApps int    `json:"total_apps"`
	Score     int    `json:"score"`
}

type settingsResponse struct {
	Camera           bool  `json:"camera_monitoring"`
	Microphone       bool  `json:"microphone_monitoring"`
	Location         bool  `json:"location_monitoring"`
	Clipboard        bool  `json:"clipboard_monitoring"`
	UnusedThreshold  int   `json:"unused_threshold_days"`
	ThresholdChoices []int `json:"threshold_choices"`
}

type settingsRequest struct {
	Camera          *bool `json:"camera_monitoring"`
	Microphone      *bool `json:"microphone_monitoring"`
	Location        *bool `json:"location_monitoring"`
	Clipboard       *bool `json:"clipboard_monitoring"`
	UnusedThreshold *int  `json:"unused_threshold_days"`
}

func Start(ctx context.Context, cfg *config.Manager, sc *scanner.Scanner, det *monitor.Detector, feed *recommend.Feed, st *settings.Settings, store storage.Store, logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:      cfg,
		scanner:  sc,
		detector: det,
		feed:     feed,
		settings: st,
		store:    store,
		logger:   logger,
		version:  version,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/scan", server.handleScan)
	mux.HandleFunc("/recommendations", server.handleRecommendations)
	mux.HandleFunc("/recommendations/", server.handleRecommendationByID)
	mux.HandleFunc("/sensorlog", server.handleSensorLog)
	mux.HandleFunc("/sensorlog/recent", server.handleSensorLogRecent)
	mux.HandleFunc("/settings", server.handleSettings)
	mux.HandleFunc("/config/monitor", server.handleMonitorConfig)
	mux.HandleFunc("/admin/scan", server.handleAdminScan)
	mux.HandleFunc("/admin/reset", server.handleAdminReset)

	httpServer := &http.Server{Addr: current.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	usage := s.detector.UsageAccess(r.Context())
	resp := statusResponse{
		Status:      "ok",
		Time:        time.Now().UTC().Format(time.RFC3339Nano),
		Version:     s.version,
		ConfigPath:  s.cfg.Path(),
		UsageAccess: usage,
		API:         apiStatus{Enabled: cfg.API.Enabled, Addr: cfg.API.Addr},
		Monitor: monitorStatus{
			PollInterval:     cfg.Monitor.PollInterval.String(),
			CameraDebounce:   cfg.Monitor.CameraDebounce.String(),
			MicDebounce:      cfg.Monitor.MicDebounce.String(),
			LocationDebounce: cfg.Monitor.LocationDebounce.String(),
		},
	}
	if !usage {
		resp.Warning = "usage access unavailable: detection degraded, unused-app finder disabled"
	}
	if latest := s.scanner.Latest(); latest != nil {
		resp.LastScan = &scanStatus{
			ScanID:    latest.ScanID,
			StartedAt: latest.StartedAt.Format(time.RFC3339Nano),
			TotalApps: latest.TotalApps,
			Score:     latest.Score,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	latest := s.scanner.Latest()
	if latest == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "pending"})
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	recs, err := s.feed.Compose(r.Context(), s.scanner.Latest())
	if err != nil {
		s.logger.Error("feed compose failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"recommendations": recs,
		"count":           len(recs),
	})
}

func (s *Server) handleRecommendationByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	idStr := strings.TrimPrefix(r.URL.Path, "/recommendations/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.feed.Dismiss(r.Context(), id); err != nil {
		s.logger.Error("dismiss failed", "id", id, "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleSensorLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := storage.SensorLogQuery{}
	if v := r.URL.Query().Get("sensor"); v != "" {
		q.Sensor = model.SensorType(strings.ToUpper(v))
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.Limit = n
		}
	}
	if v := r.URL.Query().Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		q.Since = ts
	}
	if v := r.URL.Query().Get("alerts"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		q.AlertsOnly = b
	}
	entries, err := s.store.ListSensorLogs(r.Context(), q)
	if err != nil {
		s.logger.Error("sensor log query failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (s *Server) handleSensorLogRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	var entries []model.SensorLogEntry
	if v := r.URL.Query().Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		entries = s.detector.Recent().Since(ts)
	} else {
		entries = s.detector.Recent().List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeSettings(w, r)
	case http.MethodPost, http.MethodPut:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var req settingsRequest
		if err := json.Unmarshal(body, &req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.UnusedThreshold != nil && !validThreshold(*req.UnusedThreshold) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		ctx := r.Context()
		toggles := map[model.SensorType]*bool{
			model.SensorCamera:     req.Camera,
			model.SensorMicrophone: req.Microphone,
			model.SensorLocation:   req.Location,
			model.SensorClipboard:  req.Clipboard,
		}
		for sensor, value := range toggles {
			if value == nil {
				continue
			}
			if err := s.settings.SetMonitoring(ctx, sensor, *value); err != nil {
				s.logger.Error("settings update failed", "sensor", sensor, "err", err)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
		}
		if req.UnusedThreshold != nil {
			if err := s.settings.SetUnusedThresholdDays(ctx, *req.UnusedThreshold); err != nil {
				s.logger.Error("settings update failed", "key", "unused_threshold", "err", err)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
		}
		s.writeSettings(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) writeSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(w, http.StatusOK, settingsResponse{
		Camera:           s.settings.MonitoringEnabled(ctx, model.SensorCamera),
		Microphone:       s.settings.MonitoringEnabled(ctx, model.SensorMicrophone),
		Location:         s.settings.MonitoringEnabled(ctx, model.SensorLocation),
		Clipboard:        s.settings.MonitoringEnabled(ctx, model.SensorClipboard),
		UnusedThreshold:  s.settings.UnusedThresholdDays(ctx),
		ThresholdChoices: settings.ThresholdChoices,
	})
}

func (s *Server) handleMonitorConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"monitor": s.cfg.Get().Monitor,
		})
	case http.MethodPost:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		current := s.cfg.Get()
		mc := current.Monitor
		if err := json.Unmarshal(body, &mc); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		next := *current
		next.Monitor = mc
		if err := config.Validate(&next); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := s.cfg.Update(&next); err != nil {
			s.logger.Error("config update failed", "err", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		s.detector.UpdateConfig(&next)
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleAdminReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.detector.Reset()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleAdminScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	result, err := s.scanner.Scan(r.Context())
	if err != nil {
		s.logger.Error("triggered scan failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func validThreshold(days int) bool {
	for _, choice := range settings.ThresholdChoices {
		if days == choice {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
