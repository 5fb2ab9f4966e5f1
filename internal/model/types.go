package model

import (
	"fmt"
	"time"
)

// RiskTier classifies the sensitivity of a permission, or of an app's
// aggregate granted permission set. Ordering is meaningful: HIGH > MEDIUM >
// LOW > NO_RISK.
type RiskTier int

const (
	NoRisk RiskTier = iota
	LowRisk
	MediumRisk
	HighRisk
)

var tierNames = map[RiskTier]string{
	NoRisk:     "NO_RISK",
	LowRisk:    "LOW",
	MediumRisk: "MEDIUM",
	HighRisk:   "HIGH",
}

func (t RiskTier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("RiskTier(%d)", int(t))
}

func (t RiskTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *RiskTier) UnmarshalText(b []byte) error {
	for tier, name := range tierNames {
		if name == string(b) {
			*t = tier
			return nil
		}
	}
	return fmt.Errorf("unknown risk tier: %q", string(b))
}

// Tiers lists all tiers from highest to lowest.
func Tiers() []RiskTier {
	return []RiskTier{HighRisk, MediumRisk, LowRisk, NoRisk}
}

type SensorType string

const (
	SensorCamera     SensorType = "CAMERA"
	SensorMicrophone SensorType = "MICROPHONE"
	SensorLocation   SensorType = "LOCATION"
	SensorClipboard  SensorType = "CLIPBOARD"
)

// Recommendation type vocabulary. Summary types are synthesized at read time
// and never persisted; the rest are stored rows refreshed by
// delete-then-reinsert per job run.
const (
	RecHighRiskSummary      = "HIGH_RISK_SUMMARY"
	RecMediumRiskSummary    = "MEDIUM_RISK_SUMMARY"
	RecUnusedApp            = "UNUSED_APP"
	RecSensorAlert          = "SENSOR_ALERT"
	RecPermissionEscalation = "PERMISSION_ESCALATION"
	RecPermissionGranted    = "PERMISSION_GRANTED"
	RecPermissionRevoked    = "PERMISSION_REVOKED"
)

// AppPermissionRecord is the persisted per-app permission inventory.
// Permissions is the comma-joined requested list, regardless of grant
// status; it is write-once-per-scan and read whole for diffing.
type AppPermissionRecord struct {
	Package     string `json:"package"`
	Permissions string `json:"permissions"`
}

// Recommendation is one advisory shown to the device owner. Rows are
// immutable once created; refresh is delete-then-reinsert, never update.
type Recommendation struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Package     string    `json:"package,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// SensorLogEntry is one detected sensor-access event. Append-only,
// bulk-deletable by age cutoff.
type SensorLogEntry struct {
	ID        int64      `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Package   string     `json:"package"`
	AppName   string     `json:"app_name"`
	Sensor    SensorType `json:"sensor"`
	Alert     bool       `json:"alert"`
}

// CategoryCount is one cell of the permission category grid: how many
// scanned user apps currently hold a monitored permission.
type CategoryCount struct {
	Name       string `json:"name"`
	Permission string `json:"permission"`
	Apps       int    `json:"apps"`
	Total      int    `json:"total"`
}

// ScanResult is the outcome of one full inventory scan. The categorized app
// map is rebuilt wholesale every scan and never partially mutated.
type ScanResult struct {
	ScanID     string                `json:"scan_id"`
	StartedAt  time.Time             `json:"started_at"`
	Duration   time.Duration         `json:"duration"`
	TotalApps  int                   `json:"total_apps"`
	Score      int                   `json:"score"`
	Counts     map[RiskTier]int      `json:"counts"`
	Apps       map[RiskTier][]string `json:"apps"`
	Categories []CategoryCount       `json:"categories"`
}

func (r *ScanResult) Count(tier RiskTier) int {
	if r == nil || r.Counts == nil {
		return 0
	}
	return r.Counts[tier]
}
