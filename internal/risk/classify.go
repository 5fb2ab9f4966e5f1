package risk

import "privguard/internal/model"

// The classification table is a hand-maintained design constant, not derived
// data. Changing a permission's tier means editing this table.
var tierByPermission = map[string]model.RiskTier{
	// High: access to personal communications, recording hardware, or the
	// ability to install further software.
	"android.permission.READ_CONTACTS":              model.HighRisk,
	"android.permission.WRITE_CONTACTS":             model.HighRisk,
	"android.permission.READ_SMS":                   model.HighRisk,
	"android.permission.SEND_SMS":                   model.HighRisk,
	"android.permission.RECEIVE_SMS":                model.HighRisk,
	"android.permission.CAMERA":                     model.HighRisk,
	"android.permission.RECORD_AUDIO":               model.HighRisk,
	"android.permission.READ_CALENDAR":              model.HighRisk,
	"android.permission.WRITE_CALENDAR":             model.HighRisk,
	"android.permission.BIND_ACCESSIBILITY_SERVICE": model.HighRisk,
	"android.permission.READ_CALL_LOG":              model.HighRisk,
	"android.permission.PROCESS_OUTGOING_CALLS":     model.HighRisk,
	"android.permission.REQUEST_INSTALL_PACKAGES":   model.HighRisk,

	// Medium: location, shared storage, account and device identity.
	"android.permission.ACCESS_FINE_LOCATION":   model.MediumRisk,
	"android.permission.ACCESS_COARSE_LOCATION": model.MediumRisk,
	"android.permission.READ_EXTERNAL_STORAGE":  model.MediumRisk,
	"android.permission.WRITE_EXTERNAL_STORAGE": model.MediumRisk,
	"android.permission.GET_ACCOUNTS":           model.MediumRisk,
	"android.permission.READ_PHONE_STATE":       model.MediumRisk,

	// Low: connectivity and housekeeping.
	"android.permission.INTERNET":             model.LowRisk,
	"android.permission.ACCESS_NETWORK_STATE": model.LowRisk,
	"android.permission.BLUETOOTH":            model.LowRisk,
	"android.permission.VIBRATE":              model.LowRisk,
	"android.permission.WAKE_LOCK":            model.LowRisk,
}

// Classify maps a permission identifier to its risk tier. Total: unknown or
// empty input yields NoRisk, never an error.
func Classify(permission string) model.RiskTier {
	if tier, ok := tierByPermission[permission]; ok {
		return tier
	}
	return model.NoRisk
}

// Risky reports whether a tier is worth flagging to the user on its own.
func Risky(t model.RiskTier) bool {
	return t >= model.MediumRisk
}
