package alerting

import (
	"strings"

	"netpulse/pkg/models"
)

// DefaultDedupeFields is the dedupe key layout when the config names none.
var DefaultDedupeFields = []string{"device_id", "variable", "alert_type"}

// BuildDedupeKey joins the configured alert fields, in order, with "|".
// Unknown field names contribute an empty segment so key positions stay
// stable across configs.
func BuildDedupeKey(alert *models.Alert, fields []string) string {
	if len(fields) == 0 {
		fields = DefaultDedupeFields
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, dedupeField(alert, f))
	}
	return strings.Join(parts, "|")
}

func dedupeField(alert *models.Alert, field string) string {
	switch field {
	case "device_id":
		return alert.DeviceID
	case "variable":
		return alert.Variable
	case "alert_type":
		return alert.AlertType
	case "severity":
		return alert.Severity
	case "message":
		return alert.Message
	case "protocol":
		return alert.Protocol
	case "pattern":
		return alert.Pattern
	}
	return ""
}
