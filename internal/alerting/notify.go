package alerting

import (
	"fmt"
	"strings"

	"netpulse/pkg/models"
)

// FormatMessage renders the notification body for an alert.
func FormatMessage(alert *models.Alert) string {
	return fmt.Sprintf("[%s] %s %s %s\n%s",
		alert.Severity, alert.DeviceID, alert.Variable, alert.AlertType, alert.Message)
}

// DispatchNote renders the note recorded on a dispatched lifecycle event.
func DispatchNote(route Route) string {
	return fmt.Sprintf("group=%s channels=%s", route.ContactGroup, strings.Join(route.Channels, ","))
}
