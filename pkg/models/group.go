package models

import "time"

// AlertGroup coalesces a burst of similar alerts for notification delivery.
// Grouping is orthogonal to the persistence dedupe key.
type AlertGroup struct {
	GroupID   string    `json:"group_id"`
	AlertIDs  []string  `json:"alert_ids"`
	DeviceID  string    `json:"device_id,omitempty"`
	Variable  string    `json:"variable,omitempty"`
	Severity  string    `json:"severity"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Count     int       `json:"count"`
	Summary   string    `json:"message_summary,omitempty"`
}
