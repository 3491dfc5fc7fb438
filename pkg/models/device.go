package models

import "time"

// DeviceDependency is a static upstream -> downstream edge in the device
// graph, read-only at runtime.
type DeviceDependency struct {
	Upstream   string `json:"upstream"`
	Downstream string `json:"downstream"`
	Type       string `json:"type,omitempty"`
	Critical   bool   `json:"critical,omitempty"`
}

// DeviceState is the last known state recorded for a device.
type DeviceState struct {
	DeviceID    string    `json:"device_id"`
	HealthScore float64   `json:"health_score"`
	Reachable   bool      `json:"reachable"`
	LastSeen    time.Time `json:"last_seen"`
}
