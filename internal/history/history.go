package history

import "netpulse/pkg/models"

// Accessor reads back recent samples for detection. Series are returned
// most-recent-first, capped at limit.
type Accessor interface {
	RecentSeries(deviceID, variable string, limit int) ([]models.MetricSample, error)
}

// Store extends Accessor with sample writes and per-device state tracking.
type Store interface {
	Accessor
	Append(samples []models.MetricSample) error
	SetDeviceState(state models.DeviceState) error
	DeviceStates() ([]models.DeviceState, error)
	Close() error
}

func seriesMember(deviceID, variable string) string {
	return deviceID + "|" + variable
}
