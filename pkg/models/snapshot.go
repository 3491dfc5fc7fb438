package models

import "time"

// Snapshot is the result of one poll of a single device.
type Snapshot struct {
	DeviceID  string            `json:"device_id"`
	OS        string            `json:"os,omitempty"`
	Timestamp time.Time         `json:"ts"`
	Metrics   []MetricSample    `json:"metrics"`
	Raw       map[string]string `json:"raw,omitempty"`
	Errors    []string          `json:"errors,omitempty"`

	RawDoc map[string]interface{} `json:"-"`
}

// Metric returns the sample for a variable, or nil when absent.
func (s *Snapshot) Metric(variable string) *MetricSample {
	if s == nil {
		return nil
	}
	for i := range s.Metrics {
		if s.Metrics[i].Variable == variable {
			return &s.Metrics[i]
		}
	}
	return nil
}

// Failed reports whether collection produced errors and no usable metrics.
func (s *Snapshot) Failed() bool {
	return s != nil && len(s.Metrics) == 0 && len(s.Errors) > 0
}
