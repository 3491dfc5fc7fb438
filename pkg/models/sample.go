package models

import "time"

// MetricSample is one polled measurement of a device variable.
type MetricSample struct {
	DeviceID  string            `json:"device_id,omitempty"`
	Variable  string            `json:"variable"`
	Timestamp time.Time         `json:"ts"`
	Value     *float64          `json:"value,omitempty"`
	ValueText string            `json:"value_text,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// HasValue reports whether the sample carries a numeric value.
func (s *MetricSample) HasValue() bool {
	return s != nil && s.Value != nil
}

// Float returns the numeric value, or 0 when none is set.
func (s *MetricSample) Float() float64 {
	if s == nil || s.Value == nil {
		return 0
	}
	return *s.Value
}
