package history

import (
	"sync"

	"netpulse/pkg/models"
)

// MemoryConfig configures the in-memory history store.
type MemoryConfig struct {
	MaxPoints int
}

// MemoryStore keeps a bounded per-series ring of samples in memory.
type MemoryStore struct {
	mu     sync.RWMutex
	max    int
	series map[string][]models.MetricSample
	states map[string]models.DeviceState
}

// NewMemoryStore constructs an in-memory history store.
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	if cfg.MaxPoints <= 0 {
		cfg.MaxPoints = 500
	}
	return &MemoryStore{
		max:    cfg.MaxPoints,
		series: make(map[string][]models.MetricSample),
		states: make(map[string]models.DeviceState),
	}
}

// Append records samples, trimming each series to the configured cap.
func (s *MemoryStore) Append(samples []models.MetricSample) error {
	if len(samples) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sample := range samples {
		if sample.DeviceID == "" || sample.Variable == "" {
			continue
		}
		key := seriesMember(sample.DeviceID, sample.Variable)
		series := append(s.series[key], sample)
		if len(series) > s.max {
			series = series[len(series)-s.max:]
		}
		s.series[key] = series
	}
	return nil
}

// RecentSeries returns up to limit samples for a series, newest first.
func (s *MemoryStore) RecentSeries(deviceID, variable string, limit int) ([]models.MetricSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series := s.series[seriesMember(deviceID, variable)]
	if len(series) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(series) {
		limit = len(series)
	}
	out := make([]models.MetricSample, 0, limit)
	for i := len(series) - 1; i >= len(series)-limit; i-- {
		out = append(out, series[i])
	}
	return out, nil
}

// SetDeviceState records the latest per-device state.
func (s *MemoryStore) SetDeviceState(state models.DeviceState) error {
	if state.DeviceID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.DeviceID] = state
	return nil
}

// DeviceStates returns the latest known state of every device.
func (s *MemoryStore) DeviceStates() ([]models.DeviceState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DeviceState, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st)
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
