package history

import (
	"fmt"
	"testing"
	"time"

	"netpulse/pkg/models"
)

func sampleAt(device, variable string, ts time.Time, value float64) models.MetricSample {
	v := value
	return models.MetricSample{DeviceID: device, Variable: variable, Timestamp: ts, Value: &v}
}

func TestMemoryStoreRecentSeriesNewestFirst(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{MaxPoints: 10})
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		err := store.Append([]models.MetricSample{
			sampleAt("edge1", "CPU_USAGE", base.Add(time.Duration(i)*time.Minute), float64(10+i)),
		})
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	series, err := store.RecentSeries("edge1", "CPU_USAGE", 3)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(series) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(series))
	}
	if series[0].Float() != 14 || series[1].Float() != 13 || series[2].Float() != 12 {
		t.Fatalf("expected newest-first order, got %v %v %v", series[0].Float(), series[1].Float(), series[2].Float())
	}
}

func TestMemoryStoreTrimsToMaxPoints(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{MaxPoints: 3})
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var samples []models.MetricSample
	for i := 0; i < 6; i++ {
		samples = append(samples, sampleAt("edge1", "CPU_USAGE", base.Add(time.Duration(i)*time.Minute), float64(i)))
	}
	if err := store.Append(samples); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	series, err := store.RecentSeries("edge1", "CPU_USAGE", 0)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(series) != 3 {
		t.Fatalf("expected trim to 3 samples, got %d", len(series))
	}
	if series[0].Float() != 5 || series[2].Float() != 3 {
		t.Fatalf("expected oldest samples dropped, got %v..%v", series[0].Float(), series[2].Float())
	}
}

func TestMemoryStoreSeriesIsolation(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{})
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := store.Append([]models.MetricSample{
		sampleAt("edge1", "CPU_USAGE", ts, 50),
		sampleAt("edge1", "MEMORY_USAGE", ts, 60),
		sampleAt("core1", "CPU_USAGE", ts, 70),
	}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	series, err := store.RecentSeries("edge1", "CPU_USAGE", 10)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(series) != 1 || series[0].Float() != 50 {
		t.Fatalf("expected isolated edge1 cpu series, got %+v", series)
	}

	empty, err := store.RecentSeries("edge2", "CPU_USAGE", 10)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty series for unknown device, got %d", len(empty))
	}
}

func TestMemoryStoreDeviceStates(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{})
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		err := store.SetDeviceState(models.DeviceState{
			DeviceID:    fmt.Sprintf("edge%d", i+1),
			HealthScore: float64(90 - i*10),
			Reachable:   true,
			LastSeen:    ts,
		})
		if err != nil {
			t.Fatalf("set state failed: %v", err)
		}
	}
	// Second write for the same device replaces the first.
	if err := store.SetDeviceState(models.DeviceState{DeviceID: "edge1", HealthScore: 40, Reachable: false, LastSeen: ts.Add(time.Minute)}); err != nil {
		t.Fatalf("set state failed: %v", err)
	}

	states, err := store.DeviceStates()
	if err != nil {
		t.Fatalf("read states failed: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("expected 2 device states, got %d", len(states))
	}
	byID := make(map[string]models.DeviceState, len(states))
	for _, st := range states {
		byID[st.DeviceID] = st
	}
	if byID["edge1"].HealthScore != 40 || byID["edge1"].Reachable {
		t.Fatalf("expected edge1 state replaced, got %+v", byID["edge1"])
	}
}
