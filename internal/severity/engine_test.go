package severity

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"netpulse/pkg/models"
)

func TestCalculateNoMatchIsInfo(t *testing.T) {
	engine := NewEngine(nil)

	result := engine.Calculate("threshold", map[string]float64{"device_reachable": 1, "cpu_usage": 40}, "r1", 0)
	if result.Level != "info" || result.Score != 10 {
		t.Fatalf("expected info/10, got %+v", result)
	}
	if len(result.Reasons) != 0 || result.Escalated || result.SLAMinutes != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !reflect.DeepEqual(result.Channels, []string{"primary"}) {
		t.Fatalf("expected default channel, got %+v", result.Channels)
	}
}

func TestCalculateDeviceOffline(t *testing.T) {
	engine := NewEngine(nil)

	result := engine.Calculate("offline", map[string]float64{"device_reachable": 0}, "r1", 0)
	if result.Level != "critical" || result.Score != 90 {
		t.Fatalf("expected critical/90, got %+v", result)
	}
	if !result.Escalated || result.SLAMinutes != 5 {
		t.Fatalf("offline must escalate with a 5 minute SLA, got %+v", result)
	}
	if len(result.Reasons) != 1 || result.Reasons[0] != "Rule 'device_offline' matched: device_reachable == false" {
		t.Fatalf("unexpected reasons: %+v", result.Reasons)
	}
	if !reflect.DeepEqual(result.Channels, []string{"primary", "voice"}) {
		t.Fatalf("unexpected channels: %+v", result.Channels)
	}
}

func TestCalculateHighestMatchWins(t *testing.T) {
	engine := NewEngine(nil)
	metrics := map[string]float64{"cpu_usage": 95, "memory_usage": 96, "device_reachable": 1}

	result := engine.Calculate("threshold", metrics, "r1", 0)
	if result.Level != "critical" || result.Score != 90 {
		t.Fatalf("expected memory_critical to set the base, got %+v", result)
	}
	if len(result.Reasons) != 2 {
		t.Fatalf("expected both rules to contribute reasons, got %+v", result.Reasons)
	}
	if !reflect.DeepEqual(result.Channels, []string{"email", "primary", "voice"}) {
		t.Fatalf("channels must union sorted, got %+v", result.Channels)
	}
	if result.SLAMinutes != 15 {
		t.Fatalf("expected SLA 15, got %+v", result)
	}
}

func TestCriticalityMovesScoreAcrossBands(t *testing.T) {
	engine := NewEngine(nil)
	metrics := map[string]float64{"cpu_usage": 95}

	if result := engine.Calculate("threshold", metrics, "core1", 10); result.Score != 90 || result.Level != "critical" {
		t.Fatalf("criticality 10 must lift high to critical, got %+v", result)
	}
	if result := engine.Calculate("threshold", metrics, "lab1", 1); result.Score != 63 || result.Level != "medium" {
		t.Fatalf("criticality 1 must drop high to medium, got %+v", result)
	}

	// Emergency base at max criticality clamps to 100.
	result := engine.Calculate("state", map[string]float64{"power_ok": 0}, "core1", 10)
	if result.Score != 100 || result.Level != "emergency" {
		t.Fatalf("expected clamp at 100, got %+v", result)
	}
}

func TestCalculateUsesRecordedCriticality(t *testing.T) {
	engine := NewEngine(nil)
	engine.SetDeviceCriticality("core1", 10)

	result := engine.Calculate("threshold", map[string]float64{"cpu_usage": 95}, "core1", 0)
	if result.Score != 90 {
		t.Fatalf("expected recorded criticality 10 to apply, got %+v", result)
	}
}

func TestMalformedConditionNeverMatches(t *testing.T) {
	engine := NewEngine([]Rule{
		{Name: "broken", Condition: "cpu_usage >>> nan", Severity: "critical"},
	})

	result := engine.Calculate("threshold", map[string]float64{"cpu_usage": 99}, "r1", 0)
	if result.Level != "info" || len(result.Reasons) != 0 {
		t.Fatalf("broken rule must never match, got %+v", result)
	}
}

func TestConfiguredRulesReplaceDefaults(t *testing.T) {
	engine := NewEngine([]Rule{
		{Name: "queue_backlog", Condition: "queue_depth >= 100", Severity: "medium", Channels: []string{"email"}},
	})

	if result := engine.Calculate("threshold", map[string]float64{"cpu_usage": 99}, "r1", 0); result.Level != "info" {
		t.Fatalf("default rules must be replaced, got %+v", result)
	}
	result := engine.Calculate("threshold", map[string]float64{"queue_depth": 150}, "r1", 0)
	if result.Level != "medium" || result.Score != 50 {
		t.Fatalf("expected medium/50, got %+v", result)
	}
	if !reflect.DeepEqual(result.Channels, []string{"email"}) {
		t.Fatalf("unexpected channels: %+v", result.Channels)
	}
}

func TestUnknownSeverityTreatedAsInfo(t *testing.T) {
	engine := NewEngine([]Rule{
		{Name: "odd", Condition: "cpu_usage > 1", Severity: "catastrophic"},
	})

	result := engine.Calculate("threshold", map[string]float64{"cpu_usage": 50}, "r1", 0)
	if result.Level != "info" || result.Score != 10 {
		t.Fatalf("unknown severity must score as info, got %+v", result)
	}
	if len(result.Reasons) != 1 {
		t.Fatalf("rule itself must still match, got %+v", result.Reasons)
	}
}

func TestMetricsFromSnapshot(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cpu := 96.0
	snap := &models.Snapshot{
		DeviceID:  "r1",
		Timestamp: now,
		Metrics: []models.MetricSample{
			{Variable: "CPU_USAGE", Timestamp: now, Value: &cpu},
			{Variable: "INTERFACE_STATUS", Timestamp: now, ValueText: "down"},
			{Variable: "INTERFACE_STATUS", Timestamp: now, ValueText: "up"},
			{Variable: "POWER_STATUS", Timestamp: now, ValueText: "ok"},
		},
	}

	metrics := MetricsFromSnapshot(snap)
	if metrics["cpu_usage"] != 96 {
		t.Fatalf("expected lowercased numeric metric, got %+v", metrics)
	}
	if metrics["interface_down"] != 1 {
		t.Fatalf("expected one downed interface, got %+v", metrics)
	}
	if metrics["power_ok"] != 1 || metrics["device_reachable"] != 1 {
		t.Fatalf("unexpected booleans: %+v", metrics)
	}
}

func TestMetricsFromFailedSnapshot(t *testing.T) {
	snap := &models.Snapshot{DeviceID: "r1", Errors: []string{"timeout"}}

	metrics := MetricsFromSnapshot(snap)
	if metrics["device_reachable"] != 0 {
		t.Fatalf("failed snapshot must be unreachable, got %+v", metrics)
	}

	engine := NewEngine(nil)
	result := engine.Calculate("offline", metrics, "r1", 0)
	if result.Level != "critical" {
		t.Fatalf("offline metrics must trip device_offline, got %+v", result)
	}
	for _, reason := range result.Reasons {
		if !strings.Contains(reason, "device_offline") {
			t.Fatalf("unexpected reason %q", reason)
		}
	}
}

func TestStickyPowerFailure(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	snap := &models.Snapshot{
		DeviceID: "r1",
		Metrics: []models.MetricSample{
			{Variable: "POWER_STATUS", Timestamp: now, ValueText: "failed"},
			{Variable: "POWER_STATUS", Timestamp: now, ValueText: "ok"},
		},
	}

	metrics := MetricsFromSnapshot(snap)
	if metrics["power_ok"] != 0 {
		t.Fatalf("one failed supply must keep power_ok false, got %+v", metrics)
	}
}
