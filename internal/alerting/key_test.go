package alerting

import (
	"testing"

	"netpulse/pkg/models"
)

func TestBuildDedupeKeyDefaults(t *testing.T) {
	alert := &models.Alert{DeviceID: "r1", Variable: "CPU_USAGE", AlertType: "threshold", Severity: "critical"}

	if key := BuildDedupeKey(alert, nil); key != "r1|CPU_USAGE|threshold" {
		t.Fatalf("unexpected key %q", key)
	}
}

func TestBuildDedupeKeyCustomFields(t *testing.T) {
	alert := &models.Alert{DeviceID: "r1", Variable: "CPU_USAGE", AlertType: "threshold", Severity: "critical"}

	if key := BuildDedupeKey(alert, []string{"device_id", "severity"}); key != "r1|critical" {
		t.Fatalf("unexpected key %q", key)
	}
}

func TestBuildDedupeKeyUnknownFieldKeepsPosition(t *testing.T) {
	alert := &models.Alert{DeviceID: "r1", Variable: "CPU_USAGE"}

	if key := BuildDedupeKey(alert, []string{"device_id", "rack", "variable"}); key != "r1||CPU_USAGE" {
		t.Fatalf("unexpected key %q", key)
	}
}
