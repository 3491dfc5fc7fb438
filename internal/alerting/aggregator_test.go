package alerting

import (
	"strings"
	"testing"
	"time"

	"netpulse/pkg/models"
)

func emitted(id string, ts time.Time) *models.Alert {
	return &models.Alert{
		ID:        id,
		DeviceID:  "r1",
		Variable:  "CPU_USAGE",
		AlertType: "threshold",
		Severity:  "critical",
		Message:   "CPU_USAGE=96 exceeded crit=90",
		Timestamp: ts,
	}
}

func TestAggregatorGroupsWithinWindow(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{TimeWindowSec: 300})
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first := agg.Add(emitted("a1", base))
	if first == nil || first.Count != 1 {
		t.Fatalf("expected new group, got %+v", first)
	}
	if !strings.HasPrefix(first.GroupID, "GRP-") {
		t.Fatalf("unexpected group id %q", first.GroupID)
	}

	second := agg.Add(emitted("a2", base.Add(60*time.Second)))
	if second == nil || second.GroupID != first.GroupID {
		t.Fatalf("expected the same group, got %+v", second)
	}
	if second.Count != 2 || len(second.AlertIDs) != 2 {
		t.Fatalf("unexpected group state: %+v", second)
	}
	if !second.LastSeen.Equal(base.Add(60 * time.Second)) {
		t.Fatalf("last_seen must extend, got %+v", second.LastSeen)
	}
	if !second.FirstSeen.Equal(base) {
		t.Fatalf("first_seen must not move, got %+v", second.FirstSeen)
	}
}

func TestAggregatorFirstGroupingWins(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	agg.Add(emitted("a1", base))
	if again := agg.Add(emitted("a1", base.Add(time.Second))); again != nil {
		t.Fatalf("regrouping the same alert id must be a no-op, got %+v", again)
	}
	if group := agg.Group("a1"); group == nil || group.Count != 1 {
		t.Fatalf("unexpected group: %+v", group)
	}
}

func TestAggregatorStartsFreshGroupOutsideWindow(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{TimeWindowSec: 300})
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first := agg.Add(emitted("a1", base))
	late := agg.Add(emitted("a2", base.Add(400*time.Second)))
	if late == nil || late.GroupID == first.GroupID {
		t.Fatalf("an alert outside the window must start a fresh group, got %+v", late)
	}
	if late.Count != 1 {
		t.Fatalf("fresh group must start at count 1, got %+v", late)
	}
}

func TestAggregatorSeveritySplitsGroups(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	critical := agg.Add(emitted("a1", base))
	warning := emitted("a2", base)
	warning.Severity = "warning"
	other := agg.Add(warning)
	if other.GroupID == critical.GroupID {
		t.Fatalf("severities must not share a group")
	}
}

func TestAggregatorFlushExpired(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{TimeWindowSec: 300, MaxAgeSec: 600})
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	agg.now = func() time.Time { return base }

	agg.Add(emitted("a1", base.Add(-15*time.Minute)))
	fresh := emitted("a2", base)
	fresh.Variable = "MEMORY_USAGE"
	agg.Add(fresh)

	expired := agg.FlushExpired()
	if len(expired) != 1 || expired[0].AlertIDs[0] != "a1" {
		t.Fatalf("expected the idle group flushed, got %+v", expired)
	}
	if agg.Group("a1") != nil {
		t.Fatalf("flushed alert mapping must be gone")
	}
	if agg.Group("a2") == nil {
		t.Fatalf("fresh group must survive the flush")
	}

	stats := agg.Stats()
	if stats.TotalGroups != 1 || stats.TotalAlerts != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestAggregatorTruncatesSummary(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	long := emitted("a1", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	long.Message = strings.Repeat("x", 300)

	group := agg.Add(long)
	if len(group.Summary) != 100 {
		t.Fatalf("summary must truncate at 100, got %d", len(group.Summary))
	}
}
