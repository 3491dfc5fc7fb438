package store

import (
	"testing"
	"time"

	"netpulse/pkg/models"
)

func candidate(ts time.Time, severity, message string) *models.Alert {
	return &models.Alert{
		DedupeKey: "edge1|CPU_USAGE|threshold",
		DeviceID:  "edge1",
		Variable:  "CPU_USAGE",
		AlertType: "threshold",
		Severity:  severity,
		Message:   message,
		Timestamp: ts,
	}
}

func TestUpsertCreatesSingleRowPerDedupeKey(t *testing.T) {
	s := NewMemoryStore()
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first, err := s.Upsert(candidate(t0, "warning", "CPU_USAGE=85 exceeded warn=80"))
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if first.ID == "" {
		t.Fatalf("expected generated id")
	}
	if first.Count != 1 {
		t.Fatalf("expected count 1, got %d", first.Count)
	}
	if !first.FirstSeen.Equal(t0) || !first.LastSeen.Equal(t0) {
		t.Fatalf("expected first/last seen %v, got %v/%v", t0, first.FirstSeen, first.LastSeen)
	}

	second, err := s.Upsert(candidate(t0.Add(time.Minute), "critical", "CPU_USAGE=96 exceeded crit=90"))
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same row id, got %s vs %s", second.ID, first.ID)
	}
	if second.Count != 2 {
		t.Fatalf("expected count 2, got %d", second.Count)
	}
	if second.Severity != "critical" || second.Message != "CPU_USAGE=96 exceeded crit=90" {
		t.Fatalf("expected severity/message refresh, got %+v", second)
	}
	if !second.FirstSeen.Equal(t0) {
		t.Fatalf("first_seen must not move, got %v", second.FirstSeen)
	}
	if !second.LastSeen.Equal(t0.Add(time.Minute)) {
		t.Fatalf("last_seen must advance, got %v", second.LastSeen)
	}

	rows, err := s.List(10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one live row, got %d", len(rows))
	}
}

func TestUpsertCountMatchesRepeatsRegardlessOfEmission(t *testing.T) {
	s := NewMemoryStore()
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var last *models.Alert
	for i := 0; i < 5; i++ {
		row, err := s.Upsert(candidate(t0.Add(time.Duration(i)*time.Second), "warning", "repeat"))
		if err != nil {
			t.Fatalf("upsert %d failed: %v", i, err)
		}
		last = row
	}
	if last.Count != 5 {
		t.Fatalf("expected count 5 after 5 repeats, got %d", last.Count)
	}
}

func TestUpsertRecordsLifecycleEvents(t *testing.T) {
	s := NewMemoryStore()
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	row, err := s.Upsert(candidate(t0, "warning", "first"))
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if _, err := s.Upsert(candidate(t0.Add(time.Second), "warning", "second")); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	events, err := s.Events(row.ID)
	if err != nil {
		t.Fatalf("events failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Action != "created" || events[0].Actor != "system" {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].Action != "updated" || events[1].Note != "second" {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
}

func TestGetByKeyReturnsNilWhenAbsentAndCopyWhenPresent(t *testing.T) {
	s := NewMemoryStore()
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	row, err := s.GetByKey("edge1|CPU_USAGE|threshold")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if row != nil {
		t.Fatalf("expected nil for unknown key, got %+v", row)
	}

	if _, err := s.Upsert(candidate(t0, "warning", "first")); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	row, err = s.GetByKey("edge1|CPU_USAGE|threshold")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if row == nil || row.Count != 1 {
		t.Fatalf("expected live row, got %+v", row)
	}

	// Mutating the copy must not touch the stored row.
	row.Severity = "critical"
	again, err := s.GetByKey("edge1|CPU_USAGE|threshold")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if again.Severity != "warning" {
		t.Fatalf("stored row mutated through copy: %+v", again)
	}
}

func TestAckSetsTimestampAndEvent(t *testing.T) {
	s := NewMemoryStore()
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	row, err := s.Upsert(candidate(t0, "critical", "down"))
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := s.Ack(row.ID, "looking into it", ""); err != nil {
		t.Fatalf("ack failed: %v", err)
	}

	got, err := s.GetByKey(row.DedupeKey)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.AckTS == nil || got.AckNote != "looking into it" {
		t.Fatalf("expected ack recorded, got %+v", got)
	}

	events, err := s.Events(row.ID)
	if err != nil {
		t.Fatalf("events failed: %v", err)
	}
	lastEvent := events[len(events)-1]
	if lastEvent.Action != "acked" || lastEvent.Actor != "operator" {
		t.Fatalf("expected acked event with operator actor, got %+v", lastEvent)
	}

	if err := s.Ack("missing-id", "", ""); err == nil {
		t.Fatalf("expected error for unknown alert id")
	}
}

func TestListSinceFiltersAndOrders(t *testing.T) {
	s := NewMemoryStore()
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	old := &models.Alert{DedupeKey: "a|X|threshold", DeviceID: "a", Variable: "X", AlertType: "threshold", Severity: "warning", Message: "old", Timestamp: t0}
	fresh := &models.Alert{DedupeKey: "b|Y|threshold", DeviceID: "b", Variable: "Y", AlertType: "threshold", Severity: "warning", Message: "fresh", Timestamp: t0.Add(10 * time.Minute)}
	if _, err := s.Upsert(old); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if _, err := s.Upsert(fresh); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	rows, err := s.ListSince(t0.Add(5*time.Minute), 0)
	if err != nil {
		t.Fatalf("list since failed: %v", err)
	}
	if len(rows) != 1 || rows[0].DeviceID != "b" {
		t.Fatalf("expected only the fresh row, got %+v", rows)
	}

	all, err := s.List(0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 2 || all[0].DeviceID != "b" {
		t.Fatalf("expected newest first, got %+v", all)
	}
}
