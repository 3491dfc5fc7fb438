package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"netpulse/pkg/models"
)

// MemoryStore is the in-process alert store. A single writer lock
// serializes upserts across workers.
type MemoryStore struct {
	mu     sync.Mutex
	byKey  map[string]*models.Alert
	byID   map[string]*models.Alert
	events map[string][]models.AlertEvent
}

// NewMemoryStore constructs an empty in-memory alert store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byKey:  make(map[string]*models.Alert),
		byID:   make(map[string]*models.Alert),
		events: make(map[string][]models.AlertEvent),
	}
}

// Upsert inserts or updates the live row for the alert's dedupe key.
func (s *MemoryStore) Upsert(alert *models.Alert) (*models.Alert, error) {
	if alert == nil || alert.DedupeKey == "" {
		return nil, fmt.Errorf("upsert alert: missing dedupe_key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byKey[alert.DedupeKey]
	if !ok {
		row := alert.Clone()
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		row.FirstSeen = row.Timestamp
		row.LastSeen = row.Timestamp
		row.Count = 1
		row.AckTS = nil
		row.AckNote = ""
		s.byKey[row.DedupeKey] = row
		s.byID[row.ID] = row
		s.appendEventLocked(row.ID, "created", "system", row.Message)
		return row.Clone(), nil
	}

	existing.Timestamp = alert.Timestamp
	existing.Severity = alert.Severity
	existing.Message = alert.Message
	existing.LastSeen = alert.Timestamp
	existing.Count++
	s.appendEventLocked(existing.ID, "updated", "system", alert.Message)
	return existing.Clone(), nil
}

// GetByKey returns a copy of the live row for a dedupe key, or nil.
func (s *MemoryStore) GetByKey(dedupeKey string) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.byKey[dedupeKey]; ok {
		return row.Clone(), nil
	}
	return nil, nil
}

// List returns up to limit rows, newest first.
func (s *MemoryStore) List(limit int) ([]*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(time.Time{}, limit), nil
}

// ListSince returns up to limit rows at or after since, newest first.
func (s *MemoryStore) ListSince(since time.Time, limit int) ([]*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(since, limit), nil
}

func (s *MemoryStore) listLocked(since time.Time, limit int) []*models.Alert {
	if limit <= 0 {
		limit = 5000
	}
	out := make([]*models.Alert, 0, len(s.byKey))
	for _, row := range s.byKey {
		if !since.IsZero() && row.Timestamp.Before(since) {
			continue
		}
		out = append(out, row.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Ack marks a row acknowledged and records an acked event.
func (s *MemoryStore) Ack(alertID, note, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.byID[alertID]
	if !ok {
		return fmt.Errorf("ack alert %s: not found", alertID)
	}
	now := time.Now().UTC()
	row.AckTS = &now
	row.AckNote = note
	if actor == "" {
		actor = "operator"
	}
	s.appendEventLocked(alertID, "acked", actor, note)
	return nil
}

// InsertEvent records a lifecycle event for an alert.
func (s *MemoryStore) InsertEvent(alertID, action, actor, note string) error {
	if alertID == "" && action != "suppressed" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendEventLocked(alertID, action, actor, note)
	return nil
}

// Events returns the lifecycle events for an alert, oldest first.
func (s *MemoryStore) Events(alertID string) ([]models.AlertEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.events[alertID]
	out := make([]models.AlertEvent, len(events))
	copy(out, events)
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) appendEventLocked(alertID, action, actor, note string) {
	s.events[alertID] = append(s.events[alertID], models.AlertEvent{
		AlertID:   alertID,
		Action:    action,
		Actor:     actor,
		Note:      note,
		Timestamp: time.Now().UTC(),
	})
}
