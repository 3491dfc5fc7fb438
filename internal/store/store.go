package store

import (
	"time"

	"netpulse/pkg/models"
)

// AlertStore is the persistence contract for the alert lifecycle. Upsert
// is the single place an alert row is mutated; implementations serialize
// writes so concurrent workers never both win a create for one key.
type AlertStore interface {
	// Upsert inserts a new row (count=1, created event) or updates the
	// live row for the alert's dedupe key (severity/message/last_seen,
	// count+1, updated event). Returns a copy of the persisted row.
	Upsert(alert *models.Alert) (*models.Alert, error)

	// GetByKey returns a copy of the live row for a dedupe key, or nil
	// when none exists.
	GetByKey(dedupeKey string) (*models.Alert, error)

	List(limit int) ([]*models.Alert, error)
	ListSince(since time.Time, limit int) ([]*models.Alert, error)

	// Ack marks a row acknowledged and records an acked event.
	Ack(alertID, note, actor string) error

	InsertEvent(alertID, action, actor, note string) error
	Events(alertID string) ([]models.AlertEvent, error)

	Close() error
}
