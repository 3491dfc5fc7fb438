package pipeline

import "netpulse/pkg/models"

// CorrelationWriter writes correlation records.
type CorrelationWriter interface {
	WriteCorrelations(records []models.Correlation) error
	Close() error
}
