package logscan

import "netpulse/pkg/models"

// Engine scans raw command output for known log patterns.
type Engine interface {
	Scan(snap *models.Snapshot) []models.Finding
}

// NoopEngine returns no findings.
type NoopEngine struct{}

// Scan returns an empty finding list.
func (n *NoopEngine) Scan(snap *models.Snapshot) []models.Finding {
	return nil
}
