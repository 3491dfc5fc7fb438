package pipeline

import "netpulse/pkg/models"

// ReportWriter writes per-device analysis reports.
type ReportWriter interface {
	WriteReports(reports []*models.AnalysisReport) error
	Close() error
}
