package models

import "time"

// Finding is one detector result for a single poll cycle.
type Finding struct {
	Severity  string `json:"severity"`
	Variable  string `json:"variable"`
	AlertType string `json:"alert_type"`
	Message   string `json:"message"`
	Protocol  string `json:"protocol,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	Samples   int    `json:"samples,omitempty"`
}

// Prediction projects a trending variable onto a configured threshold.
type Prediction struct {
	Variable  string  `json:"variable"`
	Target    string  `json:"target"`
	ETAPoints float64 `json:"eta_points"`
	ETAText   string  `json:"eta_text,omitempty"`
}

// AnalysisSummary aggregates one device's findings for reporting.
type AnalysisSummary struct {
	Critical    int      `json:"critical"`
	Warning     int      `json:"warning"`
	Info        int      `json:"info"`
	RootCauses  []string `json:"root_causes,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// AnalysisReport is the full detection output for one device poll.
type AnalysisReport struct {
	DeviceID    string          `json:"device_id"`
	Timestamp   time.Time       `json:"ts"`
	HealthScore float64         `json:"health_score"`
	Findings    []Finding       `json:"findings"`
	Predictions []Prediction    `json:"predictions,omitempty"`
	Summary     AnalysisSummary `json:"summary"`
}
