package models

import "time"

// Correlation types emitted by the correlation pass.
const (
	CorrelationIncident          = "incident"
	CorrelationDependencyRoot    = "dependency_root_cause"
	CorrelationImpactChain       = "impact_chain"
	CorrelationCorrelatedFailure = "correlated_failure"
)

// Correlation is one cross-device correlation result, tagged by Type.
// Fields are populated per type; unused ones stay empty.
type Correlation struct {
	Type        string    `json:"type"`
	IncidentID  string    `json:"incident_id,omitempty"`
	StartTS     time.Time `json:"start_ts,omitempty"`
	EndTS       time.Time `json:"end_ts,omitempty"`
	Devices     []string  `json:"devices,omitempty"`
	TopAlerts   []*Alert  `json:"top_alerts,omitempty"`
	Confidence  float64   `json:"confidence,omitempty"`
	RootDevice  string    `json:"root_device,omitempty"`
	Impacted    string    `json:"impacted_device,omitempty"`
	RootAlert   *Alert    `json:"root_alert,omitempty"`
	ImpactAlert *Alert    `json:"impact_alert,omitempty"`
	Chain       []string  `json:"chain,omitempty"`
	Suggestion  string    `json:"suggestion,omitempty"`
	Hypothesis  string    `json:"hypothesis,omitempty"`
}
