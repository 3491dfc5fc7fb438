package detect

import (
	"strings"

	"netpulse/pkg/models"
)

var resourceVars = map[string]bool{
	"CPU_USAGE":    true,
	"MEMORY_USAGE": true,
	"DISK_USAGE":   true,
	"LOAD":         true,
}

// Summarize counts findings per severity, collects root causes from the
// critical ones and derives suggestions from which categories co-occur.
// correlatedDevices is the cross-device context when the caller has one.
func Summarize(findings []models.Finding, correlatedDevices []string) models.AnalysisSummary {
	summary := models.AnalysisSummary{}

	hasInterface := false
	hasRouting := false
	hasResource := false

	for _, f := range findings {
		switch f.Severity {
		case "critical":
			summary.Critical++
			if len(summary.RootCauses) < 5 {
				summary.RootCauses = append(summary.RootCauses, f.Message)
			}
		case "warning":
			summary.Warning++
		default:
			summary.Info++
		}

		if strings.Contains(f.Variable, "INTERFACE") {
			hasInterface = true
		}
		if f.Variable == "ROUTING_STATE" || f.AlertType == "routing_instability" {
			hasRouting = true
		}
		if resourceVars[f.Variable] && f.Severity != "info" {
			hasResource = true
		}
	}

	if hasInterface && hasRouting {
		summary.Suggestions = append(summary.Suggestions, "Interface and routing findings co-occur: check upstream link and cabling")
	}
	if hasResource {
		summary.Suggestions = append(summary.Suggestions, "Sustained high resource usage: check processes and capacity headroom")
	}
	if len(correlatedDevices) > 0 {
		summary.Suggestions = append(summary.Suggestions, "Correlated failures across devices: check shared infrastructure (power/uplink/core switch)")
	}
	if len(summary.Suggestions) > 5 {
		summary.Suggestions = summary.Suggestions[:5]
	}

	return summary
}
