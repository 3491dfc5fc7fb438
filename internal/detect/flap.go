package detect

import (
	"fmt"
	"strings"

	"netpulse/internal/history"
	"netpulse/internal/logger"
	"netpulse/pkg/models"
)

var flapVars = []string{"INTERFACE_STATUS", "ROUTING_STATE", "POWER_STATUS"}

// flapFindings counts state transitions per status variable over a
// window of flap_window_sec / fast_poll_sec samples (at least 10).
// Flap penalties are not weighted.
func (e *Engine) flapFindings(deviceID string, hist history.Accessor) ([]models.Finding, float64) {
	windowPoints := e.cfg.Flap.WindowSec / e.cfg.FastPollSec
	limit := max(10, windowPoints)

	var findings []models.Finding
	penalty := 0.0

	for _, variable := range flapVars {
		rows, err := hist.RecentSeries(deviceID, variable, limit)
		if err != nil {
			logger.Warnf("History read failed (device=%s, variable=%s): %v", deviceID, variable, err)
			continue
		}

		// Oldest first.
		states := make([]string, 0, len(rows))
		for i := len(rows) - 1; i >= 0; i-- {
			states = append(states, strings.ToLower(rows[i].ValueText))
		}
		if len(states) < 5 {
			continue
		}

		changes := 0
		for i := 1; i < len(states); i++ {
			if states[i] != "" && states[i-1] != "" && states[i] != states[i-1] {
				changes++
			}
		}

		switch {
		case changes >= e.cfg.Flap.StateChangeCrit:
			findings = append(findings, models.Finding{
				Severity:  "critical",
				Variable:  variable,
				AlertType: "flap",
				Message:   fmt.Sprintf("%s flapping detected changes=%d", variable, changes),
			})
			penalty += 20
		case changes >= e.cfg.Flap.StateChangeWarn:
			findings = append(findings, models.Finding{
				Severity:  "warning",
				Variable:  variable,
				AlertType: "flap",
				Message:   fmt.Sprintf("%s flapping detected changes=%d", variable, changes),
			})
			penalty += 10
		}
	}

	return findings, penalty
}
