package alerting

import (
	"fmt"
	"time"

	"netpulse/pkg/models"
)

// GateConfig configures the emission gate and the repeat escalation
// policy.
type GateConfig struct {
	CooldownSec        int
	CooldownBySeverity map[string]int
	CriticalAfterN     map[string]int
}

// Gate decides whether a persisted alert also fires a notification.
// The row update itself never goes through the gate.
type Gate struct {
	cfg GateConfig
}

// NewGate builds a gate, defaulting the global cooldown to 300s.
func NewGate(cfg GateConfig) *Gate {
	if cfg.CooldownSec <= 0 {
		cfg.CooldownSec = 300
	}
	return &Gate{cfg: cfg}
}

// CooldownSec returns the cooldown for a severity, falling back to the
// global default.
func (g *Gate) CooldownSec(severity string) int {
	if cd, ok := g.cfg.CooldownBySeverity[severity]; ok && cd > 0 {
		return cd
	}
	return g.cfg.CooldownSec
}

// ShouldEmit reports whether a notification fires for this candidate.
// prior is the stored row sharing the dedupe key as it stood before
// this cycle's upsert; nil means first occurrence, which always emits.
func (g *Gate) ShouldEmit(alert *models.Alert, prior *models.Alert, now time.Time) bool {
	if prior == nil {
		return true
	}
	cooldown := time.Duration(g.CooldownSec(alert.Severity)) * time.Second
	return now.Sub(prior.LastSeen) >= cooldown
}

// ApplyEscalation applies the critical_after_n policy to the copy that
// upsert returned: once count reaches N, severity forces critical and
// the message gains a repeat prefix. The stored row stays as written.
func (g *Gate) ApplyEscalation(alert *models.Alert) *models.Alert {
	if alert == nil {
		return nil
	}
	n := g.cfg.CriticalAfterN[alert.AlertType]
	if n <= 0 {
		n = g.cfg.CriticalAfterN["default"]
	}
	if n > 0 && alert.Count >= n {
		alert.Severity = "critical"
		alert.Message = fmt.Sprintf("(Escalated after %d repeats) %s", n, alert.Message)
	}
	return alert
}
