package detect

import (
	"fmt"
	"math"
	"strings"
	"time"

	"netpulse/internal/history"
	"netpulse/internal/logger"
	"netpulse/pkg/models"
)

// Threshold is a warn/crit bound pair. A nil bound is never exceeded.
type Threshold struct {
	Warn *float64
	Crit *float64
}

// AnomalyConfig controls z-score detection.
type AnomalyConfig struct {
	WindowPoints int
	ZScoreWarn   float64
	ZScoreCrit   float64
}

// FlapConfig controls state-flap detection.
type FlapConfig struct {
	WindowSec       int
	StateChangeWarn int
	StateChangeCrit int
}

// Config configures the detection engine.
type Config struct {
	Thresholds  map[string]Threshold
	Anomaly     AnomalyConfig
	Flap        FlapConfig
	FastPollSec int
	Weights     map[string]map[string]float64
}

// Engine turns one poll snapshot plus history into findings, predictions
// and a health score.
type Engine struct {
	cfg Config
}

// Status variables whose text value signals hard failure.
var statusVars = map[string]bool{
	"INTERFACE_STATUS": true,
	"ROUTING_STATE":    true,
	"POWER_STATUS":     true,
	"HARDWARE_HEALTH":  true,
}

var failureWords = map[string]bool{
	"down":     true,
	"failed":   true,
	"inactive": true,
	"no":       true,
	"false":    true,
	"error":    true,
	"critical": true,
}

// FailureState reports whether a status variable's text signals failure.
func FailureState(text string) bool {
	return failureWords[strings.ToLower(strings.TrimSpace(text))]
}

// Variables that only ever degrade by rising.
var trendVars = map[string]bool{
	"CPU_USAGE":    true,
	"MEMORY_USAGE": true,
	"DISK_USAGE":   true,
	"LOAD":         true,
	"TEMPERATURE":  true,
}

// NewEngine constructs a detection engine, filling config defaults.
func NewEngine(cfg Config) *Engine {
	if cfg.Anomaly.WindowPoints <= 0 {
		cfg.Anomaly.WindowPoints = 30
	}
	if cfg.Anomaly.ZScoreWarn <= 0 {
		cfg.Anomaly.ZScoreWarn = 2.5
	}
	if cfg.Anomaly.ZScoreCrit <= 0 {
		cfg.Anomaly.ZScoreCrit = 3.5
	}
	if cfg.Flap.WindowSec <= 0 {
		cfg.Flap.WindowSec = 300
	}
	if cfg.Flap.StateChangeWarn <= 0 {
		cfg.Flap.StateChangeWarn = 6
	}
	if cfg.Flap.StateChangeCrit <= 0 {
		cfg.Flap.StateChangeCrit = 12
	}
	if cfg.FastPollSec <= 0 {
		cfg.FastPollSec = 10
	}
	return &Engine{cfg: cfg}
}

// Analyze evaluates every detector over the snapshot and unions their
// findings. A failed collection surfaces as a synthetic offline finding
// instead of skipping the pipeline.
func (e *Engine) Analyze(snap *models.Snapshot, hist history.Accessor, now time.Time) *models.AnalysisReport {
	report := &models.AnalysisReport{
		DeviceID:    snap.DeviceID,
		Timestamp:   now,
		HealthScore: 100,
	}

	if snap.Failed() {
		report.Findings = append(report.Findings, models.Finding{
			Severity:  "critical",
			Variable:  "DEVICE_STATUS",
			AlertType: "offline",
			Message:   "Device unreachable or command collection failed",
		})
		report.Summary = Summarize(report.Findings, nil)
		return report
	}

	health := 100.0
	for i := range snap.Metrics {
		m := &snap.Metrics[i]
		if m.Variable == "" {
			continue
		}
		w := e.weight(snap.OS, m.Variable)

		findings, penalty := e.metricFindings(m, w)
		report.Findings = append(report.Findings, findings...)
		health -= penalty

		if m.HasValue() {
			findings, predictions, penalty := e.seriesFindings(snap.DeviceID, m, hist, w)
			report.Findings = append(report.Findings, findings...)
			report.Predictions = append(report.Predictions, predictions...)
			health -= penalty
		}
	}

	flapFindings, flapPenalty := e.flapFindings(snap.DeviceID, hist)
	report.Findings = append(report.Findings, flapFindings...)
	health -= flapPenalty

	report.Findings = append(report.Findings, scanRoutingInstability(snap.Raw)...)

	if len(report.Predictions) > 10 {
		report.Predictions = report.Predictions[:10]
	}
	if health < 0 {
		health = 0
	}
	if health > 100 {
		health = 100
	}
	report.HealthScore = round2(health)
	report.Summary = Summarize(report.Findings, nil)
	return report
}

// metricFindings runs the stateless per-metric checks: thresholds,
// status-word failures and interface error counters.
func (e *Engine) metricFindings(m *models.MetricSample, w float64) ([]models.Finding, float64) {
	var findings []models.Finding
	penalty := 0.0

	if thr, ok := e.cfg.Thresholds[m.Variable]; ok && m.HasValue() {
		val := m.Float()
		switch {
		case thr.Crit != nil && val >= *thr.Crit:
			findings = append(findings, models.Finding{
				Severity:  "critical",
				Variable:  m.Variable,
				AlertType: "threshold",
				Message:   fmt.Sprintf("%s=%v exceeded crit=%v", m.Variable, val, *thr.Crit),
			})
			penalty += 25 * w
		case thr.Warn != nil && val >= *thr.Warn:
			findings = append(findings, models.Finding{
				Severity:  "warning",
				Variable:  m.Variable,
				AlertType: "threshold",
				Message:   fmt.Sprintf("%s=%v exceeded warn=%v", m.Variable, val, *thr.Warn),
			})
			penalty += 10 * w
		}
	}

	if statusVars[m.Variable] && m.ValueText != "" {
		if FailureState(m.ValueText) {
			findings = append(findings, models.Finding{
				Severity:  "critical",
				Variable:  m.Variable,
				AlertType: "state",
				Message:   fmt.Sprintf("%s indicates failure: %s", m.Variable, m.ValueText),
			})
			penalty += 30 * w
		}
	}

	if m.Variable == "INTERFACE_ERRORS" && m.HasValue() && m.Float() > 0 {
		severity := "warning"
		p := 5.0
		if m.Float() >= 50 {
			severity = "critical"
			p = 15.0
		}
		findings = append(findings, models.Finding{
			Severity:  severity,
			Variable:  m.Variable,
			AlertType: "interface_errors",
			Message:   fmt.Sprintf("Interface errors detected: %v", m.Float()),
		})
		penalty += p * w
	}

	return findings, penalty
}

// seriesFindings runs the history-backed checks for one numeric metric:
// anomaly z-score, rising trend and threshold ETA predictions. The
// newest history sample is the current value and is excluded from the
// anomaly window.
func (e *Engine) seriesFindings(deviceID string, m *models.MetricSample, hist history.Accessor, w float64) ([]models.Finding, []models.Prediction, float64) {
	rows, err := hist.RecentSeries(deviceID, m.Variable, e.cfg.Anomaly.WindowPoints)
	if err != nil {
		logger.Warnf("History read failed (device=%s, variable=%s): %v", deviceID, m.Variable, err)
		return nil, nil, 0
	}

	// Oldest first, numeric values only.
	series := make([]float64, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].HasValue() {
			series = append(series, rows[i].Float())
		}
	}
	if len(series) < max(5, e.cfg.Anomaly.WindowPoints/3) {
		return nil, nil, 0
	}

	var findings []models.Finding
	var predictions []models.Prediction
	penalty := 0.0
	val := m.Float()

	prior := series
	if len(series) > 1 {
		prior = series[:len(series)-1]
	}
	z := zScore(prior, val)
	switch {
	case math.Abs(z) >= e.cfg.Anomaly.ZScoreCrit:
		findings = append(findings, models.Finding{
			Severity:  "critical",
			Variable:  m.Variable,
			AlertType: "anomaly",
			Message:   fmt.Sprintf("%s anomaly z=%.2f value=%v", m.Variable, z, val),
		})
		penalty += 15 * w
	case math.Abs(z) >= e.cfg.Anomaly.ZScoreWarn:
		findings = append(findings, models.Finding{
			Severity:  "warning",
			Variable:  m.Variable,
			AlertType: "anomaly",
			Message:   fmt.Sprintf("%s anomaly z=%.2f value=%v", m.Variable, z, val),
		})
		penalty += 5 * w
	}

	if !trendVars[m.Variable] {
		return findings, nil, penalty
	}

	slope := trendSlope(series)
	if slope > 0.3 {
		severity := "info"
		if slope >= 1.0 {
			severity = "warning"
		}
		findings = append(findings, models.Finding{
			Severity:  severity,
			Variable:  m.Variable,
			AlertType: "trend",
			Message:   fmt.Sprintf("%s rising trend slope=%.2f", m.Variable, slope),
		})
		penalty += 1 * w
	}

	if thr, ok := e.cfg.Thresholds[m.Variable]; ok && slope > 0 {
		if p, ok := e.prediction(m.Variable, "warn", thr.Warn, val, slope); ok {
			predictions = append(predictions, p)
		}
		if p, ok := e.prediction(m.Variable, "crit", thr.Crit, val, slope); ok {
			predictions = append(predictions, p)
		}
	}

	return findings, predictions, penalty
}

func (e *Engine) prediction(variable, target string, threshold *float64, val, slope float64) (models.Prediction, bool) {
	if threshold == nil {
		return models.Prediction{}, false
	}
	eta := (*threshold - val) / slope
	if eta <= 0 || eta >= 5000 {
		return models.Prediction{}, false
	}
	return models.Prediction{
		Variable:  variable,
		Target:    target,
		ETAPoints: round2(eta),
		ETAText:   e.etaText(eta),
	}, true
}

// etaText renders an ETA measured in poll intervals as wall time.
func (e *Engine) etaText(points float64) string {
	seconds := points * float64(e.cfg.FastPollSec)
	if points < 600 {
		return fmt.Sprintf("~%.0f minutes", seconds/60)
	}
	return fmt.Sprintf("~%.1f hours", seconds/3600)
}

func (e *Engine) weight(osName, variable string) float64 {
	if vars, ok := e.cfg.Weights[osName]; ok {
		if w, ok := vars[variable]; ok {
			return w
		}
	}
	return 1.0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
