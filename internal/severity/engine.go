package severity

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"netpulse/internal/detect"
	"netpulse/internal/logger"
	"netpulse/pkg/models"
)

// Base score per severity level, before the criticality adjustment.
var baseScores = map[string]int{
	"info":      10,
	"low":       25,
	"medium":    50,
	"high":      75,
	"critical":  90,
	"emergency": 100,
}

// Rule maps a metric condition to a severity contribution.
type Rule struct {
	Name         string
	Condition    string
	Severity     string
	Weight       int
	AutoEscalate bool
	Channels     []string
	SLAMinutes   int

	cond *Condition
}

// Result is one severity determination for an alert candidate.
type Result struct {
	Level      string   `json:"level"`
	Score      int      `json:"score"`
	Reasons    []string `json:"reasons,omitempty"`
	Escalated  bool     `json:"escalated"`
	Channels   []string `json:"channels"`
	SLAMinutes int      `json:"sla_minutes,omitempty"`
}

// Engine scores alert candidates from declarative rules plus per-device
// criticality (1-10, default 5).
type Engine struct {
	mu          sync.RWMutex
	rules       []Rule
	criticality map[string]int
}

// NewEngine builds an engine from configured rules, falling back to the
// default rule set when none are given. Conditions are parsed here,
// once; a malformed condition is logged and never matches.
func NewEngine(rules []Rule) *Engine {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	parsed := make([]Rule, 0, len(rules))
	for _, r := range rules {
		cond, err := ParseCondition(r.Condition)
		if err != nil {
			logger.Errorf("Severity rule %q dropped from matching: %v", r.Name, err)
		}
		r.cond = cond
		if _, ok := baseScores[r.Severity]; !ok {
			logger.Warnf("Severity rule %q has unknown severity %q, treating as info", r.Name, r.Severity)
			r.Severity = "info"
		}
		parsed = append(parsed, r)
	}
	return &Engine{rules: parsed, criticality: make(map[string]int)}
}

// DefaultRules is the built-in rule set, used when the config carries
// no severity rules of its own.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "cpu_critical", Condition: "cpu_usage > 90", Severity: "high", Weight: 30,
			Channels: []string{"primary", "email"}},
		{Name: "memory_critical", Condition: "memory_usage > 95", Severity: "critical", Weight: 40,
			AutoEscalate: true, Channels: []string{"primary", "voice"}, SLAMinutes: 15},
		{Name: "disk_full", Condition: "disk_usage > 98", Severity: "critical", Weight: 50,
			AutoEscalate: true, Channels: []string{"primary", "voice", "email"}, SLAMinutes: 10},
		{Name: "interface_down", Condition: "interface_down > 0", Severity: "high", Weight: 35,
			Channels: []string{"primary"}},
		{Name: "device_offline", Condition: "device_reachable == false", Severity: "critical", Weight: 60,
			AutoEscalate: true, Channels: []string{"primary", "voice"}, SLAMinutes: 5},
		{Name: "hardware_failure", Condition: "power_ok == false or fan_ok == false", Severity: "emergency", Weight: 80,
			AutoEscalate: true, Channels: []string{"primary", "voice", "sms"}, SLAMinutes: 5},
		{Name: "routing_instability", Condition: "bgp_flap_count > 3", Severity: "high", Weight: 40,
			Channels: []string{"primary"}},
		{Name: "temperature_high", Condition: "temperature > 80", Severity: "high", Weight: 35,
			Channels: []string{"primary"}},
	}
}

// SetDeviceCriticality records a device's criticality, clamped to 1-10.
func (e *Engine) SetDeviceCriticality(deviceID string, level int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.criticality[deviceID] = min(10, max(1, level))
}

// Calculate scores one alert candidate. criticality <= 0 falls back to
// the recorded per-device level, then to 5.
func (e *Engine) Calculate(alertType string, metrics map[string]float64, deviceID string, criticality int) Result {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var matched []Rule
	var reasons []string
	for _, r := range e.rules {
		if r.cond.Matches(metrics) {
			matched = append(matched, r)
			reasons = append(reasons, fmt.Sprintf("Rule '%s' matched: %s", r.Name, r.Condition))
		}
	}

	baseScore := baseScores["info"]
	for _, r := range matched {
		if s := baseScores[r.Severity]; s > baseScore {
			baseScore = s
		}
	}

	if criticality <= 0 {
		if c, ok := e.criticality[deviceID]; ok {
			criticality = c
		} else {
			criticality = 5
		}
	}
	score := baseScore + (criticality-5)*3
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	escalated := false
	sla := 0
	channelSet := make(map[string]bool)
	for _, r := range matched {
		if r.AutoEscalate {
			escalated = true
		}
		for _, ch := range r.Channels {
			channelSet[ch] = true
		}
		if r.SLAMinutes > 0 && (sla == 0 || r.SLAMinutes < sla) {
			sla = r.SLAMinutes
		}
	}
	channels := make([]string, 0, len(channelSet))
	for ch := range channelSet {
		channels = append(channels, ch)
	}
	sort.Strings(channels)
	if len(channels) == 0 {
		channels = []string{"primary"}
	}

	return Result{
		Level:      scoreToLevel(score),
		Score:      score,
		Reasons:    reasons,
		Escalated:  escalated,
		Channels:   channels,
		SLAMinutes: sla,
	}
}

func scoreToLevel(score int) string {
	switch {
	case score >= 95:
		return "emergency"
	case score >= 80:
		return "critical"
	case score >= 65:
		return "high"
	case score >= 40:
		return "medium"
	case score >= 20:
		return "low"
	default:
		return "info"
	}
}

// MetricsFromSnapshot flattens a snapshot into the lowercased metric
// map conditions evaluate against. Numeric samples keep their value;
// status text contributes the booleans the default rules read
// (interface_down count, power_ok). device_reachable reflects whether
// collection succeeded.
func MetricsFromSnapshot(snap *models.Snapshot) map[string]float64 {
	metrics := make(map[string]float64)
	if snap == nil {
		return metrics
	}
	if snap.Failed() {
		metrics["device_reachable"] = 0
	} else {
		metrics["device_reachable"] = 1
	}

	for i := range snap.Metrics {
		m := &snap.Metrics[i]
		if m.Variable == "" {
			continue
		}
		if m.HasValue() {
			metrics[strings.ToLower(m.Variable)] = m.Float()
			continue
		}
		if m.ValueText == "" {
			continue
		}
		failed := detect.FailureState(m.ValueText)
		switch m.Variable {
		case "INTERFACE_STATUS":
			if failed {
				metrics["interface_down"]++
			}
		case "POWER_STATUS":
			if failed {
				metrics["power_ok"] = 0
			} else if _, ok := metrics["power_ok"]; !ok {
				metrics["power_ok"] = 1
			}
		}
	}
	return metrics
}
