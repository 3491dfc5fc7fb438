package suppress

import (
	"strings"
	"time"

	"netpulse/pkg/models"
)

// Silence is an explicit mute rule. Empty tag/variable/severity filters
// match everything; time bounds are optional.
type Silence struct {
	Tags       []string
	Variables  []string
	Severities []string
	StartTS    string
	EndTS      string
	Reason     string
}

// Window is a maintenance window. Both bounds are required; a window
// missing or failing to parse either bound never matches.
type Window struct {
	Tags    []string
	StartTS string
	EndTS   string
	Reason  string
}

// Decision reports whether a candidate is suppressed and why.
type Decision struct {
	Suppressed bool
	Reason     string
}

// Engine evaluates silences first, then maintenance windows. First
// match wins. Runs before the store ever sees a candidate.
type Engine struct {
	silences []Silence
	windows  []Window
}

// NewEngine builds a suppression engine from configured rules.
func NewEngine(silences []Silence, windows []Window) *Engine {
	return &Engine{silences: silences, windows: windows}
}

var tsLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTS parses a bound. Zoneless layouts read as UTC. An empty or
// unparsable bound reports ok=false and the caller decides whether
// that fails open (silences) or closed (windows).
func parseTS(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range tsLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func tagsMatch(ruleTags, deviceTags []string) bool {
	if len(ruleTags) == 0 {
		return true
	}
	have := make(map[string]bool, len(deviceTags))
	for _, t := range deviceTags {
		have[strings.ToLower(t)] = true
	}
	for _, t := range ruleTags {
		if have[strings.ToLower(t)] {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// Evaluate decides whether the candidate alert is suppressed right now.
func (e *Engine) Evaluate(alert *models.Alert, deviceTags []string, now time.Time) Decision {
	if alert == nil {
		return Decision{}
	}

	for _, s := range e.silences {
		if !tagsMatch(s.Tags, deviceTags) {
			continue
		}
		if len(s.Variables) > 0 && !containsString(s.Variables, alert.Variable) {
			continue
		}
		if len(s.Severities) > 0 && !containsString(s.Severities, alert.Severity) {
			continue
		}
		if start, ok := parseTS(s.StartTS); ok && now.Before(start) {
			continue
		}
		if end, ok := parseTS(s.EndTS); ok && now.After(end) {
			continue
		}
		reason := s.Reason
		if reason == "" {
			reason = "silenced"
		}
		return Decision{Suppressed: true, Reason: reason}
	}

	for _, w := range e.windows {
		if !tagsMatch(w.Tags, deviceTags) {
			continue
		}
		start, okStart := parseTS(w.StartTS)
		end, okEnd := parseTS(w.EndTS)
		if !okStart || !okEnd {
			continue
		}
		if !now.Before(start) && !now.After(end) {
			reason := w.Reason
			if reason == "" {
				reason = "maintenance"
			}
			return Decision{Suppressed: true, Reason: reason}
		}
	}

	return Decision{}
}
