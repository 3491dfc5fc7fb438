package suppress

import (
	"sync"

	"netpulse/pkg/models"
)

// PatternRule suppresses alerts whose fields all equal the pattern's
// values. Pattern keys are alert field names (device_id, variable,
// alert_type, severity, dedupe_key, message).
type PatternRule struct {
	Name    string
	Pattern map[string]string
	Reason  string

	hits int
}

// PatternStats is a point-in-time view of one rule's activity.
type PatternStats struct {
	Name    string            `json:"name"`
	Hits    int               `json:"hits"`
	Pattern map[string]string `json:"pattern"`
}

// PatternSuppressor matches alerts against exact-field patterns and
// counts hits per rule.
type PatternSuppressor struct {
	mu    sync.Mutex
	rules []*PatternRule
}

func NewPatternSuppressor() *PatternSuppressor {
	return &PatternSuppressor{}
}

// AddRule registers a pattern rule. An empty pattern is ignored: it
// would suppress everything.
func (s *PatternSuppressor) AddRule(name string, pattern map[string]string, reason string) {
	if len(pattern) == 0 {
		return
	}
	if reason == "" {
		reason = "suppressed by pattern"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, &PatternRule{Name: name, Pattern: pattern, Reason: reason})
}

// ShouldSuppress reports whether any rule matches, with its reason.
func (s *PatternSuppressor) ShouldSuppress(alert *models.Alert) (bool, string) {
	if alert == nil {
		return false, ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rule := range s.rules {
		if matchesPattern(alert, rule.Pattern) {
			rule.hits++
			return true, rule.Reason
		}
	}
	return false, ""
}

func matchesPattern(alert *models.Alert, pattern map[string]string) bool {
	for key, want := range pattern {
		if fieldValue(alert, key) != want {
			return false
		}
	}
	return true
}

// fieldValue resolves a pattern key against an alert. Unknown keys
// resolve to "" and so only match an explicitly empty pattern value.
func fieldValue(alert *models.Alert, key string) string {
	switch key {
	case "device_id":
		return alert.DeviceID
	case "variable":
		return alert.Variable
	case "alert_type":
		return alert.AlertType
	case "severity":
		return alert.Severity
	case "dedupe_key":
		return alert.DedupeKey
	case "message":
		return alert.Message
	}
	return ""
}

// Stats returns per-rule hit counts.
func (s *PatternSuppressor) Stats() []PatternStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PatternStats, 0, len(s.rules))
	for _, rule := range s.rules {
		out = append(out, PatternStats{Name: rule.Name, Hits: rule.hits, Pattern: rule.Pattern})
	}
	return out
}
