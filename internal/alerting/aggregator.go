package alerting

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"netpulse/pkg/models"
)

// AggregatorConfig bounds the grouping window and group lifetime.
type AggregatorConfig struct {
	TimeWindowSec int
	MaxAgeSec     int
}

// Aggregator coalesces emitted alerts into device+variable+severity
// groups inside a sliding window. Grouping is first-wins per alert id
// and exists purely to collapse notification volume.
type Aggregator struct {
	mu           sync.Mutex
	cfg          AggregatorConfig
	groups       map[string]*models.AlertGroup
	alertToGroup map[string]string
	now          func() time.Time
}

// NewAggregator builds an aggregator with a 300s window and 600s max
// group age by default.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	if cfg.TimeWindowSec <= 0 {
		cfg.TimeWindowSec = 300
	}
	if cfg.MaxAgeSec <= 0 {
		cfg.MaxAgeSec = 600
	}
	return &Aggregator{
		cfg:          cfg,
		groups:       make(map[string]*models.AlertGroup),
		alertToGroup: make(map[string]string),
		now:          time.Now,
	}
}

func groupKey(deviceID, variable, severity string) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s", deviceID, variable, severity)
	return fmt.Sprintf("%016x", h.Sum64())[:12]
}

// Add places an alert into its group, creating or extending one.
// Returns the group, or nil when the alert was already grouped.
func (a *Aggregator) Add(alert *models.Alert) *models.AlertGroup {
	if alert == nil {
		return nil
	}
	alertID := alert.ID
	if alertID == "" {
		alertID = alert.DedupeKey
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.alertToGroup[alertID]; ok {
		return nil
	}

	key := groupKey(alert.DeviceID, alert.Variable, alert.Severity)
	if existing, ok := a.groups[key]; ok {
		if alert.Timestamp.Sub(existing.LastSeen) <= time.Duration(a.cfg.TimeWindowSec)*time.Second {
			existing.AlertIDs = append(existing.AlertIDs, alertID)
			existing.LastSeen = alert.Timestamp
			existing.Count = len(existing.AlertIDs)
			a.alertToGroup[alertID] = key
			return existing
		}
	}

	summary := alert.Message
	if len(summary) > 100 {
		summary = summary[:100]
	}
	group := &models.AlertGroup{
		GroupID:   fmt.Sprintf("GRP-%s-%d", key, a.now().Unix()),
		AlertIDs:  []string{alertID},
		DeviceID:  alert.DeviceID,
		Variable:  alert.Variable,
		Severity:  alert.Severity,
		FirstSeen: alert.Timestamp,
		LastSeen:  alert.Timestamp,
		Count:     1,
		Summary:   summary,
	}
	a.groups[key] = group
	a.alertToGroup[alertID] = key
	return group
}

// Group returns the group an alert was placed in, or nil.
func (a *Aggregator) Group(alertID string) *models.AlertGroup {
	a.mu.Lock()
	defer a.mu.Unlock()
	if key, ok := a.alertToGroup[alertID]; ok {
		return a.groups[key]
	}
	return nil
}

// FlushExpired removes and returns groups idle longer than max_age_sec.
func (a *Aggregator) FlushExpired() []*models.AlertGroup {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	maxAge := time.Duration(a.cfg.MaxAgeSec) * time.Second
	var expired []*models.AlertGroup
	for key, group := range a.groups {
		if now.Sub(group.LastSeen) > maxAge {
			expired = append(expired, group)
			delete(a.groups, key)
			for id, k := range a.alertToGroup {
				if k == key {
					delete(a.alertToGroup, id)
				}
			}
		}
	}
	return expired
}

// ActiveGroups returns current groups, most recently extended first.
func (a *Aggregator) ActiveGroups() []*models.AlertGroup {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*models.AlertGroup, 0, len(a.groups))
	for _, group := range a.groups {
		out = append(out, group)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	return out
}

// AggregationStats is a point-in-time summary for shutdown logging.
type AggregationStats struct {
	TotalGroups   int            `json:"total_groups"`
	TotalAlerts   int            `json:"total_alerts_aggregated"`
	BySeverity    map[string]int `json:"severity_distribution"`
	WindowSeconds int            `json:"aggregation_window_sec"`
}

// Stats summarizes current grouping activity.
func (a *Aggregator) Stats() AggregationStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	stats := AggregationStats{
		BySeverity:    make(map[string]int),
		WindowSeconds: a.cfg.TimeWindowSec,
	}
	for _, group := range a.groups {
		stats.TotalGroups++
		stats.TotalAlerts += group.Count
		stats.BySeverity[group.Severity]++
	}
	return stats
}
