package models

import "time"

// Alert is the persisted, deduplicated alert row. Exactly one live row
// exists per dedupe key; repeats update the row in place.
type Alert struct {
	ID           string     `json:"id,omitempty"`
	DedupeKey    string     `json:"dedupe_key"`
	DeviceID     string     `json:"device_id"`
	Variable     string     `json:"variable"`
	AlertType    string     `json:"alert_type"`
	Severity     string     `json:"severity"`
	Message      string     `json:"message"`
	Timestamp    time.Time  `json:"ts"`
	FirstSeen    time.Time  `json:"first_seen,omitempty"`
	LastSeen     time.Time  `json:"last_seen,omitempty"`
	Count        int        `json:"count,omitempty"`
	AckTS        *time.Time `json:"ack_ts,omitempty"`
	AckNote      string     `json:"ack_note,omitempty"`
	Protocol     string     `json:"protocol,omitempty"`
	Pattern      string     `json:"pattern,omitempty"`
	Samples      int        `json:"samples,omitempty"`
	Score        int        `json:"score,omitempty"`
	SLAMinutes   int        `json:"sla_minutes,omitempty"`
	CooldownSec  int        `json:"cooldown_sec,omitempty"`
	ContactGroup string     `json:"contact_group,omitempty"`
	Channels     []string   `json:"channels,omitempty"`
}

// Clone returns a copy that can be mutated without touching the stored row.
func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}
	out := *a
	if a.AckTS != nil {
		ts := *a.AckTS
		out.AckTS = &ts
	}
	if a.Channels != nil {
		out.Channels = append([]string(nil), a.Channels...)
	}
	return &out
}

// AlertEvent is one lifecycle entry (created, updated, suppressed,
// dispatched, acked) for an alert row.
type AlertEvent struct {
	AlertID   string    `json:"alert_id,omitempty"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor,omitempty"`
	Note      string    `json:"note,omitempty"`
	Timestamp time.Time `json:"ts"`
}
