package snapshot

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"netpulse/internal/logger"
	"netpulse/pkg/models"
)

// Parse converts a collector snapshot document into a normalized Snapshot.
func Parse(data []byte) (*models.Snapshot, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	snap := &models.Snapshot{
		Raw:    make(map[string]string),
		RawDoc: raw,
	}

	snap.DeviceID = getString(raw, "device_id", "device", "host")
	snap.OS = getString(raw, "os", "platform")
	if ts, ok := parseTimestamp(raw["ts"]); ok {
		snap.Timestamp = ts
	} else if ts, ok := parseTimestamp(raw["timestamp"]); ok {
		snap.Timestamp = ts
	} else {
		snap.Timestamp = time.Now().UTC()
	}

	if v, ok := getPath(raw, "metrics"); ok {
		if list, ok := v.([]interface{}); ok {
			for _, item := range list {
				m, ok := item.(map[string]interface{})
				if !ok {
					continue
				}
				sample := parseSample(m, snap)
				if sample.Variable == "" {
					continue
				}
				snap.Metrics = append(snap.Metrics, sample)
			}
		}
	}

	for _, path := range []string{"raw.outputs", "raw", "outputs"} {
		v, ok := getPath(raw, path)
		if !ok {
			continue
		}
		m, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		for k, out := range m {
			if s, ok := out.(string); ok {
				snap.Raw[k] = s
			}
		}
		break
	}

	if v, ok := getPath(raw, "errors"); ok {
		if list, ok := v.([]interface{}); ok {
			for _, item := range list {
				if s, ok := item.(string); ok && s != "" {
					snap.Errors = append(snap.Errors, s)
				}
			}
		}
	}

	if snap.DeviceID == "" {
		logger.Warnf("Snapshot missing device_id (metrics=%d)", len(snap.Metrics))
	}
	return snap, nil
}

func parseSample(m map[string]interface{}, snap *models.Snapshot) models.MetricSample {
	sample := models.MetricSample{
		DeviceID: snap.DeviceID,
		Variable: getString(m, "variable", "name"),
	}

	if ts, ok := parseTimestamp(m["ts"]); ok {
		sample.Timestamp = ts
	} else if ts, ok := parseTimestamp(m["timestamp"]); ok {
		sample.Timestamp = ts
	} else {
		sample.Timestamp = snap.Timestamp
	}

	switch v := m["value"].(type) {
	case float64:
		f := v
		sample.Value = &f
	case int:
		f := float64(v)
		sample.Value = &f
	case int64:
		f := float64(v)
		sample.Value = &f
	case bool:
		f := 0.0
		if v {
			f = 1.0
		}
		sample.Value = &f
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			sample.Value = &f
		} else {
			sample.ValueText = v
		}
	}

	if text := getString(m, "value_text", "text"); text != "" {
		sample.ValueText = text
	}

	if v, ok := m["labels"].(map[string]interface{}); ok {
		sample.Labels = make(map[string]string, len(v))
		for k, lv := range v {
			if s, ok := lv.(string); ok {
				sample.Labels[k] = s
			}
		}
	}

	return sample
}

func parseTimestamp(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case float64:
		if val <= 0 {
			return time.Time{}, false
		}
		sec := int64(val)
		nsec := int64((val - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC(), true
	case int64:
		if val <= 0 {
			return time.Time{}, false
		}
		return time.Unix(val, 0).UTC(), true
	case string:
		return parseTimeString(val)
	}
	return time.Time{}, false
}

func parseTimeString(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}

	for _, layout := range []string{
		"2006-01-02 15:04:05.000000",
		"2006-01-02 15:04:05.000",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), true
		}
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 {
		sec := int64(f)
		nsec := int64((f - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC(), true
	}

	return time.Time{}, false
}

func getString(root map[string]interface{}, paths ...string) string {
	for _, path := range paths {
		if v, ok := getPath(root, path); ok {
			switch val := v.(type) {
			case string:
				return val
			case fmt.Stringer:
				return val.String()
			case int:
				return fmt.Sprintf("%d", val)
			case int64:
				return fmt.Sprintf("%d", val)
			case float64:
				if val == float64(int64(val)) {
					return fmt.Sprintf("%d", int64(val))
				}
				return fmt.Sprintf("%f", val)
			}
		}
	}
	return ""
}

func getPath(root map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = root
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		current = v
	}
	return current, true
}
