package correlate

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"netpulse/internal/logger"
	"netpulse/pkg/models"
)

const (
	noiseCacheSize   = 4096
	noiseCooldownSec = 60
	transientMaxSec  = 60
	depWindowSec     = 300
)

// Config controls the end-of-cycle correlation pass.
type Config struct {
	IncidentWindowSec int
	Dependencies      []models.DeviceDependency
}

// Engine correlates the batch of alerts a poll cycle produced. Not safe
// for concurrent passes; the pipeline runs at most one at a time.
type Engine struct {
	cfg  Config
	seen *lru.Cache[string, time.Time]
}

// NewEngine builds a correlation engine, defaulting the incident window
// to 300s.
func NewEngine(cfg Config) *Engine {
	if cfg.IncidentWindowSec <= 0 {
		cfg.IncidentWindowSec = 300
	}
	cache, _ := lru.New[string, time.Time](noiseCacheSize)
	return &Engine{cfg: cfg, seen: cache}
}

var severityRank = map[string]int{"info": 1, "warning": 2, "critical": 3}

// Correlate runs noise reduction, incident clustering, dependency
// root-cause matching and the correlated-failure check over one
// cycle's alert batch.
func (e *Engine) Correlate(alerts []*models.Alert) []models.Correlation {
	batch := e.reduceNoise(alerts)

	var out []models.Correlation
	out = append(out, e.clusterIncidents(batch)...)
	out = append(out, e.dependencyRootCauses(batch)...)
	if c, ok := correlatedFailure(batch); ok {
		out = append(out, c)
	}
	return out
}

func fingerprint(a *models.Alert) string {
	return a.DeviceID + "|" + a.Variable + "|" + a.AlertType
}

// reduceNoise drops repeats of a fingerprint seen inside the noise
// cooldown (the cache is retained across cycles, so it also collapses
// duplicates inside one batch) and short-lived single-occurrence
// warning threshold alerts.
func (e *Engine) reduceNoise(alerts []*models.Alert) []*models.Alert {
	kept := make([]*models.Alert, 0, len(alerts))
	for _, a := range alerts {
		if a == nil {
			continue
		}
		fp := fingerprint(a)
		if last, ok := e.seen.Get(fp); ok {
			delta := a.Timestamp.Sub(last)
			if delta < 0 {
				delta = -delta
			}
			if delta < noiseCooldownSec*time.Second {
				logger.Debugf("Correlation noise drop (duplicate): %s", fp)
				continue
			}
		}
		if a.Severity == "warning" && a.AlertType == "threshold" && a.Count <= 1 &&
			a.LastSeen.Sub(a.FirstSeen) < transientMaxSec*time.Second {
			logger.Debugf("Correlation noise drop (transient): %s", fp)
			continue
		}
		e.seen.Add(fp, a.Timestamp)
		kept = append(kept, a)
	}
	return kept
}

// clusterIncidents sorts by timestamp and splits whenever the gap to
// the previous alert exceeds the incident window. Clusters of one are
// not incidents.
func (e *Engine) clusterIncidents(alerts []*models.Alert) []models.Correlation {
	if len(alerts) == 0 {
		return nil
	}
	sorted := make([]*models.Alert, len(alerts))
	copy(sorted, alerts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	window := time.Duration(e.cfg.IncidentWindowSec) * time.Second
	var clusters [][]*models.Alert
	cur := []*models.Alert{sorted[0]}
	last := sorted[0].Timestamp
	for _, a := range sorted[1:] {
		if a.Timestamp.Sub(last) <= window {
			cur = append(cur, a)
		} else {
			clusters = append(clusters, cur)
			cur = []*models.Alert{a}
		}
		last = a.Timestamp
	}
	clusters = append(clusters, cur)

	var out []models.Correlation
	for _, cluster := range clusters {
		if len(cluster) < 2 {
			continue
		}
		devices := distinctDevices(cluster, "")
		confidence := 0.5
		if len(devices) > 1 {
			confidence = min(1.0, float64(len(devices))/3.0)
		}

		top := make([]*models.Alert, len(cluster))
		copy(top, cluster)
		sort.SliceStable(top, func(i, j int) bool {
			return severityRank[top[i].Severity] > severityRank[top[j].Severity]
		})
		if len(top) > 5 {
			top = top[:5]
		}

		out = append(out, models.Correlation{
			Type:       models.CorrelationIncident,
			IncidentID: uuid.NewString(),
			StartTS:    cluster[0].Timestamp,
			EndTS:      cluster[len(cluster)-1].Timestamp,
			Devices:    devices,
			TopAlerts:  top,
			Confidence: confidence,
		})
	}
	return out
}

// dependencyRootCauses emits a root-cause record plus an impact chain
// for each configured edge where an upstream critical alert precedes a
// downstream critical alert by at most the dependency window.
func (e *Engine) dependencyRootCauses(alerts []*models.Alert) []models.Correlation {
	if len(e.cfg.Dependencies) == 0 {
		return nil
	}

	critByDevice := make(map[string][]*models.Alert)
	for _, a := range alerts {
		if a.Severity == "critical" && a.DeviceID != "" {
			critByDevice[a.DeviceID] = append(critByDevice[a.DeviceID], a)
		}
	}
	for dev := range critByDevice {
		rows := critByDevice[dev]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Timestamp.Before(rows[j].Timestamp) })
	}

	var out []models.Correlation
	for _, dep := range e.cfg.Dependencies {
		if dep.Upstream == "" || dep.Downstream == "" {
			continue
		}
		root, impact := precedingPair(critByDevice[dep.Upstream], critByDevice[dep.Downstream])
		if root == nil {
			continue
		}
		out = append(out,
			models.Correlation{
				Type:        models.CorrelationDependencyRoot,
				RootDevice:  dep.Upstream,
				Impacted:    dep.Downstream,
				RootAlert:   root,
				ImpactAlert: impact,
				Suggestion:  fmt.Sprintf("Likely upstream impact: %s -> %s", dep.Upstream, dep.Downstream),
			},
			models.Correlation{
				Type:       models.CorrelationImpactChain,
				Chain:      []string{dep.Upstream, dep.Downstream},
				RootDevice: dep.Upstream,
				Impacted:   dep.Downstream,
				Confidence: 0.7,
			},
		)
	}
	return out
}

// precedingPair finds the earliest upstream/downstream pair where the
// upstream alert is no later than the downstream one and within the
// dependency window of it.
func precedingPair(ups, downs []*models.Alert) (*models.Alert, *models.Alert) {
	for _, u := range ups {
		for _, d := range downs {
			delta := d.Timestamp.Sub(u.Timestamp)
			if delta >= 0 && delta <= depWindowSec*time.Second {
				return u, d
			}
		}
	}
	return nil, nil
}

// correlatedFailure fires once when three or more distinct devices
// carry critical alerts in the same batch.
func correlatedFailure(alerts []*models.Alert) (models.Correlation, bool) {
	devices := distinctDevices(alerts, "critical")
	if len(devices) < 3 {
		return models.Correlation{}, false
	}
	return models.Correlation{
		Type:       models.CorrelationCorrelatedFailure,
		Devices:    devices,
		Hypothesis: "shared infrastructure: power/uplink/core switch",
	}, true
}

// distinctDevices returns the sorted device ids in the batch, filtered
// to one severity when given.
func distinctDevices(alerts []*models.Alert, severity string) []string {
	set := make(map[string]bool)
	for _, a := range alerts {
		if a.DeviceID == "" {
			continue
		}
		if severity != "" && a.Severity != severity {
			continue
		}
		set[a.DeviceID] = true
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
