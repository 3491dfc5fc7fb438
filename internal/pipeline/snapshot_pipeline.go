package pipeline

import (
	"context"
	"sync"
	"time"

	"netpulse/internal/alerting"
	"netpulse/internal/correlate"
	"netpulse/internal/detect"
	"netpulse/internal/history"
	"netpulse/internal/logger"
	"netpulse/internal/logscan"
	"netpulse/internal/metrics"
	"netpulse/internal/severity"
	"netpulse/internal/store"
	"netpulse/internal/suppress"
	"netpulse/internal/transform/snapshot"
	"netpulse/pkg/models"
)

// Consumer yields raw snapshot payloads.
type Consumer interface {
	Pop(ctx context.Context) ([]byte, error)
	Close() error
}

// Deps wires the pipeline stages together.
type Deps struct {
	Consumer     Consumer
	Detector     *detect.Engine
	LogScanner   logscan.Engine
	Severity     *severity.Engine
	Suppressor   *suppress.Engine
	Patterns     *suppress.PatternSuppressor
	Gate         *alerting.Gate
	Aggregator   *alerting.Aggregator
	Router       *alerting.Router
	Correlator   *correlate.Engine
	History      history.Store
	Alerts       store.AlertStore
	AlertWriter  AlertWriter
	CorrWriter   CorrelationWriter
	ReportWriter ReportWriter
	Metrics      *metrics.Metrics

	DeviceTags    map[string][]string
	DedupeFields  []string
	Workers       int
	BatchSize     int
	FlushInterval time.Duration
}

// SnapshotPipeline consumes device snapshots and drives them through
// detection, severity scoring, suppression, the alert store and
// dispatch. Workers analyze devices in parallel; the write loop owns
// the aggregator and correlator.
type SnapshotPipeline struct {
	consumer     Consumer
	detector     *detect.Engine
	scanner      logscan.Engine
	severity     *severity.Engine
	suppressor   *suppress.Engine
	patterns     *suppress.PatternSuppressor
	gate         *alerting.Gate
	aggregator   *alerting.Aggregator
	router       *alerting.Router
	correlator   *correlate.Engine
	history      history.Store
	alerts       store.AlertStore
	alertWriter  AlertWriter
	corrWriter   CorrelationWriter
	reportWriter ReportWriter
	metrics      *metrics.Metrics

	deviceTags    map[string][]string
	dedupeFields  []string
	workers       int
	batchSize     int
	flushInterval time.Duration
}

type snapshotWork struct {
	emitted  []*models.Alert
	routes   []alerting.Route
	upserted []*models.Alert
	report   *models.AnalysisReport
}

// NewSnapshotPipeline creates the pipeline from its wired stages.
func NewSnapshotPipeline(deps Deps) *SnapshotPipeline {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if len(deps.DedupeFields) == 0 {
		deps.DedupeFields = alerting.DefaultDedupeFields
	}
	return &SnapshotPipeline{
		consumer:      deps.Consumer,
		detector:      deps.Detector,
		scanner:       deps.LogScanner,
		severity:      deps.Severity,
		suppressor:    deps.Suppressor,
		patterns:      deps.Patterns,
		gate:          deps.Gate,
		aggregator:    deps.Aggregator,
		router:        deps.Router,
		correlator:    deps.Correlator,
		history:       deps.History,
		alerts:        deps.Alerts,
		alertWriter:   deps.AlertWriter,
		corrWriter:    deps.CorrWriter,
		reportWriter:  deps.ReportWriter,
		metrics:       deps.Metrics,
		deviceTags:    deps.DeviceTags,
		dedupeFields:  deps.DedupeFields,
		workers:       deps.Workers,
		batchSize:     deps.BatchSize,
		flushInterval: deps.FlushInterval,
	}
}

// Run starts the pipeline loop.
func (p *SnapshotPipeline) Run(ctx context.Context) error {
	logger.Infof("Snapshot pipeline started")

	if p.workers <= 0 {
		p.workers = 8
	}
	// at most one worker per configured device
	if n := len(p.deviceTags); n > 0 {
		p.workers = min(p.workers, n)
	}
	if p.batchSize <= 0 {
		p.batchSize = 1000
	}
	if p.flushInterval <= 0 {
		p.flushInterval = 2 * time.Second
	}

	msgCh := make(chan []byte, p.workers*4)
	workCh := make(chan snapshotWork, p.workers*4)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.readLoop(ctx, msgCh)
		close(msgCh)
	}()

	var workers sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			p.workerLoop(msgCh, workCh)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		workers.Wait()
		close(workCh)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.writeLoop(ctx, workCh)
	}()

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// Close releases pipeline resources.
func (p *SnapshotPipeline) Close() error {
	for _, c := range []interface{ Close() error }{p.alertWriter, p.corrWriter, p.reportWriter} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			logger.Errorf("Failed to close writer: %v", err)
		}
	}
	if p.consumer != nil {
		return p.consumer.Close()
	}
	return nil
}

func (p *SnapshotPipeline) readLoop(ctx context.Context, out chan<- []byte) {
	for {
		payload, err := p.consumer.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("Failed to pop snapshot: %v", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if payload == nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		select {
		case out <- payload:
		case <-ctx.Done():
			return
		}
	}
}

func (p *SnapshotPipeline) workerLoop(in <-chan []byte, out chan<- snapshotWork) {
	for payload := range in {
		p.metrics.SnapshotsTotal.Inc()

		snap, err := snapshot.Parse(payload)
		if err != nil {
			p.metrics.ParseFailures.Inc()
			logger.Warnf("Failed to parse snapshot: %v", err)
			continue
		}
		if snap.DeviceID == "" {
			p.metrics.ParseFailures.Inc()
			continue
		}

		out <- p.process(snap, time.Now().UTC())
	}
}

// process runs one snapshot through detection and the alert lifecycle.
// Samples are recorded before detection so series detectors see the
// current point.
func (p *SnapshotPipeline) process(snap *models.Snapshot, now time.Time) snapshotWork {
	if len(snap.Metrics) > 0 {
		if err := p.history.Append(snap.Metrics); err != nil {
			logger.Warnf("Failed to append history for %s: %v", snap.DeviceID, err)
		}
	}

	report := p.detector.Analyze(snap, p.history, now)
	if p.scanner != nil {
		if extra := p.scanner.Scan(snap); len(extra) > 0 {
			report.Findings = append(report.Findings, extra...)
			report.Summary = detect.Summarize(report.Findings, nil)
		}
	}

	reachable := !snap.Failed()
	state := models.DeviceState{
		DeviceID:    snap.DeviceID,
		HealthScore: report.HealthScore,
		Reachable:   reachable,
		LastSeen:    snap.Timestamp,
	}
	if err := p.history.SetDeviceState(state); err != nil {
		logger.Warnf("Failed to record device state for %s: %v", snap.DeviceID, err)
	}
	p.metrics.ObserveDevice(snap.DeviceID, report.HealthScore, reachable)

	sevMetrics := severity.MetricsFromSnapshot(snap)
	tags := p.deviceTags[snap.DeviceID]

	work := snapshotWork{report: report}
	for i := range report.Findings {
		f := &report.Findings[i]
		p.metrics.FindingsTotal.WithLabelValues(f.AlertType).Inc()

		alert := alertFromFinding(snap, f)
		res := p.severity.Calculate(f.AlertType, sevMetrics, snap.DeviceID, 0)
		alert.Score = res.Score
		alert.Channels = res.Channels
		alert.SLAMinutes = res.SLAMinutes
		alert.CooldownSec = p.gate.CooldownSec(alert.Severity)
		alert.DedupeKey = alerting.BuildDedupeKey(alert, p.dedupeFields)

		if dec := p.suppressor.Evaluate(alert, tags, now); dec.Suppressed {
			p.recordSuppressed(dec.Reason)
			continue
		}
		if p.patterns != nil {
			if hit, reason := p.patterns.ShouldSuppress(alert); hit {
				p.recordSuppressed(reason)
				continue
			}
		}

		prior, err := p.alerts.GetByKey(alert.DedupeKey)
		if err != nil {
			logger.Warnf("Failed to read prior alert %s: %v", alert.DedupeKey, err)
			prior = nil
		}
		emit := p.gate.ShouldEmit(alert, prior, now)

		stored, err := p.alerts.Upsert(alert)
		if err != nil {
			logger.Errorf("Failed to upsert alert %s: %v", alert.DedupeKey, err)
			continue
		}
		work.upserted = append(work.upserted, stored)

		if !emit {
			p.metrics.AlertsDeduped.Inc()
			continue
		}

		out := p.gate.ApplyEscalation(stored)
		out.Score = res.Score
		out.Channels = res.Channels
		out.SLAMinutes = res.SLAMinutes

		route := p.router.Route(out, tags)
		out.ContactGroup = route.ContactGroup

		work.emitted = append(work.emitted, out)
		work.routes = append(work.routes, route)
		p.metrics.AlertsEmitted.WithLabelValues(out.Severity).Inc()
	}
	return work
}

func (p *SnapshotPipeline) recordSuppressed(reason string) {
	p.metrics.AlertsSuppressed.Inc()
	if err := p.alerts.InsertEvent("", "suppressed", "system", reason); err != nil {
		logger.Warnf("Failed to record suppressed event: %v", err)
	}
}

func (p *SnapshotPipeline) writeLoop(ctx context.Context, in <-chan snapshotWork) {
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	var batchEmitted []*models.Alert
	var batchRoutes []alerting.Route
	var batchUpserted []*models.Alert
	var batchReports []*models.AnalysisReport

	retry := func(what string, write func() error) bool {
		for {
			if err := write(); err != nil {
				logger.Errorf("Failed to write %s: %v", what, err)
				p.metrics.WriteRetries.Inc()
				select {
				case <-ctx.Done():
					return false
				case <-time.After(1 * time.Second):
				}
				continue
			}
			return true
		}
	}

	flush := func() {
		start := time.Now()

		if p.correlator != nil && len(batchUpserted) > 0 {
			records := p.correlator.Correlate(batchUpserted)
			for i := range records {
				p.metrics.CorrelationsTotal.WithLabelValues(records[i].Type).Inc()
			}
			if p.corrWriter != nil && len(records) > 0 {
				if !retry("correlations", func() error { return p.corrWriter.WriteCorrelations(records) }) {
					return
				}
			}
			batchUpserted = nil
		}

		if len(batchEmitted) > 0 {
			if !retry("alerts", func() error { return p.alertWriter.WriteAlerts(batchEmitted) }) {
				return
			}
			for i, alert := range batchEmitted {
				note := alerting.DispatchNote(batchRoutes[i])
				if err := p.alerts.InsertEvent(alert.ID, "dispatched", "system", note); err != nil {
					logger.Warnf("Failed to record dispatched event for %s: %v", alert.ID, err)
				}
				logger.Debugf("Dispatched %s: %s", note, alerting.FormatMessage(alert))
			}
			batchEmitted = nil
			batchRoutes = nil
		}

		if p.reportWriter != nil && len(batchReports) > 0 {
			if !retry("reports", func() error { return p.reportWriter.WriteReports(batchReports) }) {
				return
			}
			batchReports = nil
		}

		p.aggregator.FlushExpired()
		p.metrics.ActiveGroups.Set(float64(p.aggregator.Stats().TotalGroups))
		p.metrics.ObserveCycle(time.Since(start), time.Now().UTC())
	}

	// exits when in closes; cancellation drains through the reader and
	// workers first so no work is stranded
	for {
		select {
		case <-ticker.C:
			flush()
		case work, ok := <-in:
			if !ok {
				flush()
				return
			}
			for _, alert := range work.emitted {
				p.aggregator.Add(alert)
			}
			batchEmitted = append(batchEmitted, work.emitted...)
			batchRoutes = append(batchRoutes, work.routes...)
			batchUpserted = append(batchUpserted, work.upserted...)
			if p.reportWriter != nil && work.report != nil {
				batchReports = append(batchReports, work.report)
			}
			if len(batchEmitted) >= p.batchSize {
				flush()
			}
		}
	}
}

func alertFromFinding(snap *models.Snapshot, f *models.Finding) *models.Alert {
	return &models.Alert{
		DeviceID:  snap.DeviceID,
		Variable:  f.Variable,
		AlertType: f.AlertType,
		Severity:  f.Severity,
		Message:   f.Message,
		Timestamp: snap.Timestamp,
		Protocol:  f.Protocol,
		Pattern:   f.Pattern,
		Samples:   f.Samples,
	}
}
