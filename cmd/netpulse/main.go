package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"netpulse/config"
	"netpulse/internal/alerting"
	"netpulse/internal/correlate"
	"netpulse/internal/detect"
	"netpulse/internal/history"
	inputredis "netpulse/internal/input/redis"
	"netpulse/internal/logger"
	"netpulse/internal/logscan"
	"netpulse/internal/metrics"
	"netpulse/internal/output/alertclickhouse"
	"netpulse/internal/output/alerthttp"
	"netpulse/internal/output/alertjson"
	"netpulse/internal/output/correlationjson"
	"netpulse/internal/output/reportjson"
	"netpulse/internal/pipeline"
	"netpulse/internal/severity"
	"netpulse/internal/store"
	"netpulse/internal/suppress"
	"netpulse/pkg/models"
)

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat("netpulse.yml"); err == nil {
		return "netpulse.yml"
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, "netpulse.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "netpulse.yml"
}

func applyDefaults(cfg *config.Config) {
	if cfg.NetPulse.Input.Redis.Addr == "" {
		cfg.NetPulse.Input.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.NetPulse.Input.Redis.Key == "" {
		cfg.NetPulse.Input.Redis.Key = "netpulse_snapshots"
	}
	if cfg.NetPulse.Input.Redis.BlockTimeout == 0 {
		cfg.NetPulse.Input.Redis.BlockTimeout = 5 * time.Second
	}

	if cfg.NetPulse.Pipeline.MaxSessions <= 0 {
		cfg.NetPulse.Pipeline.MaxSessions = 50
	}
	if cfg.NetPulse.Pipeline.BatchSize <= 0 {
		cfg.NetPulse.Pipeline.BatchSize = 1000
	}
	if cfg.NetPulse.Pipeline.FlushInterval <= 0 {
		cfg.NetPulse.Pipeline.FlushInterval = 2 * time.Second
	}

	if cfg.NetPulse.Alerting.CooldownSec <= 0 {
		cfg.NetPulse.Alerting.CooldownSec = 300
	}
	if cfg.NetPulse.Alerting.Output.Mode == "" {
		cfg.NetPulse.Alerting.Output.Mode = "file"
	}
	if cfg.NetPulse.Alerting.Output.File.Path == "" {
		cfg.NetPulse.Alerting.Output.File.Path = "output/alerts.jsonl"
	}
	if cfg.NetPulse.Alerting.Output.ClickHouse.Database == "" {
		cfg.NetPulse.Alerting.Output.ClickHouse.Database = "netpulse"
	}
	if cfg.NetPulse.Alerting.Output.ClickHouse.Table == "" {
		cfg.NetPulse.Alerting.Output.ClickHouse.Table = "alerts"
	}

	if cfg.NetPulse.Correlation.IncidentWindowSec <= 0 {
		cfg.NetPulse.Correlation.IncidentWindowSec = 300
	}
	if cfg.NetPulse.Correlation.Output.Path == "" {
		cfg.NetPulse.Correlation.Output.Path = "output/correlations.jsonl"
	}

	if cfg.NetPulse.History.Backend == "" {
		cfg.NetPulse.History.Backend = "memory"
	}
	if cfg.NetPulse.History.MaxPoints <= 0 {
		cfg.NetPulse.History.MaxPoints = 500
	}
	if cfg.NetPulse.Store.Backend == "" {
		cfg.NetPulse.Store.Backend = "memory"
	}

	if cfg.NetPulse.Reports.Output.Path == "" {
		cfg.NetPulse.Reports.Output.Path = "output/reports.jsonl"
	}
	if cfg.NetPulse.Metrics.Addr == "" {
		cfg.NetPulse.Metrics.Addr = ":9090"
	}

	if cfg.NetPulse.Logging.Level == "" {
		cfg.NetPulse.Logging.Level = "info"
	}
}

func runAgent(args []string) {
	configArg := ""
	if len(args) > 0 {
		configArg = args[0]
	}

	configPath := findConfigFile(configArg)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyDefaults(cfg)
	np := &cfg.NetPulse

	if err := logger.Init(np.Logging.Enabled, np.Logging.Level, np.Logging.File, np.Logging.Console); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logger.Infof("NetPulse starting")
	logger.Infof("Config loaded from: %s", configPath)

	consumer, err := inputredis.NewConsumer(inputredis.Config{
		Addr:         np.Input.Redis.Addr,
		Password:     np.Input.Redis.Password,
		DB:           np.Input.Redis.DB,
		Key:          np.Input.Redis.Key,
		BlockTimeout: np.Input.Redis.BlockTimeout,
	})
	if err != nil {
		logger.Errorf("Failed to create Redis consumer: %v", err)
		log.Fatalf("Failed to create Redis consumer: %v", err)
	}

	hist, err := buildHistoryStore(np)
	if err != nil {
		logger.Errorf("Failed to create history store: %v", err)
		log.Fatalf("Failed to create history store: %v", err)
	}
	alertStore, err := buildAlertStore(np)
	if err != nil {
		logger.Errorf("Failed to create alert store: %v", err)
		log.Fatalf("Failed to create alert store: %v", err)
	}

	detector := detect.NewEngine(detectConfig(np.Detection))

	sevEngine := severity.NewEngine(severityRules(np.Severity.Rules))
	deviceTags := make(map[string][]string, len(np.Devices))
	for _, d := range np.Devices {
		if d.ID == "" {
			continue
		}
		deviceTags[d.ID] = d.Tags
		if d.Criticality > 0 {
			sevEngine.SetDeviceCriticality(d.ID, d.Criticality)
		}
	}
	logger.Infof("Devices configured: %d", len(deviceTags))

	var scanner logscan.Engine
	if np.LogRules.Enabled {
		if strings.TrimSpace(np.LogRules.Path) == "" {
			logger.Warnf("Log rules enabled but log_rules.path is empty; log scanning disabled")
		} else {
			sigmaEngine, stats, err := logscan.NewSigmaEngine(np.LogRules.Path)
			if err != nil {
				logger.Errorf("Failed to load Sigma rules from %s: %v", np.LogRules.Path, err)
				log.Fatalf("Failed to load Sigma rules: %v", err)
			}
			scanner = sigmaEngine
			logger.Infof("Sigma rules loaded: loaded=%d skipped_complex=%d skipped_datasource=%d skipped_invalid=%d files=%d",
				stats.Loaded,
				stats.SkippedComplex,
				stats.SkippedDatasource,
				stats.SkippedInvalid,
				stats.TotalFiles,
			)
			if stats.Loaded == 0 {
				logger.Warnf("No compatible Sigma rules loaded; log scanning is effectively disabled")
			}
		}
	}

	suppressor := suppress.NewEngine(silences(np.Alerting.Silences), windows(np.Alerting.MaintenanceWindows))
	patterns := patternSuppressor(np.Alerting.SuppressPatterns)

	gate := alerting.NewGate(alerting.GateConfig{
		CooldownSec:        np.Alerting.CooldownSec,
		CooldownBySeverity: np.Alerting.CooldownBySeverity,
		CriticalAfterN:     np.Alerting.CriticalAfterN,
	})
	aggregator := alerting.NewAggregator(alerting.AggregatorConfig{
		TimeWindowSec: np.Alerting.Aggregation.TimeWindowSec,
		MaxAgeSec:     np.Alerting.Aggregation.MaxAgeSec,
	})
	router := alerting.NewRouter(routeRules(np.Alerting.Routes), contactGroups(np.Alerting.ContactGroups))

	correlator := correlate.NewEngine(correlate.Config{
		IncidentWindowSec: np.Correlation.IncidentWindowSec,
		Dependencies:      dependencies(np.Correlation.Dependencies),
	})
	logger.Infof("Correlation: window=%ds dependencies=%d", np.Correlation.IncidentWindowSec, len(np.Correlation.Dependencies))

	alertWriter, err := buildAlertWriter(np)
	if err != nil {
		logger.Errorf("Failed to create alert writer: %v", err)
		log.Fatalf("Failed to create alert writer: %v", err)
	}

	corrWriter, err := correlationjson.NewWriter(np.Correlation.Output.Path)
	if err != nil {
		logger.Errorf("Failed to create correlation writer: %v", err)
		log.Fatalf("Failed to create correlation writer: %v", err)
	}

	var reportWriter pipeline.ReportWriter
	if np.Reports.Enabled {
		w, err := reportjson.NewWriter(np.Reports.Output.Path)
		if err != nil {
			logger.Errorf("Failed to create report writer: %v", err)
			log.Fatalf("Failed to create report writer: %v", err)
		}
		reportWriter = w
		logger.Infof("Report output: file (%s)", np.Reports.Output.Path)
	}

	metricSet := metrics.New()
	var metricServer *metrics.Server
	if np.Metrics.Enabled {
		metricServer = metrics.NewServer(np.Metrics.Addr, metricSet)
		go metricServer.Start()
	}

	pipe := pipeline.NewSnapshotPipeline(pipeline.Deps{
		Consumer:      consumer,
		Detector:      detector,
		LogScanner:    scanner,
		Severity:      sevEngine,
		Suppressor:    suppressor,
		Patterns:      patterns,
		Gate:          gate,
		Aggregator:    aggregator,
		Router:        router,
		Correlator:    correlator,
		History:       hist,
		Alerts:        alertStore,
		AlertWriter:   alertWriter,
		CorrWriter:    corrWriter,
		ReportWriter:  reportWriter,
		Metrics:       metricSet,
		DeviceTags:    deviceTags,
		DedupeFields:  np.Alerting.DedupeKeyFields,
		Workers:       np.Pipeline.MaxSessions,
		BatchSize:     np.Pipeline.BatchSize,
		FlushInterval: np.Pipeline.FlushInterval,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := pipe.Run(ctx); err != nil && err != context.Canceled {
			logger.Errorf("Pipeline error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Infof("Shutting down")
	cancel()
	time.Sleep(1 * time.Second)

	if metricServer != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		metricServer.Stop(stopCtx)
		stopCancel()
	}

	if err := pipe.Close(); err != nil {
		logger.Errorf("Error closing pipeline: %v", err)
	}
	if err := hist.Close(); err != nil {
		logger.Errorf("Error closing history store: %v", err)
	}
	if err := alertStore.Close(); err != nil {
		logger.Errorf("Error closing alert store: %v", err)
	}

	logger.Infof("NetPulse stopped")
}

func buildHistoryStore(np *config.NetPulseConfig) (history.Store, error) {
	switch np.History.Backend {
	case "memory":
		return history.NewMemoryStore(history.MemoryConfig{MaxPoints: np.History.MaxPoints}), nil
	case "redis":
		return history.NewRedisStore(history.RedisConfig{
			Addr:      np.History.Redis.Addr,
			Password:  np.History.Redis.Password,
			DB:        np.History.Redis.DB,
			KeyPrefix: np.History.Redis.KeyPrefix,
			MaxPoints: np.History.MaxPoints,
		})
	}
	return nil, fmt.Errorf("unknown history backend: %s", np.History.Backend)
}

func buildAlertStore(np *config.NetPulseConfig) (store.AlertStore, error) {
	switch np.Store.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "redis":
		return store.NewRedisStore(store.RedisConfig{
			Addr:      np.Store.Redis.Addr,
			Password:  np.Store.Redis.Password,
			DB:        np.Store.Redis.DB,
			KeyPrefix: np.Store.Redis.KeyPrefix,
		})
	}
	return nil, fmt.Errorf("unknown store backend: %s", np.Store.Backend)
}

func buildAlertWriter(np *config.NetPulseConfig) (pipeline.AlertWriter, error) {
	switch np.Alerting.Output.Mode {
	case "file":
		w, err := alertjson.NewWriter(np.Alerting.Output.File.Path)
		if err != nil {
			return nil, err
		}
		logger.Infof("Alert output mode: file (%s)", np.Alerting.Output.File.Path)
		return w, nil
	case "http":
		w, err := alerthttp.NewWriter(alerthttp.Config{
			URL:     np.Alerting.Output.HTTP.URL,
			Timeout: np.Alerting.Output.HTTP.Timeout,
			Headers: np.Alerting.Output.HTTP.Headers,
			Secret:  np.Alerting.Output.HTTP.Secret,
		})
		if err != nil {
			return nil, err
		}
		logger.Infof("Alert output mode: http (%s)", np.Alerting.Output.HTTP.URL)
		return w, nil
	case "clickhouse":
		w, err := alertclickhouse.NewWriter(alertclickhouse.Config{
			URL:      np.Alerting.Output.ClickHouse.URL,
			Database: np.Alerting.Output.ClickHouse.Database,
			Table:    np.Alerting.Output.ClickHouse.Table,
			Username: np.Alerting.Output.ClickHouse.Username,
			Password: np.Alerting.Output.ClickHouse.Password,
			Timeout:  np.Alerting.Output.ClickHouse.Timeout,
			Headers:  np.Alerting.Output.ClickHouse.Headers,
		})
		if err != nil {
			return nil, err
		}
		logger.Infof("Alert output mode: clickhouse (%s/%s.%s)", np.Alerting.Output.ClickHouse.URL, np.Alerting.Output.ClickHouse.Database, np.Alerting.Output.ClickHouse.Table)
		return w, nil
	}
	return nil, fmt.Errorf("unknown alert output mode: %s", np.Alerting.Output.Mode)
}

func detectConfig(dc config.DetectionConfig) detect.Config {
	out := detect.Config{
		Anomaly: detect.AnomalyConfig{
			WindowPoints: dc.Anomaly.WindowPoints,
			ZScoreWarn:   dc.Anomaly.ZScoreWarn,
			ZScoreCrit:   dc.Anomaly.ZScoreCrit,
		},
		Flap: detect.FlapConfig{
			WindowSec:       dc.Flap.WindowSec,
			StateChangeWarn: dc.Flap.StateChangeWarn,
			StateChangeCrit: dc.Flap.StateChangeCrit,
		},
		FastPollSec: dc.FastPollSec,
		Weights:     dc.Weights,
	}
	if len(dc.Thresholds) > 0 {
		out.Thresholds = make(map[string]detect.Threshold, len(dc.Thresholds))
		for variable, t := range dc.Thresholds {
			out.Thresholds[variable] = detect.Threshold{Warn: t.Warn, Crit: t.Crit}
		}
	}
	return out
}

func severityRules(rules []config.SeverityRuleConfig) []severity.Rule {
	out := make([]severity.Rule, 0, len(rules))
	for _, r := range rules {
		out = append(out, severity.Rule{
			Name:         r.Name,
			Condition:    r.Condition,
			Severity:     r.Severity,
			Weight:       r.Weight,
			AutoEscalate: r.AutoEscalate,
			Channels:     r.Channels,
			SLAMinutes:   r.SLAMinutes,
		})
	}
	return out
}

func silences(rules []config.SilenceConfig) []suppress.Silence {
	out := make([]suppress.Silence, 0, len(rules))
	for _, r := range rules {
		out = append(out, suppress.Silence{
			Tags:       r.Tags,
			Variables:  r.Variables,
			Severities: r.Severities,
			StartTS:    r.StartTS,
			EndTS:      r.EndTS,
			Reason:     r.Reason,
		})
	}
	return out
}

func windows(rules []config.MaintenanceWindowConfig) []suppress.Window {
	out := make([]suppress.Window, 0, len(rules))
	for _, r := range rules {
		out = append(out, suppress.Window{
			Tags:    r.Tags,
			StartTS: r.StartTS,
			EndTS:   r.EndTS,
			Reason:  r.Reason,
		})
	}
	return out
}

// patternSuppressor builds the exact-field suppressor. The keys "name"
// and "reason" are rule metadata; every other key is a matched field.
func patternSuppressor(patterns []map[string]string) *suppress.PatternSuppressor {
	s := suppress.NewPatternSuppressor()
	for i, raw := range patterns {
		name := raw["name"]
		if name == "" {
			name = fmt.Sprintf("pattern_%d", i+1)
		}
		reason := raw["reason"]
		fields := make(map[string]string, len(raw))
		for k, v := range raw {
			if k == "name" || k == "reason" {
				continue
			}
			fields[k] = v
		}
		s.AddRule(name, fields, reason)
	}
	return s
}

func routeRules(rules []config.RouteConfig) []alerting.RouteRule {
	out := make([]alerting.RouteRule, 0, len(rules))
	for _, r := range rules {
		out = append(out, alerting.RouteRule{
			Tags:         r.Tags,
			Variables:    r.Variables,
			Severities:   r.Severities,
			ContactGroup: r.ContactGroup,
			Channels:     r.Channels,
		})
	}
	return out
}

func contactGroups(groups map[string]config.ContactGroupConfig) map[string]alerting.ContactGroup {
	out := make(map[string]alerting.ContactGroup, len(groups))
	for name, g := range groups {
		out[name] = alerting.ContactGroup{
			Webhook: g.Webhook,
			Emails:  g.Emails,
			ChatIDs: g.ChatIDs,
		}
	}
	return out
}

func dependencies(deps []config.DependencyConfig) []models.DeviceDependency {
	out := make([]models.DeviceDependency, 0, len(deps))
	for _, d := range deps {
		out = append(out, models.DeviceDependency{
			Upstream:   d.Upstream,
			Downstream: d.Downstream,
			Type:       d.Type,
			Critical:   d.Critical,
		})
	}
	return out
}

func runAnalyzer(args []string) int {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	input := fs.String("input", "output/alerts.jsonl", "Alert JSONL input path")
	output := fs.String("output", "output/correlations.jsonl", "Correlation JSONL output path")
	configArg := fs.String("config", "", "Optional netpulse.yml supplying the incident window and dependencies")
	window := fs.Int("window", 0, "Incident window in seconds (overrides config)")
	impactDevice := fs.String("impact-device", "", "Emit the dependency impact map for one device instead of correlating")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var deps []models.DeviceDependency
	incidentWindow := 0
	if strings.TrimSpace(*configArg) != "" {
		cfg, err := config.LoadConfig(*configArg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			return 1
		}
		incidentWindow = cfg.NetPulse.Correlation.IncidentWindowSec
		deps = dependencies(cfg.NetPulse.Correlation.Dependencies)
	}
	if *window > 0 {
		incidentWindow = *window
	}

	if strings.TrimSpace(*impactDevice) != "" {
		im := correlate.BuildImpactMap(*impactDevice, deps)
		if err := writeJSONLines(*output, []correlate.ImpactMap{im}); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write impact map: %v\n", err)
			return 1
		}
		fmt.Printf("impact device=%s direct=%d transitive=%d output=%s\n", *impactDevice, len(im.Direct), len(im.Transitive), *output)
		return 0
	}

	alerts, err := correlate.LoadAlertsJSONL(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load alerts: %v\n", err)
		return 1
	}

	engine := correlate.NewEngine(correlate.Config{IncidentWindowSec: incidentWindow, Dependencies: deps})
	records := engine.Correlate(alerts)

	if err := writeJSONLines(*output, records); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write correlations: %v\n", err)
		return 1
	}

	fmt.Printf("analyzed alerts=%d correlations=%d output=%s\n", len(alerts), len(records), *output)
	return 0
}

func writeJSONLines[T any](path string, rows []T) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, item := range rows {
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("encode row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "run":
			runAgent(os.Args[2:])
			return
		case "analyze":
			os.Exit(runAnalyzer(os.Args[2:]))
		default:
			// Backward-compatible mode: first arg is config path.
			runAgent(os.Args[1:])
			return
		}
	}

	runAgent(nil)
}
