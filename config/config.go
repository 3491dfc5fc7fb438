package config

import (
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	NetPulse NetPulseConfig `yaml:"netpulse"`
}

// NetPulseConfig is the project configuration.
type NetPulseConfig struct {
	Input       InputConfig       `yaml:"input"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Devices     []DeviceConfig    `yaml:"devices"`
	Detection   DetectionConfig   `yaml:"detection"`
	Severity    SeverityConfig    `yaml:"severity"`
	Alerting    AlertingConfig    `yaml:"alerting"`
	Correlation CorrelationConfig `yaml:"correlation"`
	LogRules    LogRulesConfig    `yaml:"log_rules"`
	History     HistoryConfig     `yaml:"history"`
	Store       StoreConfig       `yaml:"store"`
	Reports     ReportsConfig     `yaml:"reports"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// InputConfig controls the snapshot reader.
type InputConfig struct {
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig controls Redis input.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Key          string        `yaml:"key"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// PipelineConfig controls pipeline behavior. MaxSessions bounds the
// per-device worker pool; the effective pool is capped by device count.
type PipelineConfig struct {
	MaxSessions   int           `yaml:"max_sessions"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DeviceConfig describes one monitored device.
type DeviceConfig struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Host        string   `yaml:"host"`
	Transport   string   `yaml:"transport"`
	OS          string   `yaml:"os"`
	Type        string   `yaml:"type"`
	Criticality int      `yaml:"criticality"`
	Tags        []string `yaml:"tags"`
}

// DetectionConfig controls the detection engine.
type DetectionConfig struct {
	Thresholds  map[string]ThresholdConfig    `yaml:"thresholds"`
	Anomaly     AnomalyConfig                 `yaml:"anomaly"`
	Flap        FlapConfig                    `yaml:"flap"`
	FastPollSec int                           `yaml:"fast_poll_sec"`
	Weights     map[string]map[string]float64 `yaml:"weights"`
}

// ThresholdConfig is a warn/crit pair for one variable. A nil bound is
// treated as absent (never exceeded).
type ThresholdConfig struct {
	Warn *float64 `yaml:"warn"`
	Crit *float64 `yaml:"crit"`
}

// AnomalyConfig controls z-score detection.
type AnomalyConfig struct {
	WindowPoints int     `yaml:"window_points"`
	ZScoreWarn   float64 `yaml:"zscore_warn"`
	ZScoreCrit   float64 `yaml:"zscore_crit"`
}

// FlapConfig controls state-flap detection.
type FlapConfig struct {
	WindowSec       int `yaml:"window_sec"`
	StateChangeWarn int `yaml:"state_change_warn"`
	StateChangeCrit int `yaml:"state_change_crit"`
}

// SeverityConfig carries declarative severity rules. An empty list means
// the built-in default rule set.
type SeverityConfig struct {
	Rules []SeverityRuleConfig `yaml:"rules"`
}

// SeverityRuleConfig is one declarative severity rule.
type SeverityRuleConfig struct {
	Name         string   `yaml:"name"`
	Condition    string   `yaml:"condition"`
	Severity     string   `yaml:"severity"`
	Weight       int      `yaml:"weight"`
	AutoEscalate bool     `yaml:"auto_escalate"`
	Channels     []string `yaml:"channels"`
	SLAMinutes   int      `yaml:"sla_minutes"`
}

// AlertingConfig controls dedup, cooldowns, suppression, routing,
// aggregation and the alert sink.
type AlertingConfig struct {
	DedupeKeyFields    []string                      `yaml:"dedupe_key_fields"`
	CooldownSec        int                           `yaml:"cooldown_sec"`
	CooldownBySeverity map[string]int                `yaml:"cooldown_by_severity"`
	CriticalAfterN     map[string]int                `yaml:"critical_after_n"`
	Silences           []SilenceConfig               `yaml:"silences"`
	MaintenanceWindows []MaintenanceWindowConfig     `yaml:"maintenance_windows"`
	SuppressPatterns   []map[string]string           `yaml:"suppress_patterns"`
	Routes             []RouteConfig                 `yaml:"routes"`
	ContactGroups      map[string]ContactGroupConfig `yaml:"contact_groups"`
	Aggregation        AggregationConfig             `yaml:"aggregation"`
	Output             AlertOutputConfig             `yaml:"output"`
}

// SilenceConfig is one explicit silence rule. Empty tags match every
// device; empty variables/severities match everything. Time bounds are
// optional RFC3339 strings.
type SilenceConfig struct {
	Tags       []string `yaml:"tags"`
	Variables  []string `yaml:"variables"`
	Severities []string `yaml:"severities"`
	StartTS    string   `yaml:"start_ts"`
	EndTS      string   `yaml:"end_ts"`
	Reason     string   `yaml:"reason"`
}

// MaintenanceWindowConfig is a tag-scoped window; both bounds are required.
type MaintenanceWindowConfig struct {
	Tags    []string `yaml:"tags"`
	StartTS string   `yaml:"start_ts"`
	EndTS   string   `yaml:"end_ts"`
	Reason  string   `yaml:"reason"`
}

// RouteConfig maps matching alerts to a contact group. First match wins.
type RouteConfig struct {
	Tags         []string `yaml:"tags"`
	Variables    []string `yaml:"variables"`
	Severities   []string `yaml:"severities"`
	ContactGroup string   `yaml:"contact_group"`
	Channels     []string `yaml:"channels"`
}

// ContactGroupConfig describes notification targets for a contact group.
type ContactGroupConfig struct {
	Webhook string   `yaml:"webhook"`
	Emails  []string `yaml:"emails"`
	ChatIDs []string `yaml:"chat_ids"`
}

// AggregationConfig controls the notification-time alert aggregator.
type AggregationConfig struct {
	TimeWindowSec int `yaml:"time_window_sec"`
	MaxAgeSec     int `yaml:"max_age_sec"`
}

// AlertOutputConfig controls where emitted alerts go.
type AlertOutputConfig struct {
	Mode       string                 `yaml:"mode"` // file|http|clickhouse
	File       FileOutputConfig       `yaml:"file"`
	HTTP       HTTPOutputConfig       `yaml:"http"`
	ClickHouse ClickHouseOutputConfig `yaml:"clickhouse"`
}

// CorrelationConfig controls the end-of-cycle correlation pass.
type CorrelationConfig struct {
	IncidentWindowSec int                `yaml:"incident_window_sec"`
	Dependencies      []DependencyConfig `yaml:"dependencies"`
	Output            FileOutputConfig   `yaml:"output"`
}

// DependencyConfig is one static upstream -> downstream device edge.
type DependencyConfig struct {
	Upstream   string `yaml:"upstream"`
	Downstream string `yaml:"downstream"`
	Type       string `yaml:"type"`
	Critical   bool   `yaml:"critical"`
}

// LogRulesConfig controls Sigma log-pattern rules.
type LogRulesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// HistoryConfig controls the metric history store.
type HistoryConfig struct {
	Backend   string           `yaml:"backend"` // memory|redis
	MaxPoints int              `yaml:"max_points"`
	Redis     RedisStoreConfig `yaml:"redis"`
}

// StoreConfig controls the alert store.
type StoreConfig struct {
	Backend string           `yaml:"backend"` // memory|redis
	Redis   RedisStoreConfig `yaml:"redis"`
}

// RedisStoreConfig configures a Redis-backed store.
type RedisStoreConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// ReportsConfig controls per-device analysis report output.
type ReportsConfig struct {
	Enabled bool             `yaml:"enabled"`
	Output  FileOutputConfig `yaml:"output"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ClickHouseOutputConfig config for ClickHouse HTTP JSONEachRow writes.
type ClickHouseOutputConfig struct {
	URL      string            `yaml:"url"`
	Database string            `yaml:"database"`
	Table    string            `yaml:"table"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	Timeout  time.Duration     `yaml:"timeout"`
	Headers  map[string]string `yaml:"headers"`
}

// FileOutputConfig config for local JSON output.
type FileOutputConfig struct {
	Path string `yaml:"path"`
}

// HTTPOutputConfig config for remote output. Secret enables HMAC-SHA256
// request signing.
type HTTPOutputConfig struct {
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
	Secret  string            `yaml:"secret"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadConfig reads and parses a YAML config file. ${VAR} references are
// replaced with environment values before parsing.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	data = envPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		return []byte(os.Getenv(string(m[2 : len(m)-1])))
	})

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
