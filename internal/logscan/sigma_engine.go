package logscan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	sigma "github.com/bradleyjkemp/sigma-go"
	sigmaevaluator "github.com/bradleyjkemp/sigma-go/evaluator"

	"netpulse/pkg/models"
)

// SigmaLoadStats tracks the number of loaded and skipped rules.
type SigmaLoadStats struct {
	TotalFiles        int
	Loaded            int
	SkippedComplex    int
	SkippedDatasource int
	SkippedInvalid    int
}

type compiledSigmaRule struct {
	rule     sigma.Rule
	eval     *sigmaevaluator.RuleEvaluator
	name     string
	variable string
	severity string
}

// SigmaEngine evaluates Sigma rules against individual device log lines.
type SigmaEngine struct {
	rules []compiledSigmaRule
	ctx   context.Context
}

// NewSigmaEngine loads Sigma rules from a file or directory and compiles
// evaluators. Unsupported or complex rules are skipped and included in
// stats.
func NewSigmaEngine(path string) (*SigmaEngine, SigmaLoadStats, error) {
	var stats SigmaLoadStats

	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, stats, fmt.Errorf("resolve rule path: %w", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, stats, fmt.Errorf("stat rule path: %w", err)
	}

	files := make([]string, 0, 64)
	if info.IsDir() {
		err = filepath.WalkDir(resolved, func(filePath string, entry fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if entry.IsDir() {
				return nil
			}
			if isYAMLFile(filePath) {
				files = append(files, filePath)
			}
			return nil
		})
		if err != nil {
			return nil, stats, fmt.Errorf("walk rule directory: %w", err)
		}
	} else {
		if !isYAMLFile(resolved) {
			return nil, stats, fmt.Errorf("rule file must end with .yml or .yaml: %s", resolved)
		}
		files = append(files, resolved)
	}

	stats.TotalFiles = len(files)
	compiled := make([]compiledSigmaRule, 0, len(files))
	for _, ruleFile := range files {
		rule, err := parseSigmaRuleFile(ruleFile)
		if err != nil {
			stats.SkippedInvalid++
			continue
		}

		if !isDeviceLogCompatible(rule) {
			stats.SkippedDatasource++
			continue
		}

		if ok := isSimpleSingleLineRule(rule); !ok {
			stats.SkippedComplex++
			continue
		}

		name := strings.TrimSpace(rule.Title)
		if name == "" {
			name = strings.TrimSpace(rule.ID)
		}
		compiled = append(compiled, compiledSigmaRule{
			rule:     rule,
			eval:     sigmaevaluator.ForRule(rule),
			name:     name,
			variable: variableFromName(name),
			severity: severityFromLevel(rule.Level),
		})
		stats.Loaded++
	}

	return &SigmaEngine{rules: compiled, ctx: context.Background()}, stats, nil
}

// Scan evaluates all loaded rules against every line of raw command
// output and returns one log_pattern finding per matched rule.
func (e *SigmaEngine) Scan(snap *models.Snapshot) []models.Finding {
	if e == nil || snap == nil || len(e.rules) == 0 || len(snap.Raw) == 0 {
		return nil
	}

	counts := make(map[int]int)
	for command, blob := range snap.Raw {
		for _, line := range strings.Split(blob, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			event := logLineEvent(snap, command, line)
			for i := range e.rules {
				res, err := e.rules[i].eval.Matches(e.ctx, event)
				if err != nil {
					continue
				}
				if res.Match {
					counts[i]++
				}
			}
		}
	}

	if len(counts) == 0 {
		return nil
	}
	out := make([]models.Finding, 0, len(counts))
	for i := range e.rules {
		n := counts[i]
		if n == 0 {
			continue
		}
		out = append(out, models.Finding{
			Severity:  e.rules[i].severity,
			Variable:  e.rules[i].variable,
			AlertType: "log_pattern",
			Message:   fmt.Sprintf("Log pattern '%s' matched lines=%d", e.rules[i].name, n),
			Pattern:   e.rules[i].name,
			Samples:   n,
		})
	}
	return out
}

func parseSigmaRuleFile(path string) (sigma.Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("read sigma rule %s: %w", path, err)
	}
	rule, err := sigma.ParseRule(raw)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("parse sigma rule %s: %w", path, err)
	}
	return rule, nil
}

func isYAMLFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml")
}

var logProducts = map[string]bool{
	"cisco":    true,
	"juniper":  true,
	"arista":   true,
	"fortinet": true,
	"mikrotik": true,
	"huawei":   true,
	"linux":    true,
	"network":  true,
}

func isDeviceLogCompatible(rule sigma.Rule) bool {
	product := strings.ToLower(strings.TrimSpace(rule.Logsource.Product))
	service := strings.ToLower(strings.TrimSpace(rule.Logsource.Service))

	if product != "" && !logProducts[product] {
		return false
	}
	if service != "" && service != "syslog" {
		return false
	}
	return true
}

// isSimpleSingleLineRule accepts rules that can be decided from one log
// line: no timeframes, no aggregations, field matchers only.
func isSimpleSingleLineRule(rule sigma.Rule) bool {
	if rule.Detection.Timeframe > 0 {
		return false
	}

	for _, cond := range rule.Detection.Conditions {
		if cond.Aggregation != nil {
			return false
		}
		if !isSimpleSearchExpression(cond.Search) {
			return false
		}
	}

	for _, search := range rule.Detection.Searches {
		if len(search.Keywords) > 0 {
			return false
		}
		if len(search.EventMatchers) == 0 {
			return false
		}
	}

	return true
}

func isSimpleSearchExpression(expr sigma.SearchExpr) bool {
	switch e := expr.(type) {
	case sigma.SearchIdentifier:
		return true
	case sigma.And:
		for _, child := range e {
			if !isSimpleSearchExpression(child) {
				return false
			}
		}
		return true
	case sigma.Or:
		for _, child := range e {
			if !isSimpleSearchExpression(child) {
				return false
			}
		}
		return true
	case sigma.Not:
		return isSimpleSearchExpression(e.Expr)
	default:
		return false
	}
}

// logLineEvent presents one raw output line as a Sigma event. Rules
// match on the message field; device, os and command are available for
// narrowing.
func logLineEvent(snap *models.Snapshot, command, line string) map[string]interface{} {
	return map[string]interface{}{
		"message": line,
		"Message": line,
		"device":  snap.DeviceID,
		"Device":  snap.DeviceID,
		"os":      snap.OS,
		"command": command,
	}
}

func variableFromName(name string) string {
	if name == "" {
		return "LOG_PATTERN"
	}
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func severityFromLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "critical", "high", "emergency":
		return "critical"
	case "medium":
		return "warning"
	case "low", "informational", "info":
		return "info"
	default:
		return "warning"
	}
}
