package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"netpulse/config"
	"netpulse/internal/correlate"
	"netpulse/pkg/models"
)

func main() {
	input := flag.String("input", "output/alerts.jsonl", "Alert JSONL input path")
	output := flag.String("output", "output/correlations.jsonl", "Correlation JSONL output path")
	configArg := flag.String("config", "", "Optional netpulse.yml supplying the incident window and dependencies")
	window := flag.Int("window", 0, "Incident window in seconds (overrides config)")
	impactDevice := flag.String("impact-device", "", "Emit the dependency impact map for one device instead of correlating")
	flag.Parse()

	var deps []models.DeviceDependency
	incidentWindow := 0
	if strings.TrimSpace(*configArg) != "" {
		cfg, err := config.LoadConfig(*configArg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		incidentWindow = cfg.NetPulse.Correlation.IncidentWindowSec
		for _, d := range cfg.NetPulse.Correlation.Dependencies {
			deps = append(deps, models.DeviceDependency{
				Upstream:   d.Upstream,
				Downstream: d.Downstream,
				Type:       d.Type,
				Critical:   d.Critical,
			})
		}
	}
	if *window > 0 {
		incidentWindow = *window
	}

	if strings.TrimSpace(*impactDevice) != "" {
		im := correlate.BuildImpactMap(*impactDevice, deps)
		if err := writeRecords(*output, []correlate.ImpactMap{im}); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write impact map: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("impact device=%s direct=%d transitive=%d output=%s\n", *impactDevice, len(im.Direct), len(im.Transitive), *output)
		return
	}

	alerts, err := correlate.LoadAlertsJSONL(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load alerts: %v\n", err)
		os.Exit(1)
	}

	engine := correlate.NewEngine(correlate.Config{IncidentWindowSec: incidentWindow, Dependencies: deps})
	records := engine.Correlate(alerts)

	if err := writeRecords(*output, records); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write correlations: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("analyzed alerts=%d correlations=%d output=%s\n", len(alerts), len(records), *output)
}

func writeRecords[T any](path string, rows []T) error {
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
			return fmt.Errorf("encode record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
