package correlate

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"netpulse/pkg/models"
)

// LoadAlertsJSONL reads one alert per line from a JSONL file. Blank and
// malformed lines are skipped so partially written output files still
// load.
func LoadAlertsJSONL(path string) ([]*models.Alert, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	alerts := make([]*models.Alert, 0, 4096)
	s := bufio.NewScanner(f)
	buf := make([]byte, 0, 1024*1024)
	s.Buffer(buf, 8*1024*1024)

	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		var alert models.Alert
		if err := json.Unmarshal([]byte(line), &alert); err != nil {
			continue
		}
		alerts = append(alerts, &alert)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}
	return alerts, nil
}
