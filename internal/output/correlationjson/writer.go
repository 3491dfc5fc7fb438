package correlationjson

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"netpulse/internal/logger"
	"netpulse/pkg/models"
)

// Writer outputs correlation records to a JSON lines file.
type Writer struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewWriter creates a JSONL writer for correlation records.
func NewWriter(path string) (*Writer, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	logger.Infof("Correlation JSON writer initialized: %s", path)
	return &Writer{
		file:    f,
		encoder: json.NewEncoder(f),
	}, nil
}

// WriteCorrelations writes a batch of correlation records.
func (w *Writer) WriteCorrelations(records []models.Correlation) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range records {
		if err := w.encoder.Encode(&records[i]); err != nil {
			return fmt.Errorf("failed to encode correlation: %w", err)
		}
	}
	return nil
}

// Close closes the output file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		return w.file.Close()
	}
	return nil
}
