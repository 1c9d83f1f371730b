package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/simonseo/instagram-hashtag-crawler/pkg/logger"
	"github.com/simonseo/instagram-hashtag-crawler/pkg/models"
)

// Document is the on-disk JSON shape of one collection.
type Document struct {
	Posts []models.EnrichedRecord `json:"posts"`
}

// JSONSink persists a completed record collection as a JSON document. The
// write goes to a temp file in the destination directory and is renamed
// into place, so readers never observe a partially written file.
type JSONSink struct {
	logger logger.Logger
}

// NewJSONSink creates a sink.
func NewJSONSink(log logger.Logger) *JSONSink {
	if log == nil {
		log = logger.GetLogger()
	}
	return &JSONSink{logger: log}
}

// Write persists the record set to path. A failure at any stage is fatal to
// the caller; no partial-write recovery is attempted.
func (s *JSONSink) Write(records []models.EnrichedRecord, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(Document{Posts: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename output file: %w", err)
	}

	s.logger.InfoWithFields("saved records", map[string]interface{}{
		"count": len(records),
		"path":  path,
	})
	return nil
}

// ReadDocument loads a previously written collection. Used by the CSV
// exporter.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &doc, nil
}
