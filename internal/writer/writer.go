// Package writer persists filtered records as a pretty-printed UTF-8 JSON
// array. Non-ASCII characters are written as-is, and keys keep the stable
// prompt/page/content order.
package writer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"glean/internal/crawler"
)

// WriteRecords writes records to path, creating parent directories as
// needed. An empty record set still writes a valid (empty) JSON array.
func WriteRecords(path string, records []crawler.Record) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if records == nil {
		records = []crawler.Record{}
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(records); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}

	return nil
}
