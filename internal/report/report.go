// Package report persists query results as a JSON file and renders them for
// the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/searcher"
)

// Marshal encodes the ranked entries as a JSON array. An empty report is
// "[]", never "null".
func Marshal(entries []searcher.Entry) ([]byte, error) {
	if entries == nil {
		entries = []searcher.Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteFile replaces path with the encoded entries. The file is written next
// to its destination and renamed, so readers never see a partial report.
func WriteFile(path string, entries []searcher.Entry) error {
	data, err := Marshal(entries)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".report-*.json")
	if err != nil {
		return fmt.Errorf("creating report file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("moving report to %s: %w", path, err)
	}
	return nil
}
