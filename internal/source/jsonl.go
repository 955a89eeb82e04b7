// Package source provides document sources other than the PubMed baseline:
// JSON-lines files and a Kafka topic. It can also publish any source to
// Kafka.
package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/document"
)

const maxLineSize = 16 << 20

// JSONLines reads one JSON-encoded Document per line. Blank lines are
// ignored; lines that do not decode are logged and skipped.
type JSONLines struct {
	open   func() (io.ReadCloser, error)
	name   string
	logger *slog.Logger
}

// NewJSONLinesFile reads documents from path. "-" reads standard input.
func NewJSONLinesFile(path string) *JSONLines {
	open := func() (io.ReadCloser, error) {
		if path == "-" {
			return io.NopCloser(os.Stdin), nil
		}
		return os.Open(path)
	}
	return &JSONLines{open: open, name: path, logger: slog.Default().With("component", "jsonl-source", "path", path)}
}

// NewJSONLinesReader reads documents from r.
func NewJSONLinesReader(r io.Reader) *JSONLines {
	return &JSONLines{
		open:   func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
		name:   "reader",
		logger: slog.Default().With("component", "jsonl-source"),
	}
}

func (j *JSONLines) Each(ctx context.Context, fn func(ctx context.Context, doc document.Document) error) error {
	rc, err := j.open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", j.name, err)
	}
	defer rc.Close()

	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var doc document.Document
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			j.logger.Warn("skipping undecodable line", "line", line, "error", err)
			continue
		}
		if err := fn(ctx, doc); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading %s at line %d: %w", j.name, line, err)
	}
	return nil
}
