package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/store"
)

// CrossRefs holds related-document ID lists. A nil slice means the category
// was not fetched; an empty non-nil slice means it was fetched and empty.
type CrossRefs struct {
	CitedBy    []string
	References []string
	Similar    []string
}

func (c CrossRefs) empty() bool {
	return c.CitedBy == nil && c.References == nil && c.Similar == nil
}

// CrossRefLookup fetches cross-references for a document. On partial
// failure it returns the categories it did get together with an error.
type CrossRefLookup interface {
	Lookup(ctx context.Context, docID string) (CrossRefs, error)
}

// Writer stores metadata records, one key per document.
type Writer struct {
	kv            store.KV
	refs          CrossRefLookup
	lookupTimeout time.Duration
	logger        *slog.Logger
}

// NewWriter creates a Writer. refs may be nil to skip enrichment. A positive
// lookupTimeout bounds each cross-reference lookup on its own.
func NewWriter(kv store.KV, refs CrossRefLookup, lookupTimeout time.Duration) *Writer {
	return &Writer{
		kv:            kv,
		refs:          refs,
		lookupTimeout: lookupTimeout,
		logger:        slog.Default().With("component", "metadata-writer"),
	}
}

// Write stores the base record for doc, overwriting any previous record for
// docID, and then rewrites it with whatever cross-references the lookup
// returned. Only a failure to store the base record is an error; lookup and
// enrichment failures keep the base record and are logged.
func (w *Writer) Write(ctx context.Context, docID string, doc *document.Document) error {
	rec := NewRecord(docID, doc)
	if err := w.store(ctx, docID, rec); err != nil {
		return err
	}
	if w.refs == nil {
		return nil
	}

	lookupCtx := ctx
	if w.lookupTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, w.lookupTimeout)
		defer cancel()
	}
	refs, err := w.refs.Lookup(lookupCtx, docID)
	if err != nil {
		w.logger.Warn("cross-reference lookup incomplete, writing without missing categories",
			"doc_id", docID,
			"error", err,
		)
	}
	if refs.empty() {
		return nil
	}
	rec.Merge(refs)
	if err := w.store(ctx, docID, rec); err != nil {
		w.logger.Warn("cross-references not stored, base record kept", "doc_id", docID, "error", err)
	}
	return nil
}

func (w *Writer) store(ctx context.Context, docID string, rec Record) error {
	data, err := Encode(rec)
	if err != nil {
		return fmt.Errorf("encoding metadata for %s: %w", docID, err)
	}
	if err := w.kv.Set(ctx, docID, data); err != nil {
		return fmt.Errorf("storing metadata for %s: %w", docID, err)
	}
	return nil
}
