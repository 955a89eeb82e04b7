package indexer

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/vector"
)

// Writer merges document vectors into the posting lists of one namespace.
//
// WriteDocument is a read-modify-write over the terms of the vector and is
// not safe to run concurrently with another WriteDocument on the same
// namespace. The Pipeline never does so.
type Writer struct {
	kv store.KV
}

func NewWriter(kv store.KV) *Writer {
	return &Writer{kv: kv}
}

// WriteDocument sets docID's weight in the posting list of every term in v,
// keeping the entries of other documents. It returns the number of terms
// written. An empty vector performs no reads or writes.
func (w *Writer) WriteDocument(ctx context.Context, docID string, v vector.TermVector) (int, error) {
	if len(v) == 0 {
		return 0, nil
	}
	terms := v.Terms()
	current, err := w.kv.GetMany(ctx, terms)
	if err != nil {
		return 0, fmt.Errorf("reading postings for %d terms: %w", len(terms), err)
	}
	updates := make(map[string][]byte, len(terms))
	for _, term := range terms {
		postings, err := DecodePostings(current[term])
		if err != nil {
			return 0, fmt.Errorf("term %q: %w", term, err)
		}
		postings[docID] = v[term]
		data, err := EncodePostings(postings)
		if err != nil {
			return 0, fmt.Errorf("term %q: %w", term, err)
		}
		updates[term] = data
	}
	if err := w.kv.SetMany(ctx, updates); err != nil {
		return 0, fmt.Errorf("writing postings for %d terms: %w", len(updates), err)
	}
	return len(updates), nil
}
