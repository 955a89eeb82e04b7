package searcher

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/vector"
)

// Score returns the dot product of q with every document that shares at
// least one term with it in kv. Documents sharing no term are absent from
// the result. Only the query terms are read, in one batch.
func Score(ctx context.Context, kv store.KV, q vector.TermVector) (map[string]float64, error) {
	scores := make(map[string]float64)
	if len(q) == 0 {
		return scores, nil
	}
	terms := q.Terms()
	raw, err := kv.GetMany(ctx, terms)
	if err != nil {
		return nil, fmt.Errorf("reading postings for %d terms: %w", len(terms), err)
	}

	docs := make(map[string]vector.TermVector)
	for _, term := range terms {
		data, ok := raw[term]
		if !ok {
			continue
		}
		postings, err := indexer.DecodePostings(data)
		if err != nil {
			return nil, fmt.Errorf("term %q: %w", term, err)
		}
		for docID, weight := range postings {
			dv, ok := docs[docID]
			if !ok {
				dv = make(vector.TermVector)
				docs[docID] = dv
			}
			dv[term] = weight
		}
	}

	for docID, dv := range docs {
		scores[docID] = vector.Dot(dv, q)
	}
	return scores, nil
}
