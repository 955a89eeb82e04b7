package indexer

import (
	"encoding/json"
	"fmt"
)

// Postings is the value stored under one term: document ID to weight.
type Postings map[string]float64

// DecodePostings parses a stored posting map. A nil or empty value decodes
// to an empty map.
func DecodePostings(data []byte) (Postings, error) {
	p := make(Postings)
	if len(data) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding postings: %w", err)
	}
	return p, nil
}

func EncodePostings(p Postings) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding postings: %w", err)
	}
	return data, nil
}
