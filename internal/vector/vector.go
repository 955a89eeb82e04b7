// Package vector turns field text into normalized term-weight vectors and
// computes their similarity.
package vector

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/document"
)

const (
	// MajorTopicMultiplier is how many times a major-topic item's tokens are
	// counted.
	MajorTopicMultiplier = 2

	precision = 1e5
)

// TermVector maps a term to a non-negative weight. A non-empty vector has
// unit Euclidean norm, up to rounding. Vectors are never mutated once built.
type TermVector map[string]float64

// Vectorize counts the tokens of every item (major items count twice),
// normalizes the counts by their Euclidean norm and rounds each weight to
// five decimal places. Empty input yields an empty vector.
func Vectorize(items []document.Item) TermVector {
	counts := make(map[string]int)
	for _, item := range items {
		mult := 1
		if item.Major {
			mult = MajorTopicMultiplier
		}
		for _, tok := range Tokenize(item.Text) {
			counts[tok] += mult
		}
	}
	return normalize(counts)
}

// VectorizeQuery vectorizes free text with every token counted once.
func VectorizeQuery(text string) TermVector {
	return Vectorize([]document.Item{{Text: text}})
}

func normalize(counts map[string]int) TermVector {
	v := make(TermVector, len(counts))
	if len(counts) == 0 {
		return v
	}
	var sumSq float64
	for _, c := range counts {
		sumSq += float64(c * c)
	}
	norm := math.Sqrt(sumSq)
	for term, c := range counts {
		v[term] = Round(float64(c) / norm)
	}
	return v
}

// Round rounds x to five decimal places.
func Round(x float64) float64 {
	return math.Round(x*precision) / precision
}

// Terms returns the vector's terms in ascending order.
func (v TermVector) Terms() []string {
	terms := make([]string, 0, len(v))
	for t := range v {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

// Norm returns the Euclidean norm of the weights.
func (v TermVector) Norm() float64 {
	var sumSq float64
	for _, w := range v {
		sumSq += w * w
	}
	return math.Sqrt(sumSq)
}

// Dot returns the sparse dot product of a and b, iterating the smaller
// vector only.
func Dot(a, b TermVector) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for term, wa := range a {
		if wb, ok := b[term]; ok {
			sum += wa * wb
		}
	}
	return sum
}
