package searcher

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/store"
)

// Weights is the fixed contribution of each content index to the fused
// score.
var Weights = map[store.Namespace]float64{
	store.Authors:   4,
	store.Titles:    3,
	store.Abstracts: 2,
	store.Keywords:  2,
	store.Chemicals: 2,
}

// TotalWeight is the sum of Weights. It stays the divisor even when an index
// could not be read.
func TotalWeight() float64 {
	var total float64
	for _, w := range Weights {
		total += w
	}
	return total
}

// ScoredDoc is a candidate with its fused score.
type ScoredDoc struct {
	DocID string
	Score float64
}

// Fuse combines per-index raw scores into the weighted average
// sum(raw[i] * weight[i]) / sum(weights). Missing indices contribute zero.
func Fuse(perIndex map[store.Namespace]map[string]float64) map[string]float64 {
	total := TotalWeight()
	fused := make(map[string]float64)
	// fixed namespace order keeps the float sums identical across runs
	for _, ns := range store.ContentNamespaces {
		scores, ok := perIndex[ns]
		if !ok {
			continue
		}
		w := Weights[ns]
		for docID, s := range scores {
			fused[docID] += s * w / total
		}
	}
	return fused
}

// TopK returns at most k documents with a positive score, ordered by score
// descending and doc ID ascending on ties.
func TopK(scores map[string]float64, k int) []ScoredDoc {
	if k <= 0 {
		return []ScoredDoc{}
	}
	h := &scoredDocHeap{}
	for docID, s := range scores {
		if s <= 0 {
			continue
		}
		heap.Push(h, ScoredDoc{DocID: docID, Score: s})
		if h.Len() > k {
			heap.Pop(h)
		}
	}
	result := make([]ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ScoredDoc)
	}
	return result
}

// scoredDocHeap is a min-heap whose root is the weakest kept candidate.
type scoredDocHeap []ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].DocID > h[j].DocID
}

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x any) {
	*h = append(*h, x.(ScoredDoc))
}

func (h *scoredDocHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
