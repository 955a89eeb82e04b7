package searcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/vector"
	apperrors "github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/metrics"
)

type failingKV struct {
	store.KV
	err error
}

func (f failingKV) GetMany(context.Context, []string) (map[string][]byte, error) {
	return nil, f.err
}

type slowKV struct {
	store.KV
}

func (s slowKV) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.KV.GetMany(ctx, keys)
}

type recordingKV struct {
	store.KV
	keys [][]string
}

func (r *recordingKV) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	r.keys = append(r.keys, keys)
	return r.KV.GetMany(ctx, keys)
}

// overrideProvider swaps selected namespaces of a base provider.
type overrideProvider struct {
	base     store.Provider
	override map[store.Namespace]store.KV
}

func (o overrideProvider) Namespace(ns store.Namespace) store.KV {
	if kv, ok := o.override[ns]; ok {
		return kv
	}
	return o.base.Namespace(ns)
}

func titled(id, title string) document.Document {
	return document.Document{
		IDs:       []document.ArticleID{{Type: "pubmed", Value: id}, {Type: "doi", Value: "10.1/" + id}},
		Titles:    []document.Item{{Text: title}},
		Abstracts: []document.Item{{Text: "Abstract about " + title}},
		Languages: []document.Item{{Text: "eng"}},
	}
}

func buildCorpus(t *testing.T, docs ...document.Document) *store.Memory {
	t.Helper()
	mem := store.NewMemory()
	_, err := indexer.NewPipeline(mem, indexer.Options{}).Build(context.Background(), document.SliceSource(docs))
	require.NoError(t, err)
	return mem
}

func docIDs(entries []Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.DocID
	}
	return ids
}

func TestScore_NoSharedTerms(t *testing.T) {
	kv := store.NewMemoryKV()
	_, err := indexer.NewWriter(kv).WriteDocument(context.Background(), "B", vector.TermVector{"milk": 1})
	require.NoError(t, err)

	scores, err := Score(context.Background(), kv, vector.TermVector{"lactose": 1})
	require.NoError(t, err)
	assert.Zero(t, scores["B"])
}

func TestScore_IdenticalVector(t *testing.T) {
	kv := store.NewMemoryKV()
	doc := vector.TermVector{"lactose": 0.6, "intolerance": 0.8}
	_, err := indexer.NewWriter(kv).WriteDocument(context.Background(), "A", doc)
	require.NoError(t, err)

	scores, err := Score(context.Background(), kv, doc)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, scores["A"], 1e-9)

	partial, err := Score(context.Background(), kv, vector.TermVector{"lactose": 0.6})
	require.NoError(t, err)
	assert.InDelta(t, 0.36, partial["A"], 1e-9)
}

func TestScore_ReadsOnlyQueryTermsInOneBatch(t *testing.T) {
	kv := &recordingKV{KV: store.NewMemoryKV()}
	_, err := indexer.NewWriter(kv).WriteDocument(context.Background(), "A", vector.TermVector{"a": 0.6, "b": 0.8})
	require.NoError(t, err)
	kv.keys = nil

	_, err = Score(context.Background(), kv, vector.TermVector{"b": 0.70711, "c": 0.70711})
	require.NoError(t, err)
	require.Len(t, kv.keys, 1)
	assert.Equal(t, []string{"b", "c"}, kv.keys[0])
}

func TestScore_EmptyQuery(t *testing.T) {
	kv := &recordingKV{KV: store.NewMemoryKV()}
	scores, err := Score(context.Background(), kv, vector.TermVector{})
	require.NoError(t, err)
	assert.Empty(t, scores)
	assert.Empty(t, kv.keys)
}

func TestFuse(t *testing.T) {
	t.Run("authors only", func(t *testing.T) {
		fused := Fuse(map[store.Namespace]map[string]float64{
			store.Authors: {"A": 0.8},
		})
		assert.Equal(t, 0.24615, vector.Round(fused["A"]))
	})
	t.Run("perfect match everywhere", func(t *testing.T) {
		perIndex := make(map[store.Namespace]map[string]float64)
		for _, ns := range store.ContentNamespaces {
			perIndex[ns] = map[string]float64{"A": 1}
		}
		assert.InDelta(t, 1.0, Fuse(perIndex)["A"], 1e-12)
	})
	t.Run("missing index contributes zero", func(t *testing.T) {
		fused := Fuse(map[store.Namespace]map[string]float64{
			store.Titles:    {"A": 1},
			store.Chemicals: {"B": 1},
		})
		assert.InDelta(t, 3.0/13, fused["A"], 1e-12)
		assert.InDelta(t, 2.0/13, fused["B"], 1e-12)
	})
	assert.Equal(t, 13.0, TotalWeight())
}

func TestTopK(t *testing.T) {
	scores := map[string]float64{"c": 0.5, "a": 0.5, "b": 0.9, "z": 0, "d": 0.1}

	top := TopK(scores, 3)
	assert.Equal(t, []ScoredDoc{{"b", 0.9}, {"a", 0.5}, {"c", 0.5}}, top)

	all := TopK(scores, 10)
	require.Len(t, all, 4, "zero scores are dropped")
	assert.Equal(t, "d", all[3].DocID)

	assert.Empty(t, TopK(scores, 0))
	assert.Empty(t, TopK(nil, 30))
}

func TestQuery_Lactose(t *testing.T) {
	mem := buildCorpus(t,
		titled("A", "lactose intolerance"),
		titled("B", "milk allergy"),
	)

	report, err := New(mem, Options{}).Query(context.Background(), "lactose")
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)

	top := report.Entries[0]
	assert.Equal(t, "A", top.DocID)
	require.NotNil(t, top.Title)
	assert.Equal(t, "lactose intolerance", *top.Title)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/A/", top.ArticleURL)
	assert.Equal(t, "10.1/A", top.ArticleIDs["doi"])
	// titles 0.70711*3/13 plus abstracts 0.57735*2/13
	assert.InDelta(t, 0.25200, top.Score, 1e-5)
	assert.Equal(t, vector.Round(top.Score), top.Score)
	assert.Empty(t, report.Degraded)
}

func TestQuery_NeverMoreThanTopK(t *testing.T) {
	docs := make([]document.Document, 50)
	for i := range docs {
		docs[i] = titled(fmt.Sprintf("%03d", i), "lactose study")
	}
	mem := buildCorpus(t, docs...)

	report, err := New(mem, Options{}).Query(context.Background(), "lactose")
	require.NoError(t, err)
	assert.Equal(t, 50, report.Candidates)
	assert.Len(t, report.Entries, DefaultTopK)
}

func TestQuery_TiesOrderedByDocID(t *testing.T) {
	mem := buildCorpus(t,
		titled("3", "lactose"),
		titled("1", "lactose"),
		titled("2", "lactose"),
	)

	report, err := New(mem, Options{TopK: 2}).Query(context.Background(), "lactose")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, docIDs(report.Entries))
}

func TestQuery_DegradedIndex(t *testing.T) {
	mem := buildCorpus(t, titled("A", "lactose intolerance"))
	p := overrideProvider{base: mem, override: map[store.Namespace]store.KV{
		store.Authors: failingKV{err: errors.New("connection refused")},
	}}
	m := metrics.New(prometheus.NewRegistry())

	report, err := New(p, Options{Metrics: m}).Query(context.Background(), "lactose")
	require.NoError(t, err)
	assert.Equal(t, []string{"authors"}, report.Degraded)
	assert.Equal(t, []string{"A"}, docIDs(report.Entries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexReadFailures.WithLabelValues("authors")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("degraded")))
}

func TestQuery_SlowIndexIsBounded(t *testing.T) {
	mem := buildCorpus(t, titled("A", "lactose intolerance"))
	p := overrideProvider{base: mem, override: map[store.Namespace]store.KV{
		store.Chemicals: slowKV{KV: mem.Namespace(store.Chemicals)},
	}}

	start := time.Now()
	report, err := New(p, Options{TimeoutPerIndex: 20 * time.Millisecond}).Query(context.Background(), "lactose")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, []string{"chemicals"}, report.Degraded)
	assert.Len(t, report.Entries, 1)
}

func TestQuery_MetadataFailureIsFatal(t *testing.T) {
	mem := buildCorpus(t, titled("A", "lactose intolerance"))
	p := overrideProvider{base: mem, override: map[store.Namespace]store.KV{
		store.Metadata: failingKV{err: errors.New("connection refused")},
	}}

	_, err := New(p, Options{}).Query(context.Background(), "lactose")
	assert.ErrorIs(t, err, apperrors.ErrMetadataUnavailable)
}

func TestQuery_MissingMetadataResolvesToEmptyRecord(t *testing.T) {
	mem := store.NewMemory()
	_, err := indexer.NewWriter(mem.Namespace(store.Titles)).
		WriteDocument(context.Background(), "orphan", vector.TermVector{"lactose": 1})
	require.NoError(t, err)

	report, err := New(mem, Options{}).Query(context.Background(), "lactose")
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	assert.Nil(t, report.Entries[0].Title)
	assert.Empty(t, report.Entries[0].ArticleURL)
	assert.Equal(t, vector.Round(3.0/13), report.Entries[0].Score)
}

func TestQuery_InputEdgeCases(t *testing.T) {
	s := New(store.NewMemory(), Options{})

	_, err := s.Query(context.Background(), "   ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	report, err := s.Query(context.Background(), "the and of")
	require.NoError(t, err)
	assert.Empty(t, report.Entries)
	assert.NotNil(t, report.Entries)
}

func BenchmarkQuery(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			docs := make(document.SliceSource, n)
			for i := range docs {
				docs[i] = titled(fmt.Sprintf("%d", i), fmt.Sprintf("lactose intolerance cohort %d", i%50))
			}
			mem := store.NewMemory()
			if _, err := indexer.NewPipeline(mem, indexer.Options{ProgressEvery: n}).Build(context.Background(), docs); err != nil {
				b.Fatal(err)
			}
			s := New(mem, Options{})
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := s.Query(context.Background(), "lactose intolerance"); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkTopK(b *testing.B) {
	scores := make(map[string]float64, 100000)
	for i := range 100000 {
		scores[fmt.Sprintf("doc-%d", i)] = float64(i%997) / 997
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = TopK(scores, DefaultTopK)
	}
}
