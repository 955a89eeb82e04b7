// Package searcher answers free-text queries. Each content index is scored
// concurrently, the scores are fused with fixed weights, and the best
// documents are resolved against the metadata index.
package searcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/metadata"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/vector"
	apperrors "github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/tracing"
)

const DefaultTopK = 30

// Entry is one ranked result: the stored metadata record plus its score.
type Entry struct {
	DocID string `json:"-"`
	metadata.Record
	Score float64 `json:"score"`
}

// Report is the outcome of one query. Degraded lists the content indices
// that could not be read; their contribution is zero.
type Report struct {
	Query      string   `json:"query"`
	Entries    []Entry  `json:"results"`
	Candidates int      `json:"candidates"`
	Degraded   []string `json:"degraded,omitempty"`
}

type Options struct {
	TopK            int
	TimeoutPerIndex time.Duration
	Metrics         *metrics.Metrics
}

type Searcher struct {
	indices  map[store.Namespace]store.KV
	metadata store.KV
	opts     Options
	logger   *slog.Logger
}

func New(p store.Provider, opts Options) *Searcher {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	indices := make(map[store.Namespace]store.KV, len(store.ContentNamespaces))
	for _, ns := range store.ContentNamespaces {
		indices[ns] = p.Namespace(ns)
	}
	return &Searcher{
		indices:  indices,
		metadata: p.Namespace(store.Metadata),
		opts:     opts,
		logger:   slog.Default().With("component", "query-engine"),
	}
}

type indexResult struct {
	ns     store.Namespace
	scores map[string]float64
	err    error
}

// Query ranks the documents matching keywords. A blank query is rejected
// with ErrInvalidInput. A query made only of stopwords yields an empty
// report. Failing content indices degrade the report; an unreadable
// metadata index fails the query with ErrMetadataUnavailable.
func (s *Searcher) Query(ctx context.Context, keywords string) (*Report, error) {
	start := time.Now()
	if strings.TrimSpace(keywords) == "" {
		s.countQuery("error")
		return nil, fmt.Errorf("%w: empty query", apperrors.ErrInvalidInput)
	}
	ctx, span := tracing.StartSpan(ctx, "query", "")
	report, err := s.query(ctx, keywords)
	span.End(err)
	span.Log(s.logger)

	if s.opts.Metrics != nil {
		s.opts.Metrics.QueryLatency.Observe(time.Since(start).Seconds())
	}
	switch {
	case err != nil:
		s.countQuery("error")
		return nil, err
	case len(report.Degraded) > 0:
		s.countQuery("degraded")
	case len(report.Entries) == 0:
		s.countQuery("zero_result")
	default:
		s.countQuery("ok")
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.QueryResultsCount.Observe(float64(len(report.Entries)))
	}
	s.logger.Info("query executed",
		"query", keywords,
		"candidates", report.Candidates,
		"results", len(report.Entries),
		"degraded", report.Degraded,
		"trace_id", span.TraceID,
		"duration", time.Since(start).Round(time.Microsecond),
	)
	return report, nil
}

func (s *Searcher) query(ctx context.Context, keywords string) (*Report, error) {
	report := &Report{Query: keywords, Entries: []Entry{}}
	q := vector.VectorizeQuery(keywords)
	if len(q) == 0 {
		return report, nil
	}

	results := s.scoreAll(ctx, q)
	perIndex := make(map[store.Namespace]map[string]float64, len(results))
	for _, r := range results {
		if r.err != nil {
			report.Degraded = append(report.Degraded, r.ns.String())
			s.logger.Warn("index read failed, query degraded", "index", r.ns.String(), "error", r.err)
			if s.opts.Metrics != nil {
				s.opts.Metrics.IndexReadFailures.WithLabelValues(r.ns.String()).Inc()
			}
			continue
		}
		perIndex[r.ns] = r.scores
	}

	fused := Fuse(perIndex)
	report.Candidates = len(fused)
	top := TopK(fused, s.opts.TopK)
	entries, err := s.resolve(ctx, top)
	if err != nil {
		return nil, err
	}
	report.Entries = entries
	return report, nil
}

// scoreAll scores q against every content index concurrently. Each index is
// bounded by TimeoutPerIndex; failures are returned per index rather than
// cancelling the siblings.
func (s *Searcher) scoreAll(ctx context.Context, q vector.TermVector) []indexResult {
	results := make([]indexResult, len(store.ContentNamespaces))
	var wg sync.WaitGroup
	for i, ns := range store.ContentNamespaces {
		kv := s.indices[ns]
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, span := tracing.StartChildSpan(ctx, ns.String())
			scoresCh := make(chan map[string]float64, 1)
			err := resilience.WithTimeout(ctx, s.opts.TimeoutPerIndex, "score "+ns.String(), func(ctx context.Context) error {
				scores, err := Score(ctx, kv, q)
				if err != nil {
					return err
				}
				scoresCh <- scores
				return nil
			})
			res := indexResult{ns: ns, err: err}
			if err == nil {
				res.scores = <-scoresCh
				span.SetAttr("candidates", len(res.scores))
			} else {
				res.err = fmt.Errorf("%w: %s: %w", apperrors.ErrIndexUnavailable, ns, err)
			}
			span.End(res.err)
			results[i] = res
		}()
	}
	wg.Wait()
	return results
}

// resolve attaches the metadata record and rounded score to each ranked
// document. Missing or unreadable records resolve to an empty record.
func (s *Searcher) resolve(ctx context.Context, top []ScoredDoc) ([]Entry, error) {
	entries := make([]Entry, 0, len(top))
	if len(top) == 0 {
		return entries, nil
	}
	ids := make([]string, len(top))
	for i, d := range top {
		ids[i] = d.DocID
	}
	records, err := s.metadata.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrMetadataUnavailable, err)
	}
	for _, d := range top {
		var rec metadata.Record
		if data, ok := records[d.DocID]; ok {
			rec, err = metadata.Decode(data)
			if err != nil {
				s.logger.Warn("unreadable metadata record", "doc_id", d.DocID, "error", err)
				rec = metadata.Record{}
			}
		} else {
			s.logger.Warn("no metadata record for ranked document", "doc_id", d.DocID)
		}
		entries = append(entries, Entry{DocID: d.DocID, Record: rec, Score: vector.Round(d.Score)})
	}
	return entries, nil
}

func (s *Searcher) countQuery(outcome string) {
	if s.opts.Metrics == nil {
		return
	}
	s.opts.Metrics.QueriesTotal.WithLabelValues(outcome).Inc()
}
