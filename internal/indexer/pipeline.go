// Package indexer writes documents into the field indices. The Pipeline
// fans every document out to one task per namespace and waits for all of
// them before taking the next document, so no two tasks ever touch the same
// namespace at the same time.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/metadata"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/vector"
	apperrors "github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/metrics"
)

// Document statuses reported per processed document.
const (
	StatusIndexed = "INDEXED"
	StatusPartial = "PARTIAL"
	StatusFailed  = "FAILED"
)

// SourceField maps each content namespace to the document field it indexes.
var SourceField = map[store.Namespace]document.Field{
	store.Keywords:  document.FieldKeywords,
	store.Abstracts: document.FieldAbstract,
	store.Titles:    document.FieldTitle,
	store.Chemicals: document.FieldChemicals,
	store.Authors:   document.FieldAuthors,
}

// StatusRecorder persists the outcome of each processed document.
type StatusRecorder interface {
	RecordStatus(ctx context.Context, docID string, status string, failedIndices []string) error
}

// TaskResult is the outcome of one per-namespace task.
type TaskResult struct {
	Namespace store.Namespace
	Terms     int
	Duration  time.Duration
	Err       error
}

// DocResult collects the task results of one document.
type DocResult struct {
	DocID string
	Tasks []TaskResult
}

// Failed returns the namespaces whose task failed.
func (r DocResult) Failed() []string {
	var failed []string
	for _, t := range r.Tasks {
		if t.Err != nil {
			failed = append(failed, t.Namespace.String())
		}
	}
	return failed
}

// Status summarizes the task results.
func (r DocResult) Status() string {
	failed := len(r.Failed())
	switch {
	case failed == 0:
		return StatusIndexed
	case failed == len(r.Tasks):
		return StatusFailed
	default:
		return StatusPartial
	}
}

// Stats are the counters of one build run.
type Stats struct {
	Processed   int
	Indexed     int
	Partial     int
	Failed      int
	Skipped     int
	FailedTasks int
}

// Options configures a Pipeline. Zero values disable the optional parts.
type Options struct {
	TaskTimeout     time.Duration
	ProgressEvery   int
	CrossRefs       metadata.CrossRefLookup
	CrossRefTimeout time.Duration
	Recorder        StatusRecorder
	Metrics         *metrics.Metrics
}

type task struct {
	ns  store.Namespace
	run func(ctx context.Context, docID string, doc *document.Document) (int, error)
}

// Pipeline indexes documents one at a time across all namespaces.
type Pipeline struct {
	tasks    []task
	opts     Options
	recorder StatusRecorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewPipeline wires one writer per content namespace plus the metadata
// writer, all backed by p.
func NewPipeline(p store.Provider, opts Options) *Pipeline {
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 100
	}
	pl := &Pipeline{
		opts:     opts,
		recorder: opts.Recorder,
		metrics:  opts.Metrics,
		logger:   slog.Default().With("component", "build-pipeline"),
	}
	for _, ns := range store.ContentNamespaces {
		w := NewWriter(p.Namespace(ns))
		field := SourceField[ns]
		pl.tasks = append(pl.tasks, task{
			ns: ns,
			run: func(ctx context.Context, docID string, doc *document.Document) (int, error) {
				return w.WriteDocument(ctx, docID, vector.Vectorize(doc.Items(field)))
			},
		})
	}
	mw := metadata.NewWriter(p.Namespace(store.Metadata), opts.CrossRefs, opts.CrossRefTimeout)
	pl.tasks = append(pl.tasks, task{
		ns: store.Metadata,
		run: func(ctx context.Context, docID string, doc *document.Document) (int, error) {
			if err := mw.Write(ctx, docID, doc); err != nil {
				return 0, err
			}
			return 1, nil
		},
	})
	return pl
}

// Build consumes src sequentially. Malformed documents and per-task
// failures are logged and counted; only a source error or cancellation
// ends the run early.
func (p *Pipeline) Build(ctx context.Context, src document.Source) (Stats, error) {
	if logger.RunID(ctx) == "" {
		ctx = logger.WithRunID(ctx, uuid.NewString())
	}
	log := logger.FromContext(ctx).With("component", "build-pipeline")
	log.Info("build started", "tasks_per_document", len(p.tasks))
	start := time.Now()

	var stats Stats
	err := src.Each(ctx, func(ctx context.Context, doc document.Document) error {
		res, err := p.Process(ctx, &doc)
		if err != nil {
			if errors.Is(err, apperrors.ErrMissingPubmedID) {
				stats.Skipped++
				p.countDoc("skipped")
				log.Warn("skipping document without pubmed id", "error", err)
				return nil
			}
			return err
		}
		stats.Processed++
		stats.FailedTasks += len(res.Failed())
		switch res.Status() {
		case StatusIndexed:
			stats.Indexed++
		case StatusPartial:
			stats.Partial++
		case StatusFailed:
			stats.Failed++
		}
		if stats.Processed%p.opts.ProgressEvery == 0 {
			log.Info("build progress",
				"processed", stats.Processed,
				"skipped", stats.Skipped,
				"partial", stats.Partial,
				"failed", stats.Failed,
				"elapsed", time.Since(start).Round(time.Second),
			)
		}
		return ctx.Err()
	})

	log.Info("build finished",
		"processed", stats.Processed,
		"indexed", stats.Indexed,
		"partial", stats.Partial,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
		"failed_tasks", stats.FailedTasks,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	if err != nil {
		return stats, fmt.Errorf("consuming document source: %w", err)
	}
	return stats, nil
}

// Process indexes one document into every namespace concurrently and
// returns once all tasks have finished. The only error it returns is
// ErrMissingPubmedID; task failures are reported in the DocResult.
func (p *Pipeline) Process(ctx context.Context, doc *document.Document) (DocResult, error) {
	docID, err := doc.PubmedID()
	if err != nil {
		return DocResult{}, err
	}
	res := DocResult{DocID: docID, Tasks: make([]TaskResult, len(p.tasks))}

	var wg sync.WaitGroup
	for i, t := range p.tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res.Tasks[i] = p.runTask(ctx, t, docID, doc)
		}()
	}
	wg.Wait()

	status := res.Status()
	for _, tr := range res.Tasks {
		if tr.Err != nil {
			p.logger.Error("index task failed",
				"doc_id", docID,
				"index", tr.Namespace.String(),
				"error", tr.Err,
			)
		}
	}
	p.countDoc(strings.ToLower(status))
	if p.recorder != nil {
		if err := p.recorder.RecordStatus(ctx, docID, status, res.Failed()); err != nil {
			p.logger.Error("failed to record document status", "doc_id", docID, "status", status, "error", err)
		}
	}
	p.logger.Debug("document processed", "doc_id", docID, "status", status)
	return res, nil
}

// runTask runs t under its own deadline. Panics are converted to errors so
// one task cannot take down its siblings.
func (p *Pipeline) runTask(ctx context.Context, t task, docID string, doc *document.Document) (tr TaskResult) {
	tr.Namespace = t.ns
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			tr.Err = fmt.Errorf("task %s panicked: %v", t.ns, r)
		}
		tr.Duration = time.Since(start)
		p.observeTask(tr)
	}()

	if p.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.TaskTimeout)
		defer cancel()
	}
	tr.Terms, tr.Err = t.run(ctx, docID, doc)
	if tr.Err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		tr.Err = fmt.Errorf("%w after %v: %w", apperrors.ErrTimeout, p.opts.TaskTimeout, tr.Err)
	}
	return tr
}

func (p *Pipeline) observeTask(tr TaskResult) {
	if p.metrics == nil {
		return
	}
	result := "ok"
	if tr.Err != nil {
		result = "error"
	}
	p.metrics.FieldWritesTotal.WithLabelValues(tr.Namespace.String(), result).Inc()
	p.metrics.FieldWriteDuration.WithLabelValues(tr.Namespace.String()).Observe(tr.Duration.Seconds())
}

func (p *Pipeline) countDoc(status string) {
	if p.metrics == nil {
		return
	}
	p.metrics.DocsProcessedTotal.WithLabelValues(status).Inc()
}
