package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/ledger"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/pubmed"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/source"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/postgres"
)

const (
	sourcePubmed = "pubmed"
	sourceJSONL  = "jsonl"
	sourceKafka  = "kafka"
)

type sourceOptions struct {
	kind        string
	input       string
	maxFiles    int
	filesOffset int
}

func (o *sourceOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.kind, "source", sourcePubmed, "document source: pubmed, jsonl or kafka")
	cmd.Flags().StringVar(&o.input, "input", "-", "JSON-lines file for --source jsonl (- reads stdin)")
	cmd.Flags().IntVar(&o.maxFiles, "max-files", -1, "baseline files to read (0 reads all, default from config)")
	cmd.Flags().IntVar(&o.filesOffset, "files-offset", -1, "baseline files to skip (default from config)")
}

// open builds the selected source. The returned close function releases
// any consumer it created.
func (o *sourceOptions) open(cfg *config.Config, m *metrics.Metrics) (document.Source, func() error, error) {
	noop := func() error { return nil }
	switch o.kind {
	case sourcePubmed:
		bc := cfg.Build
		if o.maxFiles >= 0 {
			bc.MaxFiles = o.maxFiles
		}
		if o.filesOffset >= 0 {
			bc.FilesOffset = o.filesOffset
		}
		return pubmed.NewSource(bc, nil, m), noop, nil
	case sourceJSONL:
		return source.NewJSONLinesFile(o.input), noop, nil
	case sourceKafka:
		k := source.NewKafka(kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.Documents))
		return k, k.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown source %q", o.kind)
	}
}

func newBuildCmd(a *app) *cobra.Command {
	var (
		src    sourceOptions
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Index documents into the field indices",
		Long: `Build reads documents from the PubMed baseline, a JSON-lines file or
the documents Kafka topic and writes every one into the keywords,
abstracts, titles, chemicals, authors and metadata indices.

Examples:
  pubmedsearch build --max-files 1
  pubmedsearch build --source jsonl --input docs.jsonl
  pubmedsearch build --source kafka`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runBuild(cmd.Context(), cmd, src, dryRun)
		},
	}
	src.bind(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "index into memory instead of Redis")
	return cmd
}

func (a *app) runBuild(ctx context.Context, cmd *cobra.Command, src sourceOptions, dryRun bool) error {
	m, stopMetrics, err := a.startMetrics()
	if err != nil {
		return err
	}
	defer stopMetrics()

	docs, closeSource, err := src.open(a.cfg, m)
	if err != nil {
		return err
	}
	defer closeSource()

	var provider store.Provider
	if dryRun {
		provider = store.NewMemory()
	} else {
		r, err := a.openStore()
		if err != nil {
			return err
		}
		defer r.Close()
		provider = r
	}

	opts := indexer.Options{
		TaskTimeout:   a.cfg.Build.TaskTimeout,
		ProgressEvery: a.cfg.Build.ProgressEvery,
		Metrics:       m,
	}
	if a.cfg.Build.CrossRefs {
		opts.CrossRefs = pubmed.NewLinkClient(a.cfg.Build, nil, m)
		opts.CrossRefTimeout = a.cfg.Build.CrossRefTimeout
	}
	if a.cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, a.cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting ledger: %w", err)
		}
		defer pg.Close()
		l, err := ledger.Open(ctx, pg)
		if err != nil {
			return err
		}
		opts.Recorder = l
	}

	slog.Info("build starting", "source", src.kind, "dry_run", dryRun, "cross_refs", a.cfg.Build.CrossRefs)
	stats, err := indexer.NewPipeline(provider, opts).Build(ctx, docs)
	fmt.Fprintf(cmd.OutOrStdout(), "processed %d documents: %d indexed, %d partial, %d failed, %d skipped\n",
		stats.Processed, stats.Indexed, stats.Partial, stats.Failed, stats.Skipped)
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
