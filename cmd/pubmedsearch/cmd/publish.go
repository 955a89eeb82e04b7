package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/source"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/kafka"
)

func newPublishCmd(a *app) *cobra.Command {
	var (
		src       sourceOptions
		batchSize int
	)
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Copy documents to the documents Kafka topic",
		Long: `Publish reads documents from the PubMed baseline or a JSON-lines file
and writes them to the documents topic, where "build --source kafka"
picks them up.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if src.kind == sourceKafka {
				return fmt.Errorf("publish cannot read from kafka")
			}
			return a.runPublish(cmd.Context(), cmd, src, batchSize)
		},
	}
	src.bind(cmd)
	cmd.Flags().IntVar(&batchSize, "batch-size", 100, "documents per Kafka write")
	return cmd
}

func (a *app) runPublish(ctx context.Context, cmd *cobra.Command, src sourceOptions, batchSize int) error {
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

	p := kafka.NewProducer(a.cfg.Kafka, a.cfg.Kafka.Topics.Documents)
	defer p.Close()

	n, err := source.Publish(ctx, docs, p, batchSize)
	fmt.Fprintf(cmd.OutOrStdout(), "published %d documents to %s\n", n, a.cfg.Kafka.Topics.Documents)
	return err
}
