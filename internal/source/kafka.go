package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/kafka"
)

// Kafka yields documents consumed from a topic until its context ends.
// Messages are committed after fn accepts them.
type Kafka struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func NewKafka(c *kafka.Consumer) *Kafka {
	return &Kafka{consumer: c, logger: slog.Default().With("component", "kafka-source")}
}

func (k *Kafka) Each(ctx context.Context, fn func(ctx context.Context, doc document.Document) error) error {
	return k.consumer.Run(ctx, func(ctx context.Context, key, value []byte) error {
		doc, err := kafka.DecodeJSON[document.Document](value)
		if err != nil {
			return fmt.Errorf("message %q: %w", key, err)
		}
		return fn(ctx, doc)
	})
}

func (k *Kafka) Close() error {
	return k.consumer.Close()
}

// Publish copies every document of src to the producer's topic in batches,
// keyed by pubmed ID. Documents without one are skipped. It returns the
// number of documents published.
func Publish(ctx context.Context, src document.Source, p *kafka.Producer, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	logger := slog.Default().With("component", "kafka-publisher")
	published := 0
	batch := make([]kafka.Event, 0, batchSize)
	flush := func(ctx context.Context) error {
		if err := p.PublishBatch(ctx, batch); err != nil {
			return err
		}
		published += len(batch)
		batch = batch[:0]
		return nil
	}

	err := src.Each(ctx, func(ctx context.Context, doc document.Document) error {
		id, err := doc.PubmedID()
		if err != nil {
			logger.Warn("skipping document without pubmed id", "error", err)
			return nil
		}
		batch = append(batch, kafka.Event{Key: id, Value: doc})
		if len(batch) >= batchSize {
			return flush(ctx)
		}
		return nil
	})
	if err != nil {
		return published, fmt.Errorf("publishing documents: %w", err)
	}
	if err := flush(ctx); err != nil {
		return published, fmt.Errorf("publishing documents: %w", err)
	}
	logger.Info("documents published", "count", published)
	return published, nil
}
