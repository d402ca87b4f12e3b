// Package publisher records uploaded documents in the catalog and publishes
// document events to Kafka for the indexer. A document whose index event
// cannot be published is soft deleted again, so the catalog never lists a
// document the index will not learn about.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/library"
	apperrors "github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/resilience"
)

// Catalog is the write side of internal/catalog.
type Catalog interface {
	Create(ctx context.Context, doc library.Document) (library.Document, error)
	SoftDelete(ctx context.Context, id string) error
}

type Publisher struct {
	catalog  Catalog
	producer kafka.Publisher
	retry    resilience.RetryConfig
	logger   *slog.Logger
}

func New(catalog Catalog, producer kafka.Publisher, retry resilience.RetryConfig) *Publisher {
	return &Publisher{
		catalog:  catalog,
		producer: producer,
		retry:    retry,
		logger:   slog.Default().With("component", "publisher"),
	}
}

// Upload stores doc and publishes its pages for indexing.
func (p *Publisher) Upload(ctx context.Context, doc library.Document, pages library.PageText) (library.Document, error) {
	created, err := p.catalog.Create(ctx, doc)
	if err != nil {
		return library.Document{}, err
	}
	event := ingestion.DocumentEvent{
		Action:      ingestion.ActionIndex,
		DocumentID:  created.ID,
		Pages:       pages,
		PublishedAt: time.Now().UTC(),
	}
	if err := p.publish(ctx, event); err != nil {
		rollback := func(ctx context.Context) error { return p.catalog.SoftDelete(ctx, created.ID) }
		if delErr := resilience.Detached(ctx, 5*time.Second, "roll back upload", rollback); delErr != nil {
			p.logger.Error("failed to roll back unpublished document",
				"document_id", created.ID,
				"error", delErr,
			)
		}
		return library.Document{}, err
	}
	p.logger.Info("document published",
		"document_id", created.ID,
		"classification", created.Classification,
		"pages", len(pages),
	)
	return created, nil
}

// Delete soft deletes id and asks the indexer to purge its postings. The
// catalog flip comes first so searches drop the document at once. Both steps
// are idempotent: if the deindex event cannot be published the caller gets
// ErrPublishFailed and a repeated Delete sends it again.
func (p *Publisher) Delete(ctx context.Context, id string) error {
	if err := p.catalog.SoftDelete(ctx, id); err != nil {
		return err
	}
	event := ingestion.DocumentEvent{
		Action:      ingestion.ActionDeindex,
		DocumentID:  id,
		PublishedAt: time.Now().UTC(),
	}
	if err := p.publish(ctx, event); err != nil {
		p.logger.Error("deindex event not published, postings kept until the delete is retried",
			"document_id", id,
			"error", err,
		)
		return err
	}
	p.logger.Info("document deleted", "document_id", id)
	return nil
}

func (p *Publisher) publish(ctx context.Context, event ingestion.DocumentEvent) error {
	err := resilience.Retry(ctx, "publish document event", p.retry, func() error {
		return p.producer.Publish(ctx, kafka.Event{Key: event.DocumentID, Value: event})
	})
	if err != nil {
		return fmt.Errorf("publishing %s event for %s: %w: %w", event.Action, event.DocumentID, apperrors.ErrPublishFailed, err)
	}
	return nil
}
