package publisher

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/library"
	apperrors "github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCatalog struct {
	mu   sync.Mutex
	docs map[string]library.Document
}

func (m *memCatalog) Create(_ context.Context, doc library.Document) (library.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID == "" {
		doc.ID = "doc-1"
	}
	doc.Status = library.StatusActive
	m.docs[doc.ID] = doc
	return doc, nil
}

func (m *memCatalog) SoftDelete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return apperrors.ErrDocumentNotFound
	}
	d.Status = library.StatusDeleted
	m.docs[id] = d
	return nil
}

type fakeProducer struct {
	failures int
	events   []kafka.Event
}

func (f *fakeProducer) Publish(_ context.Context, e kafka.Event) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("broker unavailable")
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakeProducer) PublishBatch(ctx context.Context, events []kafka.Event) error {
	for _, e := range events {
		if err := f.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

var fastRetry = resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}

func TestUploadPublishesIndexEvent(t *testing.T) {
	catalog := &memCatalog{docs: map[string]library.Document{}}
	producer := &fakeProducer{failures: 1}
	p := New(catalog, producer, fastRetry)

	doc, err := p.Upload(context.Background(), library.Document{Title: "Orbits", Classification: library.Internal}, library.PageText{1: "alpha"})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.ID)

	require.Len(t, producer.events, 1)
	assert.Equal(t, "doc-1", producer.events[0].Key)
	event := producer.events[0].Value.(ingestion.DocumentEvent)
	assert.Equal(t, ingestion.ActionIndex, event.Action)
	assert.Equal(t, "alpha", event.Pages[1])
}

func TestUploadRollsBackWhenPublishFails(t *testing.T) {
	catalog := &memCatalog{docs: map[string]library.Document{}}
	p := New(catalog, &fakeProducer{failures: 10}, fastRetry)

	_, err := p.Upload(context.Background(), library.Document{Title: "Orbits"}, library.PageText{1: "alpha"})
	require.Error(t, err)
	assert.False(t, catalog.docs["doc-1"].Active())
}

func TestDelete(t *testing.T) {
	catalog := &memCatalog{docs: map[string]library.Document{"d1": {ID: "d1", Status: library.StatusActive}}}
	producer := &fakeProducer{}
	p := New(catalog, producer, fastRetry)

	require.NoError(t, p.Delete(context.Background(), "d1"))
	assert.False(t, catalog.docs["d1"].Active())
	require.Len(t, producer.events, 1)
	assert.Equal(t, ingestion.ActionDeindex, producer.events[0].Value.(ingestion.DocumentEvent).Action)

	assert.ErrorIs(t, p.Delete(context.Background(), "missing"), apperrors.ErrDocumentNotFound)
	assert.Len(t, producer.events, 1)
}

func TestDeleteRetryResendsDeindex(t *testing.T) {
	catalog := &memCatalog{docs: map[string]library.Document{"d1": {ID: "d1", Status: library.StatusActive}}}
	producer := &fakeProducer{failures: fastRetry.MaxAttempts}
	p := New(catalog, producer, fastRetry)

	err := p.Delete(context.Background(), "d1")
	require.ErrorIs(t, err, apperrors.ErrPublishFailed)
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.HTTPStatusCode(err))
	assert.False(t, catalog.docs["d1"].Active())
	assert.Empty(t, producer.events)

	require.NoError(t, p.Delete(context.Background(), "d1"))
	require.Len(t, producer.events, 1)
	event := producer.events[0].Value.(ingestion.DocumentEvent)
	assert.Equal(t, ingestion.ActionDeindex, event.Action)
	assert.Equal(t, "d1", event.DocumentID)
}
