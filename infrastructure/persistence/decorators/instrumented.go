package decorators

import (
	"context"
	"time"

	"concept-tree/application/ports"
	"concept-tree/domain/core/entities"
	"concept-tree/domain/core/valueobjects"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// StoreObserver receives one observation per storage call
type StoreObserver interface {
	ObserveStore(store, operation string, err error, duration time.Duration)
}

type instrument struct {
	store    string
	observer StoreObserver
	tracer   trace.Tracer
	logger   *zap.Logger
}

func newInstrument(store string, observer StoreObserver, logger *zap.Logger) instrument {
	if logger == nil {
		logger = zap.NewNop()
	}
	return instrument{
		store:    store,
		observer: observer,
		tracer:   otel.Tracer("concept-tree/store"),
		logger:   logger,
	}
}

// track opens a span and returns the function that closes it and records the outcome
func (i instrument) track(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := i.tracer.Start(ctx, i.store+"."+operation, trace.WithAttributes(attrs...))

	return ctx, func(err error) {
		duration := time.Since(start)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if i.observer != nil {
			i.observer.ObserveStore(i.store, operation, err, duration)
		}
		if ce := i.logger.Check(zap.DebugLevel, "Store call"); ce != nil {
			ce.Write(
				zap.String("store", i.store),
				zap.String("operation", operation),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		}
	}
}

// InstrumentedDocumentStore records metrics and spans for every document store call
type InstrumentedDocumentStore struct {
	inner ports.GraphDocumentStore
	instrument
}

// NewInstrumentedDocumentStore wraps a document store
func NewInstrumentedDocumentStore(inner ports.GraphDocumentStore, observer StoreObserver, logger *zap.Logger) *InstrumentedDocumentStore {
	return &InstrumentedDocumentStore{inner: inner, instrument: newInstrument("graph_documents", observer, logger)}
}

// Get reads the document
func (s *InstrumentedDocumentStore) Get(ctx context.Context, key string) (*ports.VersionedDocument, error) {
	ctx, done := s.track(ctx, "get", attribute.String("graph.key", key))
	doc, err := s.inner.Get(ctx, key)
	done(err)
	return doc, err
}

// Put writes the document
func (s *InstrumentedDocumentStore) Put(ctx context.Context, key string, doc entities.GraphDocument) (int64, error) {
	ctx, done := s.track(ctx, "put",
		attribute.String("graph.key", key),
		attribute.Int("graph.nodes", len(doc.Nodes)),
		attribute.Int("graph.edges", len(doc.Edges)),
	)
	version, err := s.inner.Put(ctx, key, doc)
	done(err)
	return version, err
}

// Subscribe opens a feed; only the opening is measured
func (s *InstrumentedDocumentStore) Subscribe(ctx context.Context, key string) (<-chan ports.DocumentSnapshot, error) {
	_, done := s.track(ctx, "subscribe", attribute.String("graph.key", key))
	feed, err := s.inner.Subscribe(ctx, key)
	done(err)
	return feed, err
}

// InstrumentedArticleStore records metrics and spans for every article store call
type InstrumentedArticleStore struct {
	inner ports.ArticleStore
	instrument
}

// NewInstrumentedArticleStore wraps an article store
func NewInstrumentedArticleStore(inner ports.ArticleStore, observer StoreObserver, logger *zap.Logger) *InstrumentedArticleStore {
	return &InstrumentedArticleStore{inner: inner, instrument: newInstrument("articles", observer, logger)}
}

// Create stores a new article
func (s *InstrumentedArticleStore) Create(ctx context.Context, title, content string) (valueobjects.ArticleID, error) {
	ctx, done := s.track(ctx, "create")
	id, err := s.inner.Create(ctx, title, content)
	done(err)
	return id, err
}

// Get reads an article
func (s *InstrumentedArticleStore) Get(ctx context.Context, id valueobjects.ArticleID) (*entities.Article, error) {
	ctx, done := s.track(ctx, "get", attribute.String("article.id", id.String()))
	article, err := s.inner.Get(ctx, id)
	done(err)
	return article, err
}

// Update patches an article
func (s *InstrumentedArticleStore) Update(ctx context.Context, id valueobjects.ArticleID, patch entities.ArticlePatch) error {
	ctx, done := s.track(ctx, "update", attribute.String("article.id", id.String()))
	err := s.inner.Update(ctx, id, patch)
	done(err)
	return err
}
