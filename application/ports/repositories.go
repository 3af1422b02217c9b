package ports

import (
	"context"

	"concept-tree/domain/core/entities"
	"concept-tree/domain/core/valueobjects"
	"concept-tree/domain/events"
)

// VersionedDocument is a stored graph document together with the store's write counter
type VersionedDocument struct {
	Document entities.GraphDocument
	Version  int64
}

// DocumentSnapshot is one element of a subscription feed.
// Exists is false when the document has not been written yet.
// A non-nil Err reports a failed read; the feed stays open.
type DocumentSnapshot struct {
	Key      string
	Document entities.GraphDocument
	Exists   bool
	Version  int64
	Err      error
}

// GraphDocumentStore persists whole graph documents keyed by a document path.
// Writes are whole-document overwrites; the last completed write wins.
type GraphDocumentStore interface {
	// Get reads the document. A missing document yields a NOT_FOUND error.
	Get(ctx context.Context, key string) (*VersionedDocument, error)

	// Put overwrites the document and returns its new version
	Put(ctx context.Context, key string, doc entities.GraphDocument) (int64, error)

	// Subscribe streams the current state of the document followed by every change.
	// The channel is closed once ctx is cancelled; cancelling is the unsubscribe.
	Subscribe(ctx context.Context, key string) (<-chan DocumentSnapshot, error)
}

// ArticleStore creates, reads and partially updates articles
type ArticleStore interface {
	// Create stores a new article and returns its generated id
	Create(ctx context.Context, title, content string) (valueobjects.ArticleID, error)

	// Get reads an article. A missing article yields a NOT_FOUND error.
	Get(ctx context.Context, id valueobjects.ArticleID) (*entities.Article, error)

	// Update merges the non-nil patch fields into the stored article
	Update(ctx context.Context, id valueobjects.ArticleID, patch entities.ArticlePatch) error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Readiness gates remote-facing operations until the first snapshot has been applied
type Readiness interface {
	Ready() bool
}
