package services

import (
	"context"
	"fmt"
	"time"

	"concept-tree/application/ports"
	"concept-tree/domain/config"
	"concept-tree/domain/core/entities"
	"concept-tree/domain/core/valueobjects"
	"concept-tree/domain/events"
	appErrors "concept-tree/pkg/errors"

	"go.uber.org/zap"
)

// ArticleService creates, opens and saves articles. It never touches the graph document.
type ArticleService struct {
	store     ports.ArticleStore
	publisher ports.EventPublisher
	readiness ports.Readiness
	config    *config.DomainConfig
	logger    *zap.Logger
}

// NewArticleService creates a new article service.
// publisher and readiness are optional; a nil readiness never blocks.
func NewArticleService(
	store ports.ArticleStore,
	publisher ports.EventPublisher,
	readiness ports.Readiness,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *ArticleService {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArticleService{
		store:     store,
		publisher: publisher,
		readiness: readiness,
		config:    cfg,
		logger:    logger,
	}
}

// Create allocates a new article. An empty title falls back to the configured default.
func (s *ArticleService) Create(ctx context.Context, title, content string) (valueobjects.ArticleID, error) {
	if err := s.ensureReady("create article"); err != nil {
		return "", err
	}
	if title == "" {
		title = s.config.DefaultArticleTitle
	}

	id, err := s.store.Create(ctx, title, content)
	if err != nil {
		s.logger.Error("Failed to create article", zap.Error(err))
		return "", appErrors.NewWriteFailureError("create article", err)
	}

	s.logger.Info("Article created", zap.String("articleID", id.String()))
	s.publish(ctx, events.NewArticleCreated(id, title, time.Now()))
	return id, nil
}

// Open reads an article. A dangling id is not an error: it yields an article
// with empty title and content.
func (s *ArticleService) Open(ctx context.Context, id valueobjects.ArticleID) (*entities.Article, error) {
	if err := s.ensureReady("open article"); err != nil {
		return nil, err
	}
	if id.IsZero() {
		return nil, appErrors.NewValidationError("article id is required")
	}

	article, err := s.store.Get(ctx, id)
	if appErrors.IsNotFound(err) {
		s.logger.Warn("No such article", zap.String("articleID", id.String()))
		return &entities.Article{ID: id}, nil
	}
	if err != nil {
		s.logger.Error("Failed to read article", zap.String("articleID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to read article: %w", err)
	}
	return article, nil
}

// Save merges title and content into the stored article
func (s *ArticleService) Save(ctx context.Context, id valueobjects.ArticleID, patch entities.ArticlePatch) error {
	if err := s.ensureReady("save article"); err != nil {
		return err
	}
	if id.IsZero() {
		return appErrors.NewValidationError("article id is required")
	}
	if patch.IsEmpty() {
		return appErrors.NewValidationError("nothing to update")
	}

	if err := s.store.Update(ctx, id, patch); err != nil {
		s.logger.Error("Failed to save article", zap.String("articleID", id.String()), zap.Error(err))
		return appErrors.NewWriteFailureError("save article", err)
	}

	var fields []string
	if patch.Title != nil {
		fields = append(fields, "title")
	}
	if patch.Content != nil {
		fields = append(fields, "content")
	}
	s.publish(ctx, events.NewArticleUpdated(id, fields, time.Now()))
	return nil
}

func (s *ArticleService) ensureReady(operation string) error {
	if s.readiness != nil && !s.readiness.Ready() {
		return appErrors.NewNotReadyError(operation)
	}
	return nil
}

// publish is best effort; the article write has already succeeded
func (s *ArticleService) publish(ctx context.Context, event events.DomainEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish article event",
			zap.String("eventType", event.GetEventType()),
			zap.Error(err),
		)
	}
}
