package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"concept-tree/domain/core/entities"
	"concept-tree/domain/core/valueobjects"
	appErrors "concept-tree/pkg/errors"

	"github.com/google/uuid"
)

// ArticleStore keeps articles in a map keyed by generated uuid
type ArticleStore struct {
	mu       sync.RWMutex
	articles map[valueobjects.ArticleID]entities.Article
	now      func() time.Time
}

// NewArticleStore creates an empty article store
func NewArticleStore() *ArticleStore {
	return &ArticleStore{
		articles: make(map[valueobjects.ArticleID]entities.Article),
		now:      time.Now,
	}
}

// Create stores a new article
func (s *ArticleStore) Create(ctx context.Context, title, content string) (valueobjects.ArticleID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := valueobjects.ArticleID(uuid.New().String())

	s.mu.Lock()
	s.articles[id] = entities.Article{
		ID:        id,
		Title:     title,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	s.mu.Unlock()

	return id, nil
}

// Get reads an article
func (s *ArticleStore) Get(ctx context.Context, id valueobjects.ArticleID) (*entities.Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	article, ok := s.articles[id]
	s.mu.RUnlock()

	if !ok {
		return nil, appErrors.NewNotFoundError(fmt.Sprintf("article '%s'", id))
	}
	return &article, nil
}

// Update merges the patch into the stored article.
// Like a merge write, an unknown id creates the article from the patch.
func (s *ArticleStore) Update(ctx context.Context, id valueobjects.ArticleID, patch entities.ArticlePatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	article, ok := s.articles[id]
	if !ok {
		article = entities.Article{ID: id, CreatedAt: s.now().UTC()}
	}
	s.articles[id] = article.Apply(patch)
	return nil
}

// Len returns the number of stored articles
func (s *ArticleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.articles)
}
