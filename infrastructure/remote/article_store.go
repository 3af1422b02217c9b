package remote

import (
	"context"
	"net/http"
	"net/url"

	"concept-tree/domain/core/entities"
	"concept-tree/domain/core/valueobjects"
)

type createArticleRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type createArticleResponse struct {
	ID valueobjects.ArticleID `json:"id"`
}

// ArticleStore reads and writes articles over REST
type ArticleStore struct {
	client *Client
}

// NewArticleStore creates an article store backed by the remote server
func NewArticleStore(client *Client) *ArticleStore {
	return &ArticleStore{client: client}
}

func articlePath(id valueobjects.ArticleID) string {
	return "articles/" + url.PathEscape(id.String())
}

// Create stores a new article
func (s *ArticleStore) Create(ctx context.Context, title, content string) (valueobjects.ArticleID, error) {
	var resp createArticleResponse
	if err := s.client.do(ctx, http.MethodPost, "articles/", createArticleRequest{Title: title, Content: content}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Get reads an article
func (s *ArticleStore) Get(ctx context.Context, id valueobjects.ArticleID) (*entities.Article, error) {
	var article entities.Article
	if err := s.client.do(ctx, http.MethodGet, articlePath(id), nil, &article); err != nil {
		return nil, err
	}
	return &article, nil
}

// Update sends the patch fields that are set
func (s *ArticleStore) Update(ctx context.Context, id valueobjects.ArticleID, patch entities.ArticlePatch) error {
	return s.client.do(ctx, http.MethodPatch, articlePath(id), patch, nil)
}
