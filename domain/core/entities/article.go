package entities

import (
	"time"

	"concept-tree/domain/core/valueobjects"
)

// Article is a long-form reference document bound to descriptions by id
type Article struct {
	ID        valueobjects.ArticleID `json:"id" dynamodbav:"ArticleID"`
	Title     string                 `json:"title" dynamodbav:"Title"`
	Content   string                 `json:"content" dynamodbav:"Content"`
	CreatedAt time.Time              `json:"createdAt" dynamodbav:"CreatedAt"`
}

// ArticlePatch is a merge-style partial update; nil fields are left untouched
type ArticlePatch struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (p ArticlePatch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil
}

// Apply merges the patch into a copy of the article
func (a Article) Apply(patch ArticlePatch) Article {
	if patch.Title != nil {
		a.Title = *patch.Title
	}
	if patch.Content != nil {
		a.Content = *patch.Content
	}
	return a
}
