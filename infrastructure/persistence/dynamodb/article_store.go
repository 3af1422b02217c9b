package dynamodb

import (
	"context"
	"fmt"
	"time"

	"concept-tree/domain/core/entities"
	"concept-tree/domain/core/valueobjects"
	appErrors "concept-tree/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ArticleStore keeps one article per item, keyed by ArticleID
type ArticleStore struct {
	client    Client
	tableName string
	now       func() time.Time
	logger    *zap.Logger
}

// NewArticleStore creates an article store over the given table
func NewArticleStore(client Client, tableName string, logger *zap.Logger) *ArticleStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArticleStore{
		client:    client,
		tableName: tableName,
		now:       time.Now,
		logger:    logger,
	}
}

func articleKey(id valueobjects.ArticleID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"ArticleID": &types.AttributeValueMemberS{Value: id.String()},
	}
}

// Create writes a new article under a fresh uuid
func (s *ArticleStore) Create(ctx context.Context, title, content string) (valueobjects.ArticleID, error) {
	article := entities.Article{
		ID:        valueobjects.ArticleID(uuid.New().String()),
		Title:     title,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}

	item, err := attributevalue.MarshalMap(article)
	if err != nil {
		return "", fmt.Errorf("failed to marshal article: %w", err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("ArticleID").AttributeNotExists()).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(s.tableName),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return "", mapError("create article", article.ID.String(), err)
	}

	s.logger.Debug("Article created", zap.String("articleID", article.ID.String()))
	return article.ID, nil
}

// Get reads an article
func (s *ArticleStore) Get(ctx context.Context, id valueobjects.ArticleID) (*entities.Article, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       articleKey(id),
	})
	if err != nil {
		return nil, mapError("get article", id.String(), err)
	}
	if result.Item == nil {
		return nil, appErrors.NewNotFoundError(fmt.Sprintf("article '%s'", id))
	}

	var article entities.Article
	if err := attributevalue.UnmarshalMap(result.Item, &article); err != nil {
		return nil, fmt.Errorf("failed to unmarshal article: %w", err)
	}
	return &article, nil
}

// Update sets only the patched attributes. An unknown id is created, matching merge semantics.
func (s *ArticleStore) Update(ctx context.Context, id valueobjects.ArticleID, patch entities.ArticlePatch) error {
	update := expression.Set(
		expression.Name("CreatedAt"),
		expression.Name("CreatedAt").IfNotExists(expression.Value(s.now().UTC().Format(time.RFC3339Nano))),
	)
	if patch.Title != nil {
		update = update.Set(expression.Name("Title"), expression.Value(*patch.Title))
	}
	if patch.Content != nil {
		update = update.Set(expression.Name("Content"), expression.Value(*patch.Content))
	}

	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       articleKey(id),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return mapError("update article", id.String(), err)
	}

	s.logger.Debug("Article updated",
		zap.String("articleID", id.String()),
		zap.Bool("title", patch.Title != nil),
		zap.Bool("content", patch.Content != nil),
	)
	return nil
}
