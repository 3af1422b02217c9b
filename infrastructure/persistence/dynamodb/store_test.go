package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"testing"
	"time"

	"concept-tree/domain/core/entities"
	"concept-tree/domain/core/valueobjects"
	appErrors "concept-tree/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}

func (m *mockClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

const testKey = "artifacts/app/public/graphs/graphData"

func documentOutput(t *testing.T, doc entities.GraphDocument, version int64) *dynamodb.GetItemOutput {
	t.Helper()
	payload, err := json.Marshal(doc)
	require.NoError(t, err)
	return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"PK":      &types.AttributeValueMemberS{Value: testKey},
		"Payload": &types.AttributeValueMemberS{Value: string(payload)},
		"Version": &types.AttributeValueMemberN{Value: strconv.FormatInt(version, 10)},
	}}
}

func seed() entities.GraphDocument {
	return entities.SeedDocument("1", "custom", "Root Concept", valueobjects.Position{X: 250, Y: 5})
}

func attributeNames(names map[string]string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func TestDocumentStore_GetMissing(t *testing.T) {
	client := new(mockClient)
	client.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)
	store := NewDocumentStore(client, "graphs", nil, zap.NewNop())

	_, err := store.Get(context.Background(), testKey)

	assert.True(t, appErrors.IsNotFound(err))
}

func TestDocumentStore_GetDecodesPayload(t *testing.T) {
	client := new(mockClient)
	client.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		pk, ok := in.Key["PK"].(*types.AttributeValueMemberS)
		return ok && pk.Value == testKey && *in.TableName == "graphs"
	})).Return(documentOutput(t, seed(), 4), nil)
	store := NewDocumentStore(client, "graphs", nil, zap.NewNop())

	got, err := store.Get(context.Background(), testKey)

	require.NoError(t, err)
	assert.Equal(t, int64(4), got.Version)
	require.Len(t, got.Document.Nodes, 1)
	assert.Equal(t, "Root Concept", got.Document.Nodes[0].Data.Label)
}

func TestDocumentStore_PutReturnsNewVersion(t *testing.T) {
	client := new(mockClient)
	client.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return in.ReturnValues == types.ReturnValueUpdatedNew &&
			assert.ObjectsAreEqual([]string{"Payload", "UpdatedAt", "Version"}, attributeNames(in.ExpressionAttributeNames))
	})).Return(&dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
		"Version": &types.AttributeValueMemberN{Value: "7"},
	}}, nil)
	store := NewDocumentStore(client, "graphs", nil, zap.NewNop())

	version, err := store.Put(context.Background(), testKey, seed())

	require.NoError(t, err)
	assert.Equal(t, int64(7), version)
	client.AssertExpectations(t)
}

func TestDocumentStore_PutMapsErrors(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{name: "conditional failure", err: &types.ConditionalCheckFailedException{}, check: appErrors.IsConflict},
		{name: "throttled", err: &types.ProvisionedThroughputExceededException{}, check: func(err error) bool {
			return appErrors.IsType(err, appErrors.ErrorTypeUnavailable)
		}},
		{name: "deadline", err: context.DeadlineExceeded, check: func(err error) bool {
			return appErrors.IsType(err, appErrors.ErrorTypeTimeout)
		}},
		{name: "other", err: errors.New("boom"), check: func(err error) bool {
			return appErrors.IsType(err, appErrors.ErrorTypeDatabase)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(mockClient)
			client.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, tt.err)
			store := NewDocumentStore(client, "graphs", nil, zap.NewNop())

			_, err := store.Put(context.Background(), testKey, seed())

			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestDocumentStore_SubscribeEmitsOnVersionChange(t *testing.T) {
	client := new(mockClient)
	client.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil).Once()
	client.On("GetItem", mock.Anything, mock.Anything).Return(documentOutput(t, seed(), 1), nil)
	store := NewDocumentStore(client, "graphs", func() time.Duration { return 5 * time.Millisecond }, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed, err := store.Subscribe(ctx, testKey)
	require.NoError(t, err)

	first := <-feed
	assert.False(t, first.Exists)

	second := <-feed
	assert.True(t, second.Exists)
	assert.Equal(t, int64(1), second.Version)

	select {
	case snap := <-feed:
		t.Fatalf("unexpected snapshot for unchanged version: %+v", snap)
	case <-time.After(30 * time.Millisecond):
	}

	cancel()
	for range feed {
	}
}

func TestDocumentStore_SubscribeReportsFailureOnce(t *testing.T) {
	client := new(mockClient)
	client.On("GetItem", mock.Anything, mock.Anything).Return(nil, errors.New("unreachable"))
	store := NewDocumentStore(client, "graphs", func() time.Duration { return 5 * time.Millisecond }, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed, err := store.Subscribe(ctx, testKey)
	require.NoError(t, err)

	snap := <-feed
	assert.Error(t, snap.Err)

	select {
	case extra := <-feed:
		t.Fatalf("failure reported twice: %+v", extra)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestArticleStore_CreateIsConditional(t *testing.T) {
	client := new(mockClient)
	client.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		title, ok := in.Item["Title"].(*types.AttributeValueMemberS)
		return ok && title.Value == "Untitled" && in.ConditionExpression != nil
	})).Return(&dynamodb.PutItemOutput{}, nil)
	store := NewArticleStore(client, "articles", zap.NewNop())

	id, err := store.Create(context.Background(), "Untitled", "")

	require.NoError(t, err)
	assert.False(t, id.IsZero())
	client.AssertExpectations(t)
}

func TestArticleStore_GetMissing(t *testing.T) {
	client := new(mockClient)
	client.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)
	store := NewArticleStore(client, "articles", zap.NewNop())

	_, err := store.Get(context.Background(), "nope")

	assert.True(t, appErrors.IsNotFound(err))
}

func TestArticleStore_GetDecodes(t *testing.T) {
	client := new(mockClient)
	client.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"ArticleID": &types.AttributeValueMemberS{Value: "a-1"},
		"Title":     &types.AttributeValueMemberS{Value: "Photosynthesis"},
		"Content":   &types.AttributeValueMemberS{Value: "Light into sugar"},
		"CreatedAt": &types.AttributeValueMemberS{Value: "2024-01-02T03:04:05Z"},
	}}, nil)
	store := NewArticleStore(client, "articles", zap.NewNop())

	article, err := store.Get(context.Background(), "a-1")

	require.NoError(t, err)
	assert.Equal(t, valueobjects.ArticleID("a-1"), article.ID)
	assert.Equal(t, "Light into sugar", article.Content)
	assert.Equal(t, 2024, article.CreatedAt.Year())
}

func TestArticleStore_UpdateSetsOnlyPatchedFields(t *testing.T) {
	content := "new body"
	client := new(mockClient)
	client.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return assert.ObjectsAreEqual([]string{"Content", "CreatedAt"}, attributeNames(in.ExpressionAttributeNames))
	})).Return(&dynamodb.UpdateItemOutput{}, nil)
	store := NewArticleStore(client, "articles", zap.NewNop())

	err := store.Update(context.Background(), "a-1", entities.ArticlePatch{Content: &content})

	require.NoError(t, err)
	client.AssertExpectations(t)
}
