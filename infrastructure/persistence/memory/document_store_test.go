package memory

import (
	"context"
	"testing"
	"time"

	"concept-tree/application/ports"
	"concept-tree/domain/core/entities"
	"concept-tree/domain/core/valueobjects"
	appErrors "concept-tree/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testKey = "artifacts/test/public/graphs/graphData"

func sampleDocument() entities.GraphDocument {
	return entities.GraphDocument{
		Nodes: []entities.Node{
			{
				ID:       "1",
				Type:     "custom",
				Position: valueobjects.NewPosition(250, 150),
				Data: entities.NodeData{
					Label: "root",
					Descriptions: []entities.Description{
						{ID: "1700000000000", Text: "numeric id", Link: "A1"},
						{ID: "legacy", Text: "string id"},
					},
					LinkedNodes: []valueobjects.NodeID{"2"},
				},
			},
			{
				ID:       "2",
				Position: valueobjects.NewPosition(10.5, 20.25),
				Data: entities.NodeData{
					Label:        "child",
					Descriptions: []entities.Description{},
					LinkedNodes:  []valueobjects.NodeID{},
				},
			},
		},
		Edges: []entities.Edge{
			{ID: "e1-2", Source: "1", Target: "2", Animated: true, Style: map[string]string{"stroke": "#555"}},
			{ID: "e1-2-b", Source: "1", Target: "2"},
		},
	}
}

func receive(t *testing.T, ch <-chan ports.DocumentSnapshot) ports.DocumentSnapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return ports.DocumentSnapshot{}
	}
}

func TestDocumentStore_RoundTrip(t *testing.T) {
	store := NewDocumentStore(zap.NewNop())
	ctx := context.Background()
	doc := sampleDocument()

	version, err := store.Put(ctx, testKey, doc)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	got, err := store.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, doc, got.Document)
	assert.Equal(t, int64(1), got.Version)
}

func TestDocumentStore_GetMissing(t *testing.T) {
	store := NewDocumentStore(nil)

	_, err := store.Get(context.Background(), "nope")

	assert.True(t, appErrors.IsNotFound(err))
}

func TestDocumentStore_Subscribe(t *testing.T) {
	store := NewDocumentStore(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed, err := store.Subscribe(ctx, testKey)
	require.NoError(t, err)

	first := receive(t, feed)
	assert.False(t, first.Exists)
	assert.Equal(t, testKey, first.Key)

	_, err = store.Put(ctx, testKey, sampleDocument())
	require.NoError(t, err)

	second := receive(t, feed)
	assert.True(t, second.Exists)
	assert.Equal(t, int64(1), second.Version)
	assert.Equal(t, sampleDocument(), second.Document)

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-feed:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestDocumentStore_SubscribersAreIsolatedByKey(t *testing.T) {
	store := NewDocumentStore(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed, err := store.Subscribe(ctx, "a")
	require.NoError(t, err)
	receive(t, feed)

	_, err = store.Put(ctx, "b", sampleDocument())
	require.NoError(t, err)

	select {
	case snap := <-feed:
		t.Fatalf("unexpected snapshot for key %s", snap.Key)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestArticleStore(t *testing.T) {
	store := NewArticleStore()
	ctx := context.Background()

	id, err := store.Create(ctx, "title", "")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	content := "body"
	require.NoError(t, store.Update(ctx, id, entities.ArticlePatch{Content: &content}))

	article, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "title", article.Title)
	assert.Equal(t, "body", article.Content)
	assert.False(t, article.CreatedAt.IsZero())

	_, err = store.Get(ctx, "missing")
	assert.True(t, appErrors.IsNotFound(err))
}
