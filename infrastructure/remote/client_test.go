package remote

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"concept-tree/application/ports"
	"concept-tree/domain/core/entities"
	"concept-tree/domain/core/valueobjects"
	"concept-tree/infrastructure/persistence/memory"
	"concept-tree/interfaces/http/rest"
	"concept-tree/interfaces/websocket"
	appErrors "concept-tree/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testKey = "artifacts/app/public/graphs/graphData"

func newRemote(t *testing.T) (*DocumentStore, *ArticleStore) {
	t.Helper()
	logger := zap.NewNop()
	documents := memory.NewDocumentStore(logger)
	articles := memory.NewArticleStore()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := websocket.NewHub(documents, nil, logger)
	go hub.Run(ctx)

	router := rest.NewRouter(documents, articles, nil,
		websocket.NewServer(hub, websocket.DefaultServerConfig(), logger),
		nil, nil, rest.RouterConfig{}, logger)
	server := httptest.NewServer(router.Setup())
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL+"/", nil, logger)
	require.NoError(t, err)
	return NewDocumentStore(client), NewArticleStore(client)
}

func seed() entities.GraphDocument {
	return entities.SeedDocument("1", "custom", "Root Concept", valueobjects.Position{X: 250, Y: 150})
}

func next(t *testing.T, ch <-chan ports.DocumentSnapshot) ports.DocumentSnapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "feed closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot received")
		return ports.DocumentSnapshot{}
	}
}

func TestNewClient_RejectsBadScheme(t *testing.T) {
	_, err := NewClient("ftp://example.com", nil, nil)
	assert.Error(t, err)
}

func TestDocumentStore_GetPut(t *testing.T) {
	store, _ := newRemote(t)
	ctx := context.Background()

	_, err := store.Get(ctx, testKey)
	assert.True(t, appErrors.IsNotFound(err))

	version, err := store.Put(ctx, testKey, seed())
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	got, err := store.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	require.Len(t, got.Document.Nodes, 1)
	assert.Equal(t, "Root Concept", got.Document.Nodes[0].Data.Label)
}

func TestDocumentStore_PutInvalid(t *testing.T) {
	store, _ := newRemote(t)

	doc := entities.GraphDocument{
		Nodes: []entities.Node{},
		Edges: []entities.Edge{{ID: "e", Source: "1"}},
	}
	_, err := store.Put(context.Background(), testKey, doc)
	assert.True(t, appErrors.IsValidation(err))
}

func TestDocumentStore_Subscribe(t *testing.T) {
	store, _ := newRemote(t)
	ctx, cancel := context.WithCancel(context.Background())

	feed, err := store.Subscribe(ctx, testKey)
	require.NoError(t, err)

	first := next(t, feed)
	assert.False(t, first.Exists)
	assert.NoError(t, first.Err)

	_, err = store.Put(context.Background(), testKey, seed())
	require.NoError(t, err)

	second := next(t, feed)
	assert.True(t, second.Exists)
	assert.Equal(t, int64(1), second.Version)
	require.Len(t, second.Document.Nodes, 1)

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-feed:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestArticleStore_RoundTrip(t *testing.T) {
	_, store := newRemote(t)
	ctx := context.Background()

	id, err := store.Create(ctx, "Photosynthesis", "")
	require.NoError(t, err)
	require.False(t, id.IsZero())

	content := "Light into sugar"
	require.NoError(t, store.Update(ctx, id, entities.ArticlePatch{Content: &content}))

	article, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis", article.Title)
	assert.Equal(t, content, article.Content)

	_, err = store.Get(ctx, "missing")
	assert.True(t, appErrors.IsNotFound(err))

	assert.True(t, appErrors.IsValidation(store.Update(ctx, id, entities.ArticlePatch{})))
}
