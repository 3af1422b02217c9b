package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"concept-tree/application/services"
	"concept-tree/domain/config"
	"concept-tree/domain/core/aggregates"
	"concept-tree/domain/core/entities"
	"concept-tree/domain/core/valueobjects"
	"concept-tree/infrastructure/persistence/memory"
	appErrors "concept-tree/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockArticleStore struct {
	mock.Mock
}

func (m *mockArticleStore) Create(ctx context.Context, title, content string) (valueobjects.ArticleID, error) {
	args := m.Called(ctx, title, content)
	return args.Get(0).(valueobjects.ArticleID), args.Error(1)
}

func (m *mockArticleStore) Get(ctx context.Context, id valueobjects.ArticleID) (*entities.Article, error) {
	args := m.Called(ctx, id)
	article, _ := args.Get(0).(*entities.Article)
	return article, args.Error(1)
}

func (m *mockArticleStore) Update(ctx context.Context, id valueobjects.ArticleID, patch entities.ArticlePatch) error {
	return m.Called(ctx, id, patch).Error(0)
}

type readyFlag struct {
	mu    sync.Mutex
	ready bool
}

func (r *readyFlag) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

func baseDocument() entities.GraphDocument {
	return entities.GraphDocument{
		Nodes: []entities.Node{
			{ID: "1", Data: entities.NodeData{Label: "root"}},
			{ID: "2", Data: entities.NodeData{Label: "second"}},
			{ID: "3", Data: entities.NodeData{Label: "third"}},
		},
	}
}

func newWorkspace() *services.Workspace {
	ws := services.NewWorkspace(valueobjects.NewClockIDGenerator(), config.DefaultDomainConfig(), zap.NewNop())
	ws.Replace(baseDocument())
	return ws
}

func newFlashcard(ws *services.Workspace, store *mockArticleStore, ready *readyFlag) *Flashcard {
	cfg := config.DefaultDomainConfig()
	articles := services.NewArticleService(store, nil, ready, cfg, zap.NewNop())
	return NewFlashcard(ws, articles, ready, valueobjects.NewClockIDGenerator(), cfg, zap.NewNop())
}

func TestResolveArticleLink_CreatesOnce(t *testing.T) {
	ws := newWorkspace()
	store := &mockArticleStore{}
	store.On("Create", mock.Anything, "Photosynthesis", "").Return(valueobjects.ArticleID("A1"), nil).Once()
	card := newFlashcard(ws, store, &readyFlag{ready: true})

	require.NoError(t, card.Open("1"))
	descID, ok := card.AddDescription()
	require.True(t, ok)
	require.True(t, card.EditDescription(descID, "Photosynthesis"))
	_, err := card.Commit()
	require.NoError(t, err)

	first, err := card.ResolveArticleLink(context.Background(), descID)
	require.NoError(t, err)
	second, err := card.ResolveArticleLink(context.Background(), descID)
	require.NoError(t, err)

	assert.Equal(t, valueobjects.ArticleID("A1"), first)
	assert.Equal(t, first, second)
	store.AssertNumberOfCalls(t, "Create", 1)

	node, _ := ws.Node("1")
	require.Len(t, node.Data.Descriptions, 1)
	assert.Equal(t, valueobjects.ArticleID("A1"), node.Data.Descriptions[0].Link)
}

func TestResolveArticleLink_ConcurrentCallsShareCreation(t *testing.T) {
	ws := newWorkspace()
	store := &mockArticleStore{}
	store.On("Create", mock.Anything, mock.Anything, mock.Anything).
		After(50*time.Millisecond).
		Return(valueobjects.ArticleID("A7"), nil).Once()
	card := newFlashcard(ws, store, &readyFlag{ready: true})

	require.NoError(t, card.Open("1"))
	descID, _ := card.AddDescription()

	var wg sync.WaitGroup
	results := make([]valueobjects.ArticleID, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := card.ResolveArticleLink(context.Background(), descID)
			assert.NoError(t, err)
			results[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range results {
		assert.Equal(t, valueobjects.ArticleID("A7"), id)
	}
	store.AssertNumberOfCalls(t, "Create", 1)
}

func TestResolveArticleLink_UncommittedDescriptionCarriesLinkOnCommit(t *testing.T) {
	ws := newWorkspace()
	store := &mockArticleStore{}
	cfg := config.DefaultDomainConfig()
	store.On("Create", mock.Anything, cfg.DefaultArticleTitle, "").Return(valueobjects.ArticleID("A2"), nil).Once()
	card := newFlashcard(ws, store, &readyFlag{ready: true})

	require.NoError(t, card.Open("1"))
	descID, _ := card.AddDescription()

	id, err := card.ResolveArticleLink(context.Background(), descID)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.ArticleID("A2"), id)
	assert.Equal(t, id, card.Buffer().Descriptions[0].Link)

	_, err = card.Commit()
	require.NoError(t, err)

	node, _ := ws.Node("1")
	require.Len(t, node.Data.Descriptions, 1)
	assert.Equal(t, descID, node.Data.Descriptions[0].ID)
	assert.Equal(t, id, node.Data.Descriptions[0].Link)
}

func TestResolveArticleLink_ExistingLinkIsReturned(t *testing.T) {
	ws := newWorkspace()
	ws.Mutate(func(g *aggregates.Graph) {
		g.AppendDescription("1", entities.Description{ID: "10", Text: "linked", Link: "A3"})
	})
	store := &mockArticleStore{}
	card := newFlashcard(ws, store, &readyFlag{ready: true})
	require.NoError(t, card.Open("1"))

	id, err := card.ResolveArticleLink(context.Background(), "10")

	require.NoError(t, err)
	assert.Equal(t, valueobjects.ArticleID("A3"), id)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveArticleLink_Failures(t *testing.T) {
	tests := []struct {
		name      string
		ready     bool
		createErr error
		check     func(error) bool
	}{
		{name: "not ready", ready: false, check: appErrors.IsNotReady},
		{name: "store rejects create", ready: true, createErr: errors.New("denied"), check: appErrors.IsWriteFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := newWorkspace()
			store := &mockArticleStore{}
			store.On("Create", mock.Anything, mock.Anything, mock.Anything).
				Return(valueobjects.ArticleID(""), tt.createErr)
			card := newFlashcard(ws, store, &readyFlag{ready: tt.ready})
			require.NoError(t, card.Open("1"))
			descID, _ := card.AddDescription()

			_, err := card.ResolveArticleLink(context.Background(), descID)

			require.Error(t, err)
			assert.True(t, tt.check(err))
			assert.False(t, card.Buffer().Descriptions[0].HasLink())
		})
	}
}

func TestRemoveDescription_LeavesArticleFetchable(t *testing.T) {
	ws := newWorkspace()
	articleStore := memory.NewArticleStore()
	cfg := config.DefaultDomainConfig()
	ready := &readyFlag{ready: true}
	articles := services.NewArticleService(articleStore, nil, ready, cfg, zap.NewNop())
	card := NewFlashcard(ws, articles, ready, valueobjects.NewClockIDGenerator(), cfg, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, card.Open("1"))
	descID, _ := card.AddDescription()
	card.EditDescription(descID, "Mitochondria")
	articleID, err := card.ResolveArticleLink(ctx, descID)
	require.NoError(t, err)
	require.NoError(t, card.SaveArticle(ctx, articleID, "Mitochondria", "powerhouse"))

	require.True(t, card.RemoveDescription(descID))
	_, err = card.Commit()
	require.NoError(t, err)

	node, _ := ws.Node("1")
	assert.Empty(t, node.Data.Descriptions)

	article, err := card.OpenArticle(ctx, articleID)
	require.NoError(t, err)
	assert.Equal(t, "Mitochondria", article.Title)
	assert.Equal(t, "powerhouse", article.Content)
	assert.Equal(t, 1, articleStore.Len())
}

func TestOpenArticle_DanglingReferenceYieldsEmptyContent(t *testing.T) {
	ws := newWorkspace()
	store := &mockArticleStore{}
	store.On("Get", mock.Anything, valueobjects.ArticleID("gone")).
		Return(nil, appErrors.NewNotFoundError("article 'gone'"))
	card := newFlashcard(ws, store, &readyFlag{ready: true})

	article, err := card.OpenArticle(context.Background(), "gone")

	require.NoError(t, err)
	assert.Equal(t, valueobjects.ArticleID("gone"), article.ID)
	assert.Empty(t, article.Title)
	assert.Empty(t, article.Content)
}

func TestCommit_MergesIntoCurrentState(t *testing.T) {
	ws := newWorkspace()
	card := newFlashcard(ws, &mockArticleStore{}, &readyFlag{ready: true})

	require.NoError(t, card.Open("1"))
	card.SetLabel("renamed")

	// a field the buffer never touched changes underneath it
	ws.UpdateNodeData("1", entities.NodeDataPatch{LinkedNodes: []valueobjects.NodeID{"3"}})

	result, err := card.Commit()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)

	node, _ := ws.Node("1")
	assert.Equal(t, "renamed", node.Data.Label)
	assert.Equal(t, []valueobjects.NodeID{"3"}, node.Data.LinkedNodes)
	assert.Equal(t, node.Data, card.Buffer())
}

func TestCommit_AfterRemoteReplacement(t *testing.T) {
	ws := newWorkspace()
	card := newFlashcard(ws, &mockArticleStore{}, &readyFlag{ready: true})

	require.NoError(t, card.Open("1"))
	card.SetLabel("local label")
	require.True(t, card.AddLink("2"))
	require.True(t, card.AddLink("3"))

	remote := entities.GraphDocument{
		Nodes: []entities.Node{
			{ID: "1", Data: entities.NodeData{Label: "remote label"}},
			{ID: "3", Data: entities.NodeData{Label: "third"}},
			{ID: "4", Data: entities.NodeData{Label: "new remote"}},
		},
	}
	ws.Replace(remote)
	assert.True(t, card.Stale())

	result, err := card.Commit()
	require.NoError(t, err)

	assert.Equal(t, []valueobjects.NodeID{"1", "3", "4"}, ws.Snapshot().NodeIDs())
	node, _ := ws.Node("1")
	assert.Equal(t, "local label", node.Data.Label)
	assert.Equal(t, []valueobjects.NodeID{"3"}, node.Data.LinkedNodes)
	assert.Equal(t, 2, result.Applied)
	assert.Equal(t, 1, result.Skipped)
	assert.False(t, card.Stale())
}

func TestCommit_NodeRemovedRemotely(t *testing.T) {
	ws := newWorkspace()
	card := newFlashcard(ws, &mockArticleStore{}, &readyFlag{ready: true})

	require.NoError(t, card.Open("2"))
	card.SetLabel("lost edit")

	remote := entities.GraphDocument{Nodes: []entities.Node{{ID: "1", Data: entities.NodeData{Label: "only"}}}}
	ws.Replace(remote)

	_, err := card.Commit()

	assert.True(t, appErrors.IsStaleReference(err))
	assert.False(t, card.IsOpen())
	assert.Equal(t, []valueobjects.NodeID{"1"}, ws.Snapshot().NodeIDs())
}

func TestOpen_MissingNode(t *testing.T) {
	card := newFlashcard(newWorkspace(), &mockArticleStore{}, &readyFlag{ready: true})

	err := card.Open("missing")

	assert.True(t, appErrors.IsStaleReference(err))
	assert.False(t, card.IsOpen())
}

func TestOpen_SwitchingNodesCommitsPreviousBuffer(t *testing.T) {
	ws := newWorkspace()
	card := newFlashcard(ws, &mockArticleStore{}, &readyFlag{ready: true})

	require.NoError(t, card.Open("1"))
	card.SetLabel("committed on switch")
	require.NoError(t, card.Open("2"))

	node, _ := ws.Node("1")
	assert.Equal(t, "committed on switch", node.Data.Label)
	assert.Equal(t, valueobjects.NodeID("2"), card.NodeID())
	assert.False(t, card.Dirty())
}

func TestOpen_SwitchingAwayFromRemovedNodeReportsDroppedEdits(t *testing.T) {
	ws := newWorkspace()
	card := newFlashcard(ws, &mockArticleStore{}, &readyFlag{ready: true})

	require.NoError(t, card.Open("2"))
	card.SetLabel("lost edit")

	ws.Replace(entities.GraphDocument{Nodes: []entities.Node{{ID: "1", Data: entities.NodeData{Label: "only"}}}})

	err := card.Open("1")

	require.Error(t, err)
	assert.True(t, appErrors.IsStaleReference(err))
	assert.Contains(t, err.Error(), "node '2'")
	assert.False(t, card.IsOpen())

	// the failed switch leaves nothing open, so a second attempt succeeds
	require.NoError(t, card.Open("1"))
	assert.Equal(t, valueobjects.NodeID("1"), card.NodeID())
	node, _ := ws.Node("1")
	assert.Equal(t, "only", node.Data.Label)
}

func TestResolveArticleLink_LinkBoundRemotelyAfterOpen(t *testing.T) {
	ws := newWorkspace()
	ws.Mutate(func(g *aggregates.Graph) {
		g.AppendDescription("1", entities.Description{ID: "10", Text: "shared"})
	})
	store := &mockArticleStore{}
	card := newFlashcard(ws, store, &readyFlag{ready: true})
	require.NoError(t, card.Open("1"))

	// another client resolved the same description and saved
	remote := ws.Snapshot()
	remote.Nodes[0].Data.Descriptions[0].Link = "A7"
	ws.Replace(remote)

	id, err := card.ResolveArticleLink(context.Background(), "10")

	require.NoError(t, err)
	assert.Equal(t, valueobjects.ArticleID("A7"), id)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)

	buffered := card.Buffer()
	require.Len(t, buffered.Descriptions, 1)
	assert.Equal(t, valueobjects.ArticleID("A7"), buffered.Descriptions[0].Link)
}

func TestBufferLinkOperations(t *testing.T) {
	ws := newWorkspace()
	card := newFlashcard(ws, &mockArticleStore{}, &readyFlag{ready: true})
	require.NoError(t, card.Open("1"))

	assert.False(t, card.AddLink("1"), "self link")
	assert.True(t, card.AddLink("2"))
	assert.False(t, card.AddLink("2"), "repeat link")

	targets := card.AvailableLinkTargets()
	require.Len(t, targets, 1)
	assert.Equal(t, valueobjects.NodeID("3"), targets[0].ID)

	linked := card.LinkedNodes()
	require.Len(t, linked, 1)
	assert.Equal(t, valueobjects.NodeID("2"), linked[0].ID)

	assert.True(t, card.RemoveLink("2"))
	assert.False(t, card.RemoveLink("2"))
	assert.Len(t, card.AvailableLinkTargets(), 2)

	card.Discard()
	node, _ := ws.Node("1")
	assert.Empty(t, node.Data.LinkedNodes)
}
