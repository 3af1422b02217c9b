package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"concept-tree/domain/core/entities"
	"concept-tree/domain/core/valueobjects"
	"concept-tree/infrastructure/persistence/memory"
	"concept-tree/interfaces/http/rest/handlers"
	"concept-tree/interfaces/websocket"
	"concept-tree/pkg/observability"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const graphPath = "/api/v1/graphs/artifacts/app/public/graphs/graphData"

type testServer struct {
	documents *memory.DocumentStore
	articles  *memory.ArticleStore
	handler   http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	documents := memory.NewDocumentStore(logger)
	articles := memory.NewArticleStore()

	hub := websocket.NewHub(documents, nil, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	router := NewRouter(
		documents,
		articles,
		nil,
		websocket.NewServer(hub, websocket.DefaultServerConfig(), logger),
		observability.NewCollector("test"),
		StoreReadiness(documents, "k"),
		RouterConfig{EnableCORS: true},
		logger,
	)
	return &testServer{documents: documents, articles: articles, handler: router.Setup()}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func seed() entities.GraphDocument {
	return entities.SeedDocument("1", "custom", "Root Concept", valueobjects.Position{X: 250, Y: 150})
}

func TestGraphEndpoints(t *testing.T) {
	s := newTestServer(t)

	// Missing document
	rec := s.do(t, http.MethodGet, graphPath, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Write
	rec = s.do(t, http.MethodPut, graphPath, seed())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var put handlers.PutGraphResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &put))
	assert.Equal(t, "artifacts/app/public/graphs/graphData", put.Key)
	assert.Equal(t, int64(1), put.Version)

	// Read back
	rec = s.do(t, http.MethodGet, graphPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got handlers.GraphResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(1), got.Version)
	require.Len(t, got.Document.Nodes, 1)
	assert.Equal(t, valueobjects.NodeID("1"), got.Document.Nodes[0].ID)
}

func TestPutGraph_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"nodes": [`},
		{name: "node without id", body: `{"nodes":[{"data":{"label":"x"}}],"edges":[]}`},
		{name: "edge without target", body: `{"nodes":[],"edges":[{"id":"e","source":"1"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			req := httptest.NewRequest(http.MethodPut, graphPath, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			s.handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"type":"VALIDATION"`)
		})
	}
}

func TestArticleEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/articles/", map[string]string{"title": "Photosynthesis"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created handlers.CreateArticleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.False(t, created.ID.IsZero())

	rec = s.do(t, http.MethodPatch, "/api/v1/articles/"+created.ID.String(), map[string]string{"content": "Light into sugar"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/v1/articles/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var article entities.Article
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &article))
	assert.Equal(t, "Photosynthesis", article.Title)
	assert.Equal(t, "Light into sugar", article.Content)

	rec = s.do(t, http.MethodGet, "/api/v1/articles/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/v1/articles/"+created.ID.String(), map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/articles/", map[string]string{"content": "no title"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthReadyAndMetrics(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/ready", nil).Code)

	rec := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestGraphStream(t *testing.T) {
	s := newTestServer(t)
	server := httptest.NewServer(s.handler)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + graphPath + "/stream"
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var first websocket.Message
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, websocket.MessageSnapshot, first.Type)
	assert.Equal(t, "artifacts/app/public/graphs/graphData", first.Key)
	assert.False(t, first.Exists)

	_, err = s.documents.Put(context.Background(), "artifacts/app/public/graphs/graphData", seed())
	require.NoError(t, err)

	var second websocket.Message
	require.NoError(t, conn.ReadJSON(&second))
	assert.True(t, second.Exists)
	assert.Equal(t, int64(1), second.Version)
}
