package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"concept-tree/domain/core/entities"
	"concept-tree/domain/core/valueobjects"
	"concept-tree/infrastructure/persistence/memory"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const key = "artifacts/app/public/graphs/graphData"

type countingObserver struct {
	mu      sync.Mutex
	clients int
	pushed  int
}

func (o *countingObserver) SetWebsocketClients(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clients = n
}

func (o *countingObserver) SnapshotPushed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pushed++
}

func (o *countingObserver) Clients() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.clients
}

type fixture struct {
	store    *memory.DocumentStore
	observer *countingObserver
	server   *httptest.Server
	cancel   context.CancelFunc
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewDocumentStore(zap.NewNop())
	observer := &countingObserver{}
	hub := NewHub(store, observer, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	ws := NewServer(hub, DefaultServerConfig(), zap.NewNop())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws.Serve(w, r, r.URL.Query().Get("key"))
	}))

	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return &fixture{store: store, observer: observer, server: server, cancel: cancel}
}

func (f *fixture) dial(t *testing.T) *gorilla.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/?key=" + key
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *gorilla.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func seed() entities.GraphDocument {
	return entities.SeedDocument("1", "custom", "Root Concept", valueobjects.Position{X: 250, Y: 150})
}

func TestHub_PushesCurrentStateThenChanges(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	first := readMessage(t, conn)
	assert.Equal(t, MessageSnapshot, first.Type)
	assert.Equal(t, key, first.Key)
	assert.False(t, first.Exists)
	assert.Nil(t, first.Document)

	_, err := f.store.Put(context.Background(), key, seed())
	require.NoError(t, err)

	second := readMessage(t, conn)
	assert.True(t, second.Exists)
	assert.Equal(t, int64(1), second.Version)
	require.NotNil(t, second.Document)
	assert.Equal(t, "Root Concept", second.Document.Nodes[0].Data.Label)
}

func TestHub_LateJoinerReceivesLastSnapshot(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Put(context.Background(), key, seed())
	require.NoError(t, err)

	early := f.dial(t)
	assert.Equal(t, int64(1), readMessage(t, early).Version)

	late := f.dial(t)
	msg := readMessage(t, late)
	assert.True(t, msg.Exists)
	assert.Equal(t, int64(1), msg.Version)

	_, err = f.store.Put(context.Background(), key, seed())
	require.NoError(t, err)

	assert.Equal(t, int64(2), readMessage(t, early).Version)
	assert.Equal(t, int64(2), readMessage(t, late).Version)
	assert.Eventually(t, func() bool { return f.observer.Clients() == 2 }, time.Second, 10*time.Millisecond)
}

func TestHub_ClosesClientsOnShutdown(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	readMessage(t, conn)

	f.cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, gorilla.IsCloseError(err, gorilla.CloseNormalClosure), "unexpected error: %v", err)
	assert.Eventually(t, func() bool { return f.observer.Clients() == 0 }, time.Second, 10*time.Millisecond)
}
