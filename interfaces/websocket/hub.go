// Package websocket pushes graph document snapshots to connected sessions.
package websocket

import (
	"context"
	"encoding/json"
	"time"

	"concept-tree/application/ports"
	"concept-tree/domain/core/entities"

	"go.uber.org/zap"
)

// Message types sent to clients
const (
	MessageSnapshot = "SNAPSHOT"
	MessageError    = "ERROR"
)

// Message is the frame written to clients for every document change
type Message struct {
	Type      string                  `json:"type"`
	Key       string                  `json:"key"`
	Exists    bool                    `json:"exists"`
	Version   int64                   `json:"version"`
	Document  *entities.GraphDocument `json:"document,omitempty"`
	Error     string                  `json:"error,omitempty"`
	Timestamp int64                   `json:"timestamp"`
}

// Observer receives hub metrics. *observability.Collector satisfies it.
type Observer interface {
	SetWebsocketClients(n int)
	SnapshotPushed()
}

// topic is the set of clients following one document key, fed by a single store subscription
type topic struct {
	key     string
	clients map[*Client]struct{}
	cancel  context.CancelFunc
	last    []byte
}

type topicSnapshot struct {
	topic *topic
	snap  ports.DocumentSnapshot
	final bool
}

// Hub keeps one store subscription per followed document key and fans
// every snapshot out to the clients of that key.
// All topic state is owned by the Run goroutine.
type Hub struct {
	store    ports.GraphDocumentStore
	topics   map[string]*topic
	clients  int
	observer Observer
	logger   *zap.Logger

	register   chan *Client
	unregister chan *Client
	snapshots  chan topicSnapshot
	done       chan struct{}
}

// NewHub creates a hub over the document store. observer may be nil.
func NewHub(store ports.GraphDocumentStore, observer Observer, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		store:      store,
		topics:     make(map[string]*topic),
		observer:   observer,
		logger:     logger,
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		snapshots:  make(chan topicSnapshot, 16),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and snapshots until ctx is cancelled
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	defer h.closeAll()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	h.logger.Info("Websocket hub started")
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Websocket hub shutting down")
			return nil

		case client := <-h.register:
			h.registerClient(ctx, client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case ts := <-h.snapshots:
			h.deliver(ts)

		case <-ticker.C:
			h.logger.Debug("Hub health check",
				zap.Int("topics", len(h.topics)),
				zap.Int("clients", h.clients),
			)
		}
	}
}

// Register adds a client; it is a no-op once the hub has stopped
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) registerClient(ctx context.Context, c *Client) {
	t, ok := h.topics[c.key]
	if !ok {
		subCtx, cancel := context.WithCancel(ctx)
		t = &topic{key: c.key, clients: make(map[*Client]struct{}), cancel: cancel}
		h.topics[c.key] = t
		go h.follow(subCtx, t)
	}
	t.clients[c] = struct{}{}
	h.clients++
	h.reportClients()

	if t.last != nil {
		h.send(t, c, t.last)
	}

	h.logger.Info("Client registered",
		zap.String("graphKey", c.key),
		zap.String("connectionID", c.id),
		zap.Int("topicClients", len(t.clients)),
	)
}

func (h *Hub) unregisterClient(c *Client) {
	t, ok := h.topics[c.key]
	if !ok {
		return
	}
	if _, ok := t.clients[c]; !ok {
		return
	}
	h.drop(t, c)

	h.logger.Info("Client unregistered",
		zap.String("graphKey", c.key),
		zap.String("connectionID", c.id),
		zap.Int("remainingClients", len(t.clients)),
	)
}

// drop removes the client and retires the topic when it was the last one
func (h *Hub) drop(t *topic, c *Client) {
	delete(t.clients, c)
	close(c.send)
	h.clients--
	h.reportClients()

	if len(t.clients) == 0 {
		t.cancel()
		if h.topics[t.key] == t {
			delete(h.topics, t.key)
		}
	}
}

// follow forwards the store feed of one topic to the hub loop
func (h *Hub) follow(ctx context.Context, t *topic) {
	feed, err := h.store.Subscribe(ctx, t.key)
	if err != nil {
		h.logger.Error("Failed to subscribe to graph document",
			zap.String("graphKey", t.key),
			zap.Error(err),
		)
		h.enqueue(ctx, topicSnapshot{topic: t, snap: ports.DocumentSnapshot{Key: t.key, Err: err}, final: true})
		return
	}

	for snap := range feed {
		if !h.enqueue(ctx, topicSnapshot{topic: t, snap: snap}) {
			return
		}
	}
}

func (h *Hub) enqueue(ctx context.Context, ts topicSnapshot) bool {
	select {
	case h.snapshots <- ts:
		return true
	case <-ctx.Done():
		return false
	}
}

func (h *Hub) deliver(ts topicSnapshot) {
	t := ts.topic
	if h.topics[t.key] != t {
		return
	}

	data, err := json.Marshal(newMessage(ts.snap))
	if err != nil {
		h.logger.Error("Failed to marshal snapshot", zap.String("graphKey", t.key), zap.Error(err))
		return
	}
	if ts.snap.Err == nil {
		t.last = data
	}

	for c := range t.clients {
		h.send(t, c, data)
	}
	if h.observer != nil && ts.snap.Err == nil {
		h.observer.SnapshotPushed()
	}

	// a feed that could not be opened will never deliver; close so clients reconnect
	if ts.final {
		for c := range t.clients {
			h.drop(t, c)
		}
	}
}

func (h *Hub) send(t *topic, c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.logger.Warn("Closing slow client",
			zap.String("graphKey", c.key),
			zap.String("connectionID", c.id),
		)
		h.drop(t, c)
	}
}

func (h *Hub) closeAll() {
	for key, t := range h.topics {
		t.cancel()
		for c := range t.clients {
			close(c.send)
		}
		delete(h.topics, key)
	}
	h.clients = 0
	h.reportClients()
}

func (h *Hub) reportClients() {
	if h.observer != nil {
		h.observer.SetWebsocketClients(h.clients)
	}
}

func newMessage(snap ports.DocumentSnapshot) Message {
	msg := Message{
		Type:      MessageSnapshot,
		Key:       snap.Key,
		Exists:    snap.Exists,
		Version:   snap.Version,
		Timestamp: time.Now().Unix(),
	}
	if snap.Err != nil {
		msg.Type = MessageError
		msg.Error = snap.Err.Error()
		return msg
	}
	if snap.Exists {
		doc := snap.Document
		msg.Document = &doc
	}
	return msg
}
