package remote

import (
	"context"
	"net/http"
	"strings"
	"time"

	"concept-tree/application/ports"
	"concept-tree/domain/core/entities"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	minReconnectDelay = 500 * time.Millisecond
	maxReconnectDelay = 30 * time.Second
)

type graphResponse struct {
	Key      string                 `json:"key"`
	Version  int64                  `json:"version"`
	Document entities.GraphDocument `json:"document"`
}

type putResponse struct {
	Version int64 `json:"version"`
}

// streamMessage mirrors the frames pushed on the snapshot feed
type streamMessage struct {
	Type     string                  `json:"type"`
	Key      string                  `json:"key"`
	Exists   bool                    `json:"exists"`
	Version  int64                   `json:"version"`
	Document *entities.GraphDocument `json:"document"`
	Error    string                  `json:"error"`
}

// DocumentStore reads and writes graph documents over REST and follows them over a websocket feed
type DocumentStore struct {
	client *Client
	dialer *websocket.Dialer
}

// NewDocumentStore creates a document store backed by the remote server
func NewDocumentStore(client *Client) *DocumentStore {
	return &DocumentStore{
		client: client,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func graphPath(key string) string {
	return "graphs/" + strings.Trim(key, "/")
}

// Get reads the document
func (s *DocumentStore) Get(ctx context.Context, key string) (*ports.VersionedDocument, error) {
	var resp graphResponse
	if err := s.client.do(ctx, http.MethodGet, graphPath(key), nil, &resp); err != nil {
		return nil, err
	}
	return &ports.VersionedDocument{Document: resp.Document, Version: resp.Version}, nil
}

// Put overwrites the document
func (s *DocumentStore) Put(ctx context.Context, key string, doc entities.GraphDocument) (int64, error) {
	var resp putResponse
	if err := s.client.do(ctx, http.MethodPut, graphPath(key), doc, &resp); err != nil {
		return 0, err
	}
	return resp.Version, nil
}

// Subscribe opens the snapshot feed. The first connection must succeed; after that
// a dropped connection is reported once on the channel and re-established with backoff.
func (s *DocumentStore) Subscribe(ctx context.Context, key string) (<-chan ports.DocumentSnapshot, error) {
	conn, err := s.dial(ctx, key)
	if err != nil {
		return nil, err
	}

	out := make(chan ports.DocumentSnapshot)
	go s.follow(ctx, key, conn, out)
	return out, nil
}

func (s *DocumentStore) streamURL(key string) string {
	u := s.client.endpoint(graphPath(key) + "/stream")
	if strings.HasPrefix(u, "https://") {
		return "wss://" + strings.TrimPrefix(u, "https://")
	}
	return "ws://" + strings.TrimPrefix(u, "http://")
}

func (s *DocumentStore) dial(ctx context.Context, key string) (*websocket.Conn, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.streamURL(key), nil)
	if err != nil {
		return nil, mapDialError(err)
	}
	return conn, nil
}

func (s *DocumentStore) follow(ctx context.Context, key string, conn *websocket.Conn, out chan<- ports.DocumentSnapshot) {
	defer close(out)
	logger := s.client.logger.With(zap.String("graphKey", key))
	delay := minReconnectDelay

	for {
		err := s.pump(ctx, conn, out)
		conn.Close()
		if ctx.Err() != nil {
			return
		}

		logger.Warn("Snapshot feed dropped, reconnecting", zap.Error(err), zap.Duration("delay", delay))
		select {
		case out <- ports.DocumentSnapshot{Key: key, Err: mapDialError(err)}:
		case <-ctx.Done():
			return
		}

		for {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			conn, err = s.dial(ctx, key)
			if err == nil {
				delay = minReconnectDelay
				break
			}
			if ctx.Err() != nil {
				return
			}
			delay *= 2
			if delay > maxReconnectDelay {
				delay = maxReconnectDelay
			}
			logger.Debug("Reconnect failed", zap.Error(err), zap.Duration("nextDelay", delay))
		}
	}
}

// pump forwards frames until the connection fails or ctx is cancelled
func (s *DocumentStore) pump(ctx context.Context, conn *websocket.Conn, out chan<- ports.DocumentSnapshot) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var msg streamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		snap := ports.DocumentSnapshot{Key: msg.Key, Exists: msg.Exists, Version: msg.Version}
		if msg.Error != "" {
			snap.Err = &feedError{message: msg.Error}
		} else if msg.Document != nil {
			snap.Document = *msg.Document
		}

		select {
		case out <- snap:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
