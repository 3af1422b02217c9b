// Package memory provides in-process implementations of the storage ports.
// They back the development server and the application tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"concept-tree/application/ports"
	"concept-tree/domain/core/entities"
	appErrors "concept-tree/pkg/errors"

	"go.uber.org/zap"
)

type record struct {
	payload []byte
	version int64
}

// DocumentStore keeps graph documents as encoded payloads and pushes every
// change to subscribers of the document key
type DocumentStore struct {
	mu      sync.RWMutex
	docs    map[string]record
	watches map[string]map[int]chan struct{}
	nextID  int
	logger  *zap.Logger
}

// NewDocumentStore creates an empty store
func NewDocumentStore(logger *zap.Logger) *DocumentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentStore{
		docs:    make(map[string]record),
		watches: make(map[string]map[int]chan struct{}),
		logger:  logger,
	}
}

// Get reads the document
func (s *DocumentStore) Get(ctx context.Context, key string) (*ports.VersionedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := s.snapshot(key)
	if snap.Err != nil {
		return nil, snap.Err
	}
	if !snap.Exists {
		return nil, appErrors.NewNotFoundError(fmt.Sprintf("graph document '%s'", key))
	}
	return &ports.VersionedDocument{Document: snap.Document, Version: snap.Version}, nil
}

// Put overwrites the document and wakes every subscriber of the key
func (s *DocumentStore) Put(ctx context.Context, key string, doc entities.GraphDocument) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("failed to encode graph document: %w", err)
	}

	s.mu.Lock()
	version := s.docs[key].version + 1
	s.docs[key] = record{payload: payload, version: version}
	for _, wake := range s.watches[key] {
		select {
		case wake <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()

	s.logger.Debug("Graph document stored",
		zap.String("graphKey", key),
		zap.Int64("version", version),
		zap.Int("nodes", len(doc.Nodes)),
	)
	return version, nil
}

// Subscribe streams the current state of the document followed by each new version.
// Versions written faster than the subscriber reads are coalesced into the latest one.
func (s *DocumentStore) Subscribe(ctx context.Context, key string) (<-chan ports.DocumentSnapshot, error) {
	wake := make(chan struct{}, 1)
	wake <- struct{}{}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	if s.watches[key] == nil {
		s.watches[key] = make(map[int]chan struct{})
	}
	s.watches[key][id] = wake
	s.mu.Unlock()

	out := make(chan ports.DocumentSnapshot)
	go func() {
		defer close(out)
		defer s.unwatch(key, id)

		last := int64(-1)
		for {
			select {
			case <-ctx.Done():
				return
			case <-wake:
			}

			snap := s.snapshot(key)
			if snap.Err == nil && snap.Version == last {
				continue
			}
			last = snap.Version

			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (s *DocumentStore) unwatch(key string, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watches[key], id)
	if len(s.watches[key]) == 0 {
		delete(s.watches, key)
	}
}

func (s *DocumentStore) snapshot(key string) ports.DocumentSnapshot {
	s.mu.RLock()
	rec, ok := s.docs[key]
	s.mu.RUnlock()

	snap := ports.DocumentSnapshot{Key: key, Exists: ok, Version: rec.version}
	if !ok {
		return snap
	}
	if err := json.Unmarshal(rec.payload, &snap.Document); err != nil {
		snap.Err = fmt.Errorf("failed to decode graph document: %w", err)
	}
	return snap
}
