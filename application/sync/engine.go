// Package sync keeps a Workspace consistent with one remote graph document.
//
// Remote snapshots always replace the local graph wholesale. Saves overwrite the
// remote document wholesale. No field-level merge is attempted: the last
// completed write to the store wins.
package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"sync/atomic"
	"time"

	"concept-tree/application/ports"
	"concept-tree/application/services"
	"concept-tree/domain/config"
	"concept-tree/domain/core/entities"
	"concept-tree/domain/core/valueobjects"
	"concept-tree/domain/events"
	appErrors "concept-tree/pkg/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// State of the engine's subscription
type State int

const (
	StateUnsubscribed State = iota
	StateSubscribing
	StateSynced
	StateError
)

func (s State) String() string {
	switch s {
	case StateUnsubscribed:
		return "unsubscribed"
	case StateSubscribing:
		return "subscribing"
	case StateSynced:
		return "synced"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var tracer = otel.Tracer("concept-tree/sync")

// heldSnapshot is a remote snapshot applied while a save was in flight. Whether
// it was the echo of that save is known only once the save returns its version.
type heldSnapshot struct {
	version int64
	nodes   int
	edges   int
}

// Engine subscribes to a graph document and mirrors it into a Workspace
type Engine struct {
	key       string
	store     ports.GraphDocumentStore
	publisher ports.EventPublisher
	workspace *services.Workspace
	config    *config.DomainConfig
	logger    *zap.Logger

	mu          gosync.RWMutex
	state       State
	lastErr     error
	version     int64
	savedVer    int64
	seeded      bool
	putting     bool
	held        []heldSnapshot
	cancel      context.CancelFunc
	done        chan struct{}
	stateWaiter chan struct{}

	saving atomic.Bool
}

// NewEngine creates an engine for the document at key. publisher may be nil.
func NewEngine(
	key string,
	store ports.GraphDocumentStore,
	publisher ports.EventPublisher,
	workspace *services.Workspace,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *Engine {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		key:         key,
		store:       store,
		publisher:   publisher,
		workspace:   workspace,
		config:      cfg,
		logger:      logger.With(zap.String("graphKey", key)),
		stateWaiter: make(chan struct{}),
	}
}

// Key returns the document key
func (e *Engine) Key() string {
	return e.key
}

// State returns the current subscription state
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// LastError returns the most recent subscribe or read failure
func (e *Engine) LastError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastErr
}

// Version returns the store version of the last applied snapshot
func (e *Engine) Version() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.version
}

// Ready reports whether a snapshot has been applied and the feed is healthy
func (e *Engine) Ready() bool {
	return e.State() == StateSynced
}

// Saving reports whether a save is in flight
func (e *Engine) Saving() bool {
	return e.saving.Load()
}

// Start subscribes to the document. Snapshots are applied in the background
// until Stop is called or ctx is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.cancel != nil {
		e.mu.Unlock()
		return appErrors.NewConflictError("sync engine already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.mu.Unlock()

	e.setState(StateSubscribing, nil)

	feed, err := e.store.Subscribe(ctx, e.key)
	if err != nil {
		e.logger.Error("Failed to subscribe to graph document", zap.Error(err))
		e.setState(StateError, err)
		cancel()
		close(e.done)
		e.mu.Lock()
		e.cancel = nil
		e.mu.Unlock()
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	e.logger.Info("Subscribed to graph document")
	go e.run(ctx, feed)
	return nil
}

// Stop cancels the subscription and waits for the feed to drain.
// In-flight saves are not cancelled. The engine may be started again afterwards.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	e.mu.Lock()
	e.cancel = nil
	e.seeded = false
	e.mu.Unlock()
}

// WaitForState blocks until the engine reaches want or ctx ends
func (e *Engine) WaitForState(ctx context.Context, want State) error {
	for {
		e.mu.RLock()
		state, changed := e.state, e.stateWaiter
		e.mu.RUnlock()

		if state == want {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// run applies the feed. A failed seed write is retried after SeedRetryDelay
// unless a newer snapshot arrives first.
func (e *Engine) run(ctx context.Context, feed <-chan ports.DocumentSnapshot) {
	defer close(e.done)
	defer e.setState(StateUnsubscribed, nil)

	var retry *time.Timer
	var retryC <-chan time.Time
	defer func() {
		if retry != nil {
			retry.Stop()
		}
	}()

	for {
		seedFailed := false
		select {
		case snap, ok := <-feed:
			if !ok || ctx.Err() != nil {
				return
			}
			seedFailed = e.handle(ctx, snap)
		case <-ctx.Done():
			return
		case <-retryC:
			e.logger.Info("Retrying seed write")
			seedFailed = !e.bootstrap(ctx)
		}

		if retry != nil {
			retry.Stop()
			retry, retryC = nil, nil
		}
		if seedFailed {
			retry = time.NewTimer(e.seedRetryDelay())
			retryC = retry.C
		}
	}
}

func (e *Engine) seedRetryDelay() time.Duration {
	if e.config.SeedRetryDelay <= 0 {
		return time.Second
	}
	return e.config.SeedRetryDelay
}

// handle applies one snapshot and reports whether a seed write failed
func (e *Engine) handle(ctx context.Context, snap ports.DocumentSnapshot) bool {
	if snap.Err != nil {
		e.logger.Error("Failed to read graph document", zap.Error(snap.Err))
		e.setState(StateError, snap.Err)
		return false
	}

	if !snap.Exists {
		return !e.bootstrap(ctx)
	}

	e.workspace.Replace(snap.Document)

	e.mu.Lock()
	e.version = snap.Version
	ownEcho := snap.Version == e.savedVer
	held := !ownEcho && e.putting
	if held {
		e.held = append(e.held, heldSnapshot{
			version: snap.Version,
			nodes:   len(snap.Document.Nodes),
			edges:   len(snap.Document.Edges),
		})
	}
	e.mu.Unlock()
	e.setState(StateSynced, nil)

	e.logger.Info("Applied remote snapshot",
		zap.Int64("version", snap.Version),
		zap.Int("nodes", len(snap.Document.Nodes)),
		zap.Int("edges", len(snap.Document.Edges)),
	)

	if !ownEcho && !held {
		e.publish(ctx, []events.DomainEvent{
			events.NewGraphReplaced(e.key, len(snap.Document.Nodes), len(snap.Document.Edges), time.Now()),
		})
	}
	return false
}

// bootstrap writes the seed document once. The store echoes the write back
// through the feed and that echo is what moves the engine to Synced.
// It returns false when the write failed and should be retried.
func (e *Engine) bootstrap(ctx context.Context) bool {
	e.mu.Lock()
	if e.seeded {
		e.mu.Unlock()
		return true
	}
	e.seeded = true
	e.mu.Unlock()

	ctx, span := tracer.Start(ctx, "sync.bootstrap")
	defer span.End()

	cfg := e.config
	seed := entities.SeedDocument(
		valueobjects.NodeID(cfg.SeedNodeID),
		cfg.NodeType,
		cfg.SeedNodeLabel,
		valueobjects.NewPosition(cfg.SeedNodeX, cfg.SeedNodeY),
	)

	putCtx, cancel := context.WithTimeout(ctx, cfg.SaveTimeout)
	defer cancel()

	version, err := e.store.Put(putCtx, e.key, seed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "seed write failed")
		e.logger.Error("Failed to write seed graph document", zap.Error(err))

		e.mu.Lock()
		e.seeded = false
		e.mu.Unlock()
		e.setState(StateError, appErrors.NewWriteFailureError("seed graph", err))
		return ctx.Err() != nil
	}

	e.mu.Lock()
	e.savedVer = version
	e.mu.Unlock()
	e.logger.Info("Seeded empty graph document", zap.Int64("version", version))
	return true
}

// Save overwrites the remote document with the workspace's current graph.
// It returns a NOT_READY error before the first snapshot, SAVE_IN_PROGRESS while
// another save is in flight, and WRITE_FAILURE when the store rejects the write.
// On failure local state is unchanged and the caller may retry.
func (e *Engine) Save(ctx context.Context) error {
	if !e.Ready() {
		return appErrors.NewNotReadyError("save graph")
	}
	if !e.saving.CompareAndSwap(false, true) {
		return appErrors.NewSaveInProgressError()
	}
	defer e.saving.Store(false)

	ctx, span := tracer.Start(ctx, "sync.save")
	defer span.End()

	doc, pending, generation := e.workspace.PendingSave()
	span.SetAttributes(
		attribute.String("graph.key", e.key),
		attribute.Int("graph.nodes", len(doc.Nodes)),
		attribute.Int("graph.edges", len(doc.Edges)),
	)

	putCtx, cancel := context.WithTimeout(ctx, e.config.SaveTimeout)
	defer cancel()

	e.mu.Lock()
	e.putting = true
	e.mu.Unlock()

	version, err := e.store.Put(putCtx, e.key, doc)

	e.mu.Lock()
	e.putting = false
	held := e.held
	e.held = nil
	if err == nil && version > e.savedVer {
		e.savedVer = version
	}
	e.mu.Unlock()

	if err != nil {
		e.publishReplaced(ctx, held, -1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		e.logger.Error("Failed to save graph document", zap.Error(err))
		return appErrors.NewWriteFailureError("save graph", err)
	}

	e.workspace.CommitEvents(generation, len(pending))
	e.publish(ctx, pending)
	e.publishReplaced(ctx, held, version)

	e.logger.Info("Graph document saved",
		zap.Int64("version", version),
		zap.Int("nodes", len(doc.Nodes)),
		zap.Int("events", len(pending)),
	)
	return nil
}

// publishReplaced raises graph.replaced for held snapshots other than the echo of saved
func (e *Engine) publishReplaced(ctx context.Context, held []heldSnapshot, saved int64) {
	var evts []events.DomainEvent
	for _, h := range held {
		if h.version == saved {
			continue
		}
		evts = append(evts, events.NewGraphReplaced(e.key, h.nodes, h.edges, time.Now()))
	}
	e.publish(ctx, evts)
}

func (e *Engine) publish(ctx context.Context, evts []events.DomainEvent) {
	if e.publisher == nil || len(evts) == 0 {
		return
	}
	if err := e.publisher.PublishBatch(ctx, evts); err != nil {
		e.logger.Warn("Failed to publish graph events", zap.Int("events", len(evts)), zap.Error(err))
	}
}

func (e *Engine) setState(state State, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == state && err == nil {
		return
	}
	prev := e.state
	e.state = state
	if err != nil {
		e.lastErr = err
	}
	close(e.stateWaiter)
	e.stateWaiter = make(chan struct{})

	if prev != state {
		e.logger.Debug("Sync state changed",
			zap.String("from", prev.String()),
			zap.String("to", state.String()),
		)
	}
}
