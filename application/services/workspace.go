package services

import (
	"sync"

	"concept-tree/domain/config"
	"concept-tree/domain/core/aggregates"
	"concept-tree/domain/core/entities"
	"concept-tree/domain/core/valueobjects"
	"concept-tree/domain/events"

	"go.uber.org/zap"
)

// Workspace is the single owner of the in-memory Graph Model for one session.
// Local edits, remote snapshot replacement and save snapshots all pass through it,
// so the graph is never mutated from two call sites at once.
type Workspace struct {
	mu         sync.RWMutex
	graph      *aggregates.Graph
	generation uint64
	logger     *zap.Logger
}

// NewWorkspace creates a workspace around an empty graph
func NewWorkspace(ids valueobjects.IDGenerator, cfg *config.DomainConfig, logger *zap.Logger) *Workspace {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workspace{
		graph:  aggregates.NewGraph(ids, cfg),
		logger: logger,
	}
}

// Generation counts whole-document replacements. Buffers opened under an older
// generation were derived from state that may no longer exist.
func (w *Workspace) Generation() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.generation
}

// Read runs fn with shared access to the graph. fn must not retain the pointer.
func (w *Workspace) Read(fn func(g *aggregates.Graph)) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	fn(w.graph)
}

// Mutate runs fn with exclusive access to the graph. fn must not retain the pointer.
func (w *Workspace) Mutate(fn func(g *aggregates.Graph)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(w.graph)
}

// Replace overwrites the local graph with a remote snapshot.
// Unsaved local edits are discarded.
func (w *Workspace) Replace(doc entities.GraphDocument) {
	w.mu.Lock()
	dropped := w.graph.ReplaceWith(doc)
	w.generation++
	gen := w.generation
	w.mu.Unlock()

	if dropped > 0 {
		w.logger.Warn("Snapshot contained duplicate node ids",
			zap.Int("dropped", dropped),
			zap.Uint64("generation", gen),
		)
	}
	w.logger.Debug("Graph replaced from snapshot",
		zap.Int("nodes", len(doc.Nodes)-dropped),
		zap.Int("edges", len(doc.Edges)),
		zap.Uint64("generation", gen),
	)
}

// PendingSave captures the document to write and the events it covers
func (w *Workspace) PendingSave() (entities.GraphDocument, []events.DomainEvent, uint64) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.graph.Snapshot(), w.graph.GetUncommittedEvents(), w.generation
}

// CommitEvents marks the first n events as published once their save succeeded.
// Nothing is committed when a replacement happened in between; those events were already dropped.
func (w *Workspace) CommitEvents(generation uint64, n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if generation != w.generation {
		return
	}
	w.graph.CommitEvents(n)
}

// Snapshot returns the full document
func (w *Workspace) Snapshot() entities.GraphDocument {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.graph.Snapshot()
}

// Node returns a copy of a node
func (w *Workspace) Node(id valueobjects.NodeID) (entities.Node, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.graph.Node(id)
}

// Description returns a copy of one description of a node
func (w *Workspace) Description(nodeID valueobjects.NodeID, descID valueobjects.DescriptionID) (entities.Description, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.graph.Description(nodeID, descID)
}

// Nodes returns a copy of all nodes
func (w *Workspace) Nodes() []entities.Node {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.graph.Nodes()
}

// RenderableEdges returns the edges whose endpoints both exist
func (w *Workspace) RenderableEdges() []entities.Edge {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.graph.RenderableEdges()
}

// AddNode appends a new node
func (w *Workspace) AddNode(label string) entities.Node {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.graph.AddNode(label)
}

// UpdateNodeData shallow-merges a patch into a node's data
func (w *Workspace) UpdateNodeData(id valueobjects.NodeID, patch entities.NodeDataPatch) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.graph.UpdateNodeData(id, patch)
}

// MoveNode stores a new node position
func (w *Workspace) MoveNode(id valueobjects.NodeID, position valueobjects.Position) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.graph.MoveNode(id, position)
}

// Connect appends an edge
func (w *Workspace) Connect(source, target valueobjects.NodeID) entities.Edge {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.graph.Connect(source, target)
}

// RemoveNode deletes a node with cascade cleanup
func (w *Workspace) RemoveNode(id valueobjects.NodeID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.graph.RemoveNode(id)
}

// RemoveEdge deletes an edge
func (w *Workspace) RemoveEdge(id valueobjects.EdgeID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.graph.RemoveEdge(id)
}

// SetDescriptionLink binds a description to an article
func (w *Workspace) SetDescriptionLink(nodeID valueobjects.NodeID, descID valueobjects.DescriptionID, articleID valueobjects.ArticleID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.graph.SetDescriptionLink(nodeID, descID, articleID)
}
