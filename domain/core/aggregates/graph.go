package aggregates

import (
	"time"

	"concept-tree/domain/config"
	"concept-tree/domain/core/entities"
	"concept-tree/domain/core/valueobjects"
	"concept-tree/domain/events"
)

// Graph is the aggregate root of the concept graph.
// It owns the canonical node and edge sequences; every operation is a pure,
// synchronous state transition. Operations addressing a missing id are no-ops
// that report false, so races with concurrent deletion never surface as errors.
type Graph struct {
	nodes   []entities.Node
	index   map[valueobjects.NodeID]int
	edges   []entities.Edge
	ids     valueobjects.IDGenerator
	config  *config.DomainConfig
	now     func() time.Time
	version int
	events  []events.DomainEvent
}

// NewGraph creates an empty graph
func NewGraph(ids valueobjects.IDGenerator, cfg *config.DomainConfig) *Graph {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if ids == nil {
		ids = valueobjects.NewClockIDGenerator()
	}
	return &Graph{
		nodes:  []entities.Node{},
		index:  make(map[valueobjects.NodeID]int),
		edges:  []entities.Edge{},
		ids:    ids,
		config: cfg,
		now:    time.Now,
		events: []events.DomainEvent{},
	}
}

// NewGraphFromDocument creates a graph holding the given snapshot
func NewGraphFromDocument(doc entities.GraphDocument, ids valueobjects.IDGenerator, cfg *config.DomainConfig) *Graph {
	g := NewGraph(ids, cfg)
	g.load(doc)
	return g
}

// Version returns the number of mutations applied since construction
func (g *Graph) Version() int {
	return g.version
}

// NodeCount returns the number of nodes
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// HasNode checks if a node exists in the graph
func (g *Graph) HasNode(id valueobjects.NodeID) bool {
	_, ok := g.index[id]
	return ok
}

// Node returns a copy of the node with the given id
func (g *Graph) Node(id valueobjects.NodeID) (entities.Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return entities.Node{}, false
	}
	return g.nodes[i].Clone(), true
}

// Nodes returns a copy of the node sequence in insertion order
func (g *Graph) Nodes() []entities.Node {
	nodes := make([]entities.Node, len(g.nodes))
	for i, n := range g.nodes {
		nodes[i] = n.Clone()
	}
	return nodes
}

// Edges returns a copy of the edge sequence
func (g *Graph) Edges() []entities.Edge {
	edges := make([]entities.Edge, len(g.edges))
	for i, e := range g.edges {
		edges[i] = e.Clone()
	}
	return edges
}

// AddNode appends a node with a fresh id at a random on-canvas position.
// An empty label is replaced by the configured placeholder.
func (g *Graph) AddNode(label string) entities.Node {
	if label == "" {
		label = g.config.DefaultNodeLabel
	}

	node := entities.Node{
		ID:       g.freshNodeID(),
		Type:     g.config.NodeType,
		Position: valueobjects.RandomPosition(g.config.ViewportWidth, g.config.ViewportHeight),
		Data:     entities.NodeData{Label: label},
	}
	node.Data.Normalize()

	g.index[node.ID] = len(g.nodes)
	g.nodes = append(g.nodes, node)
	g.touch()
	g.addEvent(events.NewNodeAdded(node.ID, label, g.now()))

	return node.Clone()
}

// freshNodeID skips ids already present, which only happens when a remote
// snapshot carries ids minted by a faster clock
func (g *Graph) freshNodeID() valueobjects.NodeID {
	for {
		id := g.ids.NextNodeID()
		if !g.HasNode(id) {
			return id
		}
	}
}

// UpdateNodeData shallow-merges the patch into the node's data.
// Self references and duplicates in a patched link set are dropped.
func (g *Graph) UpdateNodeData(id valueobjects.NodeID, patch entities.NodeDataPatch) bool {
	i, ok := g.index[id]
	if !ok {
		return false
	}
	if patch.IsEmpty() {
		return true
	}

	if patch.LinkedNodes != nil {
		patch.LinkedNodes = sanitizeLinks(id, patch.LinkedNodes)
	}
	g.nodes[i].Data = g.nodes[i].Data.Merge(patch)
	g.touch()
	g.addEvent(events.NewNodeDataUpdated(id, patchFields(patch), g.now()))
	return true
}

// MoveNode stores a new canvas position for the node
func (g *Graph) MoveNode(id valueobjects.NodeID, position valueobjects.Position) bool {
	i, ok := g.index[id]
	if !ok {
		return false
	}
	old := g.nodes[i].Position
	if old.Equals(position) {
		return true
	}
	g.nodes[i].Position = position
	g.touch()
	g.addEvent(events.NewNodeMoved(id, old, position, g.now()))
	return true
}

// Connect appends a new edge from source to target.
// Parallel edges and cycles are allowed and endpoints are not checked.
func (g *Graph) Connect(source, target valueobjects.NodeID) entities.Edge {
	edge := entities.Edge{
		ID:       g.ids.NextEdgeID(source, target),
		Source:   source,
		Target:   target,
		Animated: g.config.AnimatedEdges,
	}
	if g.config.EdgeStrokeColor != "" {
		edge.Style = map[string]string{"stroke": g.config.EdgeStrokeColor}
	}

	g.edges = append(g.edges, edge)
	g.touch()
	g.addEvent(events.NewNodesConnected(edge.ID, source, target, g.now()))

	return edge.Clone()
}

// RemoveNode deletes the node, every edge touching it, and its id from every
// other node's linked set
func (g *Graph) RemoveNode(id valueobjects.NodeID) bool {
	i, ok := g.index[id]
	if !ok {
		return false
	}

	g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)

	var removedEdges []valueobjects.EdgeID
	kept := g.edges[:0]
	for _, e := range g.edges {
		if e.Touches(id) {
			removedEdges = append(removedEdges, e.ID)
			continue
		}
		kept = append(kept, e)
	}
	g.edges = kept

	var unlinked []valueobjects.NodeID
	for j := range g.nodes {
		links := g.nodes[j].Data.LinkedNodes
		if !g.nodes[j].Data.IsLinkedTo(id) {
			continue
		}
		filtered := make([]valueobjects.NodeID, 0, len(links))
		for _, l := range links {
			if l != id {
				filtered = append(filtered, l)
			}
		}
		g.nodes[j].Data.LinkedNodes = filtered
		unlinked = append(unlinked, g.nodes[j].ID)
	}

	g.reindex()
	g.touch()
	g.addEvent(events.NewNodeRemoved(id, removedEdges, unlinked, g.now()))
	return true
}

// RemoveEdge deletes the first edge with the given id
func (g *Graph) RemoveEdge(id valueobjects.EdgeID) bool {
	for i, e := range g.edges {
		if e.ID != id {
			continue
		}
		g.edges = append(g.edges[:i], g.edges[i+1:]...)
		g.touch()
		g.addEvent(events.NewEdgeRemoved(e.ID, e.Source, e.Target, g.now()))
		return true
	}
	return false
}

// Snapshot returns the full {nodes, edges} document
func (g *Graph) Snapshot() entities.GraphDocument {
	return entities.GraphDocument{
		Nodes: g.Nodes(),
		Edges: g.Edges(),
	}
}

// ReplaceWith discards the local state and loads the document.
// Pending events are dropped with the edits they describe.
// Nodes repeating an earlier id are skipped; the number skipped is returned.
func (g *Graph) ReplaceWith(doc entities.GraphDocument) int {
	dropped := g.load(doc)
	g.events = []events.DomainEvent{}
	g.touch()
	return dropped
}

func (g *Graph) load(doc entities.GraphDocument) int {
	doc = doc.Clone()

	nodes := make([]entities.Node, 0, len(doc.Nodes))
	seen := make(map[valueobjects.NodeID]struct{}, len(doc.Nodes))
	dropped := 0
	for _, n := range doc.Nodes {
		if _, dup := seen[n.ID]; dup {
			dropped++
			continue
		}
		seen[n.ID] = struct{}{}
		n.Data.Normalize()
		nodes = append(nodes, n)
	}

	g.nodes = nodes
	g.edges = doc.Edges
	if g.edges == nil {
		g.edges = []entities.Edge{}
	}
	g.reindex()
	return dropped
}

// GetUncommittedEvents returns events raised since the last commit
func (g *Graph) GetUncommittedEvents() []events.DomainEvent {
	out := make([]events.DomainEvent, len(g.events))
	copy(out, g.events)
	return out
}

// MarkEventsAsCommitted clears the uncommitted event list
func (g *Graph) MarkEventsAsCommitted() {
	g.events = []events.DomainEvent{}
}

// CommitEvents drops the oldest n uncommitted events, keeping anything raised after them
func (g *Graph) CommitEvents(n int) {
	if n >= len(g.events) {
		g.events = []events.DomainEvent{}
		return
	}
	if n > 0 {
		g.events = append([]events.DomainEvent{}, g.events[n:]...)
	}
}

func (g *Graph) addEvent(event events.DomainEvent) {
	g.events = append(g.events, event)
}

func (g *Graph) touch() {
	g.version++
}

func (g *Graph) reindex() {
	g.index = make(map[valueobjects.NodeID]int, len(g.nodes))
	for i, n := range g.nodes {
		g.index[n.ID] = i
	}
}

func sanitizeLinks(self valueobjects.NodeID, links []valueobjects.NodeID) []valueobjects.NodeID {
	out := make([]valueobjects.NodeID, 0, len(links))
	seen := make(map[valueobjects.NodeID]struct{}, len(links))
	for _, l := range links {
		if l == self {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

func patchFields(patch entities.NodeDataPatch) []string {
	var fields []string
	if patch.Label != nil {
		fields = append(fields, "label")
	}
	if patch.Descriptions != nil {
		fields = append(fields, "descriptions")
	}
	if patch.LinkedNodes != nil {
		fields = append(fields, "linkedNodes")
	}
	return fields
}
