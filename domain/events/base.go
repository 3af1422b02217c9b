package events

import (
	"time"

	"concept-tree/domain/core/valueobjects"
)

// SourceConceptTree is the event source name used when publishing to the event bus
const SourceConceptTree = "concept-tree.graph"

// Event type names
const (
	TypeNodeAdded         = "node.added"
	TypeNodeRemoved       = "node.removed"
	TypeNodeDataUpdated   = "node.data_updated"
	TypeNodeMoved         = "node.moved"
	TypeNodesConnected    = "nodes.connected"
	TypeEdgeRemoved       = "edge.removed"
	TypeDescriptionLinked = "description.linked"
	TypeGraphReplaced     = "graph.replaced"
	TypeArticleCreated    = "article.created"
	TypeArticleUpdated    = "article.updated"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBase(aggregateID, eventType string, timestamp time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: aggregateID,
		EventType:   eventType,
		Timestamp:   timestamp,
		Version:     1,
	}
}

// Node Events

// NodeAdded is raised when a node is appended to the graph
type NodeAdded struct {
	BaseEvent
	NodeID valueobjects.NodeID `json:"node_id"`
	Label  string              `json:"label"`
}

// NewNodeAdded creates a NodeAdded event
func NewNodeAdded(nodeID valueobjects.NodeID, label string, timestamp time.Time) NodeAdded {
	return NodeAdded{
		BaseEvent: newBase(nodeID.String(), TypeNodeAdded, timestamp),
		NodeID:    nodeID,
		Label:     label,
	}
}

// NodeRemoved is raised when a node is deleted together with its references
type NodeRemoved struct {
	BaseEvent
	NodeID       valueobjects.NodeID   `json:"node_id"`
	RemovedEdges []valueobjects.EdgeID `json:"removed_edges"`
	Unlinked     []valueobjects.NodeID `json:"unlinked_from"`
}

// NewNodeRemoved creates a NodeRemoved event
func NewNodeRemoved(nodeID valueobjects.NodeID, removedEdges []valueobjects.EdgeID, unlinked []valueobjects.NodeID, timestamp time.Time) NodeRemoved {
	return NodeRemoved{
		BaseEvent:    newBase(nodeID.String(), TypeNodeRemoved, timestamp),
		NodeID:       nodeID,
		RemovedEdges: removedEdges,
		Unlinked:     unlinked,
	}
}

// NodeDataUpdated is raised when the data of a node changes
type NodeDataUpdated struct {
	BaseEvent
	NodeID valueobjects.NodeID `json:"node_id"`
	Fields []string            `json:"fields"`
}

// NewNodeDataUpdated creates a NodeDataUpdated event
func NewNodeDataUpdated(nodeID valueobjects.NodeID, fields []string, timestamp time.Time) NodeDataUpdated {
	return NodeDataUpdated{
		BaseEvent: newBase(nodeID.String(), TypeNodeDataUpdated, timestamp),
		NodeID:    nodeID,
		Fields:    fields,
	}
}

// NodeMoved is raised when a node is moved to a new position
type NodeMoved struct {
	BaseEvent
	NodeID      valueobjects.NodeID   `json:"node_id"`
	OldPosition valueobjects.Position `json:"old_position"`
	NewPosition valueobjects.Position `json:"new_position"`
}

// NewNodeMoved creates a NodeMoved event
func NewNodeMoved(nodeID valueobjects.NodeID, oldPos, newPos valueobjects.Position, timestamp time.Time) NodeMoved {
	return NodeMoved{
		BaseEvent:   newBase(nodeID.String(), TypeNodeMoved, timestamp),
		NodeID:      nodeID,
		OldPosition: oldPos,
		NewPosition: newPos,
	}
}

// Edge Events

// NodesConnected is raised when an edge is appended
type NodesConnected struct {
	BaseEvent
	EdgeID   valueobjects.EdgeID `json:"edge_id"`
	SourceID valueobjects.NodeID `json:"source_id"`
	TargetID valueobjects.NodeID `json:"target_id"`
}

// NewNodesConnected creates a NodesConnected event
func NewNodesConnected(edgeID valueobjects.EdgeID, sourceID, targetID valueobjects.NodeID, timestamp time.Time) NodesConnected {
	return NodesConnected{
		BaseEvent: newBase(sourceID.String(), TypeNodesConnected, timestamp),
		EdgeID:    edgeID,
		SourceID:  sourceID,
		TargetID:  targetID,
	}
}

// EdgeRemoved is raised when an edge is deleted
type EdgeRemoved struct {
	BaseEvent
	EdgeID   valueobjects.EdgeID `json:"edge_id"`
	SourceID valueobjects.NodeID `json:"source_id"`
	TargetID valueobjects.NodeID `json:"target_id"`
}

// NewEdgeRemoved creates an EdgeRemoved event
func NewEdgeRemoved(edgeID valueobjects.EdgeID, sourceID, targetID valueobjects.NodeID, timestamp time.Time) EdgeRemoved {
	return EdgeRemoved{
		BaseEvent: newBase(edgeID.String(), TypeEdgeRemoved, timestamp),
		EdgeID:    edgeID,
		SourceID:  sourceID,
		TargetID:  targetID,
	}
}

// Description Events

// DescriptionLinked is raised when a description is bound to an article
type DescriptionLinked struct {
	BaseEvent
	NodeID        valueobjects.NodeID        `json:"node_id"`
	DescriptionID valueobjects.DescriptionID `json:"description_id"`
	ArticleID     valueobjects.ArticleID     `json:"article_id"`
}

// NewDescriptionLinked creates a DescriptionLinked event
func NewDescriptionLinked(nodeID valueobjects.NodeID, descID valueobjects.DescriptionID, articleID valueobjects.ArticleID, timestamp time.Time) DescriptionLinked {
	return DescriptionLinked{
		BaseEvent:     newBase(nodeID.String(), TypeDescriptionLinked, timestamp),
		NodeID:        nodeID,
		DescriptionID: descID,
		ArticleID:     articleID,
	}
}

// Graph Events

// GraphReplaced is raised when a remote snapshot overwrites the local graph
type GraphReplaced struct {
	BaseEvent
	NodeCount int `json:"node_count"`
	EdgeCount int `json:"edge_count"`
}

// NewGraphReplaced creates a GraphReplaced event
func NewGraphReplaced(graphKey string, nodeCount, edgeCount int, timestamp time.Time) GraphReplaced {
	return GraphReplaced{
		BaseEvent: newBase(graphKey, TypeGraphReplaced, timestamp),
		NodeCount: nodeCount,
		EdgeCount: edgeCount,
	}
}

// Article Events

// ArticleCreated is raised when an article is allocated for a description
type ArticleCreated struct {
	BaseEvent
	ArticleID valueobjects.ArticleID `json:"article_id"`
	Title     string                 `json:"title"`
}

// NewArticleCreated creates an ArticleCreated event
func NewArticleCreated(articleID valueobjects.ArticleID, title string, timestamp time.Time) ArticleCreated {
	return ArticleCreated{
		BaseEvent: newBase(articleID.String(), TypeArticleCreated, timestamp),
		ArticleID: articleID,
		Title:     title,
	}
}

// ArticleUpdated is raised when an article is saved
type ArticleUpdated struct {
	BaseEvent
	ArticleID valueobjects.ArticleID `json:"article_id"`
	Fields    []string               `json:"fields"`
}

// NewArticleUpdated creates an ArticleUpdated event
func NewArticleUpdated(articleID valueobjects.ArticleID, fields []string, timestamp time.Time) ArticleUpdated {
	return ArticleUpdated{
		BaseEvent: newBase(articleID.String(), TypeArticleUpdated, timestamp),
		ArticleID: articleID,
		Fields:    fields,
	}
}
