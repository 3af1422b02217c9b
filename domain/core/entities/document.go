package entities

import (
	"concept-tree/domain/core/valueobjects"
)

// GraphDocument is a snapshot of the whole graph: the unit that is persisted,
// loaded and pushed to subscribers
type GraphDocument struct {
	Nodes []Node `json:"nodes" validate:"dive"`
	Edges []Edge `json:"edges" validate:"dive"`
}

// Clone returns a deep copy of the document
func (d GraphDocument) Clone() GraphDocument {
	var clone GraphDocument
	if d.Nodes != nil {
		clone.Nodes = make([]Node, len(d.Nodes))
		for i, n := range d.Nodes {
			clone.Nodes[i] = n.Clone()
		}
	}
	if d.Edges != nil {
		clone.Edges = make([]Edge, len(d.Edges))
		for i, e := range d.Edges {
			clone.Edges[i] = e.Clone()
		}
	}
	return clone
}

// NodeIDs returns the ids of all nodes in document order
func (d GraphDocument) NodeIDs() []valueobjects.NodeID {
	ids := make([]valueobjects.NodeID, len(d.Nodes))
	for i, n := range d.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// SeedDocument builds the single-node graph written when no remote document exists.
// It is deterministic so a repeated bootstrap writes an identical payload.
func SeedDocument(id valueobjects.NodeID, nodeType, label string, position valueobjects.Position) GraphDocument {
	return GraphDocument{
		Nodes: []Node{
			{
				ID:       id,
				Type:     nodeType,
				Position: position,
				Data: NodeData{
					Label:        label,
					Descriptions: []Description{},
					LinkedNodes:  []valueobjects.NodeID{},
				},
			},
		},
		Edges: []Edge{},
	}
}
