package entities

import (
	"concept-tree/domain/core/valueobjects"
)

// Node is a concept vertex of the graph
type Node struct {
	ID       valueobjects.NodeID   `json:"id" validate:"required"`
	Type     string                `json:"type,omitempty"`
	Position valueobjects.Position `json:"position"`
	Data     NodeData              `json:"data"`
}

// NodeData holds the user-authored part of a node
type NodeData struct {
	Label        string                `json:"label"`
	Descriptions []Description         `json:"descriptions"`
	LinkedNodes  []valueobjects.NodeID `json:"linkedNodes"`
}

// NodeDataPatch is a shallow partial update of NodeData.
// A nil field is left untouched; a non-nil empty slice clears the field.
type NodeDataPatch struct {
	Label        *string               `json:"label,omitempty"`
	Descriptions []Description         `json:"descriptions,omitempty"`
	LinkedNodes  []valueobjects.NodeID `json:"linkedNodes,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (p NodeDataPatch) IsEmpty() bool {
	return p.Label == nil && p.Descriptions == nil && p.LinkedNodes == nil
}

// Clone returns a deep copy of the node
func (n Node) Clone() Node {
	n.Data = n.Data.Clone()
	return n
}

// Clone returns a deep copy of the node data
func (d NodeData) Clone() NodeData {
	var descriptions []Description
	if d.Descriptions != nil {
		descriptions = make([]Description, len(d.Descriptions))
		copy(descriptions, d.Descriptions)
	}

	var linked []valueobjects.NodeID
	if d.LinkedNodes != nil {
		linked = make([]valueobjects.NodeID, len(d.LinkedNodes))
		copy(linked, d.LinkedNodes)
	}

	return NodeData{
		Label:        d.Label,
		Descriptions: descriptions,
		LinkedNodes:  linked,
	}
}

// Normalize replaces nil slices with empty ones so the wire form always carries arrays
func (d *NodeData) Normalize() {
	if d.Descriptions == nil {
		d.Descriptions = []Description{}
	}
	if d.LinkedNodes == nil {
		d.LinkedNodes = []valueobjects.NodeID{}
	}
}

// Merge shallow-merges the patch into a copy of the data
func (d NodeData) Merge(patch NodeDataPatch) NodeData {
	merged := d.Clone()
	if patch.Label != nil {
		merged.Label = *patch.Label
	}
	if patch.Descriptions != nil {
		merged.Descriptions = make([]Description, len(patch.Descriptions))
		copy(merged.Descriptions, patch.Descriptions)
	}
	if patch.LinkedNodes != nil {
		merged.LinkedNodes = make([]valueobjects.NodeID, len(patch.LinkedNodes))
		copy(merged.LinkedNodes, patch.LinkedNodes)
	}
	return merged
}

// FindDescription returns the index of the description with the given id, or -1
func (d NodeData) FindDescription(id valueobjects.DescriptionID) int {
	for i, desc := range d.Descriptions {
		if desc.ID == id {
			return i
		}
	}
	return -1
}

// IsLinkedTo reports whether target is in the linked node set
func (d NodeData) IsLinkedTo(target valueobjects.NodeID) bool {
	for _, id := range d.LinkedNodes {
		if id == target {
			return true
		}
	}
	return false
}
