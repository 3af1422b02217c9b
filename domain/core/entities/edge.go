package entities

import (
	"concept-tree/domain/core/valueobjects"
)

// Edge is a directed connection between two nodes.
// Cycles and parallel edges are allowed; identity is structural.
type Edge struct {
	ID           valueobjects.EdgeID `json:"id"`
	Source       valueobjects.NodeID `json:"source" validate:"required"`
	Target       valueobjects.NodeID `json:"target" validate:"required"`
	SourceHandle string              `json:"sourceHandle,omitempty"`
	TargetHandle string              `json:"targetHandle,omitempty"`
	Animated     bool                `json:"animated,omitempty"`
	Style        map[string]string   `json:"style,omitempty"`
}

// Touches reports whether the edge has the node as source or target
func (e Edge) Touches(id valueobjects.NodeID) bool {
	return e.Source == id || e.Target == id
}

// Clone returns a deep copy of the edge
func (e Edge) Clone() Edge {
	if e.Style != nil {
		style := make(map[string]string, len(e.Style))
		for k, v := range e.Style {
			style[k] = v
		}
		e.Style = style
	}
	return e
}
