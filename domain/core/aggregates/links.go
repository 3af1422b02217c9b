package aggregates

import (
	"concept-tree/domain/core/entities"
	"concept-tree/domain/core/valueobjects"
	"concept-tree/domain/events"
)

// AddLink adds target to the node's linked set.
// Self links and links already present are ignored.
func (g *Graph) AddLink(nodeID, targetID valueobjects.NodeID) bool {
	i, ok := g.index[nodeID]
	if !ok {
		return false
	}
	data := &g.nodes[i].Data
	if targetID == nodeID || data.IsLinkedTo(targetID) {
		return true
	}
	data.LinkedNodes = append(data.LinkedNodes, targetID)
	g.linksChanged(nodeID)
	return true
}

// RemoveLink drops target from the node's linked set if present
func (g *Graph) RemoveLink(nodeID, targetID valueobjects.NodeID) bool {
	i, ok := g.index[nodeID]
	if !ok {
		return false
	}
	data := &g.nodes[i].Data
	for j, id := range data.LinkedNodes {
		if id == targetID {
			data.LinkedNodes = append(data.LinkedNodes[:j:j], data.LinkedNodes[j+1:]...)
			g.linksChanged(nodeID)
			return true
		}
	}
	return true
}

func (g *Graph) linksChanged(nodeID valueobjects.NodeID) {
	g.touch()
	g.addEvent(events.NewNodeDataUpdated(nodeID, []string{"linkedNodes"}, g.now()))
}

// Derived views. Computed on every call, never cached.

// AvailableLinkTargets lists every node except the node itself and the nodes it already links to
func (g *Graph) AvailableLinkTargets(nodeID valueobjects.NodeID) []entities.Node {
	i, ok := g.index[nodeID]
	if !ok {
		return nil
	}
	self := g.nodes[i].Data
	targets := make([]entities.Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		if n.ID == nodeID || self.IsLinkedTo(n.ID) {
			continue
		}
		targets = append(targets, n.Clone())
	}
	return targets
}

// LinkedNodes resolves the node's linked set in stored order, skipping dangling ids
func (g *Graph) LinkedNodes(nodeID valueobjects.NodeID) []entities.Node {
	i, ok := g.index[nodeID]
	if !ok {
		return nil
	}
	linked := make([]entities.Node, 0, len(g.nodes[i].Data.LinkedNodes))
	for _, id := range g.nodes[i].Data.LinkedNodes {
		if j, exists := g.index[id]; exists {
			linked = append(linked, g.nodes[j].Clone())
		}
	}
	return linked
}

// DanglingLinks returns linked ids of the node that no longer resolve
func (g *Graph) DanglingLinks(nodeID valueobjects.NodeID) []valueobjects.NodeID {
	i, ok := g.index[nodeID]
	if !ok {
		return nil
	}
	var dangling []valueobjects.NodeID
	for _, id := range g.nodes[i].Data.LinkedNodes {
		if !g.HasNode(id) {
			dangling = append(dangling, id)
		}
	}
	return dangling
}

// RenderableEdges returns the edges whose endpoints both exist
func (g *Graph) RenderableEdges() []entities.Edge {
	edges := make([]entities.Edge, 0, len(g.edges))
	for _, e := range g.edges {
		if g.HasNode(e.Source) && g.HasNode(e.Target) {
			edges = append(edges, e.Clone())
		}
	}
	return edges
}
