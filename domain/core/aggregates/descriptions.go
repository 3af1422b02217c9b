package aggregates

import (
	"concept-tree/domain/core/entities"
	"concept-tree/domain/core/valueobjects"
	"concept-tree/domain/events"
)

// AddDescription appends an empty, unlinked description to the node
func (g *Graph) AddDescription(nodeID valueobjects.NodeID) (valueobjects.DescriptionID, bool) {
	if !g.HasNode(nodeID) {
		return "", false
	}
	id := g.ids.NextDescriptionID()
	g.AppendDescription(nodeID, entities.Description{ID: id})
	return id, true
}

// AppendDescription appends a description carrying a caller-assigned id.
// A description whose id is already present on the node is not appended twice.
func (g *Graph) AppendDescription(nodeID valueobjects.NodeID, desc entities.Description) bool {
	i, ok := g.index[nodeID]
	if !ok {
		return false
	}
	data := &g.nodes[i].Data
	if data.FindDescription(desc.ID) >= 0 {
		return true
	}
	data.Descriptions = append(data.Descriptions, desc)
	g.descriptionsChanged(nodeID)
	return true
}

// EditDescriptionText replaces the text of a description in place
func (g *Graph) EditDescriptionText(nodeID valueobjects.NodeID, descID valueobjects.DescriptionID, text string) bool {
	return g.withDescription(nodeID, descID, func(d *entities.Description) bool {
		if d.Text == text {
			return false
		}
		d.Text = text
		return true
	})
}

// RemoveDescription removes a description by id.
// The article it references, if any, is left alone.
func (g *Graph) RemoveDescription(nodeID valueobjects.NodeID, descID valueobjects.DescriptionID) bool {
	i, ok := g.index[nodeID]
	if !ok {
		return false
	}
	data := &g.nodes[i].Data
	j := data.FindDescription(descID)
	if j < 0 {
		return false
	}
	data.Descriptions = append(data.Descriptions[:j:j], data.Descriptions[j+1:]...)
	g.descriptionsChanged(nodeID)
	return true
}

// SetDescriptionLink binds a description to an article id. Idempotent.
func (g *Graph) SetDescriptionLink(nodeID valueobjects.NodeID, descID valueobjects.DescriptionID, articleID valueobjects.ArticleID) bool {
	changed := false
	ok := g.withDescription(nodeID, descID, func(d *entities.Description) bool {
		if d.Link == articleID {
			return false
		}
		d.Link = articleID
		changed = true
		return true
	})
	if changed && !articleID.IsZero() {
		g.addEvent(events.NewDescriptionLinked(nodeID, descID, articleID, g.now()))
	}
	return ok
}

// Description returns a copy of a single description
func (g *Graph) Description(nodeID valueobjects.NodeID, descID valueobjects.DescriptionID) (entities.Description, bool) {
	i, ok := g.index[nodeID]
	if !ok {
		return entities.Description{}, false
	}
	j := g.nodes[i].Data.FindDescription(descID)
	if j < 0 {
		return entities.Description{}, false
	}
	return g.nodes[i].Data.Descriptions[j], true
}

// withDescription applies fn to the addressed description. fn reports whether it changed anything.
func (g *Graph) withDescription(nodeID valueobjects.NodeID, descID valueobjects.DescriptionID, fn func(*entities.Description) bool) bool {
	i, ok := g.index[nodeID]
	if !ok {
		return false
	}
	j := g.nodes[i].Data.FindDescription(descID)
	if j < 0 {
		return false
	}
	if fn(&g.nodes[i].Data.Descriptions[j]) {
		g.descriptionsChanged(nodeID)
	}
	return true
}

func (g *Graph) descriptionsChanged(nodeID valueobjects.NodeID) {
	g.touch()
	g.addEvent(events.NewNodeDataUpdated(nodeID, []string{"descriptions"}, g.now()))
}
