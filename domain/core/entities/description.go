package entities

import (
	"encoding/json"

	"concept-tree/domain/core/valueobjects"
)

// Description is one free-text annotation on a node.
// Link lazily binds the description to an article that may not exist yet.
type Description struct {
	ID   valueobjects.DescriptionID `json:"id"`
	Text string                     `json:"text"`
	Link valueobjects.ArticleID     `json:"link"`
}

// HasLink reports whether the description is bound to an article
func (d Description) HasLink() bool {
	return !d.Link.IsZero()
}

type descriptionWire struct {
	ID   valueobjects.DescriptionID `json:"id"`
	Text string                     `json:"text"`
	Link *string                    `json:"link"`
}

// MarshalJSON writes an absent link as null
func (d Description) MarshalJSON() ([]byte, error) {
	wire := descriptionWire{ID: d.ID, Text: d.Text}
	if d.HasLink() {
		link := d.Link.String()
		wire.Link = &link
	}
	return json.Marshal(wire)
}

// UnmarshalJSON treats both null and "" as an absent link
func (d *Description) UnmarshalJSON(data []byte) error {
	var wire descriptionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	d.ID = wire.ID
	d.Text = wire.Text
	d.Link = ""
	if wire.Link != nil {
		d.Link = valueobjects.ArticleID(*wire.Link)
	}
	return nil
}
