package valueobjects

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// NodeID represents a unique node identifier
type NodeID string

// String returns the string representation
func (id NodeID) String() string {
	return string(id)
}

// IsZero checks if the NodeID is the zero value
func (id NodeID) IsZero() bool {
	return id == ""
}

// EdgeID represents the structural key of an edge
type EdgeID string

// String returns the string representation
func (id EdgeID) String() string {
	return string(id)
}

// ArticleID represents an article document identifier.
// Article ids live in their own identifier space, assigned by the article store.
type ArticleID string

// String returns the string representation
func (id ArticleID) String() string {
	return string(id)
}

// IsZero checks if the ArticleID is the zero value
func (id ArticleID) IsZero() bool {
	return id == ""
}

// DescriptionID identifies a description within its owning node.
// On the wire it is a number when it was generated by the clock and a string otherwise.
type DescriptionID string

// String returns the string representation
func (id DescriptionID) String() string {
	return string(id)
}

// IsZero checks if the DescriptionID is the zero value
func (id DescriptionID) IsZero() bool {
	return id == ""
}

// MarshalJSON implements json.Marshaler
func (id DescriptionID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON implements json.Unmarshaler
func (id *DescriptionID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = DescriptionID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("description ID must be a number or a string")
	}
	*id = DescriptionID(n.String())
	return nil
}
