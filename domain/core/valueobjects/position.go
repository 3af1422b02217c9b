package valueobjects

import "math/rand"

// Position is the 2-D canvas coordinate of a node.
// Only the presentation layer moves nodes; the core persists the value.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPosition creates a position
func NewPosition(x, y float64) Position {
	return Position{X: x, Y: y}
}

// RandomPosition returns a position uniformly distributed inside a width x height rectangle
// anchored at the origin
func RandomPosition(width, height float64) Position {
	return Position{
		X: rand.Float64() * width,
		Y: rand.Float64() * height,
	}
}

// Equals checks if two positions are equal
func (p Position) Equals(other Position) bool {
	return p.X == other.X && p.Y == other.Y
}

// Within reports whether the position lies inside the width x height rectangle
func (p Position) Within(width, height float64) bool {
	return p.X >= 0 && p.X <= width && p.Y >= 0 && p.Y <= height
}
