package valueobjects

import (
	"strconv"
	"sync"
	"time"
)

// IDGenerator produces identifiers for nodes, descriptions and edges.
type IDGenerator interface {
	// NextNodeID returns a fresh node identifier
	NextNodeID() NodeID

	// NextDescriptionID returns a fresh description identifier
	NextDescriptionID() DescriptionID

	// NextEdgeID returns a fresh structural edge key for the given endpoints
	NextEdgeID(source, target NodeID) EdgeID
}

// ClockIDGenerator issues millisecond timestamps as identifiers.
// Values are strictly increasing within one generator: when the clock has not
// advanced (or moved backwards) the previous value plus one is issued.
// Uniqueness across processes is likely, not guaranteed.
type ClockIDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewClockIDGenerator creates a generator backed by the wall clock
func NewClockIDGenerator() *ClockIDGenerator {
	return &ClockIDGenerator{now: time.Now}
}

// NewClockIDGeneratorWithClock creates a generator backed by the given clock
func NewClockIDGeneratorWithClock(now func() time.Time) *ClockIDGenerator {
	return &ClockIDGenerator{now: now}
}

// Next returns the next raw identifier value
func (g *ClockIDGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	v := g.now().UnixMilli()
	if v <= g.last {
		v = g.last + 1
	}
	g.last = v
	return v
}

// NextNodeID returns a fresh node identifier
func (g *ClockIDGenerator) NextNodeID() NodeID {
	return NodeID(strconv.FormatInt(g.Next(), 10))
}

// NextDescriptionID returns a fresh description identifier
func (g *ClockIDGenerator) NextDescriptionID() DescriptionID {
	return DescriptionID(strconv.FormatInt(g.Next(), 10))
}

// NextEdgeID returns a fresh structural edge key for the given endpoints
func (g *ClockIDGenerator) NextEdgeID(source, target NodeID) EdgeID {
	return EdgeID("e" + source.String() + "-" + target.String() + "-" + strconv.FormatInt(g.Next(), 10))
}
