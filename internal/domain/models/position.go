package models

import "time"

// Side is the direction of a position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Position is an open position as delivered by the position feed.
type Position struct {
	Symbol     string
	Side       Side
	EntryPrice float64
	OpenedAt   time.Time
}

// PositionMarker is the visual marker derived from a Position. Never persisted.
type PositionMarker struct {
	Time  time.Time
	Side  Side
	Price float64
}
