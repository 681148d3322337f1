package domain

// PositionStatus represents the lifecycle state of a position record.
type PositionStatus string

const (
	StatusActive PositionStatus = "active"
	StatusClosed PositionStatus = "closed"
)
