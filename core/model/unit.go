package model

import "fmt"

// UnitState describes the movement phase an elevator unit is in.
type UnitState int

const (
	StateIdle UnitState = iota
	StateMoving
	StateDoorOpening
	StateDoorClosing
	StateError
)

// String returns the canonical name used in persistence and telemetry.
func (s UnitState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateMoving:
		return "MOVING"
	case StateDoorOpening:
		return "DOOR_OPENING"
	case StateDoorClosing:
		return "DOOR_CLOSING"
	case StateError:
		return "ERROR"
	default:
		return "unknown"
	}
}

// Direction is the travel direction of a unit.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionUp
	DirectionDown
)

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "UP"
	case DirectionDown:
		return "DOWN"
	case DirectionNone:
		return "NONE"
	default:
		return "unknown"
	}
}

// UnitSnapshot is a consistent copy of one unit's state at a point in time.
type UnitSnapshot struct {
	ID               int
	CurrentFloor     int
	State            UnitState
	Direction        Direction
	DestinationFloor *int
	TripsCompleted   int
	Maintenance      bool
}

// InvalidFloorError reports a floor outside the building's range.
type InvalidFloorError struct {
	Floor    int
	MaxFloor int
}

func (e *InvalidFloorError) Error() string {
	return fmt.Sprintf("invalid floor %d: must be between 1 and %d", e.Floor, e.MaxFloor)
}
