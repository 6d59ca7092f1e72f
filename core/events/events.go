// Package events defines the payloads published on the internal event bus.
package events

import (
	"time"

	"github.com/verticore/liftd/core/model"
)

// AssignmentEvent is published when the dispatcher accepts a call.
type AssignmentEvent struct {
	TaskID     string
	ElevatorID int
	FromFloor  int
	ToFloor    int
	CallerID   string
	ETASeconds float64
	Time       time.Time
}

// TaskEvent is published when a tracked execution reaches a terminal state.
type TaskEvent struct {
	TaskID     string
	ElevatorID int
	Status     model.TaskStatus
	Reason     string
	Time       time.Time
}

// UnitStateEvent is published on every unit state or floor change.
type UnitStateEvent struct {
	Snapshot model.UnitSnapshot
	Time     time.Time
}
