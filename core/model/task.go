package model

import "time"

// TaskStatus is the lifecycle state of one tracked movement execution.
type TaskStatus int

const (
	TaskRunning TaskStatus = iota
	TaskCompleted
	TaskFailed
)

func (s TaskStatus) String() string {
	switch s {
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TaskRecord reports the status of one assignment's execution.
// Known is false when the task id was never registered or has already
// been pruned; such tasks read as completed by convention.
type TaskRecord struct {
	TaskID     string
	ElevatorID int
	Status     TaskStatus
	Reason     string
	Known      bool
}

// Health summarizes fleet availability.
type Health int

const (
	HealthHealthy Health = iota
	HealthBusy
)

func (h Health) String() string {
	if h == HealthBusy {
		return "BUSY"
	}
	return "HEALTHY"
}

// StatusSnapshot is a point-in-time view of the whole fleet.
type StatusSnapshot struct {
	Units       []UnitSnapshot
	ActiveTasks int
	Health      Health
	Timestamp   time.Time
}
