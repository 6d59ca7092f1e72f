// Package persistence defines the contract the core uses to mirror unit
// state and append audit events. Implementations are best-effort: the
// dispatcher and the units log gateway errors but never let them reach the
// movement state machine or the caller.
package persistence

import (
	"context"
	"time"
)

// Well-known audit event types.
const (
	EventElevatorAssigned = "ELEVATOR_ASSIGNED"
	EventCallCompleted    = "CALL_COMPLETED"
	EventCallFailed       = "CALL_FAILED"
	EventUnitState        = "UNIT_STATE"
)

// Severity levels for audit events.
const (
	SeverityInfo  = "INFO"
	SeverityError = "ERROR"
)

// UnitRecord mirrors one unit's durable state row.
type UnitRecord struct {
	UnitID           int       `json:"unit_id"`
	CurrentFloor     int       `json:"current_floor"`
	State            string    `json:"state"`
	Direction        string    `json:"direction"`
	DestinationFloor *int      `json:"destination_floor,omitempty"`
	TripsCompleted   int       `json:"trips_completed"`
	Maintenance      bool      `json:"maintenance"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// EventRecord is one entry of the append-only audit trail.
type EventRecord struct {
	Type      string    `json:"type"`
	Detail    string    `json:"detail"`
	Source    string    `json:"source"`
	UnitID    *int      `json:"unit_id,omitempty"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// Gateway durably mirrors unit state and events. Never authoritative: the
// in-memory fleet is the source of truth.
type Gateway interface {
	UpsertUnitState(ctx context.Context, rec UnitRecord) error
	AppendEvent(ctx context.Context, ev EventRecord) error
	Close() error
}

// NopGateway discards everything. Used when persistence is disabled and in
// tests that don't care about the mirror.
type NopGateway struct{}

func (NopGateway) UpsertUnitState(context.Context, UnitRecord) error { return nil }
func (NopGateway) AppendEvent(context.Context, EventRecord) error    { return nil }
func (NopGateway) Close() error                                      { return nil }
