// Package elevator implements the per-unit movement state machine. A unit
// owns its physical state and exposes a single blocking MoveTo operation;
// the dispatcher is the only other writer, through Reserve.
package elevator

import (
	"context"
	"sync"
	"time"

	"github.com/verticore/liftd/core/events"
	"github.com/verticore/liftd/core/logger"
	"github.com/verticore/liftd/core/model"
	"github.com/verticore/liftd/core/persistence"
	"github.com/verticore/liftd/internal/eventbus"
)

// Unit is one elevator car. Two locks protect it: rideMu serializes MoveTo
// end to end, mu guards field access so reservations and snapshots never
// race a ride in progress.
type Unit struct {
	id        int
	numFloors int
	drive     Drive
	gateway   persistence.Gateway
	bus       eventbus.EventBus
	log       logger.Logger

	rideMu sync.Mutex

	mu          sync.Mutex
	floor       int
	state       model.UnitState
	direction   model.Direction
	destination *int
	trips       int
	maintenance bool
}

// NewUnit creates a unit at floor 1, IDLE, and mirrors the initial state to
// the gateway. The bus may be nil.
func NewUnit(id, numFloors int, drive Drive, gateway persistence.Gateway, bus eventbus.EventBus, log logger.Logger) *Unit {
	u := &Unit{
		id:        id,
		numFloors: numFloors,
		drive:     drive,
		gateway:   gateway,
		bus:       bus,
		log:       log,
		floor:     1,
		state:     model.StateIdle,
		direction: model.DirectionNone,
	}
	u.PushState(context.Background())
	return u
}

// ID returns the stable unit identifier.
func (u *Unit) ID() int { return u.id }

// Snapshot returns a consistent copy of the unit's state.
func (u *Unit) Snapshot() model.UnitSnapshot {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.snapshotLocked()
}

func (u *Unit) snapshotLocked() model.UnitSnapshot {
	snap := model.UnitSnapshot{
		ID:             u.id,
		CurrentFloor:   u.floor,
		State:          u.state,
		Direction:      u.direction,
		TripsCompleted: u.trips,
		Maintenance:    u.maintenance,
	}
	if u.destination != nil {
		dest := *u.destination
		snap.DestinationFloor = &dest
	}
	return snap
}

// Reserve marks the unit as taken for an accepted call. It is speculative
// bookkeeping under the dispatcher's fleet lock; the state machine
// re-derives the same fields once the ride starts.
func (u *Unit) Reserve(direction model.Direction, destinationFloor int) {
	u.mu.Lock()
	dest := destinationFloor
	u.destination = &dest
	u.direction = direction
	u.state = model.StateMoving
	u.mu.Unlock()
}

// SetMaintenance toggles the maintenance flag. Units in maintenance are
// excluded from selection but keep executing an already accepted ride.
func (u *Unit) SetMaintenance(on bool) {
	u.mu.Lock()
	u.maintenance = on
	u.mu.Unlock()
	u.PushState(context.Background())
}

// SetFault latches the terminal ERROR state. Recovery requires an external
// reset and is not designed here.
func (u *Unit) SetFault(ctx context.Context, reason error) {
	u.mu.Lock()
	u.state = model.StateError
	u.direction = model.DirectionNone
	u.destination = nil
	u.mu.Unlock()
	u.log.Errorf("unit %d faulted: %v", u.id, reason)
	u.PushState(ctx)
}

// CompleteTrip increments the trip counter after a completed call.
func (u *Unit) CompleteTrip() {
	u.mu.Lock()
	u.trips++
	u.mu.Unlock()
}

// MoveTo drives the unit to floor, blocking until the arrival door cycle
// has finished. Concurrent calls on the same unit are serialized; other
// units are unaffected. A Drive failure surfaces as the unit fault.
func (u *Unit) MoveTo(ctx context.Context, floor int) error {
	if floor < 1 || floor > u.numFloors {
		return &model.InvalidFloorError{Floor: floor, MaxFloor: u.numFloors}
	}

	u.rideMu.Lock()
	defer u.rideMu.Unlock()

	u.mu.Lock()
	if u.floor == floor {
		// A reservation targeting the floor we already occupy is consumed
		// here: no ride will run to re-derive the idle state.
		cleared := false
		if u.state == model.StateMoving && u.destination != nil && *u.destination == floor {
			u.state = model.StateIdle
			u.direction = model.DirectionNone
			u.destination = nil
			cleared = true
		}
		u.mu.Unlock()
		if cleared {
			u.PushState(ctx)
		}
		return nil
	}
	dest := floor
	u.destination = &dest
	if floor > u.floor {
		u.direction = model.DirectionUp
	} else {
		u.direction = model.DirectionDown
	}
	u.state = model.StateMoving
	u.mu.Unlock()
	u.PushState(ctx)

	for {
		u.mu.Lock()
		cur := u.floor
		dir := u.direction
		u.mu.Unlock()
		if cur == floor {
			break
		}
		if err := u.drive.Step(ctx, u.id, cur); err != nil {
			return err
		}
		u.mu.Lock()
		if dir == model.DirectionUp {
			u.floor++
		} else {
			u.floor--
		}
		cur = u.floor
		u.mu.Unlock()
		u.PushState(ctx)
		u.log.Infof("unit %d now at floor %d", u.id, cur)
	}

	return u.arrive(ctx, floor)
}

// arrive runs the door cycle and returns the unit to IDLE.
func (u *Unit) arrive(ctx context.Context, floor int) error {
	u.setState(model.StateDoorOpening)
	u.PushState(ctx)
	if err := u.drive.DoorPhase(ctx, u.id, floor); err != nil {
		return err
	}

	u.setState(model.StateDoorClosing)
	u.PushState(ctx)
	if err := u.drive.DoorPhase(ctx, u.id, floor); err != nil {
		return err
	}

	u.mu.Lock()
	u.state = model.StateIdle
	u.direction = model.DirectionNone
	u.destination = nil
	u.mu.Unlock()
	u.PushState(ctx)
	return nil
}

func (u *Unit) setState(s model.UnitState) {
	u.mu.Lock()
	u.state = s
	u.mu.Unlock()
}

// PushState mirrors the current state to the gateway and publishes a
// UnitStateEvent. Gateway errors are logged, never propagated: persistence
// must not take down the state machine.
func (u *Unit) PushState(ctx context.Context) {
	snap := u.Snapshot()
	rec := persistence.UnitRecord{
		UnitID:           snap.ID,
		CurrentFloor:     snap.CurrentFloor,
		State:            snap.State.String(),
		Direction:        snap.Direction.String(),
		DestinationFloor: snap.DestinationFloor,
		TripsCompleted:   snap.TripsCompleted,
		Maintenance:      snap.Maintenance,
		UpdatedAt:        time.Now(),
	}
	if err := u.gateway.UpsertUnitState(ctx, rec); err != nil {
		u.log.Warnf("unit %d state upsert failed: %v", u.id, err)
	}
	if u.bus != nil {
		u.bus.Publish(events.UnitStateEvent{Snapshot: snap, Time: time.Now()})
	}
}
