package elevator

import (
	"context"
	"time"
)

// Drive abstracts the physical timing of a unit: one floor transit and one
// door phase. The production implementation sleeps; tests inject instant or
// faulty drives.
type Drive interface {
	// Step performs one floor transit starting at fromFloor.
	Step(ctx context.Context, unitID, fromFloor int) error
	// DoorPhase performs one door movement (opening or closing) at floor.
	DoorPhase(ctx context.Context, unitID, floor int) error
}

// SleepDrive implements Drive with context-aware timers.
type SleepDrive struct {
	Transit time.Duration
	Door    time.Duration
}

func (d SleepDrive) Step(ctx context.Context, _, _ int) error {
	return wait(ctx, d.Transit)
}

func (d SleepDrive) DoorPhase(ctx context.Context, _, _ int) error {
	return wait(ctx, d.Door)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
