package dispatch

import (
	"testing"
	"time"

	"github.com/verticore/liftd/core/model"
)

func etaConfig() Config {
	return Config{
		NumFloors:      10,
		FloorTransit:   2 * time.Second,
		DoorTime:       time.Second,
		IdempotencyTTL: 600 * time.Second,
	}
}

func intPtr(v int) *int { return &v }

func TestEstimateArrivalIdleWithTravel(t *testing.T) {
	snap := model.UnitSnapshot{ID: 1, CurrentFloor: 1, State: model.StateIdle, Direction: model.DirectionNone}
	// 4 floors to the pickup, pickup door cycle plus destination door cycle.
	got := EstimateArrival(snap, 5, etaConfig())
	if got != 12.0 {
		t.Fatalf("expected 12.0s, got %v", got)
	}
}

func TestEstimateArrivalIdleAlreadyAtPickup(t *testing.T) {
	snap := model.UnitSnapshot{ID: 1, CurrentFloor: 1, State: model.StateIdle, Direction: model.DirectionNone}
	// No travel: only the destination door cycle is due.
	got := EstimateArrival(snap, 1, etaConfig())
	if got != 2.0 {
		t.Fatalf("expected 2.0s, got %v", got)
	}
}

func TestEstimateArrivalEnRoute(t *testing.T) {
	snap := model.UnitSnapshot{
		ID:               1,
		CurrentFloor:     2,
		State:            model.StateMoving,
		Direction:        model.DirectionUp,
		DestinationFloor: intPtr(8),
	}
	// current->destination (6) plus destination->pickup (3) = 9 floors,
	// then both door cycles.
	got := EstimateArrival(snap, 5, etaConfig())
	if got != 22.0 {
		t.Fatalf("expected 22.0s, got %v", got)
	}
}
