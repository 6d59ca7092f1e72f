package dispatch

import "github.com/verticore/liftd/core/model"

// EstimateArrival projects the seconds until the chosen unit has reached
// the pickup floor and finished its door cycles. For an idle unit the move
// covers current→pickup; for a unit en route it covers
// current→destination→pickup. One door cycle (open+close) is always due at
// the pickup floor, and a second one when the unit must physically move to
// reach it.
func EstimateArrival(snap model.UnitSnapshot, fromFloor int, cfg Config) float64 {
	var moveFloors int
	if snap.State == model.StateIdle || snap.DestinationFloor == nil {
		moveFloors = abs(snap.CurrentFloor - fromFloor)
	} else {
		dest := *snap.DestinationFloor
		moveFloors = abs(snap.CurrentFloor-dest) + abs(dest-fromFloor)
	}
	eta := float64(moveFloors) * cfg.FloorTransit.Seconds()

	eta += 2 * cfg.DoorTime.Seconds()
	if snap.CurrentFloor != fromFloor {
		eta += 2 * cfg.DoorTime.Seconds()
	}
	return eta
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
