package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// CallRequest is a pickup/destination request submitted to the dispatcher.
type CallRequest struct {
	FromFloor int
	ToFloor   int
	CallerID  string
	// IdempotencyKey deduplicates retried requests within the TTL window.
	// Empty means no deduplication.
	IdempotencyKey string
}

// RequiredDirection is the direction of travel the caller needs.
func (r CallRequest) RequiredDirection() Direction {
	if r.ToFloor > r.FromFloor {
		return DirectionUp
	}
	return DirectionDown
}

// Fingerprint identifies the request payload independently of the
// idempotency key. Two requests with the same key but different
// fingerprints indicate key reuse by the caller.
func (r CallRequest) Fingerprint() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%d|%s", r.FromFloor, r.ToFloor, r.CallerID)))
	return hex.EncodeToString(sum[:])
}

// Assignment is the dispatcher's answer to an accepted call.
type Assignment struct {
	ElevatorID int
	TaskID     string
	// EstimatedArrivalTime is the projected seconds until the unit has
	// completed the destination door cycle.
	EstimatedArrivalTime float64
}
