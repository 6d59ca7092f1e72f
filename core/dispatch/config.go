package dispatch

import (
	"fmt"
	"time"
)

// Config holds the dispatcher's building and timing parameters.
type Config struct {
	// NumFloors is the highest floor; valid floors are 1..NumFloors.
	NumFloors int
	// FloorTransit is the time one floor transit takes.
	FloorTransit time.Duration
	// DoorTime is the duration of one door phase (opening or closing).
	DoorTime time.Duration
	// IdempotencyTTL bounds how long idempotency entries and terminal
	// task records are retained.
	IdempotencyTTL time.Duration
}

// SetDefaults applies the defaults used when fields are zero.
func (c *Config) SetDefaults() {
	if c.NumFloors == 0 {
		c.NumFloors = 10
	}
	if c.FloorTransit == 0 {
		c.FloorTransit = 5 * time.Second
	}
	if c.DoorTime == 0 {
		c.DoorTime = 2 * time.Second
	}
	if c.IdempotencyTTL == 0 {
		c.IdempotencyTTL = 600 * time.Second
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.NumFloors < 2 {
		return fmt.Errorf("numFloors must be at least 2, got %d", c.NumFloors)
	}
	if c.FloorTransit < 0 || c.DoorTime < 0 {
		return fmt.Errorf("transit and door durations must not be negative")
	}
	if c.IdempotencyTTL <= 0 {
		return fmt.Errorf("idempotency TTL must be positive")
	}
	return nil
}
