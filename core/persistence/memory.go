package persistence

import (
	"context"
	"sort"
	"sync"
)

// MemoryGateway keeps the mirror in process memory. Used by the simulator
// and by tests that assert on the audit trail.
type MemoryGateway struct {
	mu     sync.RWMutex
	units  map[int]UnitRecord
	events []EventRecord
}

// NewMemoryGateway creates an empty MemoryGateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{units: map[int]UnitRecord{}}
}

func (g *MemoryGateway) UpsertUnitState(_ context.Context, rec UnitRecord) error {
	g.mu.Lock()
	g.units[rec.UnitID] = rec
	g.mu.Unlock()
	return nil
}

func (g *MemoryGateway) AppendEvent(_ context.Context, ev EventRecord) error {
	if ev.Severity == "" {
		ev.Severity = SeverityInfo
	}
	g.mu.Lock()
	g.events = append(g.events, ev)
	g.mu.Unlock()
	return nil
}

func (g *MemoryGateway) Close() error { return nil }

// Units returns the mirrored unit rows ordered by id.
func (g *MemoryGateway) Units() []UnitRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()
	res := make([]UnitRecord, 0, len(g.units))
	for _, rec := range g.units {
		res = append(res, rec)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].UnitID < res[j].UnitID })
	return res
}

// Events returns up to limit most recent events, optionally filtered by
// type. limit <= 0 means no limit.
func (g *MemoryGateway) Events(eventType string, limit int) []EventRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var res []EventRecord
	for i := len(g.events) - 1; i >= 0; i-- {
		if eventType != "" && g.events[i].Type != eventType {
			continue
		}
		res = append(res, g.events[i])
		if limit > 0 && len(res) == limit {
			break
		}
	}
	return res
}
