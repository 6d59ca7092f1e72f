// Package dispatch implements the fleet dispatcher: assignment decisions,
// race-free unit reservation, idempotent retries and task tracking.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verticore/liftd/core/elevator"
	"github.com/verticore/liftd/core/events"
	"github.com/verticore/liftd/core/logger"
	coremetrics "github.com/verticore/liftd/core/metrics"
	"github.com/verticore/liftd/core/model"
	"github.com/verticore/liftd/core/persistence"
	"github.com/verticore/liftd/internal/eventbus"
)

// idemEntry caches the result handed out for an idempotency key. The
// originally computed result is replayed verbatim on a hit, even if the
// underlying ride has since progressed or failed.
type idemEntry struct {
	result      model.Assignment
	fingerprint string
	created     time.Time
}

// taskEntry tracks one movement execution. Terminal entries stay until the
// lazy sweep prunes them, so failures remain observable through polling.
type taskEntry struct {
	rec      model.TaskRecord
	doneAt   time.Time
	terminal bool
}

// Dispatcher owns the fleet, the assignment policy, the idempotency cache
// and the task registry. It is the only component that reserves units.
type Dispatcher struct {
	units   []*elevator.Unit
	cfg     Config
	gateway persistence.Gateway
	log     logger.Logger
	sink    coremetrics.MetricsSink
	bus     eventbus.EventBus
	clock   func() time.Time

	// mu is the fleet lock: it makes idempotency lookup, selection,
	// reservation and task registration atomic relative to other Assign
	// calls. It is never held while a ride is executing.
	mu    sync.Mutex
	idem  map[string]idemEntry
	tasks map[string]*taskEntry
	wg    sync.WaitGroup
}

// New creates a Dispatcher for the given fleet. The sink, bus and log may
// be nil; gateway and units are mandatory.
func New(units []*elevator.Unit, gateway persistence.Gateway, cfg Config, sink coremetrics.MetricsSink, bus eventbus.EventBus, log logger.Logger) (*Dispatcher, error) {
	if len(units) == 0 {
		return nil, fmt.Errorf("dispatch: fleet must contain at least one unit")
	}
	if gateway == nil {
		return nil, fmt.Errorf("dispatch: nil persistence gateway")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	if log == nil {
		log = nopLogger{}
	}
	d := &Dispatcher{
		units:   units,
		cfg:     cfg,
		gateway: gateway,
		log:     log,
		sink:    sink,
		bus:     bus,
		clock:   time.Now,
		idem:    make(map[string]idemEntry),
		tasks:   make(map[string]*taskEntry),
	}
	log.Infof("dispatcher initialized with %d units, %d floors", len(units), cfg.NumFloors)
	return d, nil
}

// SetClock overrides the time source. Intended for tests exercising TTL
// eviction.
func (d *Dispatcher) SetClock(clock func() time.Time) {
	if clock == nil {
		return
	}
	d.mu.Lock()
	d.clock = clock
	d.mu.Unlock()
}

// Assign validates the call, selects and reserves a unit, registers a task
// and spawns its execution. Selection and reservation are atomic under the
// fleet lock; the ride itself runs outside it.
func (d *Dispatcher) Assign(ctx context.Context, req model.CallRequest) (model.Assignment, error) {
	if err := d.validateFloors(req); err != nil {
		assignmentsTotal.WithLabelValues(outcomeInvalid).Inc()
		return model.Assignment{}, err
	}

	d.mu.Lock()
	now := d.clock()
	d.sweepLocked(now)

	if req.IdempotencyKey != "" {
		if entry, ok := d.idem[req.IdempotencyKey]; ok {
			if entry.fingerprint == req.Fingerprint() {
				d.mu.Unlock()
				assignmentsTotal.WithLabelValues(outcomeReplayed).Inc()
				d.log.Debugf("idempotent replay for key %s -> task %s", req.IdempotencyKey, entry.result.TaskID)
				return entry.result, nil
			}
			d.mu.Unlock()
			assignmentsTotal.WithLabelValues(outcomeKeyConflict).Inc()
			return model.Assignment{}, &IdempotencyConflictError{Key: req.IdempotencyKey}
		}
	}

	unit, snap := d.selectUnitLocked(req)
	if unit == nil {
		d.mu.Unlock()
		assignmentsTotal.WithLabelValues(outcomeNoUnit).Inc()
		return model.Assignment{}, ErrNoAvailableUnit
	}

	eta := EstimateArrival(snap, req.FromFloor, d.cfg)
	unit.Reserve(req.RequiredDirection(), req.ToFloor)

	taskID := uuid.NewString()
	d.tasks[taskID] = &taskEntry{
		rec: model.TaskRecord{TaskID: taskID, ElevatorID: unit.ID(), Status: model.TaskRunning, Known: true},
	}
	result := model.Assignment{ElevatorID: unit.ID(), TaskID: taskID, EstimatedArrivalTime: eta}
	if req.IdempotencyKey != "" {
		d.idem[req.IdempotencyKey] = idemEntry{result: result, fingerprint: req.Fingerprint(), created: now}
	}
	d.mu.Unlock()

	assignmentsTotal.WithLabelValues(outcomeAssigned).Inc()
	assignmentETA.Observe(eta)
	d.log.Infof("assigned unit %d task %s for %d->%d (eta %.1fs)", unit.ID(), taskID, req.FromFloor, req.ToFloor, eta)

	unitID := unit.ID()
	d.appendEvent(ctx, persistence.EventRecord{
		Type:   persistence.EventElevatorAssigned,
		Detail: fmt.Sprintf("assigned elevator %d for %d->%d", unitID, req.FromFloor, req.ToFloor),
		Source: req.CallerID,
		UnitID: &unitID,
	})
	if d.bus != nil {
		d.bus.Publish(events.AssignmentEvent{
			TaskID:     taskID,
			ElevatorID: unitID,
			FromFloor:  req.FromFloor,
			ToFloor:    req.ToFloor,
			CallerID:   req.CallerID,
			ETASeconds: eta,
			Time:       d.now(),
		})
	}
	if err := d.sink.RecordAssignment([]coremetrics.AssignmentMetric{{
		TaskID:     taskID,
		ElevatorID: unitID,
		FromFloor:  req.FromFloor,
		ToFloor:    req.ToFloor,
		CallerID:   req.CallerID,
		ETASeconds: eta,
		Time:       d.now(),
	}}); err != nil {
		d.log.Errorf("metrics error: %v", err)
	}

	d.wg.Add(1)
	go d.executeCall(unit, req, taskID)

	return result, nil
}

// validateFloors enforces 1 <= floor <= NumFloors for both ends.
func (d *Dispatcher) validateFloors(req model.CallRequest) error {
	for _, floor := range []int{req.FromFloor, req.ToFloor} {
		if floor < 1 || floor > d.cfg.NumFloors {
			return &model.InvalidFloorError{Floor: floor, MaxFloor: d.cfg.NumFloors}
		}
	}
	return nil
}

// selectUnitLocked applies the greedy policy: nearest idle unit first,
// falling back to a moving unit whose oriented route covers the pickup
// floor. Ties break on the lowest unit id. Maintenance units never
// qualify. Caller holds the fleet lock.
func (d *Dispatcher) selectUnitLocked(req model.CallRequest) (*elevator.Unit, model.UnitSnapshot) {
	required := req.RequiredDirection()

	var best *elevator.Unit
	var bestSnap model.UnitSnapshot
	bestDist := -1

	consider := func(u *elevator.Unit, snap model.UnitSnapshot) {
		dist := abs(snap.CurrentFloor - req.FromFloor)
		if best == nil || dist < bestDist || (dist == bestDist && snap.ID < bestSnap.ID) {
			best, bestSnap, bestDist = u, snap, dist
		}
	}

	snaps := make([]model.UnitSnapshot, len(d.units))
	for i, u := range d.units {
		snaps[i] = u.Snapshot()
	}

	for i, u := range d.units {
		snap := snaps[i]
		if snap.Maintenance || snap.State != model.StateIdle {
			continue
		}
		consider(u, snap)
	}
	if best != nil {
		return best, bestSnap
	}

	for i, u := range d.units {
		snap := snaps[i]
		if snap.Maintenance || snap.State != model.StateMoving || snap.Direction != required {
			continue
		}
		if !onRoute(snap, req.FromFloor) {
			continue
		}
		consider(u, snap)
	}
	return best, bestSnap
}

// onRoute reports whether floor lies on the unit's oriented route interval.
func onRoute(snap model.UnitSnapshot, floor int) bool {
	if snap.DestinationFloor == nil {
		return false
	}
	dest := *snap.DestinationFloor
	if snap.Direction == model.DirectionUp {
		return snap.CurrentFloor <= floor && floor <= dest
	}
	return dest <= floor && floor <= snap.CurrentFloor
}

// executeCall drives the reserved unit through pickup and destination and
// records the terminal outcome.
func (d *Dispatcher) executeCall(unit *elevator.Unit, req model.CallRequest, taskID string) {
	defer d.wg.Done()
	tasksInflight.Inc()
	defer tasksInflight.Dec()

	ctx := context.Background()
	start := d.now()
	unitID := unit.ID()

	var err error
	if unit.Snapshot().CurrentFloor != req.FromFloor {
		err = unit.MoveTo(ctx, req.FromFloor)
	}
	if err == nil {
		err = unit.MoveTo(ctx, req.ToFloor)
	}
	duration := d.now().Sub(start)

	if err != nil {
		fault := &UnitFaultError{UnitID: unitID, Err: err}
		unit.SetFault(ctx, fault)
		d.finishTask(taskID, model.TaskFailed, fault.Error())
		d.appendEvent(ctx, persistence.EventRecord{
			Type:     persistence.EventCallFailed,
			Detail:   fmt.Sprintf("failed call %d->%d: %v", req.FromFloor, req.ToFloor, err),
			Source:   req.CallerID,
			UnitID:   &unitID,
			Severity: persistence.SeverityError,
		})
		d.publishTaskEvent(taskID, unitID, model.TaskFailed, fault.Error())
		d.recordTrip(req, taskID, unitID, false, fault.Error(), duration)
		d.log.Errorf("task %s failed: %v", taskID, err)
		return
	}

	unit.CompleteTrip()
	unit.PushState(ctx)
	tripDuration.Observe(duration.Seconds())
	d.finishTask(taskID, model.TaskCompleted, "")
	d.appendEvent(ctx, persistence.EventRecord{
		Type:   persistence.EventCallCompleted,
		Detail: fmt.Sprintf("completed call %d->%d", req.FromFloor, req.ToFloor),
		Source: req.CallerID,
		UnitID: &unitID,
	})
	d.publishTaskEvent(taskID, unitID, model.TaskCompleted, "")
	d.recordTrip(req, taskID, unitID, true, "", duration)
	d.log.Infof("task %s completed in %s", taskID, duration)
}

// finishTask transitions the task record to a terminal state.
func (d *Dispatcher) finishTask(taskID string, status model.TaskStatus, reason string) {
	d.mu.Lock()
	if entry, ok := d.tasks[taskID]; ok {
		entry.rec.Status = status
		entry.rec.Reason = reason
		entry.terminal = true
		entry.doneAt = d.clock()
	}
	d.mu.Unlock()
}

// sweepLocked evicts idempotency entries and terminal task records older
// than the TTL. Caller holds the fleet lock.
func (d *Dispatcher) sweepLocked(now time.Time) {
	for key, entry := range d.idem {
		if now.Sub(entry.created) > d.cfg.IdempotencyTTL {
			delete(d.idem, key)
		}
	}
	for id, entry := range d.tasks {
		if entry.terminal && now.Sub(entry.doneAt) > d.cfg.IdempotencyTTL {
			delete(d.tasks, id)
		}
	}
}

// GetStatus returns a point-in-time snapshot of the fleet.
func (d *Dispatcher) GetStatus() model.StatusSnapshot {
	snaps := make([]model.UnitSnapshot, len(d.units))
	allBusy := true
	for i, u := range d.units {
		snaps[i] = u.Snapshot()
		if snaps[i].State == model.StateIdle {
			allBusy = false
		}
	}

	d.mu.Lock()
	active := 0
	for _, entry := range d.tasks {
		if !entry.terminal {
			active++
		}
	}
	now := d.clock()
	d.mu.Unlock()

	health := model.HealthHealthy
	if allBusy {
		health = model.HealthBusy
	}
	return model.StatusSnapshot{Units: snaps, ActiveTasks: active, Health: health, Timestamp: now}
}

// GetTaskStatus reports the status of one task. Unknown or already pruned
// ids read as completed by convention, with Known set to false.
func (d *Dispatcher) GetTaskStatus(taskID string) model.TaskRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	if entry, ok := d.tasks[taskID]; ok {
		return entry.rec
	}
	return model.TaskRecord{TaskID: taskID, Status: model.TaskCompleted}
}

// Wait blocks until all in-flight movement tasks have reached a terminal
// state. Used on shutdown and by tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) now() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clock()
}

func (d *Dispatcher) appendEvent(ctx context.Context, ev persistence.EventRecord) {
	if ev.Severity == "" {
		ev.Severity = persistence.SeverityInfo
	}
	ev.Timestamp = d.now()
	if err := d.gateway.AppendEvent(ctx, ev); err != nil {
		d.log.Warnf("event append failed: %v", err)
	}
}

func (d *Dispatcher) publishTaskEvent(taskID string, unitID int, status model.TaskStatus, reason string) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(events.TaskEvent{TaskID: taskID, ElevatorID: unitID, Status: status, Reason: reason, Time: d.now()})
}

func (d *Dispatcher) recordTrip(req model.CallRequest, taskID string, unitID int, completed bool, reason string, duration time.Duration) {
	rec, ok := d.sink.(coremetrics.TripRecorder)
	if !ok {
		return
	}
	if err := rec.RecordUnitTrip([]coremetrics.UnitTripMetric{{
		TaskID:     taskID,
		ElevatorID: unitID,
		FromFloor:  req.FromFloor,
		ToFloor:    req.ToFloor,
		Completed:  completed,
		Reason:     reason,
		Duration:   duration,
		Time:       d.now(),
	}}); err != nil {
		d.log.Errorf("trip metrics error: %v", err)
	}
}

// nopLogger avoids a dependency on infra from core.
type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}
