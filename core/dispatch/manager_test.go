package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/verticore/liftd/core/elevator"
	"github.com/verticore/liftd/core/model"
	"github.com/verticore/liftd/core/persistence"
	"github.com/verticore/liftd/infra/logger"
)

// instantDrive completes every phase immediately.
type instantDrive struct{}

func (instantDrive) Step(context.Context, int, int) error      { return nil }
func (instantDrive) DoorPhase(context.Context, int, int) error { return nil }

// gateDrive blocks every floor step until the gate is closed.
type gateDrive struct {
	gate chan struct{}
}

func (d gateDrive) Step(ctx context.Context, _, _ int) error {
	select {
	case <-d.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
func (gateDrive) DoorPhase(context.Context, int, int) error { return nil }

// faultyDrive fails on the step leaving atFloor.
type faultyDrive struct {
	atFloor int
}

func (d faultyDrive) Step(_ context.Context, _, fromFloor int) error {
	if fromFloor == d.atFloor {
		return fmt.Errorf("motor stall at floor %d", fromFloor)
	}
	return nil
}
func (faultyDrive) DoorPhase(context.Context, int, int) error { return nil }

// newUnitAt creates a unit and positions it at floor.
func newUnitAt(t *testing.T, id, floor int, drive elevator.Drive, gw persistence.Gateway) *elevator.Unit {
	t.Helper()
	u := elevator.NewUnit(id, 10, drive, gw, nil, logger.NopLogger{})
	if err := u.MoveTo(context.Background(), floor); err != nil {
		t.Fatalf("position unit %d at floor %d: %v", id, floor, err)
	}
	return u
}

func newDispatcher(t *testing.T, units []*elevator.Unit, gw persistence.Gateway) *Dispatcher {
	t.Helper()
	d, err := New(units, gw, etaConfig(), nil, nil, logger.NopLogger{})
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	return d
}

func TestAssignInvalidFloor(t *testing.T) {
	u := newUnitAt(t, 1, 1, instantDrive{}, persistence.NopGateway{})
	d := newDispatcher(t, []*elevator.Unit{u}, persistence.NopGateway{})

	for _, req := range []model.CallRequest{
		{FromFloor: 0, ToFloor: 5, CallerID: "c"},
		{FromFloor: 2, ToFloor: 11, CallerID: "c"},
	} {
		_, err := d.Assign(context.Background(), req)
		var ife *model.InvalidFloorError
		if !errors.As(err, &ife) {
			t.Fatalf("expected InvalidFloorError for %+v, got %v", req, err)
		}
		if ife.MaxFloor != 10 {
			t.Fatalf("error should carry the bound: %#v", ife)
		}
	}
}

func TestAssignPicksNearestIdleUnit(t *testing.T) {
	gw := persistence.NopGateway{}
	units := []*elevator.Unit{
		newUnitAt(t, 1, 1, instantDrive{}, gw),
		newUnitAt(t, 2, 5, instantDrive{}, gw),
		newUnitAt(t, 3, 2, instantDrive{}, gw),
	}
	d := newDispatcher(t, units, gw)

	res, err := d.Assign(context.Background(), model.CallRequest{FromFloor: 3, ToFloor: 7, CallerID: "c"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if res.ElevatorID != 3 {
		t.Fatalf("expected unit 3 (distance 1), got %d", res.ElevatorID)
	}
	d.Wait()
}

func TestAssignTieBreaksOnLowestID(t *testing.T) {
	gw := persistence.NopGateway{}
	units := []*elevator.Unit{
		newUnitAt(t, 2, 4, instantDrive{}, gw),
		newUnitAt(t, 1, 2, instantDrive{}, gw),
	}
	d := newDispatcher(t, units, gw)

	res, err := d.Assign(context.Background(), model.CallRequest{FromFloor: 3, ToFloor: 8, CallerID: "c"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if res.ElevatorID != 1 {
		t.Fatalf("expected lowest id 1 on tie, got %d", res.ElevatorID)
	}
	d.Wait()
}

func TestAssignSkipsMaintenanceUnits(t *testing.T) {
	gw := persistence.NopGateway{}
	near := newUnitAt(t, 1, 3, instantDrive{}, gw)
	far := newUnitAt(t, 2, 9, instantDrive{}, gw)
	near.SetMaintenance(true)
	d := newDispatcher(t, []*elevator.Unit{near, far}, gw)

	res, err := d.Assign(context.Background(), model.CallRequest{FromFloor: 3, ToFloor: 5, CallerID: "c"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if res.ElevatorID != 2 {
		t.Fatalf("maintenance unit must not be selected, got %d", res.ElevatorID)
	}
	d.Wait()
}

func TestAssignEnRoutePickup(t *testing.T) {
	cases := []struct {
		name    string
		from    int
		to      int
		wantErr bool
	}{
		{"pickup on route", 5, 9, false},
		{"pickup behind unit", 1, 3, true},
		{"pickup past destination", 9, 10, true},
		{"wrong direction", 5, 2, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := persistence.NopGateway{}
			u := newUnitAt(t, 1, 2, instantDrive{}, gw)
			// Unit is climbing from floor 2 to floor 8.
			u.Reserve(model.DirectionUp, 8)
			d := newDispatcher(t, []*elevator.Unit{u}, gw)

			_, err := d.Assign(context.Background(), model.CallRequest{FromFloor: tc.from, ToFloor: tc.to, CallerID: "c"})
			if tc.wantErr {
				if !errors.Is(err, ErrNoAvailableUnit) {
					t.Fatalf("expected ErrNoAvailableUnit, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("assign: %v", err)
			}
			d.Wait()
		})
	}
}

func TestAssignETAPropagated(t *testing.T) {
	gw := persistence.NopGateway{}
	u := newUnitAt(t, 1, 1, instantDrive{}, gw)
	d := newDispatcher(t, []*elevator.Unit{u}, gw)

	// Idle at floor 1, pickup at 5: 4 transits plus two door cycles.
	res, err := d.Assign(context.Background(), model.CallRequest{FromFloor: 5, ToFloor: 9, CallerID: "c"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if res.EstimatedArrivalTime != 12.0 {
		t.Fatalf("expected ETA 12.0s, got %v", res.EstimatedArrivalTime)
	}
	d.Wait()
}

func TestAssignConcurrentExactlyFleetSizeSucceeds(t *testing.T) {
	const fleet = 3
	const calls = 7

	gw := persistence.NopGateway{}
	gate := make(chan struct{})
	units := make([]*elevator.Unit, 0, fleet)
	for i := 1; i <= fleet; i++ {
		units = append(units, newUnitAt(t, i, 1, gateDrive{gate: gate}, gw))
	}
	d := newDispatcher(t, units, gw)

	var wg sync.WaitGroup
	results := make([]model.Assignment, calls)
	errs := make([]error, calls)
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// 5->2 never qualifies for en-route pickup of a unit
			// climbing away from floor 1.
			results[i], errs[i] = d.Assign(context.Background(), model.CallRequest{FromFloor: 5, ToFloor: 2, CallerID: "c"})
		}(i)
	}
	wg.Wait()

	chosen := map[int]bool{}
	success, unavailable := 0, 0
	for i := 0; i < calls; i++ {
		switch {
		case errs[i] == nil:
			success++
			if chosen[results[i].ElevatorID] {
				t.Fatalf("unit %d reserved twice", results[i].ElevatorID)
			}
			chosen[results[i].ElevatorID] = true
		case errors.Is(errs[i], ErrNoAvailableUnit):
			unavailable++
		default:
			t.Fatalf("unexpected error: %v", errs[i])
		}
	}
	if success != fleet || unavailable != calls-fleet {
		t.Fatalf("expected %d successes and %d rejections, got %d/%d", fleet, calls-fleet, success, unavailable)
	}

	close(gate)
	d.Wait()
}

func TestFaultIsolation(t *testing.T) {
	gw := persistence.NewMemoryGateway()
	bad := newUnitAt(t, 1, 1, faultyDrive{atFloor: 2}, gw)
	good := newUnitAt(t, 2, 5, instantDrive{}, gw)
	d := newDispatcher(t, []*elevator.Unit{bad, good}, gw)

	badRes, err := d.Assign(context.Background(), model.CallRequest{FromFloor: 1, ToFloor: 4, CallerID: "c"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if badRes.ElevatorID != 1 {
		t.Fatalf("expected nearest unit 1, got %d", badRes.ElevatorID)
	}
	d.Wait()

	goodRes, err := d.Assign(context.Background(), model.CallRequest{FromFloor: 5, ToFloor: 6, CallerID: "c"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if goodRes.ElevatorID != 2 {
		t.Fatalf("expected unit 2, got %d", goodRes.ElevatorID)
	}
	d.Wait()

	badTask := d.GetTaskStatus(badRes.TaskID)
	if badTask.Status != model.TaskFailed || badTask.Reason == "" {
		t.Fatalf("expected failed task with reason, got %#v", badTask)
	}
	goodTask := d.GetTaskStatus(goodRes.TaskID)
	if goodTask.Status != model.TaskCompleted {
		t.Fatalf("expected completed task, got %#v", goodTask)
	}

	if got := bad.Snapshot().State; got != model.StateError {
		t.Fatalf("faulted unit should be ERROR, got %s", got)
	}
	if got := good.Snapshot().State; got != model.StateIdle {
		t.Fatalf("healthy unit should be IDLE, got %s", got)
	}

	failures := gw.Events(persistence.EventCallFailed, 0)
	if len(failures) != 1 || failures[0].Severity != persistence.SeverityError {
		t.Fatalf("expected one CALL_FAILED event with ERROR severity, got %#v", failures)
	}
}

func TestGetStatusHealth(t *testing.T) {
	gw := persistence.NopGateway{}
	gate := make(chan struct{})
	u := newUnitAt(t, 1, 1, gateDrive{gate: gate}, gw)
	d := newDispatcher(t, []*elevator.Unit{u}, gw)

	st := d.GetStatus()
	if st.Health != model.HealthHealthy || st.ActiveTasks != 0 {
		t.Fatalf("expected healthy idle fleet, got %#v", st)
	}

	if _, err := d.Assign(context.Background(), model.CallRequest{FromFloor: 3, ToFloor: 5, CallerID: "c"}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	st = d.GetStatus()
	if st.Health != model.HealthBusy {
		t.Fatalf("single busy unit should make the fleet BUSY, got %s", st.Health)
	}
	if st.ActiveTasks != 1 {
		t.Fatalf("expected 1 active task, got %d", st.ActiveTasks)
	}

	close(gate)
	d.Wait()
	st = d.GetStatus()
	if st.Health != model.HealthHealthy || st.ActiveTasks != 0 {
		t.Fatalf("fleet should be healthy again, got %#v", st)
	}
}

func TestGetTaskStatusUnknown(t *testing.T) {
	gw := persistence.NopGateway{}
	u := newUnitAt(t, 1, 1, instantDrive{}, gw)
	d := newDispatcher(t, []*elevator.Unit{u}, gw)

	rec := d.GetTaskStatus("never-registered")
	if rec.Known {
		t.Fatal("unknown task must not read as known")
	}
	if rec.Status != model.TaskCompleted {
		t.Fatalf("unknown tasks read as completed by convention, got %s", rec.Status)
	}
}

func TestAssignToCurrentFloorCompletes(t *testing.T) {
	gw := persistence.NopGateway{}
	u := newUnitAt(t, 1, 1, instantDrive{}, gw)
	d := newDispatcher(t, []*elevator.Unit{u}, gw)

	res, err := d.Assign(context.Background(), model.CallRequest{FromFloor: 1, ToFloor: 1, CallerID: "c"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	d.Wait()
	if got := u.Snapshot().State; got != model.StateIdle {
		t.Fatalf("unit must settle back to IDLE after a no-op ride, got %s", got)
	}
	if rec := d.GetTaskStatus(res.TaskID); rec.Status != model.TaskCompleted {
		t.Fatalf("expected completed task, got %#v", rec)
	}
}
