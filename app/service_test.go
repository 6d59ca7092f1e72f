package app

import (
	"context"
	"testing"
	"time"

	"github.com/verticore/liftd/config"
	"github.com/verticore/liftd/core/model"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Fleet.NumElevators = 2
	cfg.Fleet.FloorTransitSeconds = 0.001
	cfg.Fleet.DoorSeconds = 0.001
	cfg.Persistence.Backend = "memory"
	return cfg
}

func TestServiceAssignsAndCompletes(t *testing.T) {
	svc, err := New(testConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = svc.Run(ctx)
		close(done)
	}()

	asg, err := svc.Dispatcher.Assign(ctx, model.CallRequest{
		FromFloor: 1, ToFloor: 5, CallerID: "svc-test",
	})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if asg.TaskID == "" {
		t.Fatalf("empty task id")
	}

	deadline := time.After(5 * time.Second)
	for {
		rec := svc.Dispatcher.GetTaskStatus(asg.TaskID)
		if rec.Status == model.TaskCompleted {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("task never completed: %+v", rec)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop on cancel")
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestServiceStatusSnapshot(t *testing.T) {
	svc, err := New(testConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	defer func() { _ = svc.Close() }()

	st := svc.Dispatcher.GetStatus()
	if len(st.Units) != 2 {
		t.Fatalf("units: got %d want 2", len(st.Units))
	}
	if st.Health != model.HealthHealthy {
		t.Fatalf("health: got %v", st.Health)
	}
}
